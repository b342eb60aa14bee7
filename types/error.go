package types

import (
	"fmt"

	"github.com/juju/errors"
)

var (
	_ error = &TypeMismatchError{}
	_ error = &MultipleIncomingLinksError{}
	_ error = &CycleError{}
	_ error = &FaultError{}
)

/**
 * Edit-time validation errors. A failed edit leaves the graph
 * untouched, callers can match on the concrete type with errors.As.
 */

type TypeMismatchError struct {
	Link       string
	SourceType string
	TargetType string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch on %s: %s -> %s", e.Link, e.SourceType, e.TargetType)
}

type MultipleIncomingLinksError struct {
	Target string
}

func (e *MultipleIncomingLinksError) Error() string {
	return fmt.Sprintf("input %s already has an incoming link", e.Target)
}

type CycleError struct {
	From string
	To   string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("link %s -> %s would close a cycle", e.From, e.To)
}

/**
 * FaultError is an unrecoverable engine fault: a checkpoint that can
 * not be written, a corrupt snapshot on recovery, a broken internal
 * invariant. The graph goes EXCEPTED and is never dispatched again.
 */
type FaultError struct {
	Reason string
	Err    error
}

func NewFaultf(err error, format string, args ...any) *FaultError {
	return &FaultError{Reason: fmt.Sprintf(format, args...), Err: err}
}

func (e *FaultError) Error() string {
	if e.Err == nil {
		return "engine fault: " + e.Reason
	}
	return fmt.Sprintf("engine fault: %s: %v", e.Reason, e.Err)
}

func (e *FaultError) Unwrap() error {
	return e.Err
}

func IsFault(err error) bool {
	fe := &FaultError{}
	return errors.As(err, &fe)
}
