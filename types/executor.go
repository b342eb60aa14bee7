package types

type CompletionStatus int32

const (
	CompletionPending CompletionStatus = 0
	CompletionSuccess CompletionStatus = 1
	CompletionFailure CompletionStatus = 2
)

/**
 * ExitCode is the structured exit a task may report instead of (or
 * alongside) normal outputs. The engine surfaces it verbatim on the
 * owning task; a non-zero Status fails the task.
 */
type ExitCode struct {
	Status  int    `json:"status"`
	Message string `json:"message,omitempty"`
}

// Completion resolves an awaitable. Err and a non-zero Exit both count
// as a failure completion.
type Completion struct {
	Status CompletionStatus
	Values Data
	Exit   *ExitCode
	Err    error
}

func (c Completion) Failed() bool {
	if c.Status == CompletionFailure || c.Err != nil {
		return true
	}
	return c.Exit != nil && c.Exit.Status != 0
}

/**
 * Result is the tagged outcome of Invoke: either the final values are
 * already there (Values, optionally Exit), or the work went external
 * and Deferred carries the handle. Deferred set wins.
 */
type Result struct {
	Values   Data
	Exit     *ExitCode
	Deferred DeferredHandle
}

/**
 * DeferredHandle tracks one in-flight unit of external work.
 * PollOrRegister either reports the work already done, or arranges for
 * cb to be invoked exactly once when it completes. The callback may
 * fire on any goroutine.
 */
type DeferredHandle interface {
	PollOrRegister(cb func(Completion)) (Completion, bool)
}

// Canceler is an optional handle capability, used on best-effort graph
// cancellation.
type Canceler interface {
	Cancel()
}

type Executor interface {
	Invoke(ctx Context, inputs Data) (*Result, error)
}

/**
 * Reattacher is an optional executor capability consulted on recovery:
 * when the external work survives an engine restart the executor hands
 * back a live handle for the recorded awaitable ID. Executors without
 * it get their task re-dispatched from scratch.
 */
type Reattacher interface {
	Reattach(ctx Context, awaitableID string) (DeferredHandle, error)
}

type ImmediateHandler func(ctx Context, inputs Data) (Data, error)
type ExitHandler func(ctx Context, inputs Data) (Data, *ExitCode, error)
