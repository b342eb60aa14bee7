package types

import (
	"context"
)

type TaskState int32

const (
	TaskPlanned  TaskState = 0
	TaskReady    TaskState = 1
	TaskRunning  TaskState = 2
	TaskWaiting  TaskState = 3
	TaskFailed   TaskState = 5
	TaskSkipped  TaskState = 6
	TaskFinished TaskState = 10
)

func (s TaskState) Terminal() bool {
	return s == TaskFinished || s == TaskFailed || s == TaskSkipped
}

func (s TaskState) String() string {
	switch s {
	case TaskPlanned:
		return "PLANNED"
	case TaskReady:
		return "READY"
	case TaskRunning:
		return "RUNNING"
	case TaskWaiting:
		return "WAITING"
	case TaskFailed:
		return "FAILED"
	case TaskSkipped:
		return "SKIPPED"
	case TaskFinished:
		return "FINISHED"
	}
	return "UNKNOWN"
}

type GraphState int32

const (
	GraphCreated  GraphState = 0
	GraphRunning  GraphState = 2
	GraphWaiting  GraphState = 3
	GraphFailed   GraphState = 5
	GraphExcepted GraphState = 9
	GraphFinished GraphState = 10
)

func (s GraphState) Terminal() bool {
	return s == GraphFinished || s == GraphFailed || s == GraphExcepted
}

func (s GraphState) String() string {
	switch s {
	case GraphCreated:
		return "CREATED"
	case GraphRunning:
		return "RUNNING"
	case GraphWaiting:
		return "WAITING"
	case GraphFailed:
		return "FAILED"
	case GraphExcepted:
		return "EXCEPTED"
	case GraphFinished:
		return "FINISHED"
	}
	return "UNKNOWN"
}

/**
 * Context is what an executor receives on Invoke. Beside the standard
 * context it addresses the graph-scoped key/value store. Access to that
 * store is serialized by the engine, executors never touch it directly.
 */
type Context interface {
	context.Context

	GraphID() string
	TaskName() string

	GetValue(key string) (any, bool)
	SetValue(key string, value any)
}
