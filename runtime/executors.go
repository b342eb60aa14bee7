package runtime

import (
	"strings"
	"sync"

	"github.com/gammazero/workerpool"
	"github.com/juju/errors"

	"github.com/superstar54/AEP/store"
	"github.com/superstar54/AEP/types"
	"github.com/superstar54/AEP/utils"
)

var (
	_ types.Executor       = &ImmediateFunc{}
	_ types.Executor       = &ExitFunc{}
	_ types.Executor       = &AsyncFunc{}
	_ types.Executor       = &NestedGraph{}
	_ types.DeferredHandle = &AsyncHandle{}
	_ types.Canceler       = &AsyncHandle{}
)

/**
 * AsyncHandle is the concrete DeferredHandle used by the adapters and
 * by anything driving external work by hand. Complete resolves it
 * exactly once; later calls are dropped.
 */
type AsyncHandle struct {
	mu sync.Mutex

	done     bool
	c        types.Completion
	cb       func(types.Completion)
	onCancel func()
}

func NewAsyncHandle() *AsyncHandle {
	return &AsyncHandle{}
}

func (h *AsyncHandle) PollOrRegister(cb func(types.Completion)) (types.Completion, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.done {
		return h.c, true
	}
	h.cb = cb
	return types.Completion{}, false
}

func (h *AsyncHandle) Complete(c types.Completion) {
	h.mu.Lock()
	if h.done {
		h.mu.Unlock()
		return
	}
	if c.Status == types.CompletionPending {
		if c.Failed() {
			c.Status = types.CompletionFailure
		} else {
			c.Status = types.CompletionSuccess
		}
	}
	h.done = true
	h.c = c
	cb := h.cb
	h.cb = nil
	h.mu.Unlock()

	if cb != nil {
		cb(c)
	}
}

func (h *AsyncHandle) Succeed(values types.Data) {
	h.Complete(types.Completion{Status: types.CompletionSuccess, Values: values})
}

func (h *AsyncHandle) Fail(err error) {
	h.Complete(types.Completion{Status: types.CompletionFailure, Err: err})
}

// SetCancel installs the best-effort cancellation hook invoked when
// the owning graph is cancelled.
func (h *AsyncHandle) SetCancel(fn func()) {
	h.mu.Lock()
	h.onCancel = fn
	h.mu.Unlock()
}

func (h *AsyncHandle) Cancel() {
	h.mu.Lock()
	fn := h.onCancel
	h.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// ImmediateFunc runs a plain function inside the engine loop and
// returns its values synchronously.
type ImmediateFunc struct {
	fn types.ImmediateHandler
}

func NewImmediateFunc(fn types.ImmediateHandler) *ImmediateFunc {
	return &ImmediateFunc{fn: fn}
}

func (x *ImmediateFunc) Invoke(ctx types.Context, inputs types.Data) (*types.Result, error) {
	out, err := x.fn(ctx, inputs)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &types.Result{Values: out}, nil
}

// ExitFunc is ImmediateFunc for handlers that report a structured exit
// code alongside (or instead of) their outputs.
type ExitFunc struct {
	fn types.ExitHandler
}

func NewExitFunc(fn types.ExitHandler) *ExitFunc {
	return &ExitFunc{fn: fn}
}

func (x *ExitFunc) Invoke(ctx types.Context, inputs types.Data) (*types.Result, error) {
	out, exit, err := x.fn(ctx, inputs)
	if err != nil {
		return nil, errors.Trace(err)
	}
	return &types.Result{Values: out, Exit: exit}, nil
}

/**
 * AsyncFunc runs the handler on a worker pool and hands the engine a
 * deferred handle, so independent tasks overlap while the engine's own
 * transitions stay serialized.
 */
type AsyncFunc struct {
	wp *workerpool.WorkerPool
	fn types.ImmediateHandler
}

func NewAsyncFunc(wp *workerpool.WorkerPool, fn types.ImmediateHandler) *AsyncFunc {
	return &AsyncFunc{wp: wp, fn: fn}
}

func (x *AsyncFunc) Invoke(ctx types.Context, inputs types.Data) (*types.Result, error) {
	h := NewAsyncHandle()
	x.wp.Submit(func() {
		out, err := x.fn(ctx, inputs)
		if err != nil {
			h.Fail(err)
			return
		}
		h.Succeed(out)
	})
	return &types.Result{Deferred: h}, nil
}

/**
 * NestedGraph runs a whole graph as a single task. The build function
 * produces a fresh graph per invocation (a terminal graph is never
 * re-run). MapInput routes the owning task's input sockets onto child
 * "task.socket" refs, MapOutput routes child outputs back onto the
 * owning task's output sockets. The child checkpoints under a dotted
 * sub-ID of the parent.
 */
type NestedGraph struct {
	build func() (*Graph, error)
	st    store.Store
	opts  []types.EngineOption

	inputMap  map[string]string // parent input socket -> child task.socket
	outputMap map[string]string // child task.socket -> parent output socket
}

func NewNestedGraph(build func() (*Graph, error), st store.Store, opts ...types.EngineOption) *NestedGraph {
	return &NestedGraph{
		build:     build,
		st:        st,
		opts:      opts,
		inputMap:  map[string]string{},
		outputMap: map[string]string{},
	}
}

func (x *NestedGraph) MapInput(socket, childRef string) *NestedGraph {
	x.inputMap[socket] = childRef
	return x
}

func (x *NestedGraph) MapOutput(childRef, socket string) *NestedGraph {
	x.outputMap[childRef] = socket
	return x
}

func (x *NestedGraph) Invoke(ctx types.Context, inputs types.Data) (*types.Result, error) {
	g, err := x.build()
	if err != nil {
		return nil, errors.Trace(err)
	}
	g.ID = utils.NewPath(ctx.GraphID(), ctx.TaskName()).String()

	for key, v := range inputs {
		ref, mapped := x.inputMap[key]
		if !mapped {
			continue
		}
		taskName, socket, found := strings.Cut(ref, ".")
		if !found {
			return nil, errors.BadRequestf("input mapping %q: expected \"task.socket\"", ref)
		}
		t, exists := g.Task(taskName)
		if !exists {
			return nil, errors.NotFoundf("nested graph task %s", taskName)
		}
		if err := t.Supply(socket, v); err != nil {
			return nil, errors.Trace(err)
		}
	}

	options := types.NewEngineOptions()
	for _, opt := range x.opts {
		opt(options)
	}
	sub := NewEngine(g, x.st, options)
	rep, err := sub.Run(ctx)
	if err != nil {
		return nil, errors.Trace(err)
	}

	values := types.Data{}
	for childRef, socket := range x.outputMap {
		if v, ok := rep.Outputs[childRef]; ok {
			values[socket] = v
		}
	}
	res := &types.Result{Values: values}
	if rep.ExitStatus != 0 {
		res.Exit = &types.ExitCode{Status: rep.ExitStatus, Message: rep.ExitMessage}
	}
	return res, nil
}
