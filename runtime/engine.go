package runtime

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gammazero/workerpool"
	"github.com/google/uuid"
	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"

	"github.com/superstar54/AEP/store"
	"github.com/superstar54/AEP/types"
	"github.com/superstar54/AEP/utils"
)

const (
	CheckpointPath = "/checkpoint/"
	RecordPath     = "/record/"
)

type completionMsg struct {
	awaitableID string
	c           types.Completion
}

type awaitable struct {
	id      string
	task    *Task
	handle  types.DeferredHandle
	started time.Time
	input   types.Data
}

/**
 * Engine walks one graph to a terminal state: it computes the ready
 * set, dispatches, tracks outstanding awaitables and checkpoints after
 * every transition. All transitions are serialized through the graph
 * mutex; executors may run anywhere, the engine state never does.
 */
type Engine struct {
	g    *Graph
	st   store.Store
	opts *types.EngineOptions

	pool *workerpool.WorkerPool

	completions chan completionMsg
	stopCh      chan struct{}
	stopOnce    sync.Once

	// awaitables and candidates are guarded by g.mu
	awaitables map[string]*awaitable
	candidates map[string]struct{}

	metrics *engineMetrics
	tracer  *traceRecorder

	fault   error
	started bool
}

func NewEngine(g *Graph, st store.Store, opts *types.EngineOptions) *Engine {
	if opts == nil {
		opts = types.NewEngineOptions()
	}
	e := &Engine{
		g:           g,
		st:          st,
		opts:        opts,
		pool:        workerpool.New(opts.MaxDispatchConcurrency),
		completions: make(chan completionMsg, 256),
		stopCh:      make(chan struct{}),
		awaitables:  map[string]*awaitable{},
		candidates:  map[string]struct{}{},
		metrics:     newEngineMetrics(opts.Registerer),
	}
	e.tracer = newTraceRecorder(st, g.ID)
	return e
}

func (e *Engine) Graph() *Graph {
	return e.g
}

// Pool is the worker pool handed to pool-backed executors, sized by
// MaxDispatchConcurrency.
func (e *Engine) Pool() *workerpool.WorkerPool {
	return e.pool
}

/**
 * Run drives the graph until it is FINISHED, FAILED or EXCEPTED and
 * returns the terminal report. The returned error is non-nil only for
 * engine faults and external cancellation; an ordinary task failure is
 * reported through the graph's FAILED state, not as a Go error.
 */
func (e *Engine) Run(ctx context.Context) (*Report, error) {
	if ctx == nil {
		ctx = e.opts.Ctx
	}

	e.g.mu.Lock()
	if e.started {
		e.g.mu.Unlock()
		return nil, errors.Forbiddenf("graph %s is already being run", e.g.ID)
	}
	switch e.g.State {
	case types.GraphCreated, types.GraphRunning, types.GraphWaiting:
	default:
		e.g.mu.Unlock()
		return nil, errors.Forbiddenf("graph %s is %v, terminal graphs are not resumed", e.g.ID, e.g.State)
	}
	e.started = true
	e.g.State = types.GraphRunning

	for _, t := range e.g.tasksInOrder() {
		if t.State == types.TaskPlanned {
			e.candidates[t.Name] = struct{}{}
		}
	}
	if err := e.commitLocked(ctx); err != nil {
		return e.finishRunLocked(err)
	}

	for {
		e.adoptAddedLocked()
		if err := e.dispatchReadyLocked(ctx); err != nil {
			return e.finishRunLocked(err)
		}
		if e.g.State.Terminal() {
			return e.finishRunLocked(e.fault)
		}
		if len(e.awaitables) == 0 {
			err := e.finalizeLocked(ctx)
			return e.finishRunLocked(err)
		}

		// wait posture: blocked on external completion, nothing to do
		e.g.State = types.GraphWaiting
		if err := e.commitLocked(ctx); err != nil {
			return e.finishRunLocked(err)
		}

		msg, ok, err := e.waitCompletion(ctx)
		if e.g.State.Terminal() {
			// cancelled while waiting
			return e.finishRunLocked(nil)
		}
		if err != nil {
			e.cancelLocked("run context cancelled")
			rep, _ := e.finishRunLocked(nil)
			return rep, errors.Trace(err)
		}
		if !ok {
			return e.finishRunLocked(nil)
		}

		// any single completion resumes the engine immediately
		e.g.State = types.GraphRunning
		if cerr := e.applyCompletionLocked(ctx, msg); cerr != nil {
			return e.finishRunLocked(cerr)
		}

		for e.opts.WaitForAll && len(e.awaitables) > 0 && !e.g.State.Terminal() {
			msg, ok, err = e.waitCompletion(ctx)
			if e.g.State.Terminal() {
				return e.finishRunLocked(nil)
			}
			if err != nil {
				e.cancelLocked("run context cancelled")
				rep, _ := e.finishRunLocked(nil)
				return rep, errors.Trace(err)
			}
			if !ok {
				return e.finishRunLocked(nil)
			}
			if cerr := e.applyCompletionLocked(ctx, msg); cerr != nil {
				return e.finishRunLocked(cerr)
			}
		}
	}
}

// finishRunLocked builds the terminal report, releases the lock and
// shuts the completion funnel down.
func (e *Engine) finishRunLocked(err error) (*Report, error) {
	e.stop()
	rep := e.reportLocked()
	e.g.mu.Unlock()
	return rep, errors.Trace(err)
}

func (e *Engine) stop() {
	e.stopOnce.Do(func() {
		close(e.stopCh)
	})
}

/**
 * waitCompletion blocks until any awaitable completes. It temporarily
 * releases the graph mutex so completions, cancellation and live edits
 * can get in; the caller re-evaluates the graph state after re-lock.
 */
func (e *Engine) waitCompletion(ctx context.Context) (completionMsg, bool, error) {
	e.g.mu.Unlock()
	defer e.g.mu.Lock()

	select {
	case msg := <-e.completions:
		return msg, true, nil
	case <-e.stopCh:
		return completionMsg{}, false, nil
	case <-ctx.Done():
		return completionMsg{}, false, errors.Trace(ctx.Err())
	}
}

func (e *Engine) completionCallback(id string) func(types.Completion) {
	return func(c types.Completion) {
		select {
		case e.completions <- completionMsg{awaitableID: id, c: c}:
		case <-e.stopCh:
			log.Debugf("%s dropping completion for awaitable %s, engine stopped", e.g.ID, id)
		}
	}
}

// adoptAddedLocked picks up tasks that were live-added since the last
// pass and makes them readiness candidates.
func (e *Engine) adoptAddedLocked() {
	for _, name := range e.g.pendingNew {
		if t, ok := e.g.tasks[name]; ok && t.State == types.TaskPlanned {
			e.candidates[name] = struct{}{}
		}
	}
	e.g.pendingNew = nil
}

/**
 * dispatchReadyLocked repeatedly walks the candidate set in graph
 * insertion order and dispatches every ready task, until a full pass
 * makes no progress. Immediate executors finish and propagate inline,
 * which is what feeds new candidates into the same loop.
 */
func (e *Engine) dispatchReadyLocked(ctx context.Context) error {
	for {
		progressed := false
		for i := 0; i < len(e.g.order); i++ {
			name := e.g.order[i]
			if _, ok := e.candidates[name]; !ok {
				continue
			}
			t := e.g.tasks[name]
			if t.State != types.TaskPlanned {
				delete(e.candidates, name)
				continue
			}
			if !e.readyLocked(t) {
				continue
			}
			t.State = types.TaskReady
			delete(e.candidates, name)
			if err := e.dispatchLocked(ctx, t); err != nil {
				return errors.Trace(err)
			}
			progressed = true
			if e.g.State.Terminal() {
				return nil
			}
		}
		if !progressed {
			return nil
		}
	}
}

/**
 * A task is ready when it is still planned, every linked input has
 * received its value (per sub-key for namespace inputs) and every
 * unlinked input is supplied, defaulted or optional.
 */
func (e *Engine) readyLocked(t *Task) bool {
	if t.State != types.TaskPlanned {
		return false
	}
	for _, s := range t.Inputs {
		in := e.g.incomingLocked(t.Name, s.Name)
		if len(in) == 0 {
			if s.bound || s.Default != nil || s.Optional {
				continue
			}
			return false
		}
		for _, l := range in {
			_, key := splitRef(l.TargetSocket)
			if key == "" {
				if !s.bound {
					return false
				}
			} else if _, ok := s.valueKey(key); !ok {
				return false
			}
		}
	}
	return true
}

func (e *Engine) boundInputsLocked(t *Task) types.Data {
	inputs := types.Data{}
	for _, s := range t.Inputs {
		if s.bound {
			inputs[s.Name] = s.value
		} else if s.Default != nil {
			inputs[s.Name] = s.Default
		}
	}
	return inputs
}

func (e *Engine) dispatchLocked(ctx context.Context, t *Task) error {
	t.State = types.TaskRunning
	e.metrics.incDispatch()

	inputs := e.boundInputsLocked(t)
	started := time.Now()
	log.Debugf("%s dispatching task %s", e.g.ID, t.Name)

	res, err := t.Executor.Invoke(e.taskContext(ctx, t), inputs)
	if err != nil {
		e.failTaskLocked(t, nil, err)
		e.tracer.save(ctx, &types.TaskTraceRecord{
			Task: t.Name, StartTime: started, EndTime: time.Now(),
			Error: errors.ErrorStack(err), Input: inputs,
		})
		return e.commitLocked(ctx)
	}
	if res == nil {
		e.faultLocked(types.NewFaultf(nil, "executor of task %s returned neither result nor error", t.Name))
		return e.fault
	}

	if res.Deferred != nil {
		id := uuid.NewString()
		t.State = types.TaskWaiting
		t.awaitableID = id
		e.awaitables[id] = &awaitable{
			id:      id,
			task:    t,
			handle:  res.Deferred,
			started: started,
			input:   inputs,
		}
		if c, done := res.Deferred.PollOrRegister(e.completionCallback(id)); done {
			// work already finished, consume it on the spot
			return errors.Trace(e.applyCompletionLocked(ctx, completionMsg{awaitableID: id, c: c}))
		}
		return e.commitLocked(ctx)
	}

	e.settleTaskLocked(t, res.Values, res.Exit, nil)
	e.tracer.save(ctx, &types.TaskTraceRecord{
		Task: t.Name, StartTime: started, EndTime: time.Now(),
		Input: inputs, Output: res.Values, Error: t.ExitMessage,
	})
	return e.commitLocked(ctx)
}

func (e *Engine) applyCompletionLocked(ctx context.Context, msg completionMsg) error {
	aw, ok := e.awaitables[msg.awaitableID]
	if !ok {
		// consumed or cancelled before this completion got in
		log.Debugf("%s stale completion for awaitable %s", e.g.ID, msg.awaitableID)
		return nil
	}
	delete(e.awaitables, msg.awaitableID)

	t := aw.task
	t.awaitableID = ""
	e.metrics.incCompletion()

	cerr := msg.c.Err
	if msg.c.Status == types.CompletionFailure && cerr == nil && (msg.c.Exit == nil || msg.c.Exit.Status == 0) {
		cerr = errors.New("awaitable reported failure")
	}
	var errText string
	if cerr != nil {
		errText = errors.ErrorStack(cerr)
	}
	e.settleTaskLocked(t, msg.c.Values, msg.c.Exit, cerr)
	e.tracer.save(ctx, &types.TaskTraceRecord{
		Task: t.Name, AwaitableID: aw.id,
		StartTime: aw.started, EndTime: time.Now(),
		Input: aw.input, Output: msg.c.Values, Error: errText,
	})
	return errors.Trace(e.commitLocked(ctx))
}

// settleTaskLocked takes a task out of RUNNING/WAITING based on its
// outcome: failure handling with retry budget, or finish + propagate.
func (e *Engine) settleTaskLocked(t *Task, values types.Data, exit *types.ExitCode, err error) {
	if err != nil || (exit != nil && exit.Status != 0) {
		e.failTaskLocked(t, exit, err)
		return
	}
	if exit != nil {
		t.ExitStatus = exit.Status
		t.ExitMessage = exit.Message
	}
	for _, s := range t.Outputs {
		if v, ok := values[s.Name]; ok {
			s.bind(v)
		}
	}
	t.State = types.TaskFinished
	log.Debugf("%s task %s finished", e.g.ID, t.Name)

	// outputs reach the successors before their readiness is evaluated
	e.propagateLocked(t)
}

func (e *Engine) failTaskLocked(t *Task, exit *types.ExitCode, err error) {
	if t.retries < t.RetryBudget {
		t.retries++
		t.State = types.TaskPlanned
		t.awaitableID = ""
		e.candidates[t.Name] = struct{}{}
		e.metrics.incRetry()
		log.Warnf("%s task %s failed, retry %d/%d: %v", e.g.ID, t.Name, t.retries, t.RetryBudget, err)
		return
	}

	t.State = types.TaskFailed
	switch {
	case exit != nil:
		t.ExitStatus = exit.Status
		t.ExitMessage = exit.Message
	case err != nil:
		t.ExitStatus = 1
		t.ExitMessage = err.Error()
	default:
		t.ExitStatus = 1
	}
	e.metrics.incFailure()
	log.Errorf("%s task %s failed: status=%d %s", e.g.ID, t.Name, t.ExitStatus, t.ExitMessage)

	if e.opts.PropagateTaskExit && e.g.exitStatus == 0 {
		e.g.exitStatus = t.ExitStatus
		e.g.exitMessage = t.ExitMessage
	}
	e.skipDependentsLocked(t.Name, fmt.Sprintf("upstream task %s failed: %s", t.Name, t.ExitMessage))
}

// skipDependentsLocked contains a failure: everything downstream of
// name is skipped, independent branches keep going.
func (e *Engine) skipDependentsLocked(name, cause string) {
	for _, succ := range e.g.successorsLocked(name) {
		t := e.g.tasks[succ]
		if t.State != types.TaskPlanned && t.State != types.TaskReady {
			continue
		}
		t.State = types.TaskSkipped
		t.SkipCause = cause
		delete(e.candidates, t.Name)
		log.Debugf("%s task %s skipped: %s", e.g.ID, t.Name, cause)
		e.skipDependentsLocked(t.Name, fmt.Sprintf("upstream task %s skipped: %s", t.Name, cause))
	}
}

/**
 * propagateLocked copies the finished task's outputs along its links.
 * Fan-out deep-copies so no target ever aliases the source value;
 * namespace sockets route per sub-key, and a key the producer never
 * emitted skips the consumer instead of stalling it forever.
 */
func (e *Engine) propagateLocked(t *Task) {
	for _, l := range e.g.outgoingLocked(t.Name) {
		srcName, srcKey := splitRef(l.SourceSocket)
		s := t.Output(srcName)
		if s == nil {
			e.faultLocked(types.NewFaultf(nil, "link %s names unknown output", l))
			return
		}

		var v any
		var bound bool
		if srcKey == "" {
			v, bound = s.Value()
		} else {
			v, bound = s.valueKey(srcKey)
		}

		target := e.g.tasks[l.TargetTask]
		if !bound {
			cause := fmt.Sprintf("upstream output %s.%s was never produced", t.Name, l.SourceSocket)
			if target.State == types.TaskPlanned || target.State == types.TaskReady {
				target.State = types.TaskSkipped
				target.SkipCause = cause
				delete(e.candidates, target.Name)
				e.skipDependentsLocked(target.Name, fmt.Sprintf("upstream task %s skipped: %s", target.Name, cause))
			}
			continue
		}

		dstName, dstKey := splitRef(l.TargetSocket)
		d := target.Input(dstName)
		if d == nil {
			e.faultLocked(types.NewFaultf(nil, "link %s names unknown input", l))
			return
		}
		cloned := utils.DeepClone(v)
		if dstKey == "" {
			d.bind(cloned)
		} else {
			d.bindKey(dstKey, cloned)
		}
		if !target.State.Terminal() {
			e.candidates[target.Name] = struct{}{}
		}
	}
}

/**
 * finalizeLocked runs once nothing is dispatchable and no awaitable is
 * outstanding. Tasks that never became ready are skipped — their
 * inputs can no longer arrive — and the graph settles on FINISHED or
 * FAILED.
 */
func (e *Engine) finalizeLocked(ctx context.Context) error {
	anyFailed := false
	starved := make([]string, 0)
	for _, t := range e.g.tasksInOrder() {
		switch t.State {
		case types.TaskFailed:
			anyFailed = true
		case types.TaskPlanned, types.TaskReady:
			starved = append(starved, t.Name)
		}
	}
	for _, name := range starved {
		t := e.g.tasks[name]
		t.State = types.TaskSkipped
		if t.SkipCause == "" {
			t.SkipCause = "inputs never satisfied"
		}
	}

	switch {
	case anyFailed:
		e.g.State = types.GraphFailed
		if e.g.exitStatus == 0 {
			e.g.exitStatus = 1
		}
	case len(starved) > 0:
		e.g.State = types.GraphFailed
		e.g.exitStatus = 1
		e.g.exitMessage = fmt.Sprintf("tasks never became ready: %v", starved)
	default:
		e.g.State = types.GraphFinished
	}
	log.Debugf("%s graph terminal: %v status=%d", e.g.ID, e.g.State, e.g.exitStatus)
	return e.commitLocked(ctx)
}

/**
 * Cancel marks every non-terminal task SKIPPED, best-effort cancels
 * outstanding awaitables and fails the graph. Values that already
 * propagated stay where they are.
 */
func (e *Engine) Cancel() {
	e.g.mu.Lock()
	defer e.g.mu.Unlock()
	e.cancelLocked("graph cancelled")
}

func (e *Engine) cancelLocked(cause string) {
	if e.g.State.Terminal() {
		return
	}
	for _, t := range e.g.tasksInOrder() {
		if !t.State.Terminal() {
			t.State = types.TaskSkipped
			t.SkipCause = cause
		}
	}
	e.g.State = types.GraphFailed
	if e.g.exitStatus == 0 {
		e.g.exitStatus = 1
		e.g.exitMessage = cause
	}
	e.candidates = map[string]struct{}{}

	handles := make([]types.DeferredHandle, 0, len(e.awaitables))
	for _, aw := range e.awaitables {
		handles = append(handles, aw.handle)
	}
	e.awaitables = map[string]*awaitable{}

	// unblock completion callbacks before poking the handles, late
	// completions fall through to the stop channel
	e.stop()
	for _, h := range handles {
		if c, ok := h.(types.Canceler); ok {
			c.Cancel()
		}
	}

	if err := e.checkpointLocked(context.Background()); err != nil {
		log.Errorf("%s checkpoint after cancel failed: %v", e.g.ID, err)
	}
}

// commitLocked checkpoints the current graph image; a store that can
// not take the write is an engine fault and ends the run.
func (e *Engine) commitLocked(ctx context.Context) error {
	if err := e.checkpointLocked(ctx); err != nil {
		e.faultLocked(types.NewFaultf(err, "checkpoint write failed"))
		return e.fault
	}
	return nil
}

func (e *Engine) checkpointLocked(ctx context.Context) error {
	snap := e.g.captureLocked()
	b, err := utils.Serialize(snap)
	if err != nil {
		return errors.Trace(err)
	}
	if err := e.st.Set(ctx, CheckpointPath, e.g.ID, b); err != nil {
		return errors.Trace(err)
	}
	e.metrics.incCheckpoint()
	return nil
}

func (e *Engine) faultLocked(err error) {
	if e.fault == nil {
		e.fault = err
	}
	e.g.State = types.GraphExcepted
	if e.g.exitStatus == 0 {
		e.g.exitStatus = 1
	}
	e.g.exitMessage = err.Error()
	e.stop()
	log.Errorf("%s engine fault: %v", e.g.ID, err)
}

// Fault reports the engine fault that put the graph into EXCEPTED,
// nil otherwise.
func (e *Engine) Fault() error {
	e.g.mu.Lock()
	defer e.g.mu.Unlock()
	return e.fault
}
