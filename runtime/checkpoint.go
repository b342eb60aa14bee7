package runtime

import (
	"context"
	"time"

	"github.com/juju/errors"
	log "github.com/sirupsen/logrus"

	"github.com/superstar54/AEP/types"
	"github.com/superstar54/AEP/utils"
)

/**
 * Load restores the last checkpoint onto the engine's graph. The graph
 * must be structurally identical to the one that wrote the snapshot;
 * the caller rebuilds it with the same tasks, sockets and links before
 * calling Load, then calls Run to resume.
 *
 * Tasks recorded RUNNING or READY were lost mid-dispatch and are
 * re-planned. Tasks recorded WAITING are re-attached to their external
 * work when the executor supports it, otherwise re-dispatched from
 * scratch — surviving an interruption is the executor's policy, not
 * the engine's.
 */
func (e *Engine) Load(ctx context.Context) error {
	if ctx == nil {
		ctx = e.opts.Ctx
	}

	e.g.mu.Lock()
	defer e.g.mu.Unlock()

	b, err := e.st.Get(ctx, CheckpointPath, e.g.ID)
	if err != nil {
		return errors.Annotatef(err, "loading checkpoint for graph %s", e.g.ID)
	}
	if b == nil {
		return errors.NotFoundf("checkpoint for graph %s", e.g.ID)
	}

	snap := &Snapshot{}
	if err := utils.Unserialize(b, snap); err != nil {
		fault := types.NewFaultf(err, "corrupt snapshot for graph %s", e.g.ID)
		e.faultLocked(fault)
		return fault
	}
	if snap.State.Terminal() {
		return errors.Forbiddenf("graph %s checkpointed %v, terminal graphs are not resumed", e.g.ID, snap.State)
	}
	if err := e.g.applyLocked(snap); err != nil {
		e.faultLocked(err)
		return errors.Trace(err)
	}

	for _, t := range e.g.tasksInOrder() {
		switch t.State {
		case types.TaskReady, types.TaskRunning:
			// interrupted between dispatch and completion, run again
			t.State = types.TaskPlanned
		case types.TaskWaiting:
			e.reattachLocked(ctx, t)
		}
	}
	return nil
}

func (e *Engine) reattachLocked(ctx context.Context, t *Task) {
	id := t.awaitableID
	ra, ok := t.Executor.(types.Reattacher)
	if !ok || id == "" {
		log.Warnf("%s task %s cannot be re-attached, re-planning", e.g.ID, t.Name)
		t.State = types.TaskPlanned
		t.awaitableID = ""
		return
	}

	h, err := ra.Reattach(e.taskContext(ctx, t), id)
	if err != nil {
		log.Warnf("%s re-attach of task %s awaitable %s failed, re-planning: %v", e.g.ID, t.Name, id, err)
		t.State = types.TaskPlanned
		t.awaitableID = ""
		return
	}

	e.awaitables[id] = &awaitable{
		id:      id,
		task:    t,
		handle:  h,
		started: time.Now(),
		input:   e.boundInputsLocked(t),
	}
	if c, done := h.PollOrRegister(e.completionCallback(id)); done {
		// completed while we were away, queue it for the run loop
		e.completions <- completionMsg{awaitableID: id, c: c}
	}
	log.Debugf("%s task %s re-attached to awaitable %s", e.g.ID, t.Name, id)
}

// LoadTraceRecords reads back the per-task trace records the engine
// wrote while running.
func (e *Engine) LoadTraceRecords(ctx context.Context) (map[string]*types.TaskTraceRecord, error) {
	if ctx == nil {
		ctx = e.opts.Ctx
	}
	records := make(map[string]*types.TaskTraceRecord)
	prefix := RecordPath + e.g.ID
	err := e.st.List(ctx, prefix, func(task string) bool {
		b, err := e.st.Get(ctx, prefix, task)
		if err != nil {
			log.Errorf("load %s %s from store failed: %v", prefix, task, err)
			return true
		}
		record := &types.TaskTraceRecord{}
		if err := utils.Unserialize(b, record); err != nil {
			log.Errorf("unserialize %s %s from store failed: %v", prefix, task, err)
			return true
		}
		records[task] = record
		return true
	})
	return records, errors.Trace(err)
}
