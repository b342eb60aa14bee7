package runtime

import (
	"github.com/superstar54/AEP/types"
	"github.com/superstar54/AEP/utils"
)

type TaskReport struct {
	State       types.TaskState
	ExitStatus  int
	ExitMessage string
	SkipCause   string
	Retries     int
}

/**
 * Report is the terminal view of a run: the graph state and exit, the
 * produced outputs keyed "task.socket", and every task's terminal
 * state including the failure that caused each skip.
 */
type Report struct {
	GraphID     string
	State       types.GraphState
	ExitStatus  int
	ExitMessage string

	Outputs types.Data
	Tasks   map[string]TaskReport
}

// Skipped lists the skipped tasks with the cause of each skip.
func (r *Report) Skipped() map[string]string {
	skipped := map[string]string{}
	for name, t := range r.Tasks {
		if t.State == types.TaskSkipped {
			skipped[name] = t.SkipCause
		}
	}
	return skipped
}

func (e *Engine) Report() *Report {
	e.g.mu.Lock()
	defer e.g.mu.Unlock()
	return e.reportLocked()
}

func (e *Engine) reportLocked() *Report {
	rep := &Report{
		GraphID:     e.g.ID,
		State:       e.g.State,
		ExitStatus:  e.g.exitStatus,
		ExitMessage: e.g.exitMessage,
		Outputs:     types.Data{},
		Tasks:       map[string]TaskReport{},
	}
	for _, t := range e.g.tasksInOrder() {
		rep.Tasks[t.Name] = TaskReport{
			State:       t.State,
			ExitStatus:  t.ExitStatus,
			ExitMessage: t.ExitMessage,
			SkipCause:   t.SkipCause,
			Retries:     t.retries,
		}
		if t.State != types.TaskFinished {
			continue
		}
		for _, s := range t.Outputs {
			if v, ok := s.Value(); ok {
				rep.Outputs[utils.NewPath(t.Name, s.Name).String()] = v
			}
		}
	}
	return rep
}
