package runtime

import (
	"github.com/superstar54/AEP/types"
)

/**
 * Snapshot is the durable image of a graph: structure, task states,
 * bound socket values, the context store and the IDs of outstanding
 * awaitables. It is written before the engine yields control after any
 * transition, and re-applied on recovery.
 */
type Snapshot struct {
	ID          string
	State       types.GraphState
	ExitStatus  int    `json:",omitempty"`
	ExitMessage string `json:",omitempty"`

	Tasks   []TaskSnapshot
	Links   []Link     `json:",omitempty"`
	Context types.Data `json:",omitempty"`
}

type TaskSnapshot struct {
	Name        string
	State       types.TaskState
	Retries     int    `json:",omitempty"`
	ExitStatus  int    `json:",omitempty"`
	ExitMessage string `json:",omitempty"`
	SkipCause   string `json:",omitempty"`
	AwaitableID string `json:",omitempty"`

	Inputs  []SocketSnapshot `json:",omitempty"`
	Outputs []SocketSnapshot `json:",omitempty"`
}

type SocketSnapshot struct {
	Name      string
	Type      string `json:",omitempty"`
	Namespace bool   `json:",omitempty"`
	Optional  bool   `json:",omitempty"`
	Bound     bool   `json:",omitempty"`
	Value     any    `json:",omitempty"`
}

func captureSocket(s *Socket) SocketSnapshot {
	return SocketSnapshot{
		Name:      s.Name,
		Type:      s.Type,
		Namespace: s.Namespace,
		Optional:  s.Optional,
		Bound:     s.bound,
		Value:     s.value,
	}
}

func (g *Graph) captureLocked() *Snapshot {
	snap := &Snapshot{
		ID:          g.ID,
		State:       g.State,
		ExitStatus:  g.exitStatus,
		ExitMessage: g.exitMessage,
		Links:       append([]Link{}, g.links...),
		Context:     g.contextSnapshot(),
	}
	for _, t := range g.tasksInOrder() {
		ts := TaskSnapshot{
			Name:        t.Name,
			State:       t.State,
			Retries:     t.retries,
			ExitStatus:  t.ExitStatus,
			ExitMessage: t.ExitMessage,
			SkipCause:   t.SkipCause,
			AwaitableID: t.awaitableID,
		}
		for _, s := range t.Inputs {
			ts.Inputs = append(ts.Inputs, captureSocket(s))
		}
		for _, s := range t.Outputs {
			ts.Outputs = append(ts.Outputs, captureSocket(s))
		}
		snap.Tasks = append(snap.Tasks, ts)
	}
	return snap
}

// Snapshot captures the current graph image, the same one the engine
// checkpoints.
func (g *Graph) Snapshot() *Snapshot {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.captureLocked()
}

/**
 * applyLocked restores a snapshot onto a structurally identical graph.
 * The structure check is strict: recovery onto a graph that drifted
 * from the checkpointed one is a corrupt-snapshot fault, not a best
 * effort merge.
 */
func (g *Graph) applyLocked(snap *Snapshot) error {
	if snap.ID != g.ID {
		return types.NewFaultf(nil, "snapshot is for graph %s, not %s", snap.ID, g.ID)
	}
	if len(snap.Tasks) != len(g.order) {
		return types.NewFaultf(nil, "snapshot has %d tasks, graph has %d", len(snap.Tasks), len(g.order))
	}
	if len(snap.Links) != len(g.links) {
		return types.NewFaultf(nil, "snapshot has %d links, graph has %d", len(snap.Links), len(g.links))
	}
	for i, l := range snap.Links {
		if g.links[i] != l {
			return types.NewFaultf(nil, "snapshot link %s does not match %s", l, g.links[i])
		}
	}
	for i, ts := range snap.Tasks {
		t := g.tasks[g.order[i]]
		if t == nil || t.Name != ts.Name {
			return types.NewFaultf(nil, "snapshot task %q does not match graph order", ts.Name)
		}
		if len(ts.Inputs) != len(t.Inputs) || len(ts.Outputs) != len(t.Outputs) {
			return types.NewFaultf(nil, "snapshot task %s socket layout drifted", ts.Name)
		}
		for j, ss := range ts.Inputs {
			if ss.Name != t.Inputs[j].Name {
				return types.NewFaultf(nil, "snapshot task %s input %q does not match %q", ts.Name, ss.Name, t.Inputs[j].Name)
			}
		}
		for j, ss := range ts.Outputs {
			if ss.Name != t.Outputs[j].Name {
				return types.NewFaultf(nil, "snapshot task %s output %q does not match %q", ts.Name, ss.Name, t.Outputs[j].Name)
			}
		}
	}

	for i, ts := range snap.Tasks {
		t := g.tasks[g.order[i]]
		t.State = ts.State
		t.retries = ts.Retries
		t.ExitStatus = ts.ExitStatus
		t.ExitMessage = ts.ExitMessage
		t.SkipCause = ts.SkipCause
		t.awaitableID = ts.AwaitableID
		for j, ss := range ts.Inputs {
			applySocket(t.Inputs[j], ss)
		}
		for j, ss := range ts.Outputs {
			applySocket(t.Outputs[j], ss)
		}
	}

	g.State = snap.State
	g.exitStatus = snap.ExitStatus
	g.exitMessage = snap.ExitMessage

	g.ctxMu.Lock()
	g.context = snap.Context.Clone()
	if g.context == nil {
		g.context = types.Data{}
	}
	g.ctxMu.Unlock()
	return nil
}

func applySocket(s *Socket, ss SocketSnapshot) {
	s.bound = ss.Bound
	s.value = ss.Value
	if m, ok := ss.Value.(map[string]any); ok {
		// namespace values come back from JSON as plain maps
		s.value = types.Data(m)
	}
}
