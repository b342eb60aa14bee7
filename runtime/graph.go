package runtime

import (
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/juju/errors"

	"github.com/superstar54/AEP/types"
)

/**
 * Link is a directed edge from an output socket to an input socket.
 * Socket refs on either side may carry a sub-key ("socket.key") when
 * the socket is a namespace socket; the key is resolved when the
 * producing task finishes, not at edit time.
 */
type Link struct {
	SourceTask   string `json:"source_task"`
	SourceSocket string `json:"source_socket"`
	TargetTask   string `json:"target_task"`
	TargetSocket string `json:"target_socket"`
}

func (l Link) String() string {
	return fmt.Sprintf("%s.%s -> %s.%s", l.SourceTask, l.SourceSocket, l.TargetTask, l.TargetSocket)
}

func splitRef(s string) (name, key string) {
	name, key, _ = strings.Cut(s, ".")
	return name, key
}

/**
 * Graph owns the task DAG, the links and the shared context store.
 * The engine serializes every state transition through mu; edit
 * methods take the same lock, so a live extension can never interleave
 * with a transition.
 */
type Graph struct {
	mu sync.Mutex

	ID    string
	State types.GraphState

	ctxMu   sync.Mutex
	context types.Data

	exitStatus  int
	exitMessage string

	tasks map[string]*Task
	order []string
	links []Link

	// tasks added while the graph runs, drained by the engine
	pendingNew []string
}

func NewGraph(id string) *Graph {
	if id == "" {
		id = uuid.NewString()
	}
	return &Graph{
		ID:      id,
		State:   types.GraphCreated,
		context: types.Data{},
		tasks:   map[string]*Task{},
	}
}

func (g *Graph) AddTask(t *Task) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if err := t.validate(); err != nil {
		return errors.Trace(err)
	}
	switch {
	case g.State == types.GraphCreated:
	case g.State == types.GraphRunning || g.State == types.GraphWaiting:
		// additive live extension
	default:
		return errors.Forbiddenf("graph %s is %v, no edits", g.ID, g.State)
	}
	if _, exists := g.tasks[t.Name]; exists {
		return errors.AlreadyExistsf("task %s", t.Name)
	}
	t.seq = len(g.order)
	g.tasks[t.Name] = t
	g.order = append(g.order, t.Name)
	if g.State == types.GraphRunning || g.State == types.GraphWaiting {
		g.pendingNew = append(g.pendingNew, t.Name)
	}
	return nil
}

func (g *Graph) RemoveTask(name string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.State != types.GraphCreated {
		return errors.Forbiddenf("graph %s is %v, tasks can only be removed before the run", g.ID, g.State)
	}
	if _, exists := g.tasks[name]; !exists {
		return errors.NotFoundf("task %s", name)
	}
	delete(g.tasks, name)
	for i, n := range g.order {
		if n == name {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	kept := g.links[:0]
	for _, l := range g.links {
		if l.SourceTask != name && l.TargetTask != name {
			kept = append(kept, l)
		}
	}
	g.links = kept
	return nil
}

// Connect is AddLink with the refs spelled out.
func (g *Graph) Connect(sourceTask, sourceSocket, targetTask, targetSocket string) error {
	return g.AddLink(Link{sourceTask, sourceSocket, targetTask, targetSocket})
}

func (g *Graph) AddLink(l Link) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return errors.Trace(g.addLinkLocked(l))
}

func (g *Graph) addLinkLocked(l Link) error {
	if g.State.Terminal() {
		return errors.Forbiddenf("graph %s is %v, no edits", g.ID, g.State)
	}

	src, exists := g.tasks[l.SourceTask]
	if !exists {
		return errors.NotFoundf("source task %s", l.SourceTask)
	}
	dst, exists := g.tasks[l.TargetTask]
	if !exists {
		return errors.NotFoundf("target task %s", l.TargetTask)
	}

	srcName, srcKey := splitRef(l.SourceSocket)
	ss := src.Output(srcName)
	if ss == nil {
		return errors.NotFoundf("output %s.%s", l.SourceTask, srcName)
	}
	if srcKey != "" && !ss.Namespace {
		return errors.BadRequestf("output %s.%s is not a namespace socket, sub-key %q invalid", l.SourceTask, srcName, srcKey)
	}
	dstName, dstKey := splitRef(l.TargetSocket)
	ds := dst.Input(dstName)
	if ds == nil {
		return errors.NotFoundf("input %s.%s", l.TargetTask, dstName)
	}
	if dstKey != "" && !ds.Namespace {
		return errors.BadRequestf("input %s.%s is not a namespace socket, sub-key %q invalid", l.TargetTask, dstName, dstKey)
	}

	if g.State == types.GraphRunning || g.State == types.GraphWaiting {
		// live extension must not touch tasks already picked up by the
		// engine nor rebind a socket that already carries a value
		if src.State != types.TaskPlanned {
			return errors.Forbiddenf("source task %s is %v", src.Name, src.State)
		}
		if dst.State != types.TaskPlanned {
			return errors.Forbiddenf("target task %s is %v", dst.Name, dst.State)
		}
		if ds.bound {
			return errors.Forbiddenf("input %s.%s already carries a value", dst.Name, dstName)
		}
	}

	// type tags are only enforced between plainly addressed sockets;
	// namespace sub-keys carry no declared type
	if srcKey == "" && dstKey == "" && ss.Type != "" && ds.Type != "" && ss.Type != ds.Type {
		return &types.TypeMismatchError{
			Link:       l.String(),
			SourceType: ss.Type,
			TargetType: ds.Type,
		}
	}

	for _, ex := range g.links {
		if ex.TargetTask != l.TargetTask {
			continue
		}
		exName, exKey := splitRef(ex.TargetSocket)
		if exName != dstName {
			continue
		}
		if exKey == dstKey || exKey == "" || dstKey == "" {
			return &types.MultipleIncomingLinksError{Target: l.TargetTask + "." + l.TargetSocket}
		}
	}

	if l.SourceTask == l.TargetTask || g.reachableLocked(l.TargetTask, l.SourceTask) {
		return &types.CycleError{
			From: l.SourceTask + "." + l.SourceSocket,
			To:   l.TargetTask + "." + l.TargetSocket,
		}
	}

	g.links = append(g.links, l)
	return nil
}

func (g *Graph) RemoveLink(l Link) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.State != types.GraphCreated {
		return errors.Forbiddenf("graph %s is %v, links can only be removed before the run", g.ID, g.State)
	}
	for i, ex := range g.links {
		if ex == l {
			g.links = append(g.links[:i], g.links[i+1:]...)
			return nil
		}
	}
	return errors.NotFoundf("link %s", l.String())
}

// reachableLocked reports whether to can be reached from from along
// existing links. Used for cycle detection before an edge goes in.
func (g *Graph) reachableLocked(from, to string) bool {
	visited := map[string]bool{}
	queue := []string{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if cur == to {
			return true
		}
		if visited[cur] {
			continue
		}
		visited[cur] = true
		for _, l := range g.links {
			if l.SourceTask == cur {
				queue = append(queue, l.TargetTask)
			}
		}
	}
	return false
}

func (g *Graph) Task(name string) (*Task, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	t, exists := g.tasks[name]
	return t, exists
}

func (g *Graph) Tasks() []*Task {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tasksInOrder()
}

func (g *Graph) Links() []Link {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]Link{}, g.links...)
}

func (g *Graph) tasksInOrder() []*Task {
	ts := make([]*Task, 0, len(g.order))
	for _, name := range g.order {
		ts = append(ts, g.tasks[name])
	}
	return ts
}

func (g *Graph) outgoingLocked(task string) []Link {
	out := make([]Link, 0)
	for _, l := range g.links {
		if l.SourceTask == task {
			out = append(out, l)
		}
	}
	return out
}

func (g *Graph) incomingLocked(task, socket string) []Link {
	in := make([]Link, 0)
	for _, l := range g.links {
		if l.TargetTask != task {
			continue
		}
		if name, _ := splitRef(l.TargetSocket); name == socket {
			in = append(in, l)
		}
	}
	return in
}

func (g *Graph) successorsLocked(task string) []string {
	seen := map[string]bool{}
	succ := make([]string, 0)
	for _, l := range g.links {
		if l.SourceTask == task && !seen[l.TargetTask] {
			seen[l.TargetTask] = true
			succ = append(succ, l.TargetTask)
		}
	}
	return succ
}

/**
 * The context store is the side channel for values not modeled as
 * links. It lives and dies with the graph and is guarded separately so
 * executors reaching it through types.Context never race a transition.
 */
func (g *Graph) SetContext(key string, v any) {
	g.ctxMu.Lock()
	defer g.ctxMu.Unlock()
	g.context.Set(key, v)
}

func (g *Graph) GetContext(key string) (any, bool) {
	g.ctxMu.Lock()
	defer g.ctxMu.Unlock()
	return g.context.Get(key)
}

func (g *Graph) contextSnapshot() types.Data {
	g.ctxMu.Lock()
	defer g.ctxMu.Unlock()
	return g.context.Clone()
}

func (g *Graph) ExitStatus() (int, string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.exitStatus, g.exitMessage
}
