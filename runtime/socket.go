package runtime

import (
	"github.com/juju/errors"
	"github.com/spf13/cast"

	"github.com/superstar54/AEP/types"
)

type Direction int32

const (
	In  Direction = 1
	Out Direction = 2
)

/**
 * Socket is a named, typed port data flows through. An input socket
 * takes at most one incoming link; an output socket may fan out to any
 * number of links. A namespace socket holds a mapping whose keys are
 * only known once the owning task produced them; links address its
 * sub-keys as "socket.key".
 */
type Socket struct {
	Name      string
	Direction Direction
	Type      string
	Namespace bool
	Optional  bool
	Default   any

	value any
	bound bool
}

func Input(name, typ string) *Socket {
	return &Socket{Name: name, Direction: In, Type: typ}
}

func Output(name, typ string) *Socket {
	return &Socket{Name: name, Direction: Out, Type: typ}
}

func (s *Socket) WithDefault(v any) *Socket {
	s.Default = v
	return s
}

func (s *Socket) AsOptional() *Socket {
	s.Optional = true
	return s
}

func (s *Socket) AsNamespace() *Socket {
	s.Namespace = true
	return s
}

func (s *Socket) Value() (any, bool) {
	return s.value, s.bound
}

func (s *Socket) bind(v any) {
	s.value = v
	s.bound = true
}

func (s *Socket) bindKey(key string, v any) {
	m, ok := s.value.(types.Data)
	if !ok {
		m = types.Data{}
	}
	m[key] = v
	s.value = m
	s.bound = true
}

func (s *Socket) valueKey(key string) (any, bool) {
	if !s.bound {
		return nil, false
	}
	var m map[string]any
	switch vv := s.value.(type) {
	case types.Data:
		m = vv
	case map[string]any:
		m = vv
	default:
		mm, err := cast.ToStringMapE(s.value)
		if err != nil {
			return nil, false
		}
		m = mm
	}
	v, ok := m[key]
	return v, ok
}

/**
 * Task wraps an executor with its input and output sockets. A task is
 * created when added to a graph and mutated only by the engine while
 * the graph runs.
 */
type Task struct {
	Name        string
	Executor    types.Executor
	Inputs      []*Socket
	Outputs     []*Socket
	RetryBudget int

	State       types.TaskState
	ExitStatus  int
	ExitMessage string
	SkipCause   string

	seq         int
	retries     int
	awaitableID string
}

func NewTask(name string, executor types.Executor, inputs, outputs []*Socket) *Task {
	t := &Task{Name: name, Executor: executor}
	for _, s := range inputs {
		s.Direction = In
		t.Inputs = append(t.Inputs, s)
	}
	for _, s := range outputs {
		s.Direction = Out
		t.Outputs = append(t.Outputs, s)
	}
	return t
}

// WithRetryBudget allows n re-dispatches after a failure before the
// failure becomes permanent. Retries never happen without a budget.
func (t *Task) WithRetryBudget(n int) *Task {
	t.RetryBudget = n
	return t
}

func (t *Task) Input(name string) *Socket {
	for _, s := range t.Inputs {
		if s.Name == name {
			return s
		}
	}
	return nil
}

func (t *Task) Output(name string) *Socket {
	for _, s := range t.Outputs {
		if s.Name == name {
			return s
		}
	}
	return nil
}

// Supply binds a value onto an input socket before the run, the way
// top-level graph parameters come in.
func (t *Task) Supply(name string, v any) error {
	s := t.Input(name)
	if s == nil {
		return errors.NotFoundf("input %s.%s", t.Name, name)
	}
	s.bind(v)
	return nil
}

func (t *Task) Retries() int {
	return t.retries
}

func (t *Task) validate() error {
	if t.Name == "" {
		return errors.BadRequestf("task name is empty")
	}
	if t.Executor == nil {
		return errors.BadRequestf("task %s executor is nil", t.Name)
	}
	seen := map[string]bool{}
	for _, s := range append(append([]*Socket{}, t.Inputs...), t.Outputs...) {
		if s.Name == "" {
			return errors.BadRequestf("task %s has an unnamed socket", t.Name)
		}
		if name, key := splitRef(s.Name); key != "" || name == "" {
			return errors.BadRequestf("socket %s.%s: name must not contain '.'", t.Name, s.Name)
		}
		id := map[Direction]string{In: "in", Out: "out"}[s.Direction] + ":" + s.Name
		if seen[id] {
			return errors.AlreadyExistsf("socket %s.%s", t.Name, s.Name)
		}
		seen[id] = true
	}
	return nil
}
