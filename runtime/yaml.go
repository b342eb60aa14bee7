package runtime

import (
	"strings"
	"sync"

	"github.com/juju/errors"
	"gopkg.in/yaml.v3"

	"github.com/superstar54/AEP/types"
)

// Registry maps executor names to executors for declaratively defined
// graphs.
type Registry struct {
	mu sync.Mutex

	executors map[string]types.Executor
}

func NewRegistry() *Registry {
	return &Registry{executors: map[string]types.Executor{}}
}

func (r *Registry) Register(name string, ex types.Executor) error {
	if ex == nil {
		return errors.BadRequestf("executor %s is nil", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.executors[name]; exists {
		return errors.AlreadyExistsf("executor %s", name)
	}
	r.executors[name] = ex
	return nil
}

func (r *Registry) Get(name string) (types.Executor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ex, exists := r.executors[name]
	return ex, exists
}

/**
 * Definition is the YAML form of a graph. Links are spelled
 * "task.socket -> task.socket"; socket refs may carry namespace
 * sub-keys. Building a definition runs through the same edit-time
 * validation as programmatic construction.
 */
type Definition struct {
	Name  string    `yaml:"name"`
	Tasks []TaskDef `yaml:"tasks"`
	Links []string  `yaml:"links"`
}

type TaskDef struct {
	Name     string      `yaml:"name"`
	Executor string      `yaml:"executor"`
	Retry    int         `yaml:"retry,omitempty"`
	Inputs   []SocketDef `yaml:"inputs,omitempty"`
	Outputs  []SocketDef `yaml:"outputs,omitempty"`
}

type SocketDef struct {
	Name      string `yaml:"name"`
	Type      string `yaml:"type,omitempty"`
	Optional  bool   `yaml:"optional,omitempty"`
	Namespace bool   `yaml:"namespace,omitempty"`
	Default   any    `yaml:"default,omitempty"`
}

func ParseDefinition(b []byte) (*Definition, error) {
	d := &Definition{}
	if err := yaml.Unmarshal(b, d); err != nil {
		return nil, errors.Annotatef(err, "parsing graph definition")
	}
	return d, nil
}

func buildSocket(def SocketDef, dir Direction) *Socket {
	s := &Socket{Name: def.Name, Direction: dir, Type: def.Type}
	if def.Optional {
		s.AsOptional()
	}
	if def.Namespace {
		s.AsNamespace()
	}
	if def.Default != nil {
		s.WithDefault(def.Default)
	}
	return s
}

func (d *Definition) Build(reg *Registry) (*Graph, error) {
	g := NewGraph(d.Name)

	for _, td := range d.Tasks {
		ex, exists := reg.Get(td.Executor)
		if !exists {
			return nil, errors.NotFoundf("executor %s for task %s", td.Executor, td.Name)
		}
		inputs := make([]*Socket, 0, len(td.Inputs))
		for _, sd := range td.Inputs {
			inputs = append(inputs, buildSocket(sd, In))
		}
		outputs := make([]*Socket, 0, len(td.Outputs))
		for _, sd := range td.Outputs {
			outputs = append(outputs, buildSocket(sd, Out))
		}
		t := NewTask(td.Name, ex, inputs, outputs).WithRetryBudget(td.Retry)
		if err := g.AddTask(t); err != nil {
			return nil, errors.Trace(err)
		}
	}

	for _, raw := range d.Links {
		l, err := parseLink(raw)
		if err != nil {
			return nil, errors.Trace(err)
		}
		if err := g.AddLink(l); err != nil {
			return nil, errors.Trace(err)
		}
	}
	return g, nil
}

func parseLink(raw string) (Link, error) {
	from, to, found := strings.Cut(raw, "->")
	if !found {
		return Link{}, errors.BadRequestf("link %q: expected \"task.socket -> task.socket\"", raw)
	}
	srcTask, srcSocket, err := parseRef(strings.TrimSpace(from))
	if err != nil {
		return Link{}, errors.Annotatef(err, "link %q", raw)
	}
	dstTask, dstSocket, err := parseRef(strings.TrimSpace(to))
	if err != nil {
		return Link{}, errors.Annotatef(err, "link %q", raw)
	}
	return Link{srcTask, srcSocket, dstTask, dstSocket}, nil
}

func parseRef(ref string) (task, socket string, err error) {
	task, socket, found := strings.Cut(ref, ".")
	if !found || task == "" || socket == "" {
		return "", "", errors.BadRequestf("socket ref %q: expected \"task.socket\"", ref)
	}
	return task, socket, nil
}
