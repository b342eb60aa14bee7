package runtime

import (
	"context"

	"github.com/superstar54/AEP/types"
)

var (
	_ types.Context = &engineContext{}
)

// engineContext is the types.Context handed to executors. Reads and
// writes of the shared store go through the graph's serialized
// accessors, never through the raw map.
type engineContext struct {
	context.Context

	e    *Engine
	task string
}

func (e *Engine) taskContext(ctx context.Context, t *Task) types.Context {
	return &engineContext{Context: ctx, e: e, task: t.Name}
}

func (c *engineContext) GraphID() string {
	return c.e.g.ID
}

func (c *engineContext) TaskName() string {
	return c.task
}

func (c *engineContext) GetValue(key string) (any, bool) {
	return c.e.g.GetContext(key)
}

func (c *engineContext) SetValue(key string, value any) {
	c.e.g.SetContext(key, value)
}
