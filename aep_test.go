package aep_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	aep "github.com/superstar54/AEP"
	"github.com/superstar54/AEP/runtime"
	"github.com/superstar54/AEP/types"
)

func buildArith(t *testing.T) *runtime.Graph {
	g := runtime.NewGraph("arith")

	add := runtime.NewTask("add",
		runtime.NewImmediateFunc(func(ctx types.Context, input types.Data) (types.Data, error) {
			x, _ := input.GetFloat64("x")
			y, _ := input.GetFloat64("y")
			return types.Data{"sum": x + y}, nil
		}),
		[]*runtime.Socket{runtime.Input("x", "number"), runtime.Input("y", "number")},
		[]*runtime.Socket{runtime.Output("sum", "number")})
	multiply := runtime.NewTask("multiply",
		runtime.NewImmediateFunc(func(ctx types.Context, input types.Data) (types.Data, error) {
			x, _ := input.GetFloat64("x")
			z, _ := input.GetFloat64("z")
			return types.Data{"product": x * z}, nil
		}),
		[]*runtime.Socket{runtime.Input("x", "number"), runtime.Input("z", "number")},
		[]*runtime.Socket{runtime.Output("product", "number")})

	assert.Nil(t, g.AddTask(add))
	assert.Nil(t, g.AddTask(multiply))
	assert.Nil(t, g.Connect("add", "sum", "multiply", "x"))
	assert.Nil(t, add.Supply("x", 1.0))
	assert.Nil(t, add.Supply("y", 2.0))
	assert.Nil(t, multiply.Supply("z", 3.0))
	return g
}

func TestNewEngineDefaults(t *testing.T) {
	e, err := aep.NewEngine(buildArith(t))
	assert.Nil(t, err)

	rep, err := e.Run(context.Background())
	assert.Nil(t, err)
	assert.Equal(t, types.GraphFinished, rep.State)
	product, _ := rep.Outputs.GetFloat64("multiply.product")
	assert.Equal(t, 9.0, product)
}

func TestNewEngineWithOptions(t *testing.T) {
	e, err := aep.NewEngine(buildArith(t),
		types.EnableMemStore(),
		types.SetMaxDispatchConcurrency(8),
		types.EnableWaitForAll())
	assert.Nil(t, err)

	rep, err := e.Run(context.Background())
	assert.Nil(t, err)
	assert.Equal(t, types.GraphFinished, rep.State)
}
