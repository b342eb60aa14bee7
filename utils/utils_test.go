package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPath(t *testing.T) {
	p := NewPath("graph", "task")
	assert.Equal(t, "graph.task", p.String())

	p = p.AddString("socket")
	assert.Equal(t, "graph.task.socket", p.String())

	first, ok := p.First()
	assert.True(t, ok)
	assert.Equal(t, "graph", first)

	_, ok = NewPath().First()
	assert.False(t, ok)
}

func TestSerializeRoundTrip(t *testing.T) {
	type payload struct {
		Name  string
		Count int
	}
	b, err := Serialize(&payload{Name: "x", Count: 3})
	assert.Nil(t, err)

	out := &payload{}
	assert.Nil(t, Unserialize(b, out))
	assert.Equal(t, "x", out.Name)
	assert.Equal(t, 3, out.Count)

	assert.NotNil(t, Unserialize([]byte("{oops"), out))
}

func TestDeepClone(t *testing.T) {
	src := map[string]any{"k": []any{1.0, 2.0}}
	dst := DeepClone(src).(map[string]any)
	dst["k"].([]any)[0] = 99.0
	assert.Equal(t, 1.0, src["k"].([]any)[0])

	// primitives come back as-is
	assert.Equal(t, 5.0, DeepClone(5.0))
	assert.Equal(t, "s", DeepClone("s"))
	assert.Nil(t, DeepClone(nil))
}

func TestCloneMap(t *testing.T) {
	src := map[string]int{"a": 1}
	dst := CloneMap(src)
	dst["a"] = 2
	assert.Equal(t, 1, src["a"])
}
