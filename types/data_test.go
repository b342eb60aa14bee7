package types_test

import (
	"math"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/superstar54/AEP/types"
)

type testStruct struct {
	Name   string
	Age    int
	IsMale bool
}

func TestData(t *testing.T) {
	data := &types.Data{}

	data.Set("teststruct1", testStruct{"hello", 4, false})
	data.Set("teststruct2", testStruct{"kitty", 5, true})

	hello := &testStruct{}
	kitty := &testStruct{}
	assert.Nil(t, data.GetStruct("teststruct1", hello))
	assert.Nil(t, data.GetStruct("teststruct2", kitty))

	assert.Equal(t, "hello", hello.Name)
	assert.Equal(t, 4, hello.Age)
	assert.Equal(t, false, hello.IsMale)

	assert.Equal(t, "kitty", kitty.Name)
	assert.Equal(t, 5, kitty.Age)
	assert.Equal(t, true, kitty.IsMale)

	data.Set("s1", 1)
	data.Set("s2", "2")
	data.Set("s3", math.Pi)
	data.Set("s4", true)

	_, exists := data.Get("s0")
	assert.False(t, exists)

	s, exists := data.GetString("s1")
	assert.True(t, exists)
	assert.Equal(t, "1", s)
	s, exists = data.GetString("s2")
	assert.True(t, exists)
	assert.Equal(t, "2", s)
	s, exists = data.GetString("s3")
	assert.True(t, exists)
	assert.Equal(t, strconv.FormatFloat(math.Pi, 'f', -1, 64), s)
	s, exists = data.GetString("s4")
	assert.True(t, exists)
	assert.Equal(t, "true", s)
}

func TestDataGetData(t *testing.T) {
	data := &types.Data{}
	data.Set("nested", types.Data{"a": 1.0})
	data.Set("plainmap", map[string]any{"b": 2.0})
	data.Set("scalar", 3.0)

	nested, ok := data.GetData("nested")
	assert.True(t, ok)
	a, _ := nested.GetFloat64("a")
	assert.Equal(t, 1.0, a)

	nested, ok = data.GetData("plainmap")
	assert.True(t, ok)
	b, _ := nested.GetFloat64("b")
	assert.Equal(t, 2.0, b)

	_, ok = data.GetData("scalar")
	assert.False(t, ok)
	_, ok = data.GetData("missing")
	assert.False(t, ok)
}

func TestDataClone(t *testing.T) {
	src := types.Data{"m": map[string]any{"k": "v"}, "n": 1.0}
	dst := src.Clone()

	dst["m"].(map[string]any)["k"] = "changed"
	assert.Equal(t, "v", src["m"].(map[string]any)["k"])

	var empty types.Data
	assert.Nil(t, empty.Clone())
}

func TestDataSetOnNilMap(t *testing.T) {
	var data types.Data
	data.Set("k", "v")
	v, exists := data.Get("k")
	assert.True(t, exists)
	assert.Equal(t, "v", v)
}

func TestDataMerge(t *testing.T) {
	data := types.Data{"a": 1}
	data.Merge(types.Data{"a": 2, "b": 3})
	a, _ := data.GetInt("a")
	assert.Equal(t, 2, a)
	b, _ := data.GetInt("b")
	assert.Equal(t, 3, b)
}
