package mem

import (
	"context"
	"testing"

	"github.com/juju/errors"
	"github.com/stretchr/testify/assert"
)

func TestMemStore(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()

	// a missing key is nil bytes, not an error
	b, err := s.Get(ctx, "/p/", "missing")
	assert.Nil(t, err)
	assert.Nil(t, b)

	assert.Nil(t, s.Set(ctx, "/p/", "k1", []byte("v1")))
	assert.Nil(t, s.Set(ctx, "/p/", "k2", []byte("v2")))
	assert.Nil(t, s.Set(ctx, "/q/", "k3", []byte("v3")))

	b, err = s.Get(ctx, "/p/", "k1")
	assert.Nil(t, err)
	assert.Equal(t, []byte("v1"), b)

	keys := make([]string, 0)
	assert.Nil(t, s.List(ctx, "/p/", func(key string) bool {
		keys = append(keys, key)
		return true
	}))
	assert.Equal(t, []string{"k1", "k2"}, keys)

	assert.Nil(t, s.Remove(ctx, "/p/", "k1"))
	b, err = s.Get(ctx, "/p/", "k1")
	assert.Nil(t, err)
	assert.Nil(t, b)
}

func TestMemStoreListStopsEarly(t *testing.T) {
	ctx := context.Background()
	s := NewMemStore()
	assert.Nil(t, s.Set(ctx, "/p/", "a", []byte("1")))
	assert.Nil(t, s.Set(ctx, "/p/", "b", []byte("2")))

	count := 0
	assert.Nil(t, s.List(ctx, "/p/", func(key string) bool {
		count++
		return false
	}))
	assert.Equal(t, 1, count)
}

func TestMemStoreFaultHandler(t *testing.T) {
	ctx := context.Background()
	s := NewMemStoreWithFaultHandler(func() error {
		return errors.New("injected")
	})
	assert.NotNil(t, s.Set(ctx, "/p/", "k", []byte("v")))
	_, err := s.Get(ctx, "/p/", "k")
	assert.NotNil(t, err)
}
