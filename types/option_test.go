package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultEngineOptions(t *testing.T) {
	opts := NewEngineOptions()
	assert.NotNil(t, opts.Ctx)
	assert.Equal(t, 64, opts.MaxDispatchConcurrency)
	assert.False(t, opts.WaitForAll)
	assert.True(t, opts.PropagateTaskExit)
	assert.False(t, opts.MemStore)
	assert.Nil(t, opts.PostgresConfig)
}

func TestWithPostgresConfig(t *testing.T) {
	config := &PostgresConfig{
		Host:     "dbhost",
		Port:     5433,
		User:     "user",
		Password: "pass",
		Database: "db",
		SSLMode:  "require",
	}

	opts := NewEngineOptions()
	opt := WithPostgresConfig(config)
	opt(opts)

	assert.NotNil(t, opts.PostgresConfig)
	assert.Equal(t, "dbhost", opts.PostgresConfig.Host)
	assert.Equal(t, 5433, opts.PostgresConfig.Port)
	assert.Equal(t, "user", opts.PostgresConfig.User)
	assert.Equal(t, "pass", opts.PostgresConfig.Password)
	assert.Equal(t, "db", opts.PostgresConfig.Database)
	assert.Equal(t, "require", opts.PostgresConfig.SSLMode)
}

func TestEngineOptions_PostgresConfigPrecedence(t *testing.T) {
	// Test that PostgresConfig should take precedence over MemStore
	opts := NewEngineOptions()

	// Set both MemStore and PostgresConfig
	EnableMemStore()(opts)
	WithPostgresConfig(&PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "user",
		Password: "pass",
		Database: "db",
		SSLMode:  "disable",
	})(opts)

	assert.True(t, opts.MemStore)
	assert.NotNil(t, opts.PostgresConfig)

	// The actual precedence is handled in aep.NewEngine
	// Here we just verify both can be set
}

func TestMultipleOptions(t *testing.T) {
	opts := NewEngineOptions()

	// Apply multiple options
	WithPostgresConfig(&PostgresConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "user",
		Password: "pass",
		Database: "db",
		SSLMode:  "disable",
	})(opts)
	SetMaxDispatchConcurrency(50)(opts)
	EnableWaitForAll()(opts)
	DisableTaskExitPropagation()(opts)

	assert.NotNil(t, opts.PostgresConfig)
	assert.Equal(t, 50, opts.MaxDispatchConcurrency)
	assert.True(t, opts.WaitForAll)
	assert.False(t, opts.PropagateTaskExit)
}
