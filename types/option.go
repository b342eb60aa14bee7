package types

import (
	"context"

	"github.com/mcuadros/go-defaults"
	"github.com/prometheus/client_golang/prometheus"
)

func NewEngineOptions() *EngineOptions {
	opts := &EngineOptions{Ctx: context.Background()}
	defaults.SetDefaults(opts)
	return opts
}

type EngineOptions struct {
	Ctx context.Context
	/**
	 * default: 64
	 * size of the worker pool the engine hands to pool-backed
	 * executors; independent ready tasks are dispatched back-to-back
	 * regardless of this value.
	 */
	MaxDispatchConcurrency int `default:"64"`
	/**
	 * default: false, the engine resumes on the first completed
	 * awaitable. Set to true to collect every outstanding awaitable
	 * before dispatching again (the sequential-step model).
	 */
	WaitForAll bool
	/**
	 * default: true, a failing task's exit status/message becomes the
	 * graph's own terminal exit.
	 */
	PropagateTaskExit bool `default:"true"`
	/**
	 * default: false, only set it to true when doing testing or
	 * developing.
	 */
	MemStore bool

	// PostgreSQL store configuration.
	// If both MemStore and PostgresConfig are set, PostgresConfig takes precedence.
	PostgresConfig *PostgresConfig

	// Registerer receives the engine counters when set; nil disables
	// metrics entirely.
	Registerer prometheus.Registerer
}

// PostgresConfig holds PostgreSQL connection configuration
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string // disable, require, verify-ca, verify-full
}

type EngineOption func(*EngineOptions)

func WithContext(ctx context.Context) EngineOption {
	return func(opts *EngineOptions) {
		opts.Ctx = ctx
	}
}

func SetMaxDispatchConcurrency(concurrency int) EngineOption {
	return func(opts *EngineOptions) {
		opts.MaxDispatchConcurrency = concurrency
	}
}

func EnableWaitForAll() EngineOption {
	return func(opts *EngineOptions) {
		opts.WaitForAll = true
	}
}

func DisableTaskExitPropagation() EngineOption {
	return func(opts *EngineOptions) {
		opts.PropagateTaskExit = false
	}
}

func EnableMemStore() EngineOption {
	return func(opts *EngineOptions) {
		opts.MemStore = true
	}
}

// WithPostgresConfig configures the engine to use the PostgreSQL store
func WithPostgresConfig(config *PostgresConfig) EngineOption {
	return func(opts *EngineOptions) {
		opts.PostgresConfig = config
	}
}

func WithRegisterer(reg prometheus.Registerer) EngineOption {
	return func(opts *EngineOptions) {
		opts.Registerer = reg
	}
}
