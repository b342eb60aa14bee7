package aep

import (
	"github.com/juju/errors"

	"github.com/superstar54/AEP/runtime"
	"github.com/superstar54/AEP/store"
	"github.com/superstar54/AEP/store/mem"
	"github.com/superstar54/AEP/store/postgres"
	"github.com/superstar54/AEP/types"
)

// NewEngine wires an engine for the graph with a checkpoint store
// picked from the options.
func NewEngine(g *runtime.Graph, opts ...types.EngineOption) (*runtime.Engine, error) {
	options := types.NewEngineOptions()
	for _, opt := range opts {
		opt(options)
	}

	var s store.Store
	var err error

	// PostgresConfig takes precedence over MemStore
	if options.PostgresConfig != nil {
		pgConfig := &postgres.Config{
			Host:     options.PostgresConfig.Host,
			Port:     options.PostgresConfig.Port,
			User:     options.PostgresConfig.User,
			Password: options.PostgresConfig.Password,
			Database: options.PostgresConfig.Database,
			SSLMode:  options.PostgresConfig.SSLMode,
		}

		s, err = postgres.NewPostgresStore(pgConfig)
		if err != nil {
			return nil, errors.Annotatef(err, "failed to create PostgreSQL store")
		}
	} else {
		// default to the in-memory store
		s = mem.NewMemStore()
	}

	return runtime.NewEngine(g, s, options), nil
}
