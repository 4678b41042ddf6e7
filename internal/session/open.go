package session

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/transportco2/transportco2/internal/config"
	"github.com/transportco2/transportco2/internal/database"
)

// Backend is an opened Store with the hooks a process needs to monitor and
// release it.
type Backend struct {
	Driver Driver
	Store  Store

	// Pool is the database pool of the postgres driver, nil otherwise.
	Pool *pgxpool.Pool

	// Ping checks the store's connectivity. Nil for the memory driver.
	Ping func(ctx context.Context) error

	// Close releases connections. Never nil.
	Close func()
}

// Open connects the store selected by cfg.Session.Driver. The postgres
// driver creates its table when missing.
func Open(ctx context.Context, cfg *config.Config) (*Backend, error) {
	driver, err := ParseDriver(cfg.Session.Driver)
	if err != nil {
		return nil, err
	}

	switch driver {
	case DriverValkey:
		store, closeFn, err := NewValkeyStore(cfg.Valkey.Addr)
		if err != nil {
			return nil, err
		}
		return &Backend{Driver: driver, Store: store, Ping: store.Ping, Close: closeFn}, nil

	case DriverPostgres:
		pool, err := database.Connect(ctx, database.FromConfig(cfg.Database))
		if err != nil {
			return nil, fmt.Errorf("connecting session database: %w", err)
		}
		store := NewPostgresStore(pool)
		if err := store.EnsureSchema(ctx); err != nil {
			pool.Close()
			return nil, err
		}
		return &Backend{Driver: driver, Store: store, Pool: pool, Ping: store.Ping, Close: pool.Close}, nil

	default:
		return &Backend{Driver: driver, Store: NewMemoryStore(), Close: func() {}}, nil
	}
}
