package store

import (
	"context"

	"github.com/rotisserie/eris"
)

// Options selects and tunes the backend.
type Options struct {
	Driver      string
	DatabaseURL string
	MaxConns    int32
	MinConns    int32
}

// Open creates a Store for the configured driver.
func Open(ctx context.Context, opts Options) (Store, error) {
	switch opts.Driver {
	case "", "sqlite":
		return NewSQLite(opts.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, opts.DatabaseURL, &PoolConfig{
			MaxConns: opts.MaxConns,
			MinConns: opts.MinConns,
		})
	default:
		return nil, eris.Errorf("store: unknown driver %q", opts.Driver)
	}
}
