package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/mega-minerals/oreflow/internal/store"
)

// initStore opens the configured database backend.
func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, store.Options{
		Driver:      cfg.Store.Driver,
		DatabaseURL: cfg.Store.DatabaseURL,
		MaxConns:    cfg.Store.MaxConns,
		MinConns:    cfg.Store.MinConns,
	})
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return st, nil
}
