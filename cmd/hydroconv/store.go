package main

import (
	"context"
	"fmt"

	"github.com/waterschap/hydroconv/pkg/config"
	"github.com/waterschap/hydroconv/pkg/store"
)

func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	switch cfg.Target.Backend {
	case config.BackendGeoPackage:
		return store.OpenGeoPackage(cfg.Target.Path, int32(cfg.Target.EPSG))
	case config.BackendPostgres:
		return store.OpenPostgres(ctx, cfg.Target.DSN)
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.Target.Backend)
}
