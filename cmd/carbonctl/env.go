package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/spec-kit/carbon-ledger/internal/config"
	"github.com/spec-kit/carbon-ledger/internal/observability"
	"github.com/spec-kit/carbon-ledger/internal/persistence"
)

type cliEnv struct {
	cfg    *config.Config
	logger *zap.Logger
}

func loadEnv() (*cliEnv, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return &cliEnv{cfg: cfg, logger: logger.Named("carbonctl")}, nil
}

// connect opens the postgres pool. Admin commands only make sense against
// durable storage.
func (e *cliEnv) connect(ctx context.Context) (*persistence.Postgres, error) {
	if e.cfg.Storage.Driver != config.StoragePostgres {
		return nil, fmt.Errorf("carbonctl needs STORAGE_DRIVER=%s, got %q", config.StoragePostgres, e.cfg.Storage.Driver)
	}
	return persistence.NewPostgres(ctx, e.cfg.Postgres, e.logger)
}
