// Package postgres is the Postgres backend of the cache record store.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"gitlab.com/timkado/api/account-cache-service/internal/adapters/postgres/migrations"
	"gitlab.com/timkado/api/account-cache-service/internal/domain"
)

// NewPool connects to dsn and verifies the connection. When migrate is set the embedded schema
// migrations are applied before the pool is returned.
func NewPool(ctx context.Context, dsn string, migrate bool, logger domain.Logger) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse postgres dsn: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create postgres pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	if migrate {
		if err := migrations.RunMigrationsUp(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info(ctx, "Postgres migrations applied")
	}

	logger.Info(ctx, "Successfully connected to Postgres", "host", cfg.ConnConfig.Host, "database", cfg.ConnConfig.Database)
	return pool, nil
}
