// Package store is the Persistence Gateway: typed reads/writes for jobs,
// tasks, images, variants, tags, descriptions, embeddings, and colors, plus
// the atomic counter updates the Progress Aggregator relies on. It is the
// sole shared mutable resource in the system (§5) — no component caches
// mutable job state in memory across calls.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool against databaseURL, the way the
// teacher's internal/db.Connect (and Leavend-umkm_saas's infra.NewDBPool)
// configure pool bounds explicitly rather than relying on driver defaults.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}

	cfg.MaxConns = 20
	cfg.MinConns = 2
	cfg.MaxConnLifetime = time.Hour
	cfg.MaxConnIdleTime = 30 * time.Minute

	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(connectCtx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(connectCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// Gateway wraps the connection pool with the typed query methods used by
// the Dispatcher, Task Pipeline, Progress Aggregator, and Status API.
type Gateway struct {
	Pool *pgxpool.Pool
}

// New wraps an already-connected pool.
func New(pool *pgxpool.Pool) *Gateway {
	return &Gateway{Pool: pool}
}
