// Package storage opens the configured record store.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/importcheck/internal/config"
	"github.com/JonMunkholm/importcheck/internal/core"
	"github.com/JonMunkholm/importcheck/internal/database"
)

// Open connects the backend named by cfg.Storage.Driver. For postgres the
// pool is pinged and, when enabled, the schema is applied.
func Open(ctx context.Context, cfg *config.Config) (core.Store, error) {
	if strings.EqualFold(cfg.Storage.Driver, config.DriverMemory) {
		slog.Warn("using in-memory storage; data is lost on restart")
		return core.NewMemStore(), nil
	}

	pool, err := connect(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}

	if cfg.Database.Migrate {
		if err := database.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, err
		}
		slog.Info("database schema applied")
	}

	return core.NewPostgresStore(pool), nil
}

func connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	}
	return pool, nil
}
