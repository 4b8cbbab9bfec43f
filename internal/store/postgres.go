// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 mydex Contributors

// Package store owns the PostgreSQL connection pool and schema of the
// credential store.
package store

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// PoolConfig tunes the shared connection pool.
type PoolConfig struct {
	// MaxConns caps concurrent connections; 0 keeps the pgx default.
	MaxConns int32
	// ConnectAttempts is how many times the initial ping is retried.
	ConnectAttempts uint64
	// RetryBase is the first back-off interval; it doubles per attempt.
	RetryBase time.Duration
	// Logger receives retry warnings; nil uses slog.Default().
	Logger *slog.Logger
}

// DefaultPoolConfig returns the pool settings used by the CLI.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		ConnectAttempts: 5,
		RetryBase:       250 * time.Millisecond,
	}
}

// Connect opens a pgx pool for databaseURL and waits until the database
// answers a ping, retrying with exponential back-off.
func Connect(ctx context.Context, databaseURL string, cfg PoolConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, oops.Code("STORE_INVALID_URL").With("operation", "parse database url").Wrap(err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, oops.Code("STORE_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	base := cfg.RetryBase
	if base <= 0 {
		base = DefaultPoolConfig().RetryBase
	}
	backoff := retry.WithMaxRetries(cfg.ConnectAttempts, retry.NewExponential(base))

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attempt := 0
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if pingErr := pool.Ping(ctx); pingErr != nil {
			if !retryable(pingErr) {
				return pingErr
			}
			logger.WarnContext(ctx, "database not reachable yet", "attempt", attempt, "error", pingErr)
			return retry.RetryableError(pingErr)
		}
		return nil
	})
	if err != nil {
		pool.Close()
		return nil, oops.Code("STORE_CONNECT_FAILED").
			With("operation", "ping database").
			With("attempts", attempt).
			Wrap(err)
	}

	return pool, nil
}

// retryable reports whether a ping failure may clear up on its own. Server
// errors about credentials or a missing database will not.
func retryable(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return true
	}
	switch pgErr.Code {
	case pgerrcode.InvalidPassword,
		pgerrcode.InvalidAuthorizationSpecification,
		pgerrcode.InvalidCatalogName:
		return false
	}
	return true
}
