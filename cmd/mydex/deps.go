// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 mydex Contributors

package main

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mydex/mydex/internal/access"
	accesspg "github.com/mydex/mydex/internal/access/postgres"
	"github.com/mydex/mydex/internal/auth"
	authpg "github.com/mydex/mydex/internal/auth/postgres"
	"github.com/mydex/mydex/internal/config"
	"github.com/mydex/mydex/internal/store"
)

// CredentialStore is the database side of the CLI.
type CredentialStore interface {
	Accounts() auth.AccountRepository
	Permissions() access.PermissionRepository
	Ping(ctx context.Context) error
	Close()
}

// Migrator wraps the methods used by the migrate command from store.Migrator.
type Migrator interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	PendingMigrations() ([]uint, error)
	Close() error
}

// Deps contains injectable dependencies for the CLI.
// All fields with nil values will use their default implementations.
type Deps struct {
	// OpenStore connects to the credential store.
	// Default: store.Connect with the PostgreSQL repositories
	OpenStore func(ctx context.Context, cfg *config.Config, logger *slog.Logger) (CredentialStore, error)

	// MigratorFactory creates a schema migrator for a database URL.
	// Default: store.NewMigrator
	MigratorFactory func(databaseURL string) (Migrator, error)
}

func (d Deps) withDefaults() Deps {
	if d.OpenStore == nil {
		d.OpenStore = openPostgresStore
	}
	if d.MigratorFactory == nil {
		d.MigratorFactory = func(databaseURL string) (Migrator, error) {
			return store.NewMigrator(databaseURL)
		}
	}
	return d
}

type postgresStore struct {
	pool        *pgxpool.Pool
	accounts    *authpg.AccountRepository
	permissions *accesspg.PermissionRepository
}

func openPostgresStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (CredentialStore, error) {
	pool, err := store.Connect(ctx, cfg.Database.URL, store.PoolConfig{
		MaxConns:        cfg.Database.MaxConns,
		ConnectAttempts: cfg.Database.ConnectAttempts,
		RetryBase:       cfg.Database.RetryBase,
		Logger:          logger.With("component", "store"),
	})
	if err != nil {
		return nil, err //nolint:wrapcheck // store.Connect errors carry codes
	}
	return &postgresStore{
		pool:        pool,
		accounts:    authpg.NewAccountRepository(pool),
		permissions: accesspg.NewPermissionRepository(pool),
	}, nil
}

func (s *postgresStore) Accounts() auth.AccountRepository         { return s.accounts }
func (s *postgresStore) Permissions() access.PermissionRepository { return s.permissions }
func (s *postgresStore) Ping(ctx context.Context) error           { return s.pool.Ping(ctx) }
func (s *postgresStore) Close()                                   { s.pool.Close() }
