// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 mydex Contributors

// Package postgres implements auth repositories on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/mydex/mydex/internal/auth"
)

// querier is the subset of *pgxpool.Pool used by the repositories, so
// pgxmock can stand in for the pool in tests.
type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// AccountRepository implements auth.AccountRepository using PostgreSQL.
type AccountRepository struct {
	pool querier
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository(pool querier) *AccountRepository {
	return &AccountRepository{pool: pool}
}

const selectAccount = `
		SELECT id, name, created_at, password_hash
		FROM accounts
	`

// FindByName retrieves an account by exact name.
func (r *AccountRepository) FindByName(ctx context.Context, name string) (*auth.PrivilegedAccount, error) {
	row := r.pool.QueryRow(ctx, selectAccount+`WHERE name = $1`, name)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("name", name).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_FIND_BY_NAME_FAILED").
			With("operation", "find account by name").
			Wrap(err)
	}
	return account, nil
}

// FindByID retrieves an account by id.
func (r *AccountRepository) FindByID(ctx context.Context, id int64) (*auth.PrivilegedAccount, error) {
	row := r.pool.QueryRow(ctx, selectAccount+`WHERE id = $1`, id)

	account, err := scanAccount(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, oops.Code("ACCOUNT_NOT_FOUND").
			With("account_id", id).
			Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("ACCOUNT_FIND_BY_ID_FAILED").
			With("operation", "find account by id").
			With("account_id", id).
			Wrap(err)
	}
	return account, nil
}

func scanAccount(row pgx.Row) (*auth.PrivilegedAccount, error) {
	var (
		id           int64
		name         string
		createdAt    time.Time
		passwordHash string
	)
	if err := row.Scan(&id, &name, &createdAt, &passwordHash); err != nil {
		return nil, err //nolint:wrapcheck // callers wrap with operation context
	}
	return auth.NewPrivilegedAccount(id, name, createdAt, passwordHash), nil
}
