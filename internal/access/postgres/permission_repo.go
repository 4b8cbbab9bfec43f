// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 mydex Contributors

// Package postgres implements access repositories on PostgreSQL.
package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/mydex/mydex/internal/access"
)

// querier is the subset of *pgxpool.Pool used by the repository.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PermissionRepository implements access.PermissionRepository using PostgreSQL.
type PermissionRepository struct {
	pool querier
}

// NewPermissionRepository creates a new PermissionRepository.
func NewPermissionRepository(pool querier) *PermissionRepository {
	return &PermissionRepository{pool: pool}
}

// PermissionsFor returns the distinct permissions granted to an account
// through its groups.
func (r *PermissionRepository) PermissionsFor(ctx context.Context, accountID int64) ([]access.Permission, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT gp.permission
		FROM group_permissions gp
		JOIN account_groups ag ON ag.group_id = gp.group_id
		WHERE ag.account_id = $1
	`, accountID)
	if err != nil {
		return nil, oops.Code("PERMISSIONS_QUERY_FAILED").
			With("operation", "query group permissions").
			With("account_id", accountID).
			Wrap(err)
	}
	defer rows.Close()

	var perms []access.Permission
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, oops.Code("PERMISSIONS_QUERY_FAILED").
				With("operation", "scan permission row").
				Wrap(err)
		}
		p, err := access.ParsePermission(name)
		if err != nil {
			return nil, oops.With("account_id", accountID).Wrap(err)
		}
		perms = append(perms, p)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("PERMISSIONS_QUERY_FAILED").
			With("operation", "iterate permission rows").
			Wrap(err)
	}
	return perms, nil
}

// HasPermission reports whether any group of the account grants p.
func (r *PermissionRepository) HasPermission(ctx context.Context, accountID int64, p access.Permission) (bool, error) {
	var ok bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM group_permissions gp
			JOIN account_groups ag ON ag.group_id = gp.group_id
			WHERE ag.account_id = $1 AND gp.permission = $2
		)
	`, accountID, p.String()).Scan(&ok)
	if err != nil {
		return false, oops.Code("PERMISSIONS_QUERY_FAILED").
			With("operation", "check group permission").
			With("account_id", accountID).
			With("permission", p.String()).
			Wrap(err)
	}
	return ok, nil
}
