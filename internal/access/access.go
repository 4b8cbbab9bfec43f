// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 mydex Contributors

// Package access resolves what an authenticated identity may do.
//
// Permissions are granted to groups and accounts belong to groups, both
// many-to-many. An identity's permissions are the union over its groups;
// authorization is plain set membership.
package access

import (
	"context"
	"log/slog"

	"github.com/samber/oops"

	"github.com/mydex/mydex/internal/auth"
	"github.com/mydex/mydex/pkg/errutil"
)

// PermissionRepository resolves group permissions from the credential store.
type PermissionRepository interface {
	// PermissionsFor returns the permissions granted to the account through
	// all of its groups. Duplicates are allowed.
	PermissionsFor(ctx context.Context, accountID int64) ([]Permission, error)

	// HasPermission reports whether any of the account's groups grants p.
	HasPermission(ctx context.Context, accountID int64, p Permission) (bool, error)
}

// Service answers authorization questions for identities.
type Service struct {
	permissions PermissionRepository
	logger      *slog.Logger
}

// NewService creates a new Service.
func NewService(permissions PermissionRepository, logger *slog.Logger) (*Service, error) {
	if permissions == nil {
		return nil, oops.Code("ACCESS_INVALID_SERVICE").Errorf("permission repository is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{permissions: permissions, logger: logger}, nil
}

// PermissionsFor returns the deduplicated permissions held by identity.
// An identity in no groups, or a nil identity, holds the empty set.
func (s *Service) PermissionsFor(ctx context.Context, identity *auth.Identity) (PermissionSet, error) {
	if identity == nil {
		return PermissionSet{}, nil
	}

	perms, err := s.permissions.PermissionsFor(ctx, identity.ID)
	if err != nil {
		err = oops.Code("ACCESS_STORE_FAILED").
			With("operation", "permissions for account").
			With("account_id", identity.ID).
			Wrap(err)
		errutil.LogError(ctx, s.logger, "permission lookup failed", err)
		return nil, err
	}
	return NewPermissionSet(perms...), nil
}

// HasPermission reports whether identity holds p. It asks the store for the
// single permission rather than loading the whole set.
func (s *Service) HasPermission(ctx context.Context, identity *auth.Identity, p Permission) (bool, error) {
	if identity == nil || !p.Valid() {
		return false, nil
	}

	ok, err := s.permissions.HasPermission(ctx, identity.ID, p)
	if err != nil {
		err = oops.Code("ACCESS_STORE_FAILED").
			With("operation", "has permission").
			With("account_id", identity.ID).
			With("permission", p.String()).
			Wrap(err)
		errutil.LogError(ctx, s.logger, "permission check failed", err)
		return false, err
	}
	return ok, nil
}

// Require returns an ACCESS_UNAUTHORIZED error wrapping auth.ErrUnauthorized
// unless identity holds p.
func (s *Service) Require(ctx context.Context, identity *auth.Identity, p Permission) error {
	ok, err := s.HasPermission(ctx, identity, p)
	if err != nil {
		return err
	}
	if !ok {
		builder := oops.Code(auth.CodeUnauthorized).With("permission", p.String())
		if identity != nil {
			builder = builder.With("account_id", identity.ID)
		}
		return builder.Wrap(auth.ErrUnauthorized)
	}
	return nil
}
