// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 mydex Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"

	"github.com/mydex/mydex/pkg/errutil"
)

// Executor runs CPU-bound work off the caller's goroutine and waits for it.
// compute.Pool implements it.
type Executor interface {
	Do(ctx context.Context, fn func() error) error
}

// timingDummyPassword seeds the hash used to equalize response time for
// unknown accounts. It is hashed with random salt at startup and never
// stored, so no submitted password can match it in practice.
//
//nolint:gosec // G101: not a credential
const timingDummyPassword = "mydex-timing-equalization"

// Service authenticates credentials and rehydrates identities.
type Service struct {
	accounts AccountRepository
	hasher   PasswordHasher
	executor Executor
	logger   *slog.Logger
	metrics  *Metrics

	equalizeTiming bool
	dummyHash      *DecodedHash
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the service logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics records attempt outcomes and verification latency.
func WithMetrics(m *Metrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTimingEqualization makes Authenticate run a verification of equal cost
// when the account does not exist, so response time does not reveal whether
// a username is registered. Off by default.
func WithTimingEqualization(enabled bool) ServiceOption {
	return func(s *Service) {
		s.equalizeTiming = enabled
	}
}

// NewService creates a Service. Verification work is dispatched to executor.
func NewService(accounts AccountRepository, hasher PasswordHasher, executor Executor, opts ...ServiceOption) (*Service, error) {
	if accounts == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("accounts repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("password hasher is required")
	}
	if executor == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("executor is required")
	}

	s := &Service{
		accounts: accounts,
		hasher:   hasher,
		executor: executor,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		return nil, oops.Code("AUTH_INVALID_SERVICE").Errorf("logger cannot be nil")
	}

	if s.equalizeTiming {
		encoded, err := hasher.Hash(timingDummyPassword)
		if err != nil {
			return nil, oops.Code("AUTH_INVALID_SERVICE").
				With("operation", "hash timing dummy").
				Wrap(err)
		}
		s.dummyHash, err = DecodeHash(encoded)
		if err != nil {
			return nil, oops.Code("AUTH_INVALID_SERVICE").
				With("operation", "decode timing dummy").
				Wrap(err)
		}
	}

	return s, nil
}

// Authenticate checks a username/password pair.
//
// It returns (identity, nil) on success and (nil, nil) when the account does
// not exist or the password is wrong; callers cannot tell the two apart.
// A non-nil error means the store or the executor failed.
//
// A stored hash that cannot be decoded panics (see DeriveSessionSecret).
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (*Identity, error) {
	account, err := s.accounts.FindByName(ctx, creds.Username)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.metrics.recordAttempt(OutcomeError)
			err = oops.Code(CodeStoreFailed).
				With("operation", "find account by name").
				Wrap(err)
			errutil.LogError(ctx, s.logger, "authentication failed", err)
			return nil, err
		}

		if s.equalizeTiming {
			if err := s.verify(ctx, creds.Password, s.dummyHash, nil); err != nil {
				return nil, s.workerFailure(ctx, err, 0)
			}
		}
		s.metrics.recordAttempt(OutcomeUnknownAccount)
		s.logger.DebugContext(ctx, "authentication rejected", "reason", OutcomeUnknownAccount)
		return nil, nil
	}

	decoded := mustDecodeHash(account.ID, account.passwordHash)

	var valid bool
	if err := s.verify(ctx, creds.Password, decoded, &valid); err != nil {
		return nil, s.workerFailure(ctx, err, account.ID)
	}

	if !valid {
		s.metrics.recordAttempt(OutcomeRejected)
		s.logger.DebugContext(ctx, "authentication rejected", "account_id", account.ID, "reason", OutcomeRejected)
		return nil, nil
	}

	s.metrics.recordAttempt(OutcomeAccepted)
	s.logger.DebugContext(ctx, "authentication accepted", "account_id", account.ID)
	return account.identityFrom(decoded), nil
}

// verify dispatches the password comparison to the executor. valid may be nil
// when only the cost matters.
func (s *Service) verify(ctx context.Context, password string, hash *DecodedHash, valid *bool) error {
	start := time.Now()
	err := s.executor.Do(ctx, func() error {
		ok := s.hasher.VerifyDecoded(password, hash)
		if valid != nil {
			*valid = ok
		}
		return nil
	})
	if err != nil {
		return err //nolint:wrapcheck // wrapped by workerFailure
	}
	s.metrics.observeVerify(time.Since(start))
	return nil
}

func (s *Service) workerFailure(ctx context.Context, err error, accountID int64) error {
	s.metrics.recordAttempt(OutcomeError)
	err = oops.Code(CodeWorkerFailed).
		With("operation", "verify password").
		With("account_id", accountID).
		Wrap(err)
	errutil.LogError(ctx, s.logger, "password verification did not complete", err)
	return err
}

// GetIdentity loads the identity for an account id, typically to rehydrate
// an established session. It returns (nil, nil) when the account does not exist.
func (s *Service) GetIdentity(ctx context.Context, id int64) (*Identity, error) {
	account, err := s.accounts.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil
		}
		err = oops.Code(CodeStoreFailed).
			With("operation", "find account by id").
			With("account_id", id).
			Wrap(err)
		errutil.LogError(ctx, s.logger, "identity lookup failed", err)
		return nil, err
	}
	return account.ToIdentity(), nil
}

// RequireIdentity is GetIdentity for callers that treat a missing account as
// an error. The error wraps ErrNotFound.
func (s *Service) RequireIdentity(ctx context.Context, id int64) (*Identity, error) {
	identity, err := s.GetIdentity(ctx, id)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, oops.Code(CodeAccountNotFound).
			With("account_id", id).
			Wrap(ErrNotFound)
	}
	return identity, nil
}
