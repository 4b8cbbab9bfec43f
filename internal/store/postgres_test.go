// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 mydex Contributors

package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"

	"github.com/mydex/mydex/pkg/errutil"
)

func TestConnect_InvalidURL(t *testing.T) {
	_, err := Connect(context.Background(), "postgres://%zz", DefaultPoolConfig())
	errutil.AssertErrorCode(t, err, "STORE_INVALID_URL")
}

func TestConnect_LogsRetriesToConfiguredLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	// Nothing listens on port 1, so every ping is refused.
	_, err := Connect(context.Background(), "postgres://mydex@127.0.0.1:1/mydex?connect_timeout=1", PoolConfig{
		ConnectAttempts: 1,
		RetryBase:       time.Millisecond,
		Logger:          logger,
	})
	errutil.AssertErrorCode(t, err, "STORE_CONNECT_FAILED")

	assert.Contains(t, buf.String(), `"msg":"database not reachable yet"`)
	assert.Contains(t, buf.String(), `"attempt":1`)
}

func TestDefaultPoolConfig(t *testing.T) {
	cfg := DefaultPoolConfig()
	assert.Equal(t, uint64(5), cfg.ConnectAttempts)
	assert.Positive(t, cfg.RetryBase)
	assert.Zero(t, cfg.MaxConns)
	assert.Nil(t, cfg.Logger)
}

func TestRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"network error", errors.New("connection refused"), true},
		{"server starting up", &pgconn.PgError{Code: pgerrcode.CannotConnectNow}, true},
		{"bad password", &pgconn.PgError{Code: pgerrcode.InvalidPassword}, false},
		{"unknown role", &pgconn.PgError{Code: pgerrcode.InvalidAuthorizationSpecification}, false},
		{"missing database", &pgconn.PgError{Code: pgerrcode.InvalidCatalogName}, false},
		{"wrapped bad password", fmt.Errorf("ping: %w", &pgconn.PgError{Code: pgerrcode.InvalidPassword}), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, retryable(tt.err))
		})
	}
}
