// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 mydex Contributors

package errutil

import (
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertErrorCode asserts that err is an oops error with the given code.
func AssertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	assert.Equal(t, code, oopsErr.Code())
}

// AssertErrorContext asserts that err is an oops error with the given context key/value.
func AssertErrorContext(t *testing.T, err error, key string, value any) {
	t.Helper()
	oopsErr, ok := oops.AsOops(err)
	require.True(t, ok, "expected oops error, got %T", err)
	ctx := oopsErr.Context()
	assert.Contains(t, ctx, key)
	assert.Equal(t, value, ctx[key])
}

// AssertPanicsWithCode asserts that fn panics with an oops error carrying
// the given code, and returns that error for further inspection.
func AssertPanicsWithCode(t *testing.T, code string, fn func()) (recovered error) {
	t.Helper()
	defer func() {
		r := recover()
		require.NotNil(t, r, "expected panic with code %s", code)
		err, ok := r.(error)
		require.True(t, ok, "expected panic value to be an error, got %T", r)
		AssertErrorCode(t, err, code)
		recovered = err
	}()
	fn()
	return nil
}
