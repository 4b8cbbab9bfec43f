// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 mydex Contributors

package auth

import (
	"errors"
	"net/http"
)

// ErrNotFound is returned when a requested account does not exist.
var ErrNotFound = errors.New("not found")

// ErrUnauthorized is returned when an identity lacks a required permission.
var ErrUnauthorized = errors.New("unauthorized")

// Error codes attached to oops errors produced by this package and its
// storage and authorization collaborators.
const (
	CodeAccountNotFound   = "ACCOUNT_NOT_FOUND"
	CodeUnauthorized      = "ACCESS_UNAUTHORIZED"
	CodeStoreFailed       = "AUTH_STORE_FAILED"
	CodeWorkerFailed      = "AUTH_WORKER_FAILED"
	CodeCorruptCredential = "AUTH_CORRUPT_CREDENTIAL"
	CodeInvalidHash       = "AUTH_INVALID_HASH"
)

// InvalidCredentialsMessage is the only message shown to an end user when a
// login attempt does not produce an identity. Unknown accounts and wrong
// passwords are never distinguished.
const InvalidCredentialsMessage = "Invalid credentials"

// HTTPStatus returns the HTTP status code appropriate for err.
func HTTPStatus(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// UserMessage returns a short description of err that is safe to send to
// clients. It never contains internal details.
func UserMessage(err error) string {
	switch HTTPStatus(err) {
	case http.StatusOK:
		return ""
	case http.StatusNotFound:
		return "Not Found"
	case http.StatusUnauthorized:
		return "Unauthorized"
	default:
		return "Internal Server Error"
	}
}

// IsInternal reports whether err is a store or worker failure rather than a
// domain outcome.
func IsInternal(err error) bool {
	return err != nil && HTTPStatus(err) == http.StatusInternalServerError
}
