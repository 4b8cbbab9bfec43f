// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 mydex Contributors

// Package auth authenticates account credentials for mydex.
//
// # Data Shapes
//
// Two distinct types keep password hash material inside this package:
//   - PrivilegedAccount - a credential store row including the encoded password hash
//   - Identity - the sanitized account used everywhere else, carrying a session
//     secret derived from the password digest
//
// PrivilegedAccount.ToIdentity is the only conversion between them. Neither type
// prints, logs or serializes its secret material.
//
// # Session Binding
//
// The session secret is the raw argon2id digest, without salt or parameters.
// It changes whenever the password changes, so a session layer storing
// Identity.Binding can invalidate sessions by comparing against a freshly
// loaded identity (Service.GetIdentity, Identity.MatchesSecret).
//
// # Services
//
//   - Service - Authenticate, GetIdentity, RequireIdentity
//
// Password verification is dispatched to an Executor (see package compute) so
// slow argon2id computations never run on request-serving goroutines.
//
// A stored hash that cannot be decoded is treated as store corruption and
// panics with AUTH_CORRUPT_CREDENTIAL rather than returning an error.
package auth
