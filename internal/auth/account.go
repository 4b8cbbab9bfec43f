// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 mydex Contributors

package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/oops"
)

const redacted = "[redacted]"

// Account holds the public fields of an account row.
type Account struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// LogValue implements slog.LogValuer.
func (a Account) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("id", a.ID),
		slog.String("name", a.Name),
		slog.Time("created_at", a.CreatedAt),
	)
}

// PrivilegedAccount is an account row together with its stored password hash.
// It is only produced by an AccountRepository and only leaves this package
// through ToIdentity. Printing, logging and JSON encoding never reveal the hash.
type PrivilegedAccount struct {
	Account
	passwordHash string
}

// NewPrivilegedAccount wraps a row loaded from the credential store.
func NewPrivilegedAccount(id int64, name string, createdAt time.Time, passwordHash string) *PrivilegedAccount {
	return &PrivilegedAccount{
		Account:      Account{ID: id, Name: name, CreatedAt: createdAt},
		passwordHash: passwordHash,
	}
}

// ToIdentity converts the record into an Identity. It panics if the stored
// hash is corrupt; see DeriveSessionSecret.
func (p *PrivilegedAccount) ToIdentity() *Identity {
	return p.identityFrom(mustDecodeHash(p.ID, p.passwordHash))
}

func (p *PrivilegedAccount) identityFrom(decoded *DecodedHash) *Identity {
	secret := make([]byte, len(decoded.Digest))
	copy(secret, decoded.Digest)
	return &Identity{Account: p.Account, sessionSecret: secret}
}

func (p PrivilegedAccount) String() string {
	return fmt.Sprintf("PrivilegedAccount{ID:%d Name:%q CreatedAt:%s PasswordHash:%s}",
		p.ID, p.Name, p.CreatedAt.Format(time.RFC3339), redacted)
}

// Format keeps every fmt verb, including %#v and %+v, on the redacted form.
func (p PrivilegedAccount) Format(f fmt.State, _ rune) {
	_, _ = fmt.Fprint(f, p.String())
}

// LogValue implements slog.LogValuer.
func (p PrivilegedAccount) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("id", p.ID),
		slog.String("name", p.Name),
		slog.Time("created_at", p.CreatedAt),
		slog.String("password_hash", redacted),
	)
}

// MarshalJSON refuses to encode privileged records.
func (p PrivilegedAccount) MarshalJSON() ([]byte, error) {
	return nil, oops.Code("AUTH_PRIVILEGED_ENCODE").
		With("account_id", p.ID).
		Errorf("privileged account records cannot be serialized")
}

// Identity is the sanitized account used by the rest of the application.
// It carries a session secret derived from the password digest instead of
// the password hash.
type Identity struct {
	Account
	sessionSecret []byte
}

// SessionBinding is the pair handed to the session layer: a session stays
// valid only while Secret equals the account's current secret.
type SessionBinding struct {
	AccountID int64
	Secret    []byte
}

// SessionSecret returns a copy of the session-binding secret.
func (i *Identity) SessionSecret() []byte {
	out := make([]byte, len(i.sessionSecret))
	copy(out, i.sessionSecret)
	return out
}

// Binding returns the (account id, secret) pair for session management.
func (i *Identity) Binding() SessionBinding {
	return SessionBinding{AccountID: i.ID, Secret: i.SessionSecret()}
}

// MatchesSecret reports, in constant time, whether secret equals the
// identity's current session secret.
func (i *Identity) MatchesSecret(secret []byte) bool {
	return len(i.sessionSecret) > 0 && subtle.ConstantTimeCompare(i.sessionSecret, secret) == 1
}

func (i Identity) String() string {
	return fmt.Sprintf("Identity{ID:%d Name:%q CreatedAt:%s SessionSecret:%s}",
		i.ID, i.Name, i.CreatedAt.Format(time.RFC3339), redacted)
}

// Format keeps every fmt verb on the redacted form.
func (i Identity) Format(f fmt.State, _ rune) {
	_, _ = fmt.Fprint(f, i.String())
}

// LogValue implements slog.LogValuer.
func (i Identity) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("id", i.ID),
		slog.String("name", i.Name),
		slog.Time("created_at", i.CreatedAt),
		slog.String("session_secret", redacted),
	)
}

// Credentials is a submitted login form. It lives for one attempt only.
type Credentials struct {
	Username string
	Password string
	Next     string
}

// SafeNext returns Next if it is a same-site absolute path, otherwise "/".
func (c Credentials) SafeNext() string {
	next := c.Next
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.ContainsAny(next, "\\\r\n") {
		return "/"
	}
	return next
}

func (c Credentials) String() string {
	return fmt.Sprintf("Credentials{Username:%q Password:%s Next:%q}", c.Username, redacted, c.Next)
}

// Format keeps every fmt verb on the redacted form.
func (c Credentials) Format(f fmt.State, _ rune) {
	_, _ = fmt.Fprint(f, c.String())
}

// LogValue implements slog.LogValuer.
func (c Credentials) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("username", c.Username),
		slog.String("password", redacted),
	)
}

// AccountRepository reads accounts from the credential store.
// Both lookups return an error wrapping ErrNotFound when no row matches.
type AccountRepository interface {
	// FindByName retrieves an account by exact name.
	FindByName(ctx context.Context, name string) (*PrivilegedAccount, error)

	// FindByID retrieves an account by id.
	FindByID(ctx context.Context, id int64) (*PrivilegedAccount, error)
}
