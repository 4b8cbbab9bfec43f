// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 mydex Contributors

package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/crypto/argon2"
)

// hashAlgorithm is the PHC identifier of the only supported algorithm.
const hashAlgorithm = "argon2id"

// maxHashMemory bounds the memory cost accepted from a stored hash (4 GiB).
const maxHashMemory = 4 * 1024 * 1024

// Argon2Params are the tunable argon2id cost parameters used when hashing.
// Verification always uses the parameters embedded in the stored hash.
type Argon2Params struct {
	Memory  uint32 // KiB
	Time    uint32 // iterations
	Threads uint8  // parallelism
	SaltLen uint32 // bytes
	KeyLen  uint32 // bytes
}

// DefaultArgon2Params returns the OWASP-recommended argon2id parameters.
func DefaultArgon2Params() Argon2Params {
	return Argon2Params{
		Memory:  64 * 1024,
		Time:    1,
		Threads: 4,
		SaltLen: 16,
		KeyLen:  32,
	}
}

// Validate checks that the parameters can be passed to argon2 without panicking.
func (p Argon2Params) Validate() error {
	if p.Time < 1 {
		return oops.Code("AUTH_INVALID_PARAMS").Errorf("argon2 time must be at least 1")
	}
	if p.Threads < 1 {
		return oops.Code("AUTH_INVALID_PARAMS").Errorf("argon2 threads must be at least 1")
	}
	if p.Memory < 8*uint32(p.Threads) {
		return oops.Code("AUTH_INVALID_PARAMS").
			With("memory", p.Memory).
			With("threads", p.Threads).
			Errorf("argon2 memory must be at least 8 KiB per thread")
	}
	if p.SaltLen < 8 {
		return oops.Code("AUTH_INVALID_PARAMS").Errorf("argon2 salt length must be at least 8 bytes")
	}
	if p.KeyLen < 16 {
		return oops.Code("AUTH_INVALID_PARAMS").Errorf("argon2 key length must be at least 16 bytes")
	}
	return nil
}

// ErrEmptyPassword is returned when attempting to hash an empty password.
var ErrEmptyPassword = oops.Code("AUTH_EMPTY_PASSWORD").Errorf("password cannot be empty")

// DecodedHash is a parsed argon2id PHC string.
// It never prints its salt or digest.
type DecodedHash struct {
	Version int
	Memory  uint32
	Time    uint32
	Threads uint8
	Salt    []byte
	Digest  []byte
}

func (d DecodedHash) String() string {
	return fmt.Sprintf("%s(v=%d,m=%d,t=%d,p=%d)[redacted]", hashAlgorithm, d.Version, d.Memory, d.Time, d.Threads)
}

// GoString implements fmt.GoStringer so %#v stays redacted.
func (d DecodedHash) GoString() string {
	return d.String()
}

// DecodeHash parses an encoded hash of the form
// $argon2id$v=19$m=65536,t=1,p=4$<salt>$<digest>.
func DecodeHash(encodedHash string) (*DecodedHash, error) {
	parts := strings.Split(encodedHash, "$")
	if len(parts) != 6 || parts[0] != "" {
		return nil, oops.Code(CodeInvalidHash).Errorf("invalid hash format")
	}

	if parts[1] != hashAlgorithm {
		return nil, oops.Code(CodeInvalidHash).Errorf("unsupported hash algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, oops.Code(CodeInvalidHash).Wrap(err)
	}
	if canonical := fmt.Sprintf("v=%d", version); parts[2] != canonical {
		return nil, oops.Code(CodeInvalidHash).Errorf("malformed version segment %q", parts[2])
	}
	if version != argon2.Version {
		return nil, oops.Code(CodeInvalidHash).Errorf("unsupported argon2 version: %d", version)
	}

	var memory, time, threads uint32
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return nil, oops.Code(CodeInvalidHash).Wrap(err)
	}
	if canonical := fmt.Sprintf("m=%d,t=%d,p=%d", memory, time, threads); parts[3] != canonical {
		return nil, oops.Code(CodeInvalidHash).Errorf("malformed parameter segment %q", parts[3])
	}

	// Validate threads fits in uint8 to prevent silent truncation
	if threads > 255 {
		return nil, oops.Code(CodeInvalidHash).Errorf("threads value %d exceeds uint8 max", threads)
	}
	if time < 1 || threads < 1 {
		return nil, oops.Code(CodeInvalidHash).Errorf("time and threads must be positive")
	}
	if memory > maxHashMemory {
		return nil, oops.Code(CodeInvalidHash).Errorf("memory value %d exceeds limit", memory)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, oops.Code(CodeInvalidHash).Wrap(err)
	}

	digest, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, oops.Code(CodeInvalidHash).Wrap(err)
	}

	// Validate key length to prevent integer overflow in uint32 conversion
	if len(digest) == 0 || len(digest) > 1<<30 {
		return nil, oops.Code(CodeInvalidHash).Errorf("invalid hash key length: %d", len(digest))
	}

	return &DecodedHash{
		Version: version,
		Memory:  memory,
		Time:    time,
		Threads: uint8(threads),
		Salt:    salt,
		Digest:  digest,
	}, nil
}

// DeriveSessionSecret returns the digest bytes of an encoded hash. Salt and
// parameters are excluded, so the secret changes exactly when the password does.
//
// A hash that does not decode means the credential store holds corrupt data.
// That is not a request error: DeriveSessionSecret panics with an
// AUTH_CORRUPT_CREDENTIAL error naming the account.
func DeriveSessionSecret(accountID int64, encodedHash string) []byte {
	return mustDecodeHash(accountID, encodedHash).Digest
}

func mustDecodeHash(accountID int64, encodedHash string) *DecodedHash {
	decoded, err := DecodeHash(encodedHash)
	if err != nil {
		panic(oops.Code(CodeCorruptCredential).
			With("account_id", accountID).
			With("cause", err.Error()).
			Errorf("invalid password hash in the credential store for account %d", accountID))
	}
	return decoded
}

// PasswordHasher provides password hashing and verification.
type PasswordHasher interface {
	// Hash produces an argon2id hash of the password.
	Hash(password string) (string, error)

	// Verify checks if the password matches the encoded hash.
	// Returns (true, nil) on match, (false, nil) on mismatch, or error on invalid hash.
	Verify(password, encodedHash string) (bool, error)

	// VerifyDecoded checks the password against an already decoded hash.
	VerifyDecoded(password string, hash *DecodedHash) bool
}

// Argon2idHasher implements PasswordHasher using argon2id.
type Argon2idHasher struct {
	params Argon2Params
}

// NewArgon2idHasher creates a new Argon2idHasher with DefaultArgon2Params.
func NewArgon2idHasher() *Argon2idHasher {
	return &Argon2idHasher{params: DefaultArgon2Params()}
}

// NewArgon2idHasherWithParams creates an Argon2idHasher with custom cost parameters.
func NewArgon2idHasherWithParams(params Argon2Params) (*Argon2idHasher, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	return &Argon2idHasher{params: params}, nil
}

// Hash produces an argon2id hash of the password.
func (h *Argon2idHasher) Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}

	salt := make([]byte, h.params.SaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", oops.Code("AUTH_SALT_FAILED").Wrap(err)
	}

	digest := argon2.IDKey([]byte(password), salt, h.params.Time, h.params.Memory, h.params.Threads, h.params.KeyLen)

	// PHC string format
	encoded := fmt.Sprintf(
		"$%s$v=%d$m=%d,t=%d,p=%d$%s$%s",
		hashAlgorithm,
		argon2.Version,
		h.params.Memory,
		h.params.Time,
		h.params.Threads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(digest),
	)

	return encoded, nil
}

// Verify checks if the password matches the hash.
func (h *Argon2idHasher) Verify(password, encodedHash string) (bool, error) {
	decoded, err := DecodeHash(encodedHash)
	if err != nil {
		return false, err
	}
	return h.VerifyDecoded(password, decoded), nil
}

// VerifyDecoded recomputes the digest with the stored salt and parameters and
// compares in constant time. The candidate is never inspected beforehand.
func (h *Argon2idHasher) VerifyDecoded(password string, hash *DecodedHash) bool {
	computed := argon2.IDKey([]byte(password), hash.Salt, hash.Time, hash.Memory, hash.Threads, uint32(len(hash.Digest)))
	return subtle.ConstantTimeCompare(computed, hash.Digest) == 1
}
