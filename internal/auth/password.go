package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/smillett/millettbooks/internal/errs"
)

// BcryptCost is the work factor for new hashes. At cost 12 a single hash
// takes on the order of 250ms; existing hashes carry their own cost and keep
// verifying after this changes.
const BcryptCost = 12

// ErrEmptyPassword reports a hash request for an empty plaintext. This is a
// caller bug: the route layer validates presence before the core runs.
var ErrEmptyPassword = errs.New(errs.InvalidArgument, "password must not be empty")

// PasswordHasher hashes plaintext passwords and verifies them against a
// stored credential.
type PasswordHasher interface {
	HashPassword(password string) (Credential, error)
	VerifyPassword(password string, cred Credential) bool
}

// BcryptHasher is the production PasswordHasher. Each hash embeds a fresh
// 128-bit salt, so hashing the same plaintext twice yields different
// credentials that both verify.
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher returns a BcryptHasher at the default cost.
func NewBcryptHasher() BcryptHasher {
	return BcryptHasher{cost: BcryptCost}
}

// HashPassword hashes a plaintext password. Returns ErrEmptyPassword for
// empty input; the plaintext itself is never stored or logged.
func (h BcryptHasher) HashPassword(password string) (Credential, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	cost := h.cost
	if cost == 0 {
		cost = BcryptCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	return Credential(hash), nil
}

// VerifyPassword reports whether password matches cred. It re-derives the
// digest with the salt and cost embedded in cred; the comparison inside
// bcrypt is constant-time (crypto/subtle). A legitimate mismatch is false,
// never an error; malformed input is also false, which the login path logs
// separately after DecodeStoredCredential rejects it.
func (BcryptHasher) VerifyPassword(password string, cred Credential) bool {
	err := bcrypt.CompareHashAndPassword([]byte(cred), []byte(password))
	if err == nil {
		return true
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return false
	}
	// Undecodable hash or oversized plaintext: indistinguishable from a
	// mismatch as far as the caller is concerned.
	return false
}
