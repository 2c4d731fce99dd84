package auth

import "strings"

// FakeInsecureHasher implements PasswordHasher with zero crypto overhead.
// Stores passwords as "$2a$00$<plaintext>" and verifies by string
// comparison. The prefix keeps the output decodable by
// DecodeStoredCredential. For use in tests ONLY — never in production.
type FakeInsecureHasher struct{}

func (FakeInsecureHasher) HashPassword(password string) (Credential, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	return Credential("$2a$00$" + password), nil
}

func (FakeInsecureHasher) VerifyPassword(password string, cred Credential) bool {
	return strings.TrimPrefix(string(cred), "$2a$00$") == password
}
