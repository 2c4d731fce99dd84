package auth

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"github.com/smillett/millettbooks/internal/errs"
)

// Credential is a durable salted password hash in bcrypt modular-crypt form
// ($2a$cost$saltdigest). It is self-describing: algorithm tag, cost factor,
// salt, and digest travel together, so verification needs nothing else.
type Credential []byte

// escapedHexMarker prefixes the legacy textual storage representation: a
// Postgres bytea rendered as text escapes the whole value as \x-prefixed
// hex. One evolution of the schema persisted credentials that way, so rows
// in that form still exist.
const escapedHexMarker = `\x`

// ErrMalformedCredential reports a stored credential that cannot be decoded.
// Callers must treat it as verification failure, never as a crash.
var ErrMalformedCredential = errs.New(errs.MalformedCredential, "stored credential is malformed")

var bcryptPrefixes = [][]byte{
	[]byte("$2a$"), []byte("$2b$"), []byte("$2y$"),
}

// DecodeStoredCredential converts a persisted credential value into the
// exact byte sequence the hasher originally produced. Canonical values pass
// through unchanged; legacy escaped-hex values are decoded. The round trip
// DecodeStoredCredential(EncodeEscaped(x)) == x holds byte-for-byte for
// every hasher output.
func DecodeStoredCredential(stored string) (Credential, error) {
	if len(stored) >= len(escapedHexMarker) && stored[:len(escapedHexMarker)] == escapedHexMarker {
		raw, err := hex.DecodeString(stored[len(escapedHexMarker):])
		if err != nil {
			return nil, errs.Wrap(errs.MalformedCredential,
				"stored credential is malformed", fmt.Errorf("escaped-hex payload: %w", err))
		}
		if !looksLikeBcrypt(raw) {
			return nil, ErrMalformedCredential
		}
		return Credential(raw), nil
	}

	if !looksLikeBcrypt([]byte(stored)) {
		return nil, ErrMalformedCredential
	}
	return Credential(stored), nil
}

// EncodeEscaped renders a credential in the legacy escaped-hex storage form.
// Production code never writes this form; it exists so the decoder's
// round-trip invariant can be stated and tested against real legacy rows.
func EncodeEscaped(cred Credential) string {
	return escapedHexMarker + hex.EncodeToString(cred)
}

// EncodeCanonical renders a credential in the canonical persisted form: the
// raw modular-crypt text itself. All writes go through this.
func EncodeCanonical(cred Credential) string {
	return string(cred)
}

func looksLikeBcrypt(b []byte) bool {
	for _, prefix := range bcryptPrefixes {
		if bytes.HasPrefix(b, prefix) {
			return true
		}
	}
	return false
}
