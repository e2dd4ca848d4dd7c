// Package pkce generates the random material for an OAuth 2.0
// authorization-code flow with PKCE (RFC 7636): the code verifier, its S256
// challenge, and the anti-CSRF state parameter.
package pkce

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const (
	verifierBytes = 32
	stateBytes    = 16

	// ChallengeMethod is the only code_challenge_method this module emits.
	ChallengeMethod = "S256"
)

// Verifier returns a fresh code verifier: 32 bytes from a cryptographically
// secure source, base64url-encoded without padding. Predictable verifiers
// defeat PKCE, so math/rand is not an option here.
func Verifier() (string, error) {
	return randomToken(verifierBytes)
}

// Challenge derives the S256 code challenge for a verifier. The provider
// recomputes this hash during token exchange to check that the caller holds
// the original verifier.
func Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// State returns a fresh anti-CSRF state parameter: 16 secure-random bytes,
// base64url-encoded without padding.
func State() (string, error) {
	return randomToken(stateBytes)
}

func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
