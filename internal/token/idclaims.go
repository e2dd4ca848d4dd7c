package token

import (
	"encoding/json"
	"fmt"

	"github.com/lestrrat-go/jwx/v3/jwt"
)

// IDClaims is the subset of ID-token claims the login tool displays. The
// token is parsed without signature verification: it arrived over TLS
// straight from the token endpoint and is used for display only, never as an
// authentication decision.
type IDClaims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// ParseIDClaims extracts display claims from a raw ID token.
func ParseIDClaims(idToken string) (*IDClaims, error) {
	tok, err := jwt.ParseInsecure([]byte(idToken))
	if err != nil {
		return nil, fmt.Errorf("failed to parse id token: %w", err)
	}

	b, err := json.Marshal(tok)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal id token claims: %w", err)
	}
	var claims IDClaims
	if err := json.Unmarshal(b, &claims); err != nil {
		return nil, fmt.Errorf("failed to unmarshal id token claims: %w", err)
	}
	return &claims, nil
}
