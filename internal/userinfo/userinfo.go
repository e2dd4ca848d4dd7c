// Package userinfo fetches the authenticated user's profile from the
// provider's userinfo endpoint. A failure here is the one documented
// non-fatal degradation of the flow: the caller proceeds without profile
// data.
package userinfo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
)

// Profile holds the provider-reported identity fields.
type Profile struct {
	ID            string `json:"id"`
	Email         string `json:"email"`
	VerifiedEmail bool   `json:"verified_email"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Error reports a non-success status from the userinfo endpoint.
type Error struct {
	Status string
}

func (e *Error) Error() string {
	return fmt.Sprintf("userinfo request failed: %s", e.Status)
}

// Fetch retrieves the profile for a bearer access token. Read-only,
// idempotent, single-attempt.
func Fetch(ctx context.Context, endpoint, accessToken string) (*Profile, error) {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken})
	client := oauth2.NewClient(ctx, src)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build userinfo request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{Status: resp.Status}
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("failed to parse userinfo response: %w", err)
	}
	return &profile, nil
}
