// Package tokenfile persists the outcome of a login run to disk. Writing is
// always explicit: the caller only invokes Save after the operator confirmed
// it.
package tokenfile

import (
	"encoding/json"
	"fmt"
	"os"

	"authrelay/internal/token"
	"authrelay/internal/userinfo"
)

// Document is the on-disk shape.
type Document struct {
	Tokens   *token.Set        `json:"tokens"`
	UserInfo *userinfo.Profile `json:"user_info,omitempty"`
}

// Save writes tokens and profile to path with owner-only permissions.
func Save(path string, tokens *token.Set, profile *userinfo.Profile) error {
	b, err := json.MarshalIndent(Document{Tokens: tokens, UserInfo: profile}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal token file: %w", err)
	}
	if err := os.WriteFile(path, append(b, '\n'), 0o600); err != nil {
		return fmt.Errorf("failed to write token file '%s': %w", path, err)
	}
	return nil
}

// Load reads a previously saved document.
func Load(path string) (*Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read token file '%s': %w", path, err)
	}
	var doc Document
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse token file '%s': %w", path, err)
	}
	return &doc, nil
}
