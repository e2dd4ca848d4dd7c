package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Credentials is the confidential client credential held only by the proxy
// process. It is loaded once at startup and kept in memory for the process
// lifetime; callers must never write the secret to logs or responses.
type Credentials struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret"`
	AuthURL      string `json:"auth_uri"`
	TokenURL     string `json:"token_uri"`
}

const credentialsRemediation = `create an OAuth client in your provider's console, download the JSON credentials, and save them at the configured path. The file must contain a top-level "installed" or "web" object with client_id and client_secret`

// LoadCredentials reads a Google-style client secret file: a JSON document
// with a top-level "installed" or "web" object carrying client_id,
// client_secret, and optional auth_uri/token_uri overrides.
func LoadCredentials(fileName string) (*Credentials, error) {
	b, err := os.ReadFile(fileName)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("credentials file '%s' not found: %s", fileName, credentialsRemediation)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file '%s': %w", fileName, err)
	}

	var doc struct {
		Installed *Credentials `json:"installed"`
		Web       *Credentials `json:"web"`
	}
	if err := json.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file '%s': %w", fileName, err)
	}

	creds := doc.Installed
	if creds == nil {
		creds = doc.Web
	}
	if creds == nil {
		return nil, fmt.Errorf("credentials file '%s' has neither 'installed' nor 'web': %s", fileName, credentialsRemediation)
	}
	if creds.ClientID == "" || creds.ClientSecret == "" {
		return nil, fmt.Errorf("credentials file '%s' is missing client_id or client_secret: %s", fileName, credentialsRemediation)
	}
	if creds.TokenURL == "" {
		creds.TokenURL = defaultTokenURL
	}

	return creds, nil
}

// Redacted returns a loggable form of the client ID with most of the value
// masked. The secret itself must never be logged, not even redacted.
func (c *Credentials) Redacted() string {
	const keep = 12
	if len(c.ClientID) <= keep {
		return c.ClientID
	}
	return c.ClientID[:keep] + "..."
}
