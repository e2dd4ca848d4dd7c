// Package token converts an authorization code or a refresh token into a
// token set, either directly against the provider or through the
// secret-injecting proxy. Exchanges are single-attempt: authorization codes
// are single-use by provider contract, so a failed exchange requires a fresh
// code, never a retry.
package token

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"authrelay/internal/config"
)

const (
	grantTypeAuthorizationCode = "authorization_code"
	grantTypeRefreshToken      = "refresh_token"

	healthTimeout = 2 * time.Second
)

// Set is the outcome of a token exchange or refresh. It is immutable once
// received; no expiry tracking or automatic renewal happens here.
type Set struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token,omitempty"`
	IDToken      string `json:"id_token,omitempty"`
}

// ExchangeError carries the provider's structured error verbatim. The body
// is surfaced to the user rather than replaced by a synthesized message.
type ExchangeError struct {
	StatusCode int
	Body       []byte
}

func (e *ExchangeError) Error() string {
	return fmt.Sprintf("token endpoint returned HTTP %d: %s", e.StatusCode, strings.TrimSpace(string(e.Body)))
}

// Client performs token exchanges for one configured variant.
type Client struct {
	conf       *config.Config
	httpClient *http.Client
}

func NewClient(conf *config.Config) *Client {
	return &Client{
		conf:       conf,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Exchange trades an authorization code and its verifier for a token set.
// The verifier leaves the process here for the first and only time.
func (c *Client) Exchange(ctx context.Context, code, codeVerifier string) (*Set, error) {
	params := map[string]string{
		"grant_type":    grantTypeAuthorizationCode,
		"code":          code,
		"redirect_uri":  c.conf.RedirectURL(),
		"client_id":     c.conf.Provider.ClientID,
		"code_verifier": codeVerifier,
	}
	return c.request(ctx, params)
}

// Refresh trades a refresh token for a new token set.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (*Set, error) {
	params := map[string]string{
		"grant_type":    grantTypeRefreshToken,
		"refresh_token": refreshToken,
		"client_id":     c.conf.Provider.ClientID,
	}
	return c.request(ctx, params)
}

// CheckProxyHealth probes the proxy's liveness endpoint so the flow can fail
// fast with an actionable message instead of a connection error mid-flow.
func (c *Client) CheckProxyHealth(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, healthTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.conf.Exchange.ProxyURL+"/health", nil)
	if err != nil {
		return fmt.Errorf("failed to build proxy health request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("the secret-injecting proxy at %s is not running, start authrelay-proxy first: %w",
			c.conf.Exchange.ProxyURL, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("the secret-injecting proxy at %s is unhealthy: %s", c.conf.Exchange.ProxyURL, resp.Status)
	}
	return nil
}

func (c *Client) request(ctx context.Context, params map[string]string) (*Set, error) {
	var req *http.Request
	var err error

	switch c.conf.Exchange.Mode {
	case config.ModeProxy:
		// The secret is omitted entirely; the proxy injects it downstream.
		req, err = c.jsonRequest(ctx, c.conf.Exchange.ProxyURL+"/token", params)
	case config.ModeDirect:
		params["client_secret"] = c.conf.Provider.ClientSecret
		req, err = c.formRequest(ctx, c.conf.Provider.TokenURL, params)
	case config.ModeInstalled:
		req, err = c.formRequest(ctx, c.conf.Provider.TokenURL, params)
	default:
		return nil, fmt.Errorf("unsupported exchange mode: %s", c.conf.Exchange.Mode)
	}
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read token response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ExchangeError{StatusCode: resp.StatusCode, Body: body}
	}

	var set Set
	if err := json.Unmarshal(body, &set); err != nil {
		return nil, fmt.Errorf("failed to parse token response: %w", err)
	}
	return &set, nil
}

func (c *Client) jsonRequest(ctx context.Context, url string, params map[string]string) (*http.Request, error) {
	b, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal token request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) formRequest(ctx context.Context, endpoint string, params map[string]string) (*http.Request, error) {
	form := url.Values{}
	for k, v := range params {
		form.Set(k, v)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}
