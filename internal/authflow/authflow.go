// Package authflow drives one OAuth 2.0 authorization-code-with-PKCE
// attempt: generate the PKCE material, bind the callback listener, send the
// user's browser to the provider, wait for the redirect, exchange the code,
// and optionally decorate the result with profile data.
package authflow

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"

	"authrelay/internal/browser"
	"authrelay/internal/callback"
	"authrelay/internal/config"
	"authrelay/internal/logging"
	"authrelay/internal/pkce"
	"authrelay/internal/token"
	"authrelay/internal/userinfo"
)

// Attempt is the state of a single authorization run. The code verifier
// stays in process memory until the token exchange consumes it; the attempt
// is discarded afterwards.
type Attempt struct {
	CodeVerifier  string
	CodeChallenge string
	State         string
	RedirectURL   string
}

// NewAttempt generates fresh PKCE material for one authorization run.
func NewAttempt(redirectURL string) (*Attempt, error) {
	verifier, err := pkce.Verifier()
	if err != nil {
		return nil, fmt.Errorf("failed to generate code verifier: %w", err)
	}
	state, err := pkce.State()
	if err != nil {
		return nil, fmt.Errorf("failed to generate state: %w", err)
	}
	return &Attempt{
		CodeVerifier:  verifier,
		CodeChallenge: pkce.Challenge(verifier),
		State:         state,
		RedirectURL:   redirectURL,
	}, nil
}

// AuthCodeURL builds the provider authorization URL for this attempt.
func (a *Attempt) AuthCodeURL(conf *config.Config) string {
	oc := &oauth2.Config{
		ClientID:    conf.Provider.ClientID,
		RedirectURL: a.RedirectURL,
		Scopes:      conf.Provider.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  conf.Provider.AuthURL,
			TokenURL: conf.Provider.TokenURL,
		},
	}
	return oc.AuthCodeURL(a.State,
		oauth2.SetAuthURLParam("code_challenge", a.CodeChallenge),
		oauth2.SetAuthURLParam("code_challenge_method", pkce.ChallengeMethod),
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"))
}

// Result is the outcome of a completed flow. Claims and Profile are best
// effort: either may be nil while Tokens is set.
type Result struct {
	Tokens  *token.Set
	Claims  *token.IDClaims
	Profile *userinfo.Profile
}

// Flow wires the pipeline's collaborators together.
type Flow struct {
	conf        *config.Config
	client      *token.Client
	openBrowser func(string) error
}

func New(conf *config.Config) *Flow {
	return &Flow{
		conf:        conf,
		client:      token.NewClient(conf),
		openBrowser: browser.OpenURL,
	}
}

// Client exposes the flow's token client, for follow-up refreshes.
func (f *Flow) Client() *token.Client {
	return f.client
}

// Run executes the strictly sequential pipeline. The only suspension point
// is the wait for the single browser callback.
func (f *Flow) Run(ctx context.Context) (*Result, error) {
	l := logging.FromContext(ctx)

	if f.conf.Exchange.Mode == config.ModeProxy {
		if err := f.client.CheckProxyHealth(ctx); err != nil {
			return nil, err
		}
		l.Info("secret-injecting proxy is healthy")
	}

	attempt, err := NewAttempt(f.conf.RedirectURL())
	if err != nil {
		return nil, err
	}

	// The listener must be bound before the browser is launched, or the
	// redirect dies with a connection error.
	listener, err := callback.Listen(f.conf.Callback.Port, attempt.State, f.conf.Callback.SkipStateCheck)
	if err != nil {
		return nil, err
	}
	defer listener.Close()

	authURL := attempt.AuthCodeURL(f.conf)
	l.Info("opening browser for authentication")
	if err := f.openBrowser(authURL); err != nil {
		l.WithError(err).Warn("failed to open browser, visit the authorization URL manually")
		fmt.Println(authURL)
	}

	l.WithField("port", f.conf.Callback.Port).Info("waiting for the authorization callback")
	code, err := listener.Wait(ctx, f.conf.CallbackTimeout())
	if err != nil {
		return nil, err
	}
	l.Info("authorization code received")

	tokens, err := f.client.Exchange(ctx, code, attempt.CodeVerifier)
	if err != nil {
		return nil, err
	}
	l.Info("tokens received")

	result := &Result{Tokens: tokens}

	if tokens.IDToken != "" {
		claims, err := token.ParseIDClaims(tokens.IDToken)
		if err != nil {
			l.WithError(err).Warn("failed to parse id token claims")
		} else {
			result.Claims = claims
		}
	}

	if tokens.AccessToken != "" {
		profile, err := userinfo.Fetch(ctx, f.conf.Provider.UserinfoURL, tokens.AccessToken)
		if err != nil {
			// Documented non-fatal degradation: the flow continues
			// without profile data.
			l.WithError(err).Warn("failed to fetch userinfo, continuing without profile data")
		} else {
			result.Profile = profile
		}
	}

	return result, nil
}
