// Package config holds the startup configuration for both authrelay
// processes: the login tool and the secret-injecting proxy. Configuration is
// loaded once at process entry and passed down explicitly; nothing in this
// package is ambient state.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Mode selects how the login tool performs the token exchange.
type Mode string

const (
	// ModeProxy sends the exchange to the local secret-injecting proxy as
	// JSON, without a client secret. This is the production design.
	ModeProxy Mode = "proxy"
	// ModeDirect posts form-encoded requests straight to the provider,
	// including the client secret.
	ModeDirect Mode = "direct"
	// ModeInstalled posts straight to the provider without a secret, for
	// providers that accept public installed-app clients.
	ModeInstalled Mode = "installed"
)

const (
	defaultAuthURL     = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultTokenURL    = "https://oauth2.googleapis.com/token"
	defaultUserinfoURL = "https://www.googleapis.com/oauth2/v2/userinfo"
	defaultProxyURL    = "http://localhost:8888"

	defaultCallbackPort           = 8080
	defaultCallbackTimeoutSeconds = 300

	defaultConfigFile = "authrelay.yaml"
)

var defaultScopes = []string{"openid", "email", "profile"}

// Config is the login tool configuration.
type Config struct {
	Provider ProviderConfig `yaml:"provider" json:"provider"`
	Callback CallbackConfig `yaml:"callback" json:"callback"`
	Exchange ExchangeConfig `yaml:"exchange" json:"exchange"`
}

type ProviderConfig struct {
	ClientID     string   `yaml:"clientID" json:"clientID"`
	ClientSecret string   `yaml:"clientSecret" json:"clientSecret"`
	AuthURL      string   `yaml:"authURL" json:"authURL"`
	TokenURL     string   `yaml:"tokenURL" json:"tokenURL"`
	UserinfoURL  string   `yaml:"userinfoURL" json:"userinfoURL"`
	Scopes       []string `yaml:"scopes" json:"scopes"`
}

type CallbackConfig struct {
	Port           int  `yaml:"port" json:"port"`
	TimeoutSeconds *int `yaml:"timeoutSeconds" json:"timeoutSeconds"`
	SkipStateCheck bool `yaml:"skipStateCheck" json:"skipStateCheck"`
}

type ExchangeConfig struct {
	Mode     Mode   `yaml:"mode" json:"mode"`
	ProxyURL string `yaml:"proxyURL" json:"proxyURL"`
}

// Load reads the login tool configuration from AUTHRELAY_CONFIG, falling
// back to authrelay.yaml in the working directory.
func Load() (*Config, error) {
	fileName := defaultConfigFile
	if fn := os.Getenv("AUTHRELAY_CONFIG"); fn != "" {
		fileName = fn
	}
	var cfg Config
	f, err := os.Open(fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file '%s' (set AUTHRELAY_CONFIG to override the path): %w", fileName, err)
	}
	defer f.Close()
	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file '%s': %w", fileName, err)
	}
	if err := cfg.ValidateAndInitialize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) ValidateAndInitialize() error {
	// Apply defaults.
	if c.Provider.AuthURL == "" {
		c.Provider.AuthURL = defaultAuthURL
	}
	if c.Provider.TokenURL == "" {
		c.Provider.TokenURL = defaultTokenURL
	}
	if c.Provider.UserinfoURL == "" {
		c.Provider.UserinfoURL = defaultUserinfoURL
	}
	if c.Provider.Scopes == nil {
		c.Provider.Scopes = defaultScopes
	}
	if c.Callback.Port == 0 {
		c.Callback.Port = defaultCallbackPort
	}
	if c.Callback.TimeoutSeconds == nil {
		secs := defaultCallbackTimeoutSeconds
		c.Callback.TimeoutSeconds = &secs
	}
	if c.Exchange.Mode == "" {
		c.Exchange.Mode = ModeProxy
	}
	if c.Exchange.ProxyURL == "" {
		c.Exchange.ProxyURL = defaultProxyURL
	}

	// Validate.
	if c.Provider.ClientID == "" {
		return fmt.Errorf("provider.clientID must be set")
	}
	switch c.Exchange.Mode {
	case ModeProxy, ModeInstalled:
		if c.Provider.ClientSecret != "" {
			return fmt.Errorf("provider.clientSecret must not be set in %s mode: this process must never hold the secret", c.Exchange.Mode)
		}
	case ModeDirect:
		if c.Provider.ClientSecret == "" {
			return fmt.Errorf("provider.clientSecret must be set in direct mode")
		}
	default:
		return fmt.Errorf("unsupported exchange.mode '%s', must be one of [%s]", c.Exchange.Mode,
			strings.Join([]string{string(ModeProxy), string(ModeDirect), string(ModeInstalled)}, ", "))
	}
	if *c.Callback.TimeoutSeconds < 0 {
		return fmt.Errorf("callback.timeoutSeconds must not be negative")
	}

	return nil
}

// RedirectURL is the local callback URL. It must exactly match the redirect
// URI registered with the provider.
func (c *Config) RedirectURL() string {
	return fmt.Sprintf("http://localhost:%d/callback", c.Callback.Port)
}

// CallbackTimeout returns the configured wait bound for the browser
// redirect. Zero means wait forever.
func (c *Config) CallbackTimeout() time.Duration {
	return time.Duration(*c.Callback.TimeoutSeconds) * time.Second
}
