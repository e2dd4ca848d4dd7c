package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

const (
	defaultProxyAddr       = ":8888"
	defaultCredentialsFile = "secrets/client_secret.json"

	defaultProxyConfigFile = "authrelay-proxy.yaml"
)

// ProxyConfig is the secret-injecting proxy configuration.
type ProxyConfig struct {
	Server      ProxyServerConfig `yaml:"server" json:"server"`
	Credentials CredentialsConfig `yaml:"credentials" json:"credentials"`
}

type ProxyServerConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

type CredentialsConfig struct {
	File string `yaml:"file" json:"file"`
}

// LoadProxy reads the proxy configuration from AUTHRELAY_PROXY_CONFIG,
// falling back to authrelay-proxy.yaml. The proxy runs fine on defaults, so
// a missing file at the default path is not an error; a missing file at an
// explicitly configured path is.
func LoadProxy() (*ProxyConfig, error) {
	fileName := defaultProxyConfigFile
	explicit := false
	if fn := os.Getenv("AUTHRELAY_PROXY_CONFIG"); fn != "" {
		fileName = fn
		explicit = true
	}

	var cfg ProxyConfig
	f, err := os.Open(fileName)
	switch {
	case errors.Is(err, fs.ErrNotExist) && !explicit:
		// Defaults only.
	case err != nil:
		return nil, fmt.Errorf("failed to open proxy config file '%s': %w", fileName, err)
	default:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, fmt.Errorf("failed to parse proxy config file '%s': %w", fileName, err)
		}
	}

	cfg.validateAndInitialize()
	return &cfg, nil
}

func (c *ProxyConfig) validateAndInitialize() {
	if c.Server.Addr == "" {
		c.Server.Addr = defaultProxyAddr
	}
	if c.Credentials.File == "" {
		c.Credentials.File = defaultCredentialsFile
	}
}
