// Package config loads and validates the kubedeck broker configuration from
// the per-user YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v2"
)

const (
	VersionV1 = "v1"

	defaultListenAddress = "127.0.0.1:8799"
)

type Config struct {
	Version string          `yaml:"version"`
	OIDC    OIDCSettings    `yaml:"oidc"`
	Scopes  ScopeSettings   `yaml:"scopes,omitempty"`
	Storage StorageSettings `yaml:"storage,omitempty"`
	Server  ServerSettings  `yaml:"server,omitempty"`
	Debug   bool            `yaml:"debug,omitempty"`
}

type OIDCSettings struct {
	Authority        string            `yaml:"authority"`
	ClientID         string            `yaml:"client-id"`
	ClientSecret     string            `yaml:"client-secret,omitempty"`
	ClientSecretEnv  string            `yaml:"client-secret-env,omitempty"`
	ClientSecretFile string            `yaml:"client-secret-file,omitempty"`
	GrantType        string            `yaml:"grant-type,omitempty"`
	CAFile           string            `yaml:"ca-file,omitempty"`
	InsecureSkipTLS  bool              `yaml:"insecure-skip-tls-verify,omitempty"`
	ExtraAuthParams  map[string]string `yaml:"extra-auth-params,omitempty"`
}

type ScopeSettings struct {
	// Management is the scope set requested for resource-management tokens
	// and interactive logins.
	Management []string `yaml:"management"`
	// Status is the scope set used by login status checks; defaults to
	// Management.
	Status []string `yaml:"status,omitempty"`
}

type StorageSettings struct {
	// TokenStorage selects where the identity layer keeps session tokens:
	// "file" or "keychain".
	TokenStorage   string `yaml:"token-storage,omitempty"`
	RecordPath     string `yaml:"record-path,omitempty"`
	TokenCachePath string `yaml:"token-cache-path,omitempty"`
}

type ServerSettings struct {
	ListenAddress  string   `yaml:"listen-address,omitempty"`
	AllowedOrigins []string `yaml:"allowed-origins,omitempty"`
}

func DefaultConfig() Config {
	return Config{
		Version: VersionV1,
		Server:  ServerSettings{ListenAddress: defaultListenAddress},
	}
}

func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is required")
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(content, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Version == "" {
		cfg.Version = VersionV1
	}
	if cfg.Server.ListenAddress == "" {
		cfg.Server.ListenAddress = defaultListenAddress
	}
	return &cfg, nil
}

func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	if cfg.Version == "" {
		cfg.Version = VersionV1
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}
	content, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	return os.WriteFile(path, content, 0o600)
}

func (c *Config) Validate() error {
	if c.Version == "" {
		return errors.New("config version missing")
	}
	if strings.TrimSpace(c.OIDC.Authority) == "" {
		return errors.New("oidc.authority is required")
	}
	if strings.TrimSpace(c.OIDC.ClientID) == "" {
		return errors.New("oidc.client-id is required")
	}
	if len(c.Scopes.Management) == 0 {
		return errors.New("scopes.management must list at least one scope")
	}
	switch c.Storage.TokenStorage {
	case "", "file", "keychain":
	default:
		return fmt.Errorf("storage.token-storage must be file or keychain, got %q", c.Storage.TokenStorage)
	}
	return nil
}

// StatusScopes returns the scope set for login status checks.
func (c *Config) StatusScopes() []string {
	if len(c.Scopes.Status) > 0 {
		return c.Scopes.Status
	}
	return c.Scopes.Management
}

// ResolveClientSecret returns the confidential client secret from the first
// configured source: literal value, environment variable, or file.
func (c *Config) ResolveClientSecret() (string, error) {
	if c.OIDC.ClientSecret != "" {
		return c.OIDC.ClientSecret, nil
	}
	if c.OIDC.ClientSecretEnv != "" {
		value := strings.TrimSpace(os.Getenv(c.OIDC.ClientSecretEnv))
		if value == "" {
			return "", fmt.Errorf("client secret env var not set: %s", c.OIDC.ClientSecretEnv)
		}
		return value, nil
	}
	if c.OIDC.ClientSecretFile != "" {
		content, err := os.ReadFile(c.OIDC.ClientSecretFile)
		if err != nil {
			return "", fmt.Errorf("failed to read client secret file: %w", err)
		}
		return strings.TrimSpace(string(content)), nil
	}
	return "", nil
}
