package config

import (
	"os"
	"path/filepath"
)

const (
	defaultConfigDirName = "kubedeck"
	defaultConfigFile    = "config.yaml"
	defaultRecordFile    = "authrecord.json"
	defaultTokenFile     = "tokens.json"
)

func configDir() string {
	base, err := os.UserConfigDir()
	if err == nil {
		return filepath.Join(base, defaultConfigDirName)
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, "."+defaultConfigDirName)
}

func DefaultConfigPath() string {
	if env := os.Getenv("KUBEDECK_CONFIG"); env != "" {
		return env
	}
	return filepath.Join(configDir(), defaultConfigFile)
}

// DefaultRecordPath is where the broker persists the authentication record.
func DefaultRecordPath() string {
	return filepath.Join(configDir(), defaultRecordFile)
}

// DefaultTokenCachePath is where the identity layer keeps session tokens
// when file storage is selected.
func DefaultTokenCachePath() string {
	return filepath.Join(configDir(), defaultTokenFile)
}

// RecordPath returns the configured record path or the default.
func (c *Config) RecordPath() string {
	if c.Storage.RecordPath != "" {
		return c.Storage.RecordPath
	}
	return DefaultRecordPath()
}

// TokenCachePath returns the configured token cache path or the default.
func (c *Config) TokenCachePath() string {
	if c.Storage.TokenCachePath != "" {
		return c.Storage.TokenCachePath
	}
	return DefaultTokenCachePath()
}
