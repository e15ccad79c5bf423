package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	return &Config{
		Version: VersionV1,
		OIDC: OIDCSettings{
			Authority: "https://login.example.com/tenant-1",
			ClientID:  "kubedeck-client",
		},
		Scopes: ScopeSettings{Management: []string{"mgmt"}},
	}
}

func TestLoadSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := validConfig()
	cfg.Scopes.Status = []string{"status"}
	cfg.Storage.TokenStorage = "keychain"
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg.OIDC.Authority, loaded.OIDC.Authority)
	assert.Equal(t, cfg.OIDC.ClientID, loaded.OIDC.ClientID)
	assert.Equal(t, []string{"mgmt"}, loaded.Scopes.Management)
	assert.Equal(t, []string{"status"}, loaded.Scopes.Status)
	assert.Equal(t, "keychain", loaded.Storage.TokenStorage)
	require.NoError(t, loaded.Validate())
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte("oidc:\n  authority: https://login.example.com\n  client-id: client\nscopes:\n  management: [mgmt]\n")
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, VersionV1, cfg.Version)
	assert.Equal(t, defaultListenAddress, cfg.Server.ListenAddress)
}

func TestLoadErrors(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("\tnot yaml"), 0o600))
	_, err = Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse config")
}

func TestValidate(t *testing.T) {
	require.NoError(t, validConfig().Validate())

	cfg := validConfig()
	cfg.OIDC.Authority = "  "
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.OIDC.ClientID = ""
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Scopes.Management = nil
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Storage.TokenStorage = "vault"
	assert.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Storage.TokenStorage = "file"
	assert.NoError(t, cfg.Validate())
}

func TestStatusScopesFallsBackToManagement(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, []string{"mgmt"}, cfg.StatusScopes())

	cfg.Scopes.Status = []string{"status"}
	assert.Equal(t, []string{"status"}, cfg.StatusScopes())
}

func TestResolveClientSecret(t *testing.T) {
	cfg := validConfig()
	secret, err := cfg.ResolveClientSecret()
	require.NoError(t, err)
	assert.Empty(t, secret)

	cfg.OIDC.ClientSecret = "literal"
	secret, err = cfg.ResolveClientSecret()
	require.NoError(t, err)
	assert.Equal(t, "literal", secret)
}

func TestResolveClientSecretFromEnv(t *testing.T) {
	cfg := validConfig()
	cfg.OIDC.ClientSecretEnv = "KUBEDECK_TEST_SECRET"

	_, err := cfg.ResolveClientSecret()
	require.Error(t, err)

	t.Setenv("KUBEDECK_TEST_SECRET", " from-env \n")
	secret, err := cfg.ResolveClientSecret()
	require.NoError(t, err)
	assert.Equal(t, "from-env", secret)
}

func TestResolveClientSecretFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "secret")
	require.NoError(t, os.WriteFile(path, []byte("from-file\n"), 0o600))

	cfg := validConfig()
	cfg.OIDC.ClientSecretFile = path
	secret, err := cfg.ResolveClientSecret()
	require.NoError(t, err)
	assert.Equal(t, "from-file", secret)

	cfg.OIDC.ClientSecretFile = filepath.Join(t.TempDir(), "missing")
	_, err = cfg.ResolveClientSecret()
	require.Error(t, err)
}

func TestDefaultConfigPathEnvOverride(t *testing.T) {
	t.Setenv("KUBEDECK_CONFIG", "/tmp/custom.yaml")
	assert.Equal(t, "/tmp/custom.yaml", DefaultConfigPath())

	t.Setenv("KUBEDECK_CONFIG", "")
	assert.Contains(t, DefaultConfigPath(), "kubedeck")
}

func TestStoragePathOverrides(t *testing.T) {
	cfg := validConfig()
	assert.Contains(t, cfg.RecordPath(), "authrecord.json")
	assert.Contains(t, cfg.TokenCachePath(), "tokens.json")

	cfg.Storage.RecordPath = "/data/record.json"
	cfg.Storage.TokenCachePath = "/data/tokens.json"
	assert.Equal(t, "/data/record.json", cfg.RecordPath())
	assert.Equal(t, "/data/tokens.json", cfg.TokenCachePath())
}
