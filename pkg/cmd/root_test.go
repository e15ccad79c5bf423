package cmd

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kubedeck/kubedeck/pkg/config"
)

func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	cfg := &config.Config{
		Version: config.VersionV1,
		OIDC: config.OIDCSettings{
			Authority: "https://login.example.com/tenant-1",
			ClientID:  "kubedeck-client",
		},
		Scopes: config.ScopeSettings{Management: []string{"mgmt"}},
		Storage: config.StorageSettings{
			RecordPath:     filepath.Join(dir, "authrecord.json"),
			TokenCachePath: filepath.Join(dir, "tokens.json"),
		},
	}
	require.NoError(t, config.Save(path, cfg))
	return path
}

func runCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var buf bytes.Buffer
	root := NewRootCommand(Options{OutputWriter: &buf})
	root.SetArgs(args)
	root.SetOut(&buf)
	root.SetErr(&buf)
	err := root.Execute()
	return buf.String(), err
}

func TestVersionCommandText(t *testing.T) {
	out, err := runCommand(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "kubedeck dev")
}

func TestVersionCommandJSON(t *testing.T) {
	out, err := runCommand(t, "version", "-o", "json")
	require.NoError(t, err)

	var info map[string]string
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, "dev", info["version"])
	assert.NotEmpty(t, info["goVersion"])
}

func TestRejectsUnknownOutputFormat(t *testing.T) {
	_, err := runCommand(t, "version", "-o", "xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown output format")
}

func TestAuthStatusNotLoggedIn(t *testing.T) {
	path := writeTestConfig(t)
	// No record and no cached tokens: the status check short-circuits before
	// ever reaching the provider.
	out, err := runCommand(t, "auth", "status", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Not logged in")
}

func TestAuthStatusJSON(t *testing.T) {
	path := writeTestConfig(t)
	out, err := runCommand(t, "auth", "status", "--config", path, "-o", "json")
	require.NoError(t, err)

	var status map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &status))
	assert.Equal(t, false, status["isLoggedIn"])
}

func TestAuthLogoutWithoutSession(t *testing.T) {
	path := writeTestConfig(t)
	out, err := runCommand(t, "auth", "logout", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")
}

func TestMissingConfigFails(t *testing.T) {
	_, err := runCommand(t, "auth", "status", "--config", filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestInvalidConfigFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, config.Save(path, &config.Config{
		Version: config.VersionV1,
		OIDC:    config.OIDCSettings{Authority: "https://login.example.com"},
	}))

	_, err := runCommand(t, "auth", "status", "--config", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "client-id")
}
