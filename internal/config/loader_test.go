package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "server:\n  port: 9100\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 30, cfg.Auth.AccessTTLMinutes)
	assert.Equal(t, 25, cfg.Autopilot.ContextSize)
	assert.Equal(t, "chatd.notifications", cfg.Notify.Exchange)
}

func TestLoadExpandsEnvVars(t *testing.T) {
	t.Setenv("TEST_CHATD_SECRET", "from-env")
	path := writeConfig(t, "auth:\n  jwtSecret: \"${TEST_CHATD_SECRET}\"\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
}

func TestLoadKeepsUnsetEnvPlaceholder(t *testing.T) {
	path := writeConfig(t, "auth:\n  jwtSecret: \"${DEFINITELY_NOT_SET_ANYWHERE}\"\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "${DEFINITELY_NOT_SET_ANYWHERE}", cfg.Auth.JWTSecret)
}

func TestLoadResolvesRelativePaths(t *testing.T) {
	path := writeConfig(t, "database:\n  path: my.db\nserver:\n  dataDir: uploads\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "my.db"), cfg.Database.Path)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "uploads"), cfg.Server.DataDir)
}

func TestCreateFromExampleGeneratesSecret(t *testing.T) {
	target := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, CreateFromExample(target))

	cfg, err := Load(target)
	require.NoError(t, err)
	assert.NotEmpty(t, cfg.Auth.JWTSecret)
	assert.NotContains(t, cfg.Auth.JWTSecret, "${")
}

func TestAuthTTLHelpers(t *testing.T) {
	a := AuthConfig{AccessTTLMinutes: 30, RefreshTTLHours: 168}
	assert.Equal(t, "30m0s", a.AccessTTL().String())
	assert.Equal(t, "168h0m0s", a.RefreshTTL().String())
}
