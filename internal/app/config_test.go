package app_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"guildvault/internal/app"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadSettings(t *testing.T) {
	path := writeConfig(t, `
storage:
  path: /var/lib/guildvault/state.enc
  export_path: /var/lib/guildvault/state.sqlite
  secret_env: MY_SECRET
web:
  host: 0.0.0.0
  port: 9000
security:
  rate_limit_interval: 2.5
  rate_limit_burst: 3
`)

	settings, err := app.LoadSettings(path)
	require.NoError(t, err)
	require.Equal(t, "/var/lib/guildvault/state.enc", settings.Storage.Path)
	require.Equal(t, "MY_SECRET", settings.Storage.SecretEnv)
	require.Equal(t, "0.0.0.0:9000", settings.Web.Addr())
	require.Equal(t, 2500*time.Millisecond, settings.Security.Interval())
	require.Equal(t, 3, settings.Security.RateLimitBurst)

	// Untouched sections keep their defaults.
	require.Equal(t, 10, settings.XP.LeaderboardSize)
	require.Equal(t, time.Minute, settings.Analytics.FlushInterval())
	require.Equal(t, "info", settings.Logging.Level)
}

func TestLoadSettings_MissingFile(t *testing.T) {
	_, err := app.LoadSettings(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadSettings_RequiresStoragePath(t *testing.T) {
	path := writeConfig(t, `
storage:
  path: ""
`)
	_, err := app.LoadSettings(path)
	require.ErrorContains(t, err, "storage.path")
}

func TestStorageConfig_Secret(t *testing.T) {
	t.Setenv("GV_TEST_SECRET", "hunter2hunter2")
	cfg := app.StorageConfig{SecretEnv: "GV_TEST_SECRET"}

	secret, err := cfg.Secret()
	require.NoError(t, err)
	require.Equal(t, "hunter2hunter2", secret)

	cfg.SecretEnv = "GV_TEST_SECRET_ABSENT"
	_, err = cfg.Secret()
	require.Error(t, err)
}
