package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "{}"))
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 20, cfg.Database.MaxOpenConns)
	assert.Equal(t, 5, cfg.Database.MaxIdleConns)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 6*time.Hour, cfg.Scan.Interval())
	assert.Equal(t, 21, cfg.Scan.LookbackDays)
	assert.Equal(t, 2*time.Second, cfg.Scan.GroupDelay())
	assert.Equal(t, 24*time.Hour, cfg.Alerts.Cooldown())
}

func TestLoad_ExplicitValues(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
server:
  port: 9090
database:
  url: postgres://user:pass@db:5432/fatigue
  max_open_conns: 50
scan:
  enabled: true
  interval_minutes: 60
  lookback_days: 14
alerts:
  cooldown_hours: 6
`))
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres://user:pass@db:5432/fatigue", cfg.Database.URL)
	assert.Equal(t, 50, cfg.Database.MaxOpenConns)
	assert.True(t, cfg.Scan.Enabled)
	assert.Equal(t, time.Hour, cfg.Scan.Interval())
	assert.Equal(t, 14, cfg.Scan.LookbackDays)
	assert.Equal(t, 6*time.Hour, cfg.Alerts.Cooldown())
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestLoadFromEnv_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://env-host/fatigue")
	t.Setenv("REDIS_ADDR", "redis-env:6379")
	t.Setenv("SCAN_INTERVAL_MINUTES", "30")
	t.Setenv("SCAN_LOOKBACK_DAYS", "7")
	t.Setenv("SERVER_PORT", "9999")

	cfg, err := LoadFromEnv(writeConfig(t, "{}"))
	require.NoError(t, err)

	assert.Equal(t, "postgres://env-host/fatigue", cfg.Database.URL)
	assert.Equal(t, "redis-env:6379", cfg.Redis.Addr)
	assert.True(t, cfg.Redis.Enabled, "setting REDIS_ADDR enables redis")
	assert.Equal(t, 30, cfg.Scan.IntervalMinutes)
	assert.Equal(t, 7, cfg.Scan.LookbackDays)
	assert.Equal(t, 9999, cfg.Server.Port)
}

func TestLoadFromEnv_IgnoresInvalidNumbers(t *testing.T) {
	t.Setenv("SCAN_INTERVAL_MINUTES", "not-a-number")
	t.Setenv("SERVER_PORT", "-1")

	cfg, err := LoadFromEnv(writeConfig(t, "{}"))
	require.NoError(t, err)

	assert.Equal(t, 360, cfg.Scan.IntervalMinutes)
	assert.Equal(t, 8080, cfg.Server.Port)
}

func TestServerConfig_GetHost(t *testing.T) {
	cfg := ServerConfig{Host: "localhost"}

	t.Run("plain host", func(t *testing.T) {
		assert.Equal(t, "localhost", cfg.GetHost())
	})

	t.Run("container env binds all interfaces", func(t *testing.T) {
		t.Setenv("ECS_CONTAINER_METADATA_URI", "http://169.254.170.2/v3")
		assert.Equal(t, "0.0.0.0", cfg.GetHost())
	})

	t.Run("explicit SERVER_HOST wins over config", func(t *testing.T) {
		t.Setenv("SERVER_HOST", "10.0.0.5")
		assert.Equal(t, "10.0.0.5", cfg.GetHost())
	})
}
