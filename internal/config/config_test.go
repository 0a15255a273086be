package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigYAML(t *testing.T) {
	path := writeConfig(t, `
env: dev
store: memory
server:
  port: 9090
database:
  url: postgres://u:p@db/app
  auto_migrate: true
jwt:
  secret: yaml-secret
telegram:
  token: abc
notifications:
  retries: 5
`)
	cfg, err := LoadConfig(path, false)
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.Env)
	assert.Equal(t, "memory", cfg.Store)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "postgres://u:p@db/app", cfg.Database.DSN)
	assert.True(t, cfg.Database.AutoMigrate)
	assert.Equal(t, "yaml-secret", cfg.JWT.Secret)
	assert.Equal(t, "abc", cfg.Telegram.Token)
	assert.Equal(t, uint(5), cfg.Notifications.Retries)
	assert.Equal(t, 25.0, cfg.Telegram.RatePerSecond)
	assert.Equal(t, 256, cfg.Notifications.QueueSize)
}

func TestEnvOverridesYAML(t *testing.T) {
	path := writeConfig(t, "jwt:\n  secret: yaml-secret\nserver:\n  port: 9090\n")
	t.Setenv("CF_JWT_SECRET", "env-secret")
	t.Setenv("CF_SERVER_PORT", "7070")
	t.Setenv("CF_DATABASE_URL", "postgres://env")
	t.Setenv("CF_TELEGRAM_RATE_PER_SECOND", "5")

	cfg, err := LoadConfig(path, false)
	require.NoError(t, err)
	assert.Equal(t, "env-secret", cfg.JWT.Secret)
	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, "postgres://env", cfg.Database.DSN)
	assert.Equal(t, 5.0, cfg.Telegram.RatePerSecond)
}

func TestMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.yaml")

	_, err := LoadConfig(missing, false)
	assert.Error(t, err)

	cfg, err := LoadConfig(missing, true)
	require.NoError(t, err)
	assert.Equal(t, "local", cfg.Env)
	assert.Equal(t, "postgres", cfg.Store)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 50, cfg.Log.MaxSizeMB)
	assert.Empty(t, cfg.Log.File)
}

func TestBadYAML(t *testing.T) {
	path := writeConfig(t, "server: [1, 2\n")
	_, err := LoadConfig(path, false)
	assert.Error(t, err)
}
