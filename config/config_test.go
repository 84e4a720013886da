package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/sitara")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("TIMEZONE", "")
	t.Setenv("JWT_TTL", "")
	t.Setenv("REDIS_DB", "")
	t.Setenv("CORS_ORIGINS", "")
	t.Setenv("EXPORT_RESULT_DAYS", "")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DefaultHTTPAddr, cfg.HTTPAddr)
	assert.Equal(t, DefaultTimezone, cfg.Timezone)
	assert.Equal(t, DefaultJWTTTL, cfg.JWTTTL)
	assert.Equal(t, "postgres://localhost/sitara", cfg.DatabaseURL)
	assert.Equal(t, DefaultExportResultDays, cfg.ExportResultDays)
}

func TestLoad_MissingDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestLoad_YAMLThenEnvPrecedence(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlBody := `
http_addr: "127.0.0.1:9000"
database_url: "postgres://yaml/sitara"
timezone: "UTC"
jwt_ttl: "48h"
redis:
  url: "redis:6379"
  db: 2
cors_origins: ["https://admin.example.com"]
export_result_days: 7
`
	require.NoError(t, os.WriteFile(path, []byte(yamlBody), 0o600))

	t.Setenv("DATABASE_URL", "")
	t.Setenv("TIMEZONE", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("HTTP_ADDR", "0.0.0.0:7000")
	t.Setenv("REDIS_DB", "")
	t.Setenv("CORS_ORIGINS", "")
	t.Setenv("JWT_TTL", "")
	t.Setenv("EXPORT_RESULT_DAYS", "")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:7000", cfg.HTTPAddr, "env overrides yaml")
	assert.Equal(t, "postgres://yaml/sitara", cfg.DatabaseURL)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, 48*time.Hour, cfg.JWTTTL)
	assert.Equal(t, "redis:6379", cfg.Redis.URL)
	assert.Equal(t, 2, cfg.Redis.DB)
	assert.Equal(t, []string{"https://admin.example.com"}, cfg.CORSOrigins)
	assert.Equal(t, 7, cfg.ExportResultDays)
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/sitara")
	t.Setenv("TIMEZONE", "")

	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("CORS origins are split and trimmed", func(t *testing.T) {
		t.Setenv("CORS_ORIGINS", " https://a.example , ,https://b.example")

		cfg := Defaults()
		require.NoError(t, cfg.applyEnvOverrides())
		assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	})

	t.Run("invalid REDIS_DB", func(t *testing.T) {
		t.Setenv("REDIS_DB", "zero")

		cfg := Defaults()
		assert.Error(t, cfg.applyEnvOverrides())
	})

	t.Run("telegram chat id", func(t *testing.T) {
		t.Setenv("REDIS_DB", "")
		t.Setenv("TELEGRAM_BOT_TOKEN", "token")
		t.Setenv("TELEGRAM_CHAT_ID", "-100123")

		cfg := Defaults()
		require.NoError(t, cfg.applyEnvOverrides())
		assert.True(t, cfg.Telegram.Enabled())
		assert.Equal(t, int64(-100123), cfg.Telegram.ChatID)
	})
}

func TestValidate(t *testing.T) {
	t.Run("bad timezone", func(t *testing.T) {
		cfg := Defaults()
		cfg.DatabaseURL = "postgres://x"
		cfg.Timezone = "Mars/Olympus"
		assert.Error(t, cfg.Validate())
	})

	t.Run("serve needs long secrets", func(t *testing.T) {
		cfg := Defaults()
		cfg.SessionSecret = "short"
		cfg.JWTSecret = "0123456789abcdef0123456789abcdef"
		assert.Error(t, cfg.ValidateServe())

		cfg.SessionSecret = "0123456789abcdef0123456789abcdef"
		assert.NoError(t, cfg.ValidateServe())
	})
}

func TestAllowsAnyOrigin(t *testing.T) {
	cfg := Defaults()
	assert.True(t, cfg.AllowsAnyOrigin())

	cfg.CORSOrigins = nil
	assert.True(t, cfg.AllowsAnyOrigin())

	cfg.CORSOrigins = []string{"https://admin.example.com"}
	assert.False(t, cfg.AllowsAnyOrigin())

	cfg.CORSOrigins = []string{"https://admin.example.com", "*"}
	assert.True(t, cfg.AllowsAnyOrigin())
}

func TestFirebaseEnabled(t *testing.T) {
	assert.False(t, FirebaseConfig{}.Enabled())
	assert.True(t, FirebaseConfig{ProjectID: "sitara"}.Enabled())
}
