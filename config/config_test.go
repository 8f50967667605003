package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/activity-engine/config"
)

func TestLoad_Defaults(t *testing.T) {
	for _, k := range []string{"PORT", "DB_PATH", "LOG_LEVEL", "LOG_FORMAT", "AUTH_SECRET", "CORS_ORIGINS", "RECORD_CACHE_TTL", "HOLIDAY_WINDOW"} {
		t.Setenv(k, "")
	}

	cfg, err := config.Load()
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "activities.db", cfg.DBPath)
	assert.True(t, cfg.HolidayWindow)
	assert.False(t, cfg.AuthEnabled())
	assert.Equal(t, time.Duration(0), cfg.RecordCacheTTL)
	assert.Len(t, cfg.CORSOrigins, 2)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "3000")
	t.Setenv("CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("RECORD_CACHE_TTL", "90s")
	t.Setenv("HOLIDAY_WINDOW", "false")
	t.Setenv("AUTH_SECRET", "s3cret")

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 3000, cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSOrigins)
	assert.Equal(t, 90*time.Second, cfg.RecordCacheTTL)
	assert.False(t, cfg.HolidayWindow)
	assert.True(t, cfg.AuthEnabled())
}

func TestLoad_ReportsEveryMalformedValue(t *testing.T) {
	t.Setenv("PORT", "eighty")
	t.Setenv("RECORD_CACHE_TTL", "soon")
	t.Setenv("HOLIDAY_WINDOW", "maybe")

	_, err := config.Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PORT")
	assert.Contains(t, err.Error(), "RECORD_CACHE_TTL")
	assert.Contains(t, err.Error(), "HOLIDAY_WINDOW")
}

func TestValidate(t *testing.T) {
	cfg := &config.Config{Port: 0, DBPath: "", LogLevel: "loud", LogFormat: "xml"}

	err := cfg.Validate()
	require.Error(t, err)
	for _, want := range []string{"port", "database path", "log level", "log format"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestLoadEnvFile(t *testing.T) {
	assert.NoError(t, config.LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("ACTIVITY_ENGINE_TEST_VAR=from-file\n"), 0o600))
	t.Setenv("ACTIVITY_ENGINE_TEST_VAR", "")
	require.NoError(t, os.Unsetenv("ACTIVITY_ENGINE_TEST_VAR"))

	require.NoError(t, config.LoadEnvFile(path))
	assert.Equal(t, "from-file", os.Getenv("ACTIVITY_ENGINE_TEST_VAR"))
}
