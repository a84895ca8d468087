package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FirstRunWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	again, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, again)
}

func TestLoad_NormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
page_size: 0
refresh: ""
log_level: LOUD
backend:
  url: https://events.example.com/
  api_prefix: api/v2/
basic_auth:
  username: ""
  password: ""
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.PageSize)
	assert.Equal(t, "", cfg.RefreshCron)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "https://events.example.com/api/v2", cfg.BackendBaseURL())
	assert.Nil(t, cfg.BasicAuth)
	assert.Equal(t, defaultListen, cfg.Listen)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listen: [unclosed"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("API_URL", "https://api.example.com")
	t.Setenv("API_STR", "/api/v1")
	t.Setenv("LISTEN", ":9000")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("PAGE_SIZE", "5")

	cfg := DefaultConfig()
	require.NoError(t, ApplyEnv(cfg))

	assert.Equal(t, "https://api.example.com/api/v1", cfg.BackendBaseURL())
	assert.Equal(t, ":9000", cfg.Listen)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 5, cfg.PageSize)
}

func TestApplyEnv_DevelopmentForcesLocalBackend(t *testing.T) {
	t.Setenv("APP_ENV", "development")
	t.Setenv("API_URL", "https://api.example.com")

	cfg := DefaultConfig()
	require.NoError(t, ApplyEnv(cfg))
	assert.Equal(t, "http://127.0.0.1:8000/api/v1", cfg.BackendBaseURL())
}

func TestApplyEnv_BadPageSize(t *testing.T) {
	t.Setenv("PAGE_SIZE", "many")
	assert.Error(t, ApplyEnv(DefaultConfig()))
}

func TestLoadDotEnv(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, LoadDotEnv(filepath.Join(dir, "missing.env")))

	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte("EVSCHED_TEST_DOTENV=from-file\n"), 0o600))

	t.Setenv("EVSCHED_TEST_DOTENV", "")
	os.Unsetenv("EVSCHED_TEST_DOTENV")
	require.NoError(t, LoadDotEnv(path))
	assert.Equal(t, "from-file", os.Getenv("EVSCHED_TEST_DOTENV"))
}

func TestLocation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timezone = "Europe/Paris"
	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/Paris", loc.String())

	cfg.Timezone = "Nowhere/Special"
	_, err = cfg.Location()
	assert.Error(t, err)
}
