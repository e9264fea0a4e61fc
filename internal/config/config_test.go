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
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
analysis:
  provider_url: http://localhost:8095
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "linkguard", cfg.Service.Name)
	assert.Equal(t, 8094, cfg.Service.Port)
	assert.Equal(t, 3, cfg.Resolver.SafetyThreshold)
	assert.Equal(t, time.Hour, cfg.Resolver.CacheTTL)
	assert.Equal(t, 4, cfg.Queue.Concurrency)
	assert.Equal(t, 3, cfg.Queue.MaxRetries)
	assert.Equal(t, 5*time.Second, cfg.Queue.RetryBase)
	assert.Equal(t, 100, cfg.Analysis.MinContent)
	assert.Equal(t, 4000, cfg.Analysis.ChunkThreshold)
	assert.Equal(t, 100, cfg.Fetcher.MinChars)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadReadsYAMLValues(t *testing.T) {
	path := writeConfig(t, `
service:
  port: 9000
resolver:
  safety_threshold: 4
  cache_ttl: 30m
queue:
  max_retries: 5
analysis:
  provider_url: http://provider.internal
  chunk_threshold: 2000
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Service.Port)
	assert.Equal(t, 4, cfg.Resolver.SafetyThreshold)
	assert.Equal(t, 30*time.Minute, cfg.Resolver.CacheTTL)
	assert.Equal(t, 5, cfg.Queue.MaxRetries)
	assert.Equal(t, "http://provider.internal", cfg.Analysis.ProviderURL)
	assert.Equal(t, 2000, cfg.Analysis.ChunkThreshold)
}

func TestLoadEnvOverridesWin(t *testing.T) {
	t.Setenv("LINKGUARD_PORT", "9100")
	t.Setenv("SAFETY_THRESHOLD", "5")
	t.Setenv("TEXTAI_URL", "http://env.provider")

	path := writeConfig(t, `
service:
  port: 9000
analysis:
  provider_url: http://yaml.provider
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Service.Port)
	assert.Equal(t, 5, cfg.Resolver.SafetyThreshold)
	assert.Equal(t, "http://env.provider", cfg.Analysis.ProviderURL)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yml"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		path := writeConfig(t, `
analysis:
  provider_url: http://localhost:8095
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		return cfg
	}

	t.Run("valid", func(t *testing.T) {
		require.NoError(t, base().Validate())
	})

	t.Run("missing provider url", func(t *testing.T) {
		cfg := base()
		cfg.Analysis.ProviderURL = ""
		require.Error(t, cfg.Validate())
	})

	t.Run("threshold out of range", func(t *testing.T) {
		cfg := base()
		cfg.Resolver.SafetyThreshold = 6
		require.Error(t, cfg.Validate())
	})

	t.Run("bad port", func(t *testing.T) {
		cfg := base()
		cfg.Service.Port = -1
		require.Error(t, cfg.Validate())
	})
}

func TestDatabaseDSN(t *testing.T) {
	db := DatabaseConfig{
		Host: "db", Port: 5432, User: "app", Password: "secret",
		Database: "linkguard", SSLMode: "disable",
	}
	assert.Equal(t,
		"host=db port=5432 user=app password=secret dbname=linkguard sslmode=disable",
		db.DSN(),
	)
}

func TestGetConfigPath(t *testing.T) {
	assert.Equal(t, "config.yml", GetConfigPath("config.yml"))

	t.Setenv("CONFIG_PATH", "/etc/linkguard/config.yml")
	assert.Equal(t, "/etc/linkguard/config.yml", GetConfigPath("config.yml"))
}
