package infra

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 15*time.Second, cfg.API.Timeout)
	assert.Equal(t, 5*time.Minute, cfg.API.CacheTTL)
	assert.Equal(t, 50, cfg.API.RateLimitPerMinute)
	assert.Equal(t, 30*time.Second, cfg.Feed.RefreshInterval)
	assert.Equal(t, 300*time.Millisecond, cfg.Search.Debounce)
	assert.Equal(t, 50, cfg.Favorites.Max)
}

func TestLoadConfig_OverlaysDefaults(t *testing.T) {
	path := writeFile(t, "config.yaml", `
api:
  timeout: 5s
  rate_limit_per_minute: 10
  circuit_breaker:
    failure_threshold: 7
    cooldown: 1m
feed:
  limit: 25
  currency: eur
search:
  debounce: 150ms
sync:
  peers: ["ws://127.0.0.1:7788/sync"]
logging:
  level: debug
`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.API.Timeout)
	assert.Equal(t, 10, cfg.API.RateLimitPerMinute)
	assert.Equal(t, 7, cfg.API.CircuitBreaker.FailureThreshold)
	assert.Equal(t, time.Minute, cfg.API.CircuitBreaker.Cooldown)
	assert.Equal(t, 25, cfg.Feed.Limit)
	assert.Equal(t, "eur", cfg.Feed.Currency)
	assert.Equal(t, 150*time.Millisecond, cfg.Search.Debounce)
	assert.Equal(t, []string{"ws://127.0.0.1:7788/sync"}, cfg.Sync.Peers)

	// Untouched keys keep their defaults
	assert.Equal(t, "https://api.coingecko.com/api/v3", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Minute, cfg.API.CacheTTL)
	assert.Equal(t, 2, cfg.Search.MinLength)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	t.Setenv("DASHBOARD_API_KEY", "env-key")
	t.Setenv("DASHBOARD_BASE_URL", "http://localhost:9999/api/")

	cfg, err := LoadConfig(writeFile(t, "config.yaml", "app:\n  name: test\n"))
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.API.APIKey)
	assert.Equal(t, "http://localhost:9999/api", cfg.API.BaseURL)
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := map[string]string{
		"Bad URL":     "api:\n  base_url: ftp://x\n",
		"Zero Limit":  "feed:\n  limit: 0\n",
		"Bad Peer":    "sync:\n  peers: [\"http://x\"]\n",
		"Bad Theme":   "ui:\n  theme: neon\n",
		"Bad Retries": "api:\n  max_retries: 0\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeFile(t, "config.yaml", body))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigOrDefault_MissingFile(t *testing.T) {
	cfg, err := LoadConfigOrDefault(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Feed.Limit)
}

func TestSecretConfig_Apply(t *testing.T) {
	path := writeFile(t, "secrets.yaml", "api:\n  coingecko:\n    api_key: file-key\n")
	secrets, err := LoadSecretConfig(path)
	require.NoError(t, err)

	cfg := DefaultConfig()
	cfg.ApplySecrets(secrets)
	assert.Equal(t, "file-key", cfg.API.APIKey)

	_, err = LoadSecretConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestNewLogger_Level(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, "warn", "json")
	logger.Info("hidden")
	logger.Warn("shown", slog.String("k", "v"))

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}
