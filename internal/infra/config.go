package infra

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const DefaultUserAgent = "CryptoDashboard/1.0"

// Config holds every setting of the dashboard.
// LoadConfig overlays the yaml file on DefaultConfig, then applies environment overrides.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	API struct {
		BaseURL            string               `yaml:"base_url"`
		APIKey             string               `yaml:"api_key"`
		UserAgent          string               `yaml:"user_agent"`
		Timeout            time.Duration        `yaml:"timeout"`
		CacheTTL           time.Duration        `yaml:"cache_ttl"`
		MaxRetries         int                  `yaml:"max_retries"`
		RetryBase          time.Duration        `yaml:"retry_base"`
		RetryCap           time.Duration        `yaml:"retry_cap"`
		RateLimitPerMinute int                  `yaml:"rate_limit_per_minute"`
		CircuitBreaker     CircuitBreakerConfig `yaml:"circuit_breaker"`
	} `yaml:"api"`

	Feed struct {
		Limit           int           `yaml:"limit"`
		Currency        string        `yaml:"currency"`
		SortBy          string        `yaml:"sort_by"`
		AutoRefresh     bool          `yaml:"auto_refresh"`
		RefreshInterval time.Duration `yaml:"refresh_interval"`
		Trending        bool          `yaml:"trending"`
	} `yaml:"feed"`

	Search struct {
		Debounce       time.Duration `yaml:"debounce"`
		MinLength      int           `yaml:"min_length"`
		MaxLength      int           `yaml:"max_length"`
		MaxSuggestions int           `yaml:"max_suggestions"`
		HistorySize    int           `yaml:"history_size"`
		History        bool          `yaml:"history"`
	} `yaml:"search"`

	Favorites struct {
		Max        int `yaml:"max"`
		BackupKeep int `yaml:"backup_keep"`
	} `yaml:"favorites"`

	Storage struct {
		DBPath string `yaml:"db_path"` // Empty: <workspace>/data/dashboard.db
	} `yaml:"storage"`

	Sync struct {
		Listen string   `yaml:"listen"` // e.g. "127.0.0.1:7788", empty disables the hub
		Peers  []string `yaml:"peers"`  // ws:// URLs of other instances
	} `yaml:"sync"`

	UI struct {
		Theme string `yaml:"theme"`
		Color bool   `yaml:"color"`
	} `yaml:"ui"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"` // text | json
	} `yaml:"logging"`
}

// DefaultConfig returns the built-in settings used when no file is present.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.App.Name = "crypto-dashboard"
	cfg.App.Version = "1.0.0"

	cfg.API.BaseURL = "https://api.coingecko.com/api/v3"
	cfg.API.UserAgent = DefaultUserAgent
	cfg.API.Timeout = 15 * time.Second
	cfg.API.CacheTTL = 5 * time.Minute
	cfg.API.MaxRetries = DefaultMaxAttempts
	cfg.API.RetryBase = DefaultRequestBackoff.Base
	cfg.API.RetryCap = DefaultRequestBackoff.Cap
	cfg.API.RateLimitPerMinute = DefaultRateLimitQuota
	cfg.API.CircuitBreaker = DefaultCircuitBreakerConfig("coingecko")

	cfg.Feed.Limit = 10
	cfg.Feed.Currency = "usd"
	cfg.Feed.SortBy = "market_cap_desc"
	cfg.Feed.AutoRefresh = true
	cfg.Feed.RefreshInterval = 30 * time.Second

	cfg.Search.Debounce = 300 * time.Millisecond
	cfg.Search.MinLength = 2
	cfg.Search.MaxLength = 50
	cfg.Search.MaxSuggestions = 10
	cfg.Search.HistorySize = 20
	cfg.Search.History = true

	cfg.Favorites.Max = 50
	cfg.Favorites.BackupKeep = 5

	cfg.UI.Theme = "auto"
	cfg.UI.Color = true

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "text"
	return cfg
}

// LoadConfig reads and parses the yaml file at path.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// LoadConfigOrDefault is LoadConfig that falls back to DefaultConfig when the file does not exist.
func LoadConfigOrDefault(path string) (*Config, error) {
	cfg, err := LoadConfig(path)
	if errors.Is(err, os.ErrNotExist) {
		cfg = DefaultConfig()
		overrideWithEnv(cfg)
		return cfg, cfg.Validate()
	}
	return cfg, err
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	u, err := url.Parse(c.API.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("invalid API base URL: %q", c.API.BaseURL)
	}
	if c.API.Timeout <= 0 {
		return fmt.Errorf("api timeout must be positive")
	}
	if c.API.MaxRetries < 1 {
		return fmt.Errorf("api max_retries must be at least 1")
	}
	if c.API.RateLimitPerMinute <= 0 {
		return fmt.Errorf("api rate_limit_per_minute must be positive")
	}
	if c.API.RetryBase <= 0 || c.API.RetryCap < c.API.RetryBase {
		return fmt.Errorf("invalid retry backoff %s..%s", c.API.RetryBase, c.API.RetryCap)
	}

	if c.Feed.Limit < 1 || c.Feed.Limit > 250 {
		return fmt.Errorf("feed limit must be within 1..250, got %d", c.Feed.Limit)
	}
	if c.Feed.Currency == "" {
		return fmt.Errorf("feed currency is required")
	}
	if c.Feed.AutoRefresh && c.Feed.RefreshInterval <= 0 {
		return fmt.Errorf("refresh interval must be positive")
	}

	if c.Search.MinLength < 1 || c.Search.MaxLength < c.Search.MinLength {
		return fmt.Errorf("invalid search length bounds %d..%d", c.Search.MinLength, c.Search.MaxLength)
	}
	if c.Search.Debounce < 0 {
		return fmt.Errorf("search debounce must not be negative")
	}
	if c.Favorites.Max < 1 {
		return fmt.Errorf("favorites max must be positive")
	}

	for _, p := range c.Sync.Peers {
		if !strings.HasPrefix(p, "ws://") && !strings.HasPrefix(p, "wss://") {
			return fmt.Errorf("invalid sync peer URL: %s", p)
		}
	}

	switch c.UI.Theme {
	case "dark", "light", "auto":
	default:
		return fmt.Errorf("invalid theme %q", c.UI.Theme)
	}
	return nil
}

// overrideWithEnv applies DASHBOARD_* variables on top of file values.
// Environment wins over the file so that keys never have to be committed.
func overrideWithEnv(cfg *Config) {
	if cfg.API.APIKey != "" {
		// Using fmt instead of slog: the logger is not configured yet.
		fmt.Fprintln(os.Stderr, "⚠️  SECURITY WARNING: API key found in config file.")
		fmt.Fprintln(os.Stderr, "   Recommendation: use DASHBOARD_API_KEY or a secrets file instead.")
	}

	if key := os.Getenv("DASHBOARD_API_KEY"); key != "" {
		cfg.API.APIKey = key
	}
	if base := os.Getenv("DASHBOARD_BASE_URL"); base != "" {
		cfg.API.BaseURL = strings.TrimRight(base, "/")
	}
	if db := os.Getenv("DASHBOARD_DB_PATH"); db != "" {
		cfg.Storage.DBPath = db
	}
	if lvl := os.Getenv("DASHBOARD_LOG_LEVEL"); lvl != "" {
		cfg.Logging.Level = lvl
	}
}
