// Package config loads pipeline configuration from a YAML file with
// environment variable overlay.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// Defaults applied when the config file omits a field.
const (
	DefaultBaseURL        = "https://www.sec.gov"
	DefaultRatePerSec     = 8.0
	DefaultBurst          = 8
	DefaultMaxAttempts    = 20
	DefaultMaxBackoff     = 128 * time.Second
	DefaultRequestTimeout = 60 * time.Second
	DefaultWorkers        = 4
	DefaultCacheDir       = "edgar_cache"
)

// Config holds every tunable of the pipeline. UserAgent has no default:
// SEC requires every request to declare its operator, so the caller must
// supply one before any network I/O.
type Config struct {
	UserAgent string `yaml:"user_agent"`
	BaseURL   string `yaml:"base_url"`
	CacheDir  string `yaml:"cache_dir"`

	RatePerSec  float64 `yaml:"rate_per_sec"`
	Burst       int     `yaml:"burst"`
	MaxAttempts int     `yaml:"max_attempts"`

	MaxBackoffSec int  `yaml:"max_backoff_sec"`
	TimeoutSec    int  `yaml:"timeout_sec"`
	Workers       int  `yaml:"workers"`
	SkipConfirm   bool `yaml:"skip_confirm"`

	// Optional proxy. When ProxyURL is set and carries a user without a
	// password (or vice versa), validation fails fast.
	ProxyURL string `yaml:"proxy_url"`

	// Postgres results store, enabled when DATABASE_URL is set.
	DatabaseURL string `yaml:"-"`
}

// Load reads an optional YAML file, overlays environment variables and
// validates. Path may be "" to use env/defaults only.
func Load(path string) (*Config, error) {
	// .env is optional; real env vars win.
	_ = godotenv.Load()

	cfg := &Config{
		BaseURL:       DefaultBaseURL,
		CacheDir:      DefaultCacheDir,
		RatePerSec:    DefaultRatePerSec,
		Burst:         DefaultBurst,
		MaxAttempts:   DefaultMaxAttempts,
		MaxBackoffSec: int(DefaultMaxBackoff / time.Second),
		TimeoutSec:    int(DefaultRequestTimeout / time.Second),
		Workers:       DefaultWorkers,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if ua := os.Getenv("EDGAR_USER_AGENT"); ua != "" {
		cfg.UserAgent = ua
	}
	if dir := os.Getenv("EDGAR_CACHE_DIR"); dir != "" {
		cfg.CacheDir = dir
	}
	if rps := os.Getenv("EDGAR_RATE_PER_SEC"); rps != "" {
		v, err := strconv.ParseFloat(rps, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid EDGAR_RATE_PER_SEC %q: %w", rps, err)
		}
		cfg.RatePerSec = v
	}
	cfg.DatabaseURL = os.Getenv("DATABASE_URL")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate enforces the fail-fast configuration checks. It never touches
// the network.
func (c *Config) Validate() error {
	if c.UserAgent == "" {
		return fmt.Errorf("user_agent is required: SEC rejects anonymous clients (set EDGAR_USER_AGENT or user_agent in config)")
	}
	if c.RatePerSec <= 0 {
		return fmt.Errorf("rate_per_sec must be positive, got %v", c.RatePerSec)
	}
	if c.MaxAttempts < 1 {
		return fmt.Errorf("max_attempts must be at least 1, got %d", c.MaxAttempts)
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if c.ProxyURL != "" {
		u, err := url.Parse(c.ProxyURL)
		if err != nil {
			return fmt.Errorf("invalid proxy_url: %w", err)
		}
		if u.User != nil {
			_, hasPass := u.User.Password()
			if u.User.Username() == "" || !hasPass {
				return fmt.Errorf("proxy_url requires both username and password when credentials are given")
			}
		}
	}
	return nil
}

// MaxBackoff returns the backoff delay cap as a duration.
func (c *Config) MaxBackoff() time.Duration {
	return time.Duration(c.MaxBackoffSec) * time.Second
}

// Timeout returns the per-request timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSec) * time.Second
}
