// Package config loads console configuration from the environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds everything the console needs to talk to the back office API
// and keep its local profile.
type Config struct {
	// BaseURL is the API root, trailing slash optional.
	BaseURL string `env:"TERANGA_API_URL" envDefault:"http://localhost:8000/api"`
	// ProfileDir holds the local SQLite store. Empty means the per-user
	// config directory; "memory" disables persistence entirely.
	ProfileDir string `env:"TERANGA_PROFILE_DIR"`
	// HTTPTimeout bounds a single API round trip.
	HTTPTimeout time.Duration `env:"TERANGA_HTTP_TIMEOUT" envDefault:"30s"`
	// RatePerSec and RateBurst shape the polite client-side limiter.
	RatePerSec float64 `env:"TERANGA_RATE_PER_SEC" envDefault:"20"`
	RateBurst  int     `env:"TERANGA_RATE_BURST" envDefault:"40"`
	// MetricsAddr, when set, exposes /metrics on that address.
	MetricsAddr string `env:"TERANGA_METRICS_ADDR"`
	LogLevel    string `env:"TERANGA_LOG_LEVEL" envDefault:"info"`
}

// Load parses the environment into a Config.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	return cfg, nil
}

// ResolveProfileDir returns the directory for the local store, creating a
// default under the user config dir when none is configured. The special
// value "memory" is passed through for the caller to handle.
func (c Config) ResolveProfileDir() (string, error) {
	if c.ProfileDir != "" {
		return c.ProfileDir, nil
	}
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate user config dir: %w", err)
	}
	return filepath.Join(base, "teranga"), nil
}
