package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	// t.Setenv registers the restore; the variables must be absent, not
	// empty, for the defaults to apply.
	for _, key := range []string{"TERANGA_API_URL", "TERANGA_HTTP_TIMEOUT", "TERANGA_RATE_BURST"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BaseURL != "http://localhost:8000/api" {
		t.Fatalf("unexpected default base url: %s", cfg.BaseURL)
	}
	if cfg.HTTPTimeout != 30*time.Second {
		t.Fatalf("unexpected default timeout: %s", cfg.HTTPTimeout)
	}
	if cfg.RateBurst != 40 {
		t.Fatalf("unexpected default burst: %d", cfg.RateBurst)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("TERANGA_API_URL", "https://api.teranga.app/api")
	t.Setenv("TERANGA_HTTP_TIMEOUT", "5s")
	t.Setenv("TERANGA_PROFILE_DIR", "/tmp/teranga-test")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BaseURL != "https://api.teranga.app/api" {
		t.Fatalf("base url not read from env: %s", cfg.BaseURL)
	}
	if cfg.HTTPTimeout != 5*time.Second {
		t.Fatalf("timeout not read from env: %s", cfg.HTTPTimeout)
	}
	dir, err := cfg.ResolveProfileDir()
	if err != nil {
		t.Fatalf("resolve profile dir: %v", err)
	}
	if dir != "/tmp/teranga-test" {
		t.Fatalf("profile dir not honored: %s", dir)
	}
}
