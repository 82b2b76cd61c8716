package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("port = %q", cfg.Port)
	}
	if cfg.UpstreamBaseURL != "http://127.0.0.1:8000" {
		t.Errorf("upstream = %q", cfg.UpstreamBaseURL)
	}
	if cfg.UpstreamTimeout != 20*time.Second {
		t.Errorf("timeout = %s", cfg.UpstreamTimeout)
	}
	if cfg.QuoteCacheTTL != 30*time.Second {
		t.Errorf("ttl = %s", cfg.QuoteCacheTTL)
	}
	if cfg.QuoteRateLimit != 4 {
		t.Errorf("rate = %v", cfg.QuoteRateLimit)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("UPSTREAM_BASE_URL", "http://ledger:8000")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("UPSTREAM_TIMEOUT", "5s")
	t.Setenv("QUOTE_RATE_LIMIT", "10")

	cfg := Load()
	if cfg.Port != "9090" || cfg.UpstreamBaseURL != "http://ledger:8000" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("redis = %q", cfg.RedisURL)
	}
	if cfg.UpstreamTimeout != 5*time.Second {
		t.Errorf("timeout = %s", cfg.UpstreamTimeout)
	}
	if cfg.QuoteRateLimit != 10 {
		t.Errorf("rate = %v", cfg.QuoteRateLimit)
	}
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("UPSTREAM_TIMEOUT", "soon")
	t.Setenv("QUOTE_RATE_LIMIT", "-3")

	cfg := Load()
	if cfg.UpstreamTimeout != 20*time.Second {
		t.Errorf("timeout = %s, want default", cfg.UpstreamTimeout)
	}
	if cfg.QuoteRateLimit != 4 {
		t.Errorf("rate = %v, want default", cfg.QuoteRateLimit)
	}
}
