// Package config loads engine configuration from the environment, with an
// optional .env file for development.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all runtime configuration for the portfolio engine.
type Config struct {
	Port            string
	UpstreamBaseURL string

	// Mirror backends. Redis is preferred when both are set.
	RedisURL    string
	DatabaseURL string

	UpstreamTimeout time.Duration
	QuoteCacheTTL   time.Duration
	QuoteRateLimit  float64 // upstream quote requests per second

	LogLevel string
}

// Load reads configuration from the environment. A missing .env file is
// normal in production.
func Load() *Config {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		slog.Warn("could not load .env file", "err", err)
	}

	return &Config{
		Port:            getEnv("PORT", "8080"),
		UpstreamBaseURL: getEnv("UPSTREAM_BASE_URL", "http://127.0.0.1:8000"),
		RedisURL:        os.Getenv("REDIS_URL"),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		UpstreamTimeout: getEnvAsDuration("UPSTREAM_TIMEOUT", 20*time.Second),
		QuoteCacheTTL:   getEnvAsDuration("QUOTE_CACHE_TTL", 30*time.Second),
		QuoteRateLimit:  getEnvAsFloat("QUOTE_RATE_LIMIT", 4),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		slog.Warn("invalid duration in environment, using default", "key", key, "value", v)
		return fallback
	}
	return d
}

func getEnvAsFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		slog.Warn("invalid number in environment, using default", "key", key, "value", v)
		return fallback
	}
	return f
}
