// Package config loads the engine's typed runtime configuration from the
// environment, the same os.Getenv-based convention the rest of this
// codebase uses for service configuration, made strongly typed for the
// small fixed set of settings the engine needs.
package config

import (
	"fmt"
	"os"
)

const (
	envProduction = "production"
)

// Config is the engine's complete runtime configuration, loaded once at
// startup.
type Config struct {
	DatabaseURL        string
	RedisURL           string
	HTTPServerPort     string
	WSServerPort       string
	MetricsBearerToken string
	Env                string
	EventQueueKey      string
}

// Load reads configuration from the environment, applying development
// defaults where a variable is unset. In production (ENV=production) a
// non-empty WKC_METRICS_BEARER_TOKEN is required, since /metrics has no
// other access control.
func Load() (Config, error) {
	cfg := Config{
		DatabaseURL:        getEnvDefault("DATABASE_URL", "questengine.db"),
		RedisURL:           redisURL(),
		HTTPServerPort:     getEnvDefault("HTTP_SERVER_PORT", "8080"),
		WSServerPort:       getEnvDefault("WS_SERVER_PORT", "8081"),
		MetricsBearerToken: os.Getenv("WKC_METRICS_BEARER_TOKEN"),
		Env:                getEnvDefault("ENV", "development"),
		EventQueueKey:      getEnvDefault("EVENT_QUEUE_KEY", "events:queue"),
	}

	if cfg.Env == envProduction && cfg.MetricsBearerToken == "" {
		return Config{}, fmt.Errorf("WKC_METRICS_BEARER_TOKEN must be set in production")
	}

	return cfg, nil
}

// IsProduction reports whether the loaded configuration targets production.
func (c Config) IsProduction() bool {
	return c.Env == envProduction
}

func redisURL() string {
	if url := os.Getenv("REDIS_URL"); url != "" {
		return url
	}
	if host := os.Getenv("REDIS_HOST"); host != "" {
		return host
	}
	return "localhost:6379"
}

func getEnvDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
