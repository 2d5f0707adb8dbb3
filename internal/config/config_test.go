package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("REDIS_HOST", "")
	t.Setenv("ENV", "")
	t.Setenv("WKC_METRICS_BEARER_TOKEN", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DatabaseURL != "questengine.db" {
		t.Fatalf("expected default database url, got %q", cfg.DatabaseURL)
	}
	if cfg.Env != "development" {
		t.Fatalf("expected default env 'development', got %q", cfg.Env)
	}
	if cfg.IsProduction() {
		t.Fatal("expected development config to not be production")
	}
}

func TestLoadRequiresBearerTokenInProduction(t *testing.T) {
	t.Setenv("ENV", "production")
	t.Setenv("WKC_METRICS_BEARER_TOKEN", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error when production has no metrics bearer token")
	}

	t.Setenv("WKC_METRICS_BEARER_TOKEN", "secret")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !cfg.IsProduction() {
		t.Fatal("expected production config")
	}
}

func TestRedisURLPrefersExplicitURL(t *testing.T) {
	t.Setenv("REDIS_URL", "redis://example:6380")
	t.Setenv("REDIS_HOST", "otherhost:1234")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RedisURL != "redis://example:6380" {
		t.Fatalf("expected REDIS_URL to take precedence, got %q", cfg.RedisURL)
	}
}
