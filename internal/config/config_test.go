package config

import (
	"reflect"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"APP_ENV", "HTTP_ADDR", "STORE_TZ_OFFSET_MINUTES", "SNAPSHOT_CACHE_TTL", "CORS_ALLOWED_ORIGINS"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Env != "development" || cfg.HTTPAddr != ":8087" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.StoreTZOffsetMinutes != 390 {
		t.Fatalf("expected UTC+6:30 default, got %d", cfg.StoreTZOffsetMinutes)
	}
	if cfg.SnapshotCacheTTL != 15*time.Second {
		t.Fatalf("unexpected ttl %s", cfg.SnapshotCacheTTL)
	}
	if cfg.CorsAllowedOrigins != nil {
		t.Fatalf("expected no origins, got %v", cfg.CorsAllowedOrigins)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORE_TZ_OFFSET_MINUTES", "-300")
	t.Setenv("SNAPSHOT_CACHE_TTL", "1m")
	t.Setenv("CORS_ALLOWED_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("USAGE_CONSUMER_RETRIES", "nope")

	cfg := Load()
	if cfg.StoreTZOffsetMinutes != -300 {
		t.Fatalf("expected -300, got %d", cfg.StoreTZOffsetMinutes)
	}
	if cfg.SnapshotCacheTTL != time.Minute {
		t.Fatalf("expected 1m, got %s", cfg.SnapshotCacheTTL)
	}
	if !reflect.DeepEqual(cfg.CorsAllowedOrigins, []string{"https://a.example", "https://b.example"}) {
		t.Fatalf("unexpected origins %v", cfg.CorsAllowedOrigins)
	}
	if cfg.UsageConsumerRetries != 5 {
		t.Fatalf("expected fallback retries, got %d", cfg.UsageConsumerRetries)
	}
}

func TestLoadRejectsImpossibleOffset(t *testing.T) {
	t.Setenv("STORE_TZ_OFFSET_MINUTES", "2000")
	if got := Load().StoreTZOffsetMinutes; got != 390 {
		t.Fatalf("expected fallback offset, got %d", got)
	}
}
