package config

import (
	"testing"
	"time"
)

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.EdgeAddr != ":8081" {
		t.Fatalf("unexpected addrs %q %q", cfg.HTTPAddr, cfg.EdgeAddr)
	}
	if cfg.APITimeout != 5*time.Second {
		t.Fatalf("expected 5s api timeout, got %s", cfg.APITimeout)
	}
	if cfg.CacheVersion != "nexcart-cache-v1" {
		t.Fatalf("unexpected cache version %q", cfg.CacheVersion)
	}
	want := []string{"/", "/offline", "/manifest.json", "/favicon.ico"}
	if len(cfg.PrecachePaths) != len(want) {
		t.Fatalf("unexpected precache paths %v", cfg.PrecachePaths)
	}
	for i := range want {
		if cfg.PrecachePaths[i] != want[i] {
			t.Fatalf("precache[%d] = %q, want %q", i, cfg.PrecachePaths[i], want[i])
		}
	}
	if cfg.FastStoreQuota != 5<<20 {
		t.Fatalf("unexpected quota %d", cfg.FastStoreQuota)
	}
	if !cfg.SkipWaiting {
		t.Fatalf("expected skip waiting by default")
	}
	if cfg.KafkaEnabled() {
		t.Fatalf("kafka should be disabled without brokers")
	}
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("DURABLE_BACKEND", "postgres")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("CONTEXT_IDLE_TTL", "90s")

	cfg, err := FromEnv()
	if err != nil {
		t.Fatalf("FromEnv: %v", err)
	}
	if cfg.DurableBackend != DurablePostgres {
		t.Fatalf("unexpected backend %q", cfg.DurableBackend)
	}
	if len(cfg.KafkaBrokers) != 2 || !cfg.KafkaEnabled() {
		t.Fatalf("unexpected brokers %v", cfg.KafkaBrokers)
	}
	if cfg.ContextIdleTTL != 90*time.Second {
		t.Fatalf("unexpected ttl %s", cfg.ContextIdleTTL)
	}
}

func TestFromEnvRejectsUnknownBackend(t *testing.T) {
	t.Setenv("DURABLE_BACKEND", "redis")
	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected error for unknown backend")
	}
}

func TestFromEnvRejectsBadDuration(t *testing.T) {
	t.Setenv("API_TIMEOUT", "soon")
	if _, err := FromEnv(); err == nil {
		t.Fatalf("expected parse error")
	}
}
