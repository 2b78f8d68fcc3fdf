package config

import (
	"strings"
	"testing"
	"time"
)

func setBase(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"APP_ENV", "HTTP_PORT", "LOG_LEVEL", "STORE_BACKEND", "LOCK_BACKEND", "BUS_BACKEND",
		"POSTGRES_DSN", "REDIS_URL", "REDIS_ADDR", "REDIS_USERNAME", "REDIS_PASSWORD",
		"LOCK_TTL", "LOCK_RETRY_INTERVAL", "SLOT_GRANULARITY", "DEFAULT_TIMEZONE",
		"SESSION_TTL", "SUBSCRIBER_BUFFER", "SHUTDOWN_TIMEOUT", "POSTGRES_MAX_CONNS", "REDIS_POOL_SIZE",
	} {
		t.Setenv(key, "")
	}
	t.Setenv("JWT_SECRET", "test-secret")
}

func TestLoad_Defaults(t *testing.T) {
	setBase(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StoreBackend != BackendMemory || cfg.LockBackend != BackendLocal || cfg.BusBackend != BackendLocal {
		t.Fatalf("unexpected backends %+v", cfg)
	}
	if cfg.SlotGranularity != 15*time.Minute {
		t.Fatalf("expected 15m granularity, got %s", cfg.SlotGranularity)
	}
	if cfg.DefaultTimezone != "Asia/Kolkata" {
		t.Fatalf("unexpected default timezone %q", cfg.DefaultTimezone)
	}
	if cfg.RedisAddr != "127.0.0.1:6379" {
		t.Fatalf("unexpected redis addr %q", cfg.RedisAddr)
	}
	if cfg.UsesRedis() {
		t.Fatal("local backends should not need redis")
	}
	if cfg.PostgresMaxConns != 10 || cfg.RedisPoolSize != 10 {
		t.Fatalf("unexpected pool sizes %d/%d", cfg.PostgresMaxConns, cfg.RedisPoolSize)
	}
}

func TestLoad_Overrides(t *testing.T) {
	setBase(t)
	t.Setenv("STORE_BACKEND", "Postgres")
	t.Setenv("POSTGRES_DSN", "postgres://localhost/booking")
	t.Setenv("LOCK_BACKEND", "redis")
	t.Setenv("REDIS_URL", "redis://svc:pw@cache:6380")
	t.Setenv("LOCK_TTL", "3")
	t.Setenv("SLOT_GRANULARITY", "30m")
	t.Setenv("SUBSCRIBER_BUFFER", "64")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StoreBackend != BackendPostgres {
		t.Fatalf("expected postgres store, got %q", cfg.StoreBackend)
	}
	if cfg.RedisAddr != "cache:6380" || cfg.RedisUsername != "svc" || cfg.RedisPassword != "pw" {
		t.Fatalf("redis url not applied: %+v", cfg)
	}
	if cfg.LockTTL != 3*time.Second || cfg.SlotGranularity != 30*time.Minute || cfg.SubscriberBuffer != 64 {
		t.Fatalf("durations not applied: %+v", cfg)
	}
	if !cfg.UsesRedis() {
		t.Fatal("redis lock backend should need redis")
	}
}

func TestLoad_Rejects(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"postgres without dsn", map[string]string{"STORE_BACKEND": "postgres"}, "POSTGRES_DSN"},
		{"unknown store", map[string]string{"STORE_BACKEND": "sqlite"}, "STORE_BACKEND"},
		{"unknown bus", map[string]string{"BUS_BACKEND": "kafka"}, "BUS_BACKEND"},
		{"missing secret", map[string]string{"JWT_SECRET": ""}, "JWT_SECRET"},
		{"bad timezone", map[string]string{"DEFAULT_TIMEZONE": "Mars/Olympus"}, "DEFAULT_TIMEZONE"},
		{"tiny granularity", map[string]string{"SLOT_GRANULARITY": "10s"}, "SLOT_GRANULARITY"},
		{"zero lock ttl", map[string]string{"LOCK_TTL": "0"}, "LOCK_TTL"},
		{"negative lock ttl", map[string]string{"LOCK_TTL": "-1s"}, "LOCK_TTL"},
		{"zero retry interval", map[string]string{"LOCK_RETRY_INTERVAL": "0s"}, "LOCK_RETRY_INTERVAL"},
		{"retry longer than ttl", map[string]string{"LOCK_TTL": "1s", "LOCK_RETRY_INTERVAL": "2s"}, "LOCK_RETRY_INTERVAL"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setBase(t)
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %s, got %v", tt.want, err)
			}
		})
	}
}
