package config

import (
	"testing"
	"time"
)

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/quickclean")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("JWT_TTL", "2h")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("NOTIFIER_ENABLED", "false")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig error: %v", err)
	}
	if cfg.DatabaseURL != "postgres://localhost/quickclean" {
		t.Errorf("DatabaseURL = %q", cfg.DatabaseURL)
	}
	if cfg.JWTTTL != 2*time.Hour {
		t.Errorf("JWTTTL = %v; want 2h", cfg.JWTTTL)
	}
	if cfg.RedisDB != 3 {
		t.Errorf("RedisDB = %d; want 3", cfg.RedisDB)
	}
	if cfg.NotifierEnabled {
		t.Errorf("NotifierEnabled = true; want false")
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q; want default 8080", cfg.ServerPort)
	}
	if cfg.AMQPQueue != "request_events" {
		t.Errorf("AMQPQueue = %q; want default", cfg.AMQPQueue)
	}
}

func TestLoadConfigRequiresSecrets(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/quickclean")
	t.Setenv("JWT_SECRET", "")

	if _, err := LoadConfig(t.TempDir()); err == nil {
		t.Fatal("LoadConfig without JWT_SECRET succeeded; want error")
	}
}
