package config

import (
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/achievements")
	t.Setenv("OBJECT_STORE_ENDPOINT", "http://localhost:9000")
	t.Setenv("OBJECT_STORE_ACCESS_KEY", "minioadmin")
	t.Setenv("OBJECT_STORE_SECRET_KEY", "minioadmin")
	t.Setenv("OBJECT_STORE_BUCKET", "badges")
	t.Setenv("PUBLIC_BASE_URL", "https://cdn.hoopcentral.gg")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d", cfg.Port)
	}
	if cfg.BatchSize != 50 {
		t.Errorf("BatchSize = %d", cfg.BatchSize)
	}
	if cfg.PollInterval != time.Second {
		t.Errorf("PollInterval = %v", cfg.PollInterval)
	}
	if cfg.MaxAttempts != 10 {
		t.Errorf("MaxAttempts = %d", cfg.MaxAttempts)
	}
	if cfg.LeaseTTL != 15*time.Minute {
		t.Errorf("LeaseTTL = %v", cfg.LeaseTTL)
	}
	if cfg.ObjectStoreRegion != "us-east-1" {
		t.Errorf("ObjectStoreRegion = %s", cfg.ObjectStoreRegion)
	}
	if cfg.RedisURL != "" || cfg.ClickHouseURL != "" {
		t.Error("optional backends should default to disabled")
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("BATCH_SIZE", "200")
	t.Setenv("POLL_INTERVAL_MS", "250")
	t.Setenv("LEASE_TTL", "5m")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BatchSize != 200 {
		t.Errorf("BatchSize = %d", cfg.BatchSize)
	}
	if cfg.PollInterval != 250*time.Millisecond {
		t.Errorf("PollInterval = %v", cfg.PollInterval)
	}
	if cfg.LeaseTTL != 5*time.Minute {
		t.Errorf("LeaseTTL = %v", cfg.LeaseTTL)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	setRequired(t)
	t.Setenv("DATABASE_URL", "")

	if _, err := Load(); err == nil {
		t.Fatal("missing DATABASE_URL should fail")
	}
}

func TestLoadRejectsNonPositiveBatch(t *testing.T) {
	setRequired(t)
	t.Setenv("BATCH_SIZE", "0")

	if _, err := Load(); err == nil {
		t.Fatal("BATCH_SIZE=0 should fail")
	}
}
