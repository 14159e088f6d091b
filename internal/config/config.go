package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Server
	Port int
	Env  string

	// Relational store
	DatabaseURL string

	// Object store
	ObjectStoreEndpoint  string
	ObjectStoreAccessKey string
	ObjectStoreSecretKey string
	ObjectStoreBucket    string
	ObjectStoreRegion    string
	PublicBaseURL        string

	// Supervisor loop
	BatchSize    int
	PollInterval time.Duration
	MaxAttempts  int
	LeaseTTL     time.Duration

	// Optional rule cache
	RedisURL     string
	RuleCacheTTL time.Duration

	// Optional analytics archive
	ClickHouseURL string
}

// Load loads configuration from environment variables.
// It returns an error if critical configuration is missing.
func Load() (*Config, error) {
	cfg := &Config{
		Port: getEnvInt("PORT", 8080),
		Env:  getEnv("ENV", "development"),

		BatchSize:    getEnvInt("BATCH_SIZE", 50),
		PollInterval: time.Duration(getEnvInt("POLL_INTERVAL_MS", 1000)) * time.Millisecond,
		MaxAttempts:  getEnvInt("MAX_ATTEMPTS", 10),
		LeaseTTL:     getEnvDuration("LEASE_TTL", 15*time.Minute),

		ObjectStoreRegion: getEnv("OBJECT_STORE_REGION", "us-east-1"),

		RedisURL:     getEnv("REDIS_URL", ""),
		RuleCacheTTL: getEnvDuration("RULE_CACHE_TTL", 30*time.Second),

		ClickHouseURL: getEnv("CLICKHOUSE_URL", ""),
	}

	// Critical configuration - fail if missing
	var err error
	if cfg.DatabaseURL, err = getEnvRequired("DATABASE_URL"); err != nil {
		return nil, err
	}
	if cfg.ObjectStoreEndpoint, err = getEnvRequired("OBJECT_STORE_ENDPOINT"); err != nil {
		return nil, err
	}
	if cfg.ObjectStoreAccessKey, err = getEnvRequired("OBJECT_STORE_ACCESS_KEY"); err != nil {
		return nil, err
	}
	if cfg.ObjectStoreSecretKey, err = getEnvRequired("OBJECT_STORE_SECRET_KEY"); err != nil {
		return nil, err
	}
	if cfg.ObjectStoreBucket, err = getEnvRequired("OBJECT_STORE_BUCKET"); err != nil {
		return nil, err
	}
	if cfg.PublicBaseURL, err = getEnvRequired("PUBLIC_BASE_URL"); err != nil {
		return nil, err
	}

	if cfg.BatchSize <= 0 {
		return nil, fmt.Errorf("BATCH_SIZE must be positive, got %d", cfg.BatchSize)
	}
	if cfg.MaxAttempts <= 0 {
		return nil, fmt.Errorf("MAX_ATTEMPTS must be positive, got %d", cfg.MaxAttempts)
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvRequired(key string) (string, error) {
	if value := os.Getenv(key); value != "" {
		return value, nil
	}
	return "", fmt.Errorf("missing required environment variable: %s", key)
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
