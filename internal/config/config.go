package config

import (
	"os"
	"strconv"
	"time"
)

// ApplyEnv overrides file settings with ACADEMY_* environment variables
func ApplyEnv(cfg *LocalConfig) {
	cfg.Daemon.Port = getEnvInt("ACADEMY_PORT", cfg.Daemon.Port)
	cfg.Daemon.Bind = getEnv("ACADEMY_BIND", cfg.Daemon.Bind)
	cfg.Daemon.LogLevel = getEnv("ACADEMY_LOG_LEVEL", cfg.Daemon.LogLevel)
	cfg.Storage.Backend = getEnv("ACADEMY_STORAGE_BACKEND", cfg.Storage.Backend)
	cfg.Storage.Redis.URL = getEnv("ACADEMY_REDIS_URL", cfg.Storage.Redis.URL)
	cfg.Storage.Postgres.DSN = getEnv("ACADEMY_POSTGRES_DSN", cfg.Storage.Postgres.DSN)
	cfg.Content.CatalogPath = getEnv("ACADEMY_CATALOG_PATH", cfg.Content.CatalogPath)
	cfg.Progress.RepeatPolicy = getEnv("ACADEMY_REPEAT_POLICY", cfg.Progress.RepeatPolicy)
	cfg.Academy.RunDelay = getEnvDuration("ACADEMY_RUN_DELAY", cfg.Academy.RunDelay)
	cfg.Academy.TestDelay = getEnvDuration("ACADEMY_TEST_DELAY", cfg.Academy.TestDelay)
	cfg.Events.AMQPURL = getEnv("ACADEMY_AMQP_URL", cfg.Events.AMQPURL)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
