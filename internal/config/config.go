package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds application configuration
type Config struct {
	DatabaseURL         string
	ServerPort          string
	FrontendURL         string
	EnableHSTS          bool
	RedisURL            string
	RabbitMQURL         string
	RabbitMQPrefetch    int
	RateLimit           string
	CacheTTL            time.Duration
	MaxTextBytes        int64
	AsyncThresholdBytes int64
	WorkerDebugMode     bool
	ServerDebugMode     bool
	OTELEnabled         bool
	OTELEndpoint        string
}

// Load loads configuration from environment variables for the server and
// worker, which both need the database and the job queue.
func Load() (*Config, error) {
	cfg, err := LoadLocal()
	if err != nil {
		return nil, err
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.RabbitMQURL == "" {
		return nil, fmt.Errorf("RABBITMQ_URL is required for job queueing (large texts are analyzed asynchronously)")
	}

	return cfg, nil
}

// LoadLocal loads configuration without requiring any infrastructure. The
// CLI uses it.
func LoadLocal() (*Config, error) {
	cfg := &Config{
		DatabaseURL:         getEnv("DATABASE_URL", ""),
		ServerPort:          getEnv("SERVER_PORT", "8080"),
		FrontendURL:         getEnv("FRONTEND_URL", "http://localhost:3000"),
		EnableHSTS:          getEnvBool("ENABLE_HSTS", false),
		RedisURL:            getEnv("REDIS_URL", "redis://localhost:6379/0"),
		RabbitMQURL:         getEnv("RABBITMQ_URL", ""),
		RabbitMQPrefetch:    getEnvInt("RABBITMQ_PREFETCH", 1),
		RateLimit:           getEnv("RATE_LIMIT", "20-S"),
		CacheTTL:            getEnvDuration("CACHE_TTL", time.Hour),
		MaxTextBytes:        getEnvInt64("MAX_TEXT_BYTES", 1<<20),
		AsyncThresholdBytes: getEnvInt64("ASYNC_THRESHOLD_BYTES", 64<<10),
		WorkerDebugMode:     getEnvBool("WORKER_DEBUG_MODE", false),
		ServerDebugMode:     getEnvBool("SERVER_DEBUG_MODE", false),
		OTELEnabled:         getEnvBool("OTEL_ENABLED", false),
		OTELEndpoint:        getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
	}

	if cfg.MaxTextBytes <= 0 {
		return nil, fmt.Errorf("MAX_TEXT_BYTES must be positive, got %d", cfg.MaxTextBytes)
	}
	if cfg.AsyncThresholdBytes <= 0 || cfg.AsyncThresholdBytes > cfg.MaxTextBytes {
		return nil, fmt.Errorf("ASYNC_THRESHOLD_BYTES must be between 1 and MAX_TEXT_BYTES (%d), got %d",
			cfg.MaxTextBytes, cfg.AsyncThresholdBytes)
	}

	return cfg, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
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
