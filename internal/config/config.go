package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all configuration values
type Config struct {
	// Server configuration
	Port        int    `json:"port"`
	Environment string `json:"environment"`

	// MongoDB configuration
	MongoURI      string `json:"mongo_uri"`
	MongoDatabase string `json:"mongo_database"`

	// Redis configuration
	RedisURI      string `json:"redis_uri"`
	RedisPassword string `json:"redis_password"`
	RedisDB       int    `json:"redis_db"`

	// Queue configuration
	QueueSnapshotKey string        `json:"queue_snapshot_key"`
	SyncMaxRetries   int           `json:"sync_max_retries"`
	SyncPassInterval time.Duration `json:"sync_pass_interval"`

	// Connectivity probe configuration
	ProbeInterval time.Duration `json:"probe_interval"`
	ProbeTimeout  time.Duration `json:"probe_timeout"`

	// Rate limiter defaults
	RateLimitMaxRequests int           `json:"rate_limit_max_requests"`
	RateLimitWindow      time.Duration `json:"rate_limit_window"`

	// Tracing configuration
	TracingEnabled  bool   `json:"tracing_enabled"`
	TracingEndpoint string `json:"tracing_endpoint"`
}

var (
	AppConfig *Config
)

// LoadConfig loads configuration from environment variables
func LoadConfig() error {
	port, err := strconv.Atoi(getEnvOrDefault("PORT", "8080"))
	if err != nil {
		return fmt.Errorf("invalid PORT: %w", err)
	}

	redisDB, err := strconv.Atoi(getEnvOrDefault("REDIS_DB", "0"))
	if err != nil {
		return fmt.Errorf("invalid REDIS_DB: %w", err)
	}

	maxRetries, err := strconv.Atoi(getEnvOrDefault("SYNC_MAX_RETRIES", "3"))
	if err != nil {
		return fmt.Errorf("invalid SYNC_MAX_RETRIES: %w", err)
	}

	passInterval, err := time.ParseDuration(getEnvOrDefault("SYNC_PASS_INTERVAL", "30s"))
	if err != nil {
		return fmt.Errorf("invalid SYNC_PASS_INTERVAL: %w", err)
	}

	probeInterval, err := time.ParseDuration(getEnvOrDefault("PROBE_INTERVAL", "10s"))
	if err != nil {
		return fmt.Errorf("invalid PROBE_INTERVAL: %w", err)
	}

	probeTimeout, err := time.ParseDuration(getEnvOrDefault("PROBE_TIMEOUT", "2s"))
	if err != nil {
		return fmt.Errorf("invalid PROBE_TIMEOUT: %w", err)
	}

	rateLimitMax, err := strconv.Atoi(getEnvOrDefault("RATE_LIMIT_MAX_REQUESTS", "100"))
	if err != nil {
		return fmt.Errorf("invalid RATE_LIMIT_MAX_REQUESTS: %w", err)
	}

	rateLimitWindow, err := time.ParseDuration(getEnvOrDefault("RATE_LIMIT_WINDOW", "1m"))
	if err != nil {
		return fmt.Errorf("invalid RATE_LIMIT_WINDOW: %w", err)
	}

	AppConfig = &Config{
		// Server configuration
		Port:        port,
		Environment: getEnvOrDefault("ENVIRONMENT", "development"),

		// MongoDB configuration
		MongoURI:      getEnvOrDefault("MONGODB_URI", "mongodb://localhost:27017"),
		MongoDatabase: getEnvOrDefault("MONGODB_DATABASE", "rupiya"),

		// Redis configuration
		RedisURI:      getEnvOrDefault("REDIS_URI", "localhost:6379"),
		RedisPassword: getEnvOrDefault("REDIS_PASSWORD", ""),
		RedisDB:       redisDB,

		// Queue configuration
		QueueSnapshotKey: getEnvOrDefault("QUEUE_SNAPSHOT_KEY", "offline:queue:snapshot"),
		SyncMaxRetries:   maxRetries,
		SyncPassInterval: passInterval,

		// Connectivity probe configuration
		ProbeInterval: probeInterval,
		ProbeTimeout:  probeTimeout,

		// Rate limiter defaults
		RateLimitMaxRequests: rateLimitMax,
		RateLimitWindow:      rateLimitWindow,

		// Tracing configuration
		TracingEnabled:  getEnvOrDefault("TRACING_ENABLED", "false") == "true",
		TracingEndpoint: getEnvOrDefault("TRACING_ENDPOINT", "localhost:4317"),
	}

	return nil
}

// getEnvOrDefault returns environment variable value or default if not set
func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultValue
}
