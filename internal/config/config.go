package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	StoreDriverPostgres   = "postgres"
	StoreDriverClickHouse = "clickhouse"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	HTTPPort     string
	AppMode      string
	FiberPrefork bool

	LogLevel  string
	LogFormat string

	StoreDriver string

	DatabaseURL       string
	DBMaxConns        int32
	DBMinConns        int32
	DBMaxConnLifetime time.Duration
	DBMaxConnIdleTime time.Duration

	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	Aggregator AggregatorConfig
}

// AggregatorConfig controls the metric aggregation scheduler.
type AggregatorConfig struct {
	Enabled    bool
	Warmup     time.Duration
	Interval   time.Duration
	Cooldown   time.Duration
	RetryBase  time.Duration
	MaxRetries int
}

// Load reads configuration from environment variables with sane defaults.
func Load() (*Config, error) {
	cfg := &Config{
		HTTPPort:          getEnv("HTTP_PORT", ":8080"),
		AppMode:           strings.ToLower(getEnv("APP_MODE", "dev")),
		FiberPrefork:      parseBoolEnv("FIBER_PREFORK", false),
		LogLevel:          strings.ToLower(getEnv("LOG_LEVEL", "info")),
		LogFormat:         strings.ToLower(getEnv("LOG_FORMAT", "json")),
		StoreDriver:       strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		DatabaseURL:       os.Getenv("DATABASE_URL"),
		DBMaxConns:        parseInt32Env("DB_MAX_CONNS", 50),
		DBMinConns:        parseInt32Env("DB_MIN_CONNS", 10),
		DBMaxConnLifetime: parseDurationEnv("DB_MAX_CONN_LIFETIME", 30*time.Minute),
		DBMaxConnIdleTime: parseDurationEnv("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),

		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", "localhost:9000"),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "default"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: os.Getenv("CLICKHOUSE_PASSWORD"),

		Aggregator: AggregatorConfig{
			Enabled:    parseBoolEnv("AGGREGATOR_ENABLED", true),
			Warmup:     parseDurationEnv("AGGREGATOR_WARMUP", 30*time.Second),
			Interval:   parseDurationEnv("AGGREGATOR_INTERVAL", time.Hour),
			Cooldown:   parseDurationEnv("AGGREGATOR_COOLDOWN", 5*time.Minute),
			RetryBase:  parseDurationEnv("AGGREGATOR_RETRY_BASE", 2*time.Second),
			MaxRetries: parseIntEnv("AGGREGATOR_MAX_RETRIES", 5),
		},
	}

	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required")
		}
	case StoreDriverClickHouse:
		if cfg.ClickHouseAddr == "" {
			return nil, fmt.Errorf("CLICKHOUSE_ADDR is required")
		}
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER: %s", cfg.StoreDriver)
	}

	if cfg.Aggregator.Interval <= 0 || cfg.Aggregator.Cooldown <= 0 {
		return nil, fmt.Errorf("AGGREGATOR_INTERVAL and AGGREGATOR_COOLDOWN must be positive")
	}
	if cfg.Aggregator.MaxRetries < 0 {
		return nil, fmt.Errorf("AGGREGATOR_MAX_RETRIES must not be negative")
	}
	if cfg.Aggregator.MaxRetries > 0 && cfg.Aggregator.RetryBase <= 0 {
		return nil, fmt.Errorf("AGGREGATOR_RETRY_BASE must be positive when retries are enabled")
	}

	// Prefork re-executes the binary once per CPU and every child would run
	// its own scheduler.
	if cfg.FiberPrefork && cfg.Aggregator.Enabled {
		return nil, fmt.Errorf("FIBER_PREFORK cannot be combined with AGGREGATOR_ENABLED")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func parseBoolEnv(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseInt32Env(key string, fallback int32) int32 {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return int32(parsed)
}

func parseIntEnv(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseDurationEnv(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(val)
	if err != nil {
		return fallback
	}
	return parsed
}
