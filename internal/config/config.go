package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Cart storage backends.
const (
	CartBackendMemory   = "memory"
	CartBackendPostgres = "postgres"
	CartBackendRedis    = "redis"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	DatabaseURL string
	HTTPPort    string
	LogLevel    string

	CartBackend  string
	RedisAddr    string
	RedisCartTTL time.Duration

	EngineURL            string
	EngineAccessToken    string
	EngineBackendWallet  string
	ChainID              string
	BatchContractAddress string
	EngineRetryMax       int
	EngineRetryBaseDelay time.Duration
	DemoDelay            time.Duration

	InvestmentsCacheTTL time.Duration
	AdminAPIKey         string

	ExportXLSXPath        string
	GoogleSheetsID        string
	GoogleCredentialsJSON string
	ExportInterval        time.Duration
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		DatabaseURL: envOrDefault("DATABASE_URL", ""),
		HTTPPort:    envOrDefault("HTTP_PORT", "8080"),
		LogLevel:    envOrDefault("LOG_LEVEL", "info"),

		CartBackend:  envOrDefaultChoice("CART_BACKEND", CartBackendMemory, CartBackendMemory, CartBackendPostgres, CartBackendRedis),
		RedisAddr:    envOrDefault("REDIS_ADDR", ""),
		RedisCartTTL: envOrDefaultDuration("REDIS_CART_TTL", 30*24*time.Hour),

		EngineURL:            envOrDefault("ENGINE_URL", ""),
		EngineAccessToken:    envOrDefault("ENGINE_ACCESS_TOKEN", ""),
		EngineBackendWallet:  envOrDefault("ENGINE_BACKEND_WALLET", ""),
		ChainID:              envOrDefault("CHAIN_ID", "84532"),
		BatchContractAddress: envOrDefault("BATCH_CONTRACT_ADDRESS", ""),
		EngineRetryMax:       envOrDefaultInt("ENGINE_RETRY_MAX", 5),
		EngineRetryBaseDelay: envOrDefaultDuration("ENGINE_RETRY_BASE_DELAY", 2*time.Second),
		DemoDelay:            envOrDefaultDuration("DEMO_DELAY", 2*time.Second),

		InvestmentsCacheTTL: envOrDefaultPositiveDuration("INVESTMENTS_CACHE_TTL", 30*time.Second),
		AdminAPIKey:         envOrDefaultWarn("ADMIN_API_KEY", ""),

		ExportXLSXPath:        envOrDefault("EXPORT_XLSX_PATH", ""),
		GoogleSheetsID:        envOrDefault("GOOGLE_SHEETS_ID", ""),
		GoogleCredentialsJSON: envOrDefault("GOOGLE_CREDENTIALS_JSON", ""),
		ExportInterval:        envOrDefaultPositiveDuration("EXPORT_INTERVAL", 24*time.Hour),
	}
}

// DemoMode reports whether checkout submissions are synthesized locally.
func (c Config) DemoMode() bool {
	return c.BatchContractAddress == "" || c.EngineURL == ""
}

// ExportEnabled reports whether any export destination is configured.
func (c Config) ExportEnabled() bool {
	return c.ExportXLSXPath != "" || (c.GoogleSheetsID != "" && c.GoogleCredentialsJSON != "")
}

func envOrDefault(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envOrDefaultWarn(key, defaultVal string) string {
	v := envOrDefault(key, defaultVal)
	if v == "" {
		slog.Warn("env var not set", "key", key)
	}
	return v
}

func envOrDefaultChoice(key, defaultVal string, allowed ...string) string {
	v := strings.ToLower(envOrDefault(key, defaultVal))
	for _, a := range allowed {
		if v == a {
			return v
		}
	}
	slog.Warn("unsupported env var value, using default", "key", key, "value", v, "default", defaultVal)
	return defaultVal
}

func envOrDefaultInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			slog.Warn("invalid integer env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return n
	}
	return defaultVal
}

func envOrDefaultDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("invalid duration env var, using default", "key", key, "value", v, "default", defaultVal)
			return defaultVal
		}
		return d
	}
	return defaultVal
}

func envOrDefaultPositiveDuration(key string, defaultVal time.Duration) time.Duration {
	d := envOrDefaultDuration(key, defaultVal)
	if d <= 0 {
		slog.Warn("non-positive duration env var, using default", "key", key, "value", d, "default", defaultVal)
		return defaultVal
	}
	return d
}
