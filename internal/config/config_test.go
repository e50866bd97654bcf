package config

import (
	"os"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"DATABASE_URL", "HTTP_PORT", "CART_BACKEND", "ENGINE_URL", "BATCH_CONTRACT_ADDRESS", "ENGINE_RETRY_MAX", "DEMO_DELAY", "EXPORT_XLSX_PATH", "GOOGLE_SHEETS_ID"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	cfg := Load()

	if cfg.DatabaseURL != "" {
		t.Errorf("DatabaseURL = %q, want empty", cfg.DatabaseURL)
	}
	if cfg.HTTPPort != "8080" {
		t.Errorf("HTTPPort = %q, want 8080", cfg.HTTPPort)
	}
	if cfg.CartBackend != CartBackendMemory {
		t.Errorf("CartBackend = %q, want memory", cfg.CartBackend)
	}
	if cfg.EngineRetryMax != 5 {
		t.Errorf("EngineRetryMax = %d, want 5", cfg.EngineRetryMax)
	}
	if cfg.DemoDelay != 2*time.Second {
		t.Errorf("DemoDelay = %v, want 2s", cfg.DemoDelay)
	}
	if !cfg.DemoMode() {
		t.Error("DemoMode() = false, want true without contract")
	}
	if cfg.ExportEnabled() {
		t.Error("ExportEnabled() = true, want false without destinations")
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/testdb")
	t.Setenv("HTTP_PORT", "9090")
	t.Setenv("CART_BACKEND", "Redis")
	t.Setenv("ENGINE_URL", "https://engine.example.com")
	t.Setenv("BATCH_CONTRACT_ADDRESS", "0xrouter")
	t.Setenv("ENGINE_RETRY_MAX", "10")
	t.Setenv("ENGINE_RETRY_BASE_DELAY", "5s")
	t.Setenv("EXPORT_XLSX_PATH", "/tmp/receipts.xlsx")

	cfg := Load()

	if cfg.DatabaseURL != "postgres://localhost/testdb" {
		t.Errorf("DatabaseURL = %q, want override", cfg.DatabaseURL)
	}
	if cfg.HTTPPort != "9090" {
		t.Errorf("HTTPPort = %q, want 9090", cfg.HTTPPort)
	}
	if cfg.CartBackend != CartBackendRedis {
		t.Errorf("CartBackend = %q, want redis", cfg.CartBackend)
	}
	if cfg.EngineRetryMax != 10 {
		t.Errorf("EngineRetryMax = %d, want 10", cfg.EngineRetryMax)
	}
	if cfg.EngineRetryBaseDelay != 5*time.Second {
		t.Errorf("EngineRetryBaseDelay = %v, want 5s", cfg.EngineRetryBaseDelay)
	}
	if cfg.DemoMode() {
		t.Error("DemoMode() = true, want false with engine and contract set")
	}
	if !cfg.ExportEnabled() {
		t.Error("ExportEnabled() = false, want true with xlsx path")
	}
}

func TestLoadInvalidEnvFallsBackToDefault(t *testing.T) {
	t.Setenv("ENGINE_RETRY_MAX", "not-a-number")
	t.Setenv("ENGINE_RETRY_BASE_DELAY", "invalid-duration")
	t.Setenv("CART_BACKEND", "mongodb")

	cfg := Load()

	if cfg.EngineRetryMax != 5 {
		t.Errorf("EngineRetryMax = %d, want default 5 on invalid input", cfg.EngineRetryMax)
	}
	if cfg.EngineRetryBaseDelay != 2*time.Second {
		t.Errorf("EngineRetryBaseDelay = %v, want default 2s on invalid input", cfg.EngineRetryBaseDelay)
	}
	if cfg.CartBackend != CartBackendMemory {
		t.Errorf("CartBackend = %q, want memory on unsupported value", cfg.CartBackend)
	}
}

func TestExportEnabledNeedsSheetCredentials(t *testing.T) {
	cfg := Config{GoogleSheetsID: "sheet"}
	if cfg.ExportEnabled() {
		t.Error("ExportEnabled() = true, want false without credentials")
	}
	cfg.GoogleCredentialsJSON = "{}"
	if !cfg.ExportEnabled() {
		t.Error("ExportEnabled() = false, want true")
	}
}

func TestLoadNonPositiveIntervalsFallBackToDefault(t *testing.T) {
	t.Setenv("EXPORT_INTERVAL", "0s")
	t.Setenv("INVESTMENTS_CACHE_TTL", "-5m")

	cfg := Load()

	if cfg.ExportInterval != 24*time.Hour {
		t.Errorf("ExportInterval = %v, want default 24h", cfg.ExportInterval)
	}
	if cfg.InvestmentsCacheTTL != 30*time.Second {
		t.Errorf("InvestmentsCacheTTL = %v, want default 30s", cfg.InvestmentsCacheTTL)
	}
}
