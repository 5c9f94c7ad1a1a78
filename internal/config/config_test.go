package config

import (
	"os"
	"testing"
)

func TestLoadFile(t *testing.T) {
	yamlContent := []byte(`
server:
  port: 9090
storage:
  database_url: "postgres://localhost/ledger"
  redis_url: "redis://localhost:6379"
  cache_ttl_seconds: 10
trading:
  commission_rate: 0.005
  starting_cash: 50000
  max_tx_attempts: 3
  max_position_qty: 10000
  max_order_notional: 250000
settlement:
  sweep_interval_seconds: 30
calendar:
  version: "us-2025.2"
  holidays:
    - "2025-07-04"
    - "2025-12-25"
`)

	tmpFile, err := os.CreateTemp("", "ledger-config-*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, err := tmpFile.Write(yamlContent); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	if err := tmpFile.Close(); err != nil {
		t.Fatalf("failed to close temp file: %v", err)
	}

	os.Unsetenv("PORT")
	os.Unsetenv("DATABASE_URL")
	os.Unsetenv("REDIS_URL")
	os.Unsetenv("COMMISSION_RATE")
	os.Unsetenv("STARTING_CASH")

	cfg, err := Load(tmpFile.Name())
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Storage.CacheTTLSeconds != 10 {
		t.Errorf("cache_ttl_seconds = %d, want 10", cfg.Storage.CacheTTLSeconds)
	}
	if cfg.Trading.CommissionRate != 0.005 {
		t.Errorf("commission_rate = %v, want 0.005", cfg.Trading.CommissionRate)
	}
	if cfg.Trading.MaxTxAttempts != 3 {
		t.Errorf("max_tx_attempts = %d, want 3", cfg.Trading.MaxTxAttempts)
	}
	if cfg.Settlement.SweepIntervalSeconds != 30 {
		t.Errorf("sweep_interval_seconds = %d, want 30", cfg.Settlement.SweepIntervalSeconds)
	}
	if len(cfg.Calendar.Holidays) != 2 {
		t.Errorf("holidays = %v, want 2 entries", cfg.Calendar.Holidays)
	}
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	os.Unsetenv("PORT")
	os.Unsetenv("DATABASE_URL")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("port = %d, want default 8080", cfg.Server.Port)
	}
	if cfg.Trading.CommissionRate != 0.003 {
		t.Errorf("commission_rate = %v, want default 0.003", cfg.Trading.CommissionRate)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PORT", "7070")
	t.Setenv("DATABASE_URL", "postgres://db/override")
	t.Setenv("STARTING_CASH", "25000")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Server.Port != 7070 {
		t.Errorf("port = %d, want 7070", cfg.Server.Port)
	}
	if cfg.Storage.DatabaseURL != "postgres://db/override" {
		t.Errorf("database_url = %q", cfg.Storage.DatabaseURL)
	}
	if cfg.Trading.StartingCash != 25000 {
		t.Errorf("starting_cash = %v, want 25000", cfg.Trading.StartingCash)
	}
}
