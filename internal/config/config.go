// Package config loads service configuration from a YAML file with
// environment variable overrides, so operators can inject connection
// strings and secrets at deploy time without touching the file.
package config

import (
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the top-level configuration for the ledger engine.
type Config struct {
	Server     Server     `yaml:"server"`
	Storage    Storage    `yaml:"storage"`
	Trading    Trading    `yaml:"trading"`
	Settlement Settlement `yaml:"settlement"`
	Calendar   Calendar   `yaml:"calendar"`
}

// Server holds network listener configuration.
type Server struct {
	Port int `yaml:"port"`
}

// Storage selects and tunes the ledger store. An empty DatabaseURL selects
// the in-memory store; a RedisURL additionally enables the read-through
// cache and the Redis quote feed.
type Storage struct {
	DatabaseURL string `yaml:"database_url"`
	RedisURL    string `yaml:"redis_url"`

	// CacheTTLSeconds is the read-through cache entry lifetime.
	CacheTTLSeconds int `yaml:"cache_ttl_seconds"`
}

// Trading defines execution parameters.
type Trading struct {
	// CommissionRate is the brokerage fee as a fraction of notional,
	// e.g. 0.003 for 0.3%.
	CommissionRate float64 `yaml:"commission_rate"`

	// StartingCash is the virtual grant for accounts on first use.
	StartingCash float64 `yaml:"starting_cash"`

	// MaxTxAttempts bounds the ledger transaction retry loop.
	MaxTxAttempts int `yaml:"max_tx_attempts"`

	// MaxPositionQty and MaxOrderNotional are pre-trade limits; zero
	// disables the corresponding check.
	MaxPositionQty   int64   `yaml:"max_position_qty"`
	MaxOrderNotional float64 `yaml:"max_order_notional"`
}

// Settlement controls the background sweep.
type Settlement struct {
	SweepIntervalSeconds int `yaml:"sweep_interval_seconds"`
}

// Calendar carries the versioned non-trading-date list. When Holidays is
// empty the embedded default list is used.
type Calendar struct {
	Version  string   `yaml:"version"`
	Holidays []string `yaml:"holidays"` // "YYYY-MM-DD"
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: Server{Port: 8080},
		Storage: Storage{
			CacheTTLSeconds: 30,
		},
		Trading: Trading{
			CommissionRate: 0.003,
			StartingCash:   100000,
			MaxTxAttempts:  5,
		},
		Settlement: Settlement{SweepIntervalSeconds: 60},
	}
}

// Load reads the YAML configuration file at path, parses it over the
// defaults, and applies environment variable overrides. An empty path skips
// the file and uses defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, err
		}
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

// applyEnvOverrides checks well-known environment variables and overrides
// the corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.DatabaseURL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Storage.RedisURL = v
	}
	if v := os.Getenv("COMMISSION_RATE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Trading.CommissionRate = f
		}
	}
	if v := os.Getenv("STARTING_CASH"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Trading.StartingCash = f
		}
	}
}
