// Package config loads ledgerd configuration from the environment,
// with an optional YAML file supplying overrides.
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config holds server configuration.
type Config struct {
	ListenAddr string `yaml:"listen_addr"`
	LogLevel   string `yaml:"log_level"`

	// StoreDriver selects the storage backend: memory, sqlite or
	// postgres.
	StoreDriver string `yaml:"store_driver"`
	DatabaseURL string `yaml:"database_url"`
	SQLitePath  string `yaml:"sqlite_path"`

	// AuthMode is "jwt" or "static" (development only).
	AuthMode   string `yaml:"auth_mode"`
	AuthSecret string `yaml:"auth_secret"`
	AuthIssuer string `yaml:"auth_issuer"`

	BatchCap int `yaml:"batch_cap"`

	// Rate limiting. RedisAddr switches the limiter from in-process
	// token buckets to Redis.
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second"`
	RateLimitBurst     int     `yaml:"rate_limit_burst"`
	RedisAddr          string  `yaml:"redis_addr"`

	// OpenTelemetry export.
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	OTelEnabled  bool   `yaml:"otel_enabled"`
}

// Load reads configuration from environment variables. If
// LEDGER_CONFIG_FILE is set, that YAML file is read first and the
// environment overrides it.
func Load() (*Config, error) {
	cfg := &Config{
		ListenAddr:         ":8080",
		LogLevel:           "INFO",
		StoreDriver:        "sqlite",
		SQLitePath:         "ledger.db",
		AuthMode:           "static",
		AuthIssuer:         "chainlogistics/ledgerd",
		BatchCap:           0, // 0 keeps the ledger default
		RateLimitPerSecond: 50,
		RateLimitBurst:     100,
		OTLPEndpoint:       "localhost:4317",
	}

	if path := os.Getenv("LEDGER_CONFIG_FILE"); path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	setString(&cfg.ListenAddr, "LEDGER_LISTEN_ADDR")
	setString(&cfg.LogLevel, "LOG_LEVEL")
	setString(&cfg.StoreDriver, "LEDGER_STORE_DRIVER")
	setString(&cfg.DatabaseURL, "DATABASE_URL")
	setString(&cfg.SQLitePath, "LEDGER_SQLITE_PATH")
	setString(&cfg.AuthMode, "LEDGER_AUTH_MODE")
	setString(&cfg.AuthSecret, "LEDGER_AUTH_SECRET")
	setString(&cfg.AuthIssuer, "LEDGER_AUTH_ISSUER")
	setString(&cfg.RedisAddr, "REDIS_ADDR")
	setString(&cfg.OTLPEndpoint, "OTLP_ENDPOINT")

	if v := os.Getenv("LEDGER_BATCH_CAP"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("LEDGER_BATCH_CAP: %w", err)
		}
		cfg.BatchCap = n
	}
	if v := os.Getenv("LEDGER_RATE_LIMIT_PER_SECOND"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return nil, fmt.Errorf("LEDGER_RATE_LIMIT_PER_SECOND: %w", err)
		}
		cfg.RateLimitPerSecond = f
	}
	if v := os.Getenv("LEDGER_RATE_LIMIT_BURST"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("LEDGER_RATE_LIMIT_BURST: %w", err)
		}
		cfg.RateLimitBurst = n
	}
	if v := os.Getenv("OTEL_ENABLED"); v != "" {
		cfg.OTelEnabled = v == "true"
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.StoreDriver {
	case "memory", "sqlite", "postgres":
	default:
		return fmt.Errorf("unknown store driver %q", c.StoreDriver)
	}
	if c.StoreDriver == "postgres" && c.DatabaseURL == "" {
		return fmt.Errorf("postgres driver requires DATABASE_URL")
	}
	switch c.AuthMode {
	case "jwt":
		if c.AuthSecret == "" {
			return fmt.Errorf("jwt auth requires LEDGER_AUTH_SECRET")
		}
	case "static":
	default:
		return fmt.Errorf("unknown auth mode %q", c.AuthMode)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
