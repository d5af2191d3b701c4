// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"

	"stockkeeper/internal/core/code"
	"stockkeeper/internal/core/numerator"
)

// Config holds runtime configuration for every binary.
type Config struct {
	AppEnv  string `envconfig:"APP_ENV" default:"development"`
	AppPort string `envconfig:"APP_PORT" default:"8080"`

	AppReadTimeout     time.Duration `envconfig:"APP_READ_TIMEOUT" default:"15s"`
	AppWriteTimeout    time.Duration `envconfig:"APP_WRITE_TIMEOUT" default:"30s"`
	AppShutdownTimeout time.Duration `envconfig:"APP_SHUTDOWN_TIMEOUT" default:"30s"`

	DatabaseURL        string        `envconfig:"DATABASE_URL" required:"true"`
	DBMaxConns         int32         `envconfig:"DB_MAX_CONNS" default:"25"`
	DBMinConns         int32         `envconfig:"DB_MIN_CONNS" default:"5"`
	DBStatementTimeout time.Duration `envconfig:"DB_STATEMENT_TIMEOUT" default:"30s"`

	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	IdempotencyEnabled bool          `envconfig:"IDEMPOTENCY_ENABLED" default:"false"`
	IdempotencyTTL     time.Duration `envconfig:"IDEMPOTENCY_TTL" default:"24h"`
	CleanupInterval    time.Duration `envconfig:"CLEANUP_INTERVAL" default:"1h"`

	TxRetryAttempts int `envconfig:"TX_RETRY_ATTEMPTS" default:"3"`

	// AuditCompressThreshold is the snapshot size in bytes above which
	// audit payloads are stored zstd-compressed.
	AuditCompressThreshold int `envconfig:"AUDIT_COMPRESS_THRESHOLD" default:"4096"`

	// AllowNegativeStock lets count adjustments and reversals take stock
	// below zero. Manual OUT adjustments are always guarded.
	AllowNegativeStock bool `envconfig:"ALLOW_NEGATIVE_STOCK" default:"false"`

	// CodeTimezone is the IANA zone used to derive the code month. Empty
	// means the server's local zone.
	CodeTimezone string `envconfig:"CODE_TIMEZONE"`

	// NumeratorCachedTypes lists entity types allowed to allocate codes from
	// cached ranges (gaps possible, order across processes not monotonic).
	NumeratorCachedTypes []string `envconfig:"NUMERATOR_CACHED_TYPES"`
	NumeratorRangeSize   int      `envconfig:"NUMERATOR_RANGE_SIZE" default:"50"`
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("process env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL must not be empty")
	}
	if c.TxRetryAttempts < 1 {
		return fmt.Errorf("TX_RETRY_ATTEMPTS must be at least 1, got %d", c.TxRetryAttempts)
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("DB_MIN_CONNS (%d) exceeds DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if _, err := c.NumeratorPolicy(); err != nil {
		return err
	}
	return nil
}

// IsDevelopment reports whether the process runs in development mode.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == "development"
}

// Location returns the code time zone.
func (c *Config) Location() (*time.Location, error) {
	if strings.TrimSpace(c.CodeTimezone) == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.CodeTimezone)
	if err != nil {
		return nil, fmt.Errorf("CODE_TIMEZONE: %w", err)
	}
	return loc, nil
}

// NumeratorPolicy builds the allocation policy from NUMERATOR_CACHED_TYPES.
func (c *Config) NumeratorPolicy() (numerator.Policy, error) {
	types := make([]code.EntityType, 0, len(c.NumeratorCachedTypes))
	for _, raw := range c.NumeratorCachedTypes {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		t, err := code.ParseEntityType(raw)
		if err != nil {
			return nil, fmt.Errorf("NUMERATOR_CACHED_TYPES: %w", err)
		}
		types = append(types, t)
	}
	if c.NumeratorRangeSize < 1 {
		return nil, fmt.Errorf("NUMERATOR_RANGE_SIZE must be positive, got %d", c.NumeratorRangeSize)
	}
	return numerator.CachedPolicy(types, c.NumeratorRangeSize), nil
}
