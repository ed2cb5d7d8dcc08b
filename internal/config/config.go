package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config aggregates application configuration. Values are read once at
// startup and are read-only afterwards.
type Config struct {
	ServerPort string

	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	NATSURL string

	Limits LimitsConfig

	// StaleThreshold is how long a transaction may sit non-terminal before
	// the sweeper force-fails it.
	StaleThreshold time.Duration
	SweepInterval  time.Duration
}

// LimitsConfig holds the business-rule ceilings enforced by validation.
type LimitsConfig struct {
	MinAmount            decimal.Decimal
	MaxTransferAmount    decimal.Decimal
	MaxWithdrawalAmount  decimal.Decimal
	MaxDailyTransactions int
}

// Load reads configuration from environment variables, applying defaults.
func Load() *Config {
	return &Config{
		ServerPort: valueOrDefault("SERVER_PORT", "8080"),

		DBHost:     valueOrDefault("DB_HOST", "localhost"),
		DBPort:     valueOrDefault("DB_PORT", "5432"),
		DBUser:     valueOrDefault("DB_USER", "postgres"),
		DBPassword: valueOrDefault("DB_PASSWORD", "password"),
		DBName:     valueOrDefault("DB_NAME", "payments"),
		DBSSLMode:  valueOrDefault("DB_SSLMODE", "disable"),

		NATSURL: valueOrDefault("NATS_URL", "nats://localhost:4222"),

		Limits: LimitsConfig{
			MinAmount:            decimalOrDefault("LIMIT_MIN_AMOUNT", "1.00"),
			MaxTransferAmount:    decimalOrDefault("LIMIT_MAX_TRANSFER_AMOUNT", "50000.00"),
			MaxWithdrawalAmount:  decimalOrDefault("LIMIT_MAX_WITHDRAWAL_AMOUNT", "10000.00"),
			MaxDailyTransactions: intOrDefault("LIMIT_MAX_DAILY_TRANSACTIONS", 20),
		},

		StaleThreshold: durationOrDefault("STALE_THRESHOLD", 15*time.Minute),
		SweepInterval:  durationOrDefault("SWEEP_INTERVAL", 5*time.Minute),
	}
}

// GetDBConnectionString builds the postgres DSN from the loaded values.
func (c *Config) GetDBConnectionString() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

func valueOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func intOrDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func durationOrDefault(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func decimalOrDefault(key, fallback string) decimal.Decimal {
	if v := os.Getenv(key); v != "" {
		if d, err := decimal.NewFromString(v); err == nil {
			return d
		}
	}
	return decimal.RequireFromString(fallback)
}
