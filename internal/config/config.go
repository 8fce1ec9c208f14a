// Package config loads engine configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all engine configuration.
type Config struct {
	Stream   StreamConfig
	Trading  TradingConfig
	Database DatabaseConfig
	Admin    AdminConfig
}

// StreamConfig holds the upstream subscription's connection settings.
type StreamConfig struct {
	Endpoint          string
	Token             string
	AMMProgramIDs     []string
	ExcludeProgramIDs []string
	LeaderAddresses   []string
	MultiCopyTrading  bool
}

// TradingConfig holds the trade-sizing and exit-timing thresholds.
type TradingConfig struct {
	ThresholdBuyLamports  uint64
	ThresholdSellLamports uint64
	MaxWaitTime           time.Duration
	DowningPercent        uint64
	MinDevBuyLamports     uint64
	MaxDevBuyLamports     uint64
	DefaultSlippageBps    uint64
}

// DatabaseConfig holds the audit log's storage settings. An empty DSN
// disables persistence and the engine runs with a no-op audit log; a
// "sqlite://path/to/file.db" DSN opens a local file-backed database,
// any other DSN is treated as a postgres connection string.
type DatabaseConfig struct {
	DSN string
}

// AdminConfig holds the read-only HTTP dashboard's settings.
type AdminConfig struct {
	Port      string
	JWTSecret string
}

// Load loads configuration from environment variables, optionally
// seeded from a .env file (a missing file is not an error).
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Stream: StreamConfig{
			Endpoint:          getEnv("YELLOWSTONE_GRPC_HTTP", ""),
			Token:             getEnv("YELLOWSTONE_GRPC_TOKEN", ""),
			AMMProgramIDs:     splitCSV(getEnv("AMM_PROGRAM_IDS", "")),
			ExcludeProgramIDs: splitCSV(getEnv("EXCLUDE_PROGRAM_IDS", "")),
			LeaderAddresses:   splitCSV(getEnv("COPY_TRADING_TARGET_ADDRESS", "")),
			MultiCopyTrading:  getEnvBool("IS_MULTI_COPY_TRADING", false),
		},
		Trading: TradingConfig{
			ThresholdBuyLamports:  getEnvUint64("THRESHOLD_BUY", 1_000_000_000),
			ThresholdSellLamports: getEnvUint64("THRESHOLD_SELL", 1_000_000_000),
			MaxWaitTime:           time.Duration(getEnvUint64("MAX_WAIT_TIME", 60_000)) * time.Millisecond,
			DowningPercent:        getEnvUint64("DOWNING_PERCENT", 42),
			MinDevBuyLamports:     getEnvUint64("MIN_DEV_BUY", 0),
			MaxDevBuyLamports:     getEnvUint64("MAX_DEV_BUY", 100_000_000_000),
			DefaultSlippageBps:    getEnvUint64("DEFAULT_SLIPPAGE_BPS", 100),
		},
		Database: DatabaseConfig{
			DSN: getEnv("DATABASE_URL", ""),
		},
		Admin: AdminConfig{
			Port:      getEnv("ADMIN_PORT", "8090"),
			JWTSecret: getEnv("ADMIN_JWT_SECRET", ""),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.Stream.Endpoint == "" {
		return fmt.Errorf("YELLOWSTONE_GRPC_HTTP is required")
	}
	if len(c.Stream.LeaderAddresses) == 0 {
		return fmt.Errorf("COPY_TRADING_TARGET_ADDRESS is required")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getEnvUint64(key string, defaultValue uint64) uint64 {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseUint(v, 10, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func splitCSV(v string) []string {
	if v == "" {
		return nil
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
