package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
)

type Config struct {
	Database  DatabaseConfig  `json:"database"`
	Redis     RedisConfig     `json:"redis"`
	Market    MarketConfig    `json:"market"`
	Optimizer OptimizerConfig `json:"optimizer"`
	Logging   LoggingConfig   `json:"logging"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig holds the optional run-summary cache settings
type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

// MarketConfig selects the candles an optimization run consumes
type MarketConfig struct {
	BaseURL  string `json:"base_url"`
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"` // e.g., "5m", "1h"
	Limit    int    `json:"limit"`    // number of candles to fetch
}

// OptimizerConfig tunes the grid searches. Empty grid slices fall back to
// the built-in defaults.
type OptimizerConfig struct {
	MaxCombinations   int     `json:"max_combinations"`
	WorkerCount       int     `json:"worker_count"`
	KeyFractionTarget float64 `json:"key_fraction_target"`
	CoverageTarget    float64 `json:"coverage_target"`
	CoverageHorizon   int     `json:"coverage_horizon"`
	ValidWeight       float64 `json:"valid_weight"`
	ProfitWeight      float64 `json:"profit_weight"`
	ProfitHorizon     int     `json:"profit_horizon"`

	VolumePercentileThresholds []float64 `json:"volume_percentile_thresholds"`
	BodyPercentageThresholds   []float64 `json:"body_percentage_thresholds"`
	LookbackCandles            []float64 `json:"lookback_candles"`
	ATRPeriods                 []float64 `json:"atr_periods"`
	ATRMultipliers             []float64 `json:"atr_multipliers"`
	BreakoutThresholds         []float64 `json:"breakout_thresholds"`
	MaxCandlesToReturn         []float64 `json:"max_candles_to_return"`
}

type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Pretty bool   `json:"pretty"` // human-readable console output
}

// Load reads config.json if present and applies environment overrides on
// top. Environment variables always win.
func Load() (*Config, error) {
	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = &Config{}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}
	var cfg Config
	if err := json.Unmarshal(file, &cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}
	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	// Database config
	cfg.Database.Host = getEnvOrDefault("DB_HOST", defaultString(cfg.Database.Host, "localhost"))
	cfg.Database.Port = getEnvIntOrDefault("DB_PORT", defaultInt(cfg.Database.Port, 5432))
	cfg.Database.User = getEnvOrDefault("DB_USER", defaultString(cfg.Database.User, "postgres"))
	cfg.Database.Password = getEnvOrDefault("DB_PASSWORD", cfg.Database.Password)
	cfg.Database.Database = getEnvOrDefault("DB_NAME", defaultString(cfg.Database.Database, "optimizer"))
	cfg.Database.SSLMode = getEnvOrDefault("DB_SSLMODE", defaultString(cfg.Database.SSLMode, "disable"))

	// Redis config
	cfg.Redis.Enabled = getEnvOrDefault("REDIS_ENABLED", boolString(cfg.Redis.Enabled)) == "true"
	cfg.Redis.Addr = getEnvOrDefault("REDIS_ADDR", defaultString(cfg.Redis.Addr, "localhost:6379"))
	cfg.Redis.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Redis.DB = getEnvIntOrDefault("REDIS_DB", cfg.Redis.DB)

	// Market config
	cfg.Market.BaseURL = getEnvOrDefault("BINANCE_BASE_URL", defaultString(cfg.Market.BaseURL, "https://api.binance.com"))
	cfg.Market.Symbol = getEnvOrDefault("MARKET_SYMBOL", defaultString(cfg.Market.Symbol, "BTCUSDC"))
	cfg.Market.Interval = getEnvOrDefault("MARKET_INTERVAL", defaultString(cfg.Market.Interval, "5m"))
	cfg.Market.Limit = getEnvIntOrDefault("MARKET_LIMIT", defaultInt(cfg.Market.Limit, 1000))

	// Optimizer config
	cfg.Optimizer.MaxCombinations = getEnvIntOrDefault("OPTIMIZER_MAX_COMBINATIONS", defaultInt(cfg.Optimizer.MaxCombinations, 50))
	cfg.Optimizer.WorkerCount = getEnvIntOrDefault("OPTIMIZER_WORKERS", cfg.Optimizer.WorkerCount)
	cfg.Optimizer.KeyFractionTarget = getEnvFloatOrDefault("OPTIMIZER_KEY_FRACTION_TARGET", defaultFloat(cfg.Optimizer.KeyFractionTarget, 0.10))
	cfg.Optimizer.CoverageTarget = getEnvFloatOrDefault("OPTIMIZER_COVERAGE_TARGET", defaultFloat(cfg.Optimizer.CoverageTarget, 0.70))
	cfg.Optimizer.CoverageHorizon = getEnvIntOrDefault("OPTIMIZER_COVERAGE_HORIZON", defaultInt(cfg.Optimizer.CoverageHorizon, 10))
	cfg.Optimizer.ValidWeight = getEnvFloatOrDefault("OPTIMIZER_VALID_WEIGHT", defaultFloat(cfg.Optimizer.ValidWeight, 0.4))
	cfg.Optimizer.ProfitWeight = getEnvFloatOrDefault("OPTIMIZER_PROFIT_WEIGHT", defaultFloat(cfg.Optimizer.ProfitWeight, 0.6))
	cfg.Optimizer.ProfitHorizon = getEnvIntOrDefault("OPTIMIZER_PROFIT_HORIZON", defaultInt(cfg.Optimizer.ProfitHorizon, 5))

	// Logging config
	cfg.Logging.Level = getEnvOrDefault("LOG_LEVEL", defaultString(cfg.Logging.Level, "info"))
	cfg.Logging.Pretty = getEnvOrDefault("LOG_PRETTY", boolString(cfg.Logging.Pretty)) == "true"
}

func defaultString(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

func defaultInt(value, fallback int) int {
	if value == 0 {
		return fallback
	}
	return value
}

func defaultFloat(value, fallback float64) float64 {
	if value == 0 {
		return fallback
	}
	return value
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
