package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"marketReplay/internal/adapters/logger" // Import the logger package for LogLevel
)

// Config holds all application configuration.
type Config struct {
	// Binance API, only needed to fetch history
	APIKey    string
	SecretKey string
	IsTestnet bool

	// Simulation kernel
	Kernel KernelConfig

	// Demo strategy parameters
	StrategyShortMAPeriod  int     // e.g., 10
	StrategyLongMAPeriod   int     // e.g., 30
	StrategyATRPeriod      int     // e.g., 14
	StrategyATRMultiplier  float64 // trailing distance in ATRs
	StrategyRiskPerTrade   float64 // fraction of cash risked per entry
	StrategyMaxPositionPct float64 // cap on position value as a fraction of cash
	StrategyMaxDrawdown    float64 // equity drawdown that halts new entries, 0 disables
	StrategyRSIPeriod      int     // e.g., 14
	StrategyRSIOverbought  float64 // e.g., 70.0
	StrategyRSIOversold    float64 // e.g., 30.0
	StrategyAllowShort     bool

	// Grid search
	OptimizeWorkers int

	// Persistence
	DBPath         string
	PersistResults bool

	// Run manifest
	ManifestPath string

	// Logging
	LogLevel logger.LogLevel // Use the LogLevel type from the logger adapter
}

// KernelConfig is the part of the configuration handed to one simulation run.
type KernelConfig struct {
	StartingCash        float64
	PriceLineStep       float64 // width of one price-line bucket
	MaxIterations       int     // runaway-loop ceiling of the replay loop
	MaxSearchIterations int     // bound of the nearest-index bisection
}

// DefaultKernelConfig returns the kernel defaults.
func DefaultKernelConfig() KernelConfig {
	return KernelConfig{
		StartingCash:        100000,
		PriceLineStep:       0.5,
		MaxIterations:       1000000,
		MaxSearchIterations: 200,
	}
}

// Validate checks the kernel settings.
func (k KernelConfig) Validate() error {
	var errs []string
	if k.StartingCash <= 0 {
		errs = append(errs, "STARTING_CASH must be positive")
	}
	if k.PriceLineStep <= 0 {
		errs = append(errs, "PRICE_LINE_STEP must be positive")
	}
	if k.MaxIterations <= 0 {
		errs = append(errs, "MAX_ITERATIONS must be positive")
	}
	if k.MaxSearchIterations <= 0 {
		errs = append(errs, "MAX_SEARCH_ITERATIONS must be positive")
	}
	if len(errs) > 0 {
		return fmt.Errorf("kernel configuration invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}

// LoadConfig loads configuration from environment variables (.env file).
func LoadConfig() (*Config, error) {
	// Load .env file, but don't fail if it doesn't exist (allow pure env vars)
	_ = godotenv.Load()

	cfg := &Config{}
	var err error
	var errs []string // Collect validation errors

	// Binance API
	cfg.APIKey = getEnv("BINANCE_API_KEY", "")
	cfg.SecretKey = getEnv("BINANCE_API_SECRET", "")
	cfg.IsTestnet = getEnvAsBool("IS_TESTNET", false)

	// Kernel
	defaults := DefaultKernelConfig()

	cfg.Kernel.StartingCash, err = getEnvAsFloatRequired("STARTING_CASH", defaults.StartingCash)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid STARTING_CASH: %v", err))
	} else if cfg.Kernel.StartingCash <= 0 {
		errs = append(errs, "STARTING_CASH must be positive")
	}

	cfg.Kernel.PriceLineStep, err = getEnvAsFloatRequired("PRICE_LINE_STEP", defaults.PriceLineStep)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid PRICE_LINE_STEP: %v", err))
	} else if cfg.Kernel.PriceLineStep <= 0 {
		errs = append(errs, "PRICE_LINE_STEP must be positive")
	}

	cfg.Kernel.MaxIterations, err = getEnvAsIntRequired("MAX_ITERATIONS", defaults.MaxIterations)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_ITERATIONS: %v", err))
	} else if cfg.Kernel.MaxIterations <= 0 {
		errs = append(errs, "MAX_ITERATIONS must be positive")
	}

	cfg.Kernel.MaxSearchIterations, err = getEnvAsIntRequired("MAX_SEARCH_ITERATIONS", defaults.MaxSearchIterations)
	if err != nil {
		errs = append(errs, fmt.Sprintf("invalid MAX_SEARCH_ITERATIONS: %v", err))
	} else if cfg.Kernel.MaxSearchIterations <= 0 {
		errs = append(errs, "MAX_SEARCH_ITERATIONS must be positive")
	}

	// Strategy Parameters (using defaults if not set)
	cfg.StrategyShortMAPeriod = getEnvAsInt("STRATEGY_SHORT_MA_PERIOD", 10)
	cfg.StrategyLongMAPeriod = getEnvAsInt("STRATEGY_LONG_MA_PERIOD", 30)
	cfg.StrategyATRPeriod = getEnvAsInt("STRATEGY_ATR_PERIOD", 14)
	cfg.StrategyATRMultiplier = getEnvAsFloat("STRATEGY_ATR_MULTIPLIER", 2.0)
	cfg.StrategyRiskPerTrade = getEnvAsFloat("STRATEGY_RISK_PER_TRADE", 0.01)
	cfg.StrategyMaxPositionPct = getEnvAsFloat("STRATEGY_MAX_POSITION_PCT", 0.25)
	cfg.StrategyMaxDrawdown = getEnvAsFloat("STRATEGY_MAX_DRAWDOWN", 0)
	cfg.StrategyRSIPeriod = getEnvAsInt("STRATEGY_RSI_PERIOD", 14)
	cfg.StrategyRSIOverbought = getEnvAsFloat("STRATEGY_RSI_OVERBOUGHT", 70.0)
	cfg.StrategyRSIOversold = getEnvAsFloat("STRATEGY_RSI_OVERSOLD", 30.0)
	cfg.StrategyAllowShort = getEnvAsBool("STRATEGY_ALLOW_SHORT", false)
	cfg.OptimizeWorkers = getEnvAsInt("OPTIMIZE_WORKERS", 4)

	if cfg.StrategyShortMAPeriod <= 0 || cfg.StrategyLongMAPeriod <= 0 || cfg.StrategyATRPeriod <= 0 || cfg.StrategyRSIPeriod <= 0 {
		errs = append(errs, "strategy periods (MA, ATR, RSI) must be positive")
	}
	if cfg.StrategyRSIOversold >= cfg.StrategyRSIOverbought {
		errs = append(errs, "STRATEGY_RSI_OVERSOLD must be less than STRATEGY_RSI_OVERBOUGHT")
	}
	if cfg.StrategyMaxDrawdown < 0 || cfg.StrategyMaxDrawdown >= 1.0 {
		errs = append(errs, "STRATEGY_MAX_DRAWDOWN must be in [0, 1)")
	}
	if cfg.OptimizeWorkers <= 0 {
		errs = append(errs, "OPTIMIZE_WORKERS must be positive")
	}
	if cfg.StrategyShortMAPeriod >= cfg.StrategyLongMAPeriod {
		errs = append(errs, "STRATEGY_SHORT_MA_PERIOD must be less than STRATEGY_LONG_MA_PERIOD")
	}
	if cfg.StrategyATRMultiplier <= 0 {
		errs = append(errs, "STRATEGY_ATR_MULTIPLIER must be positive")
	}
	if cfg.StrategyRiskPerTrade <= 0 || cfg.StrategyRiskPerTrade >= 1.0 {
		errs = append(errs, "STRATEGY_RISK_PER_TRADE must be between 0.0 and 1.0 (exclusive)")
	}
	if cfg.StrategyMaxPositionPct <= 0 || cfg.StrategyMaxPositionPct > 1.0 {
		errs = append(errs, "STRATEGY_MAX_POSITION_PCT must be in (0, 1]")
	}

	// Database
	cfg.DBPath = getEnv("DB_PATH", "./data/backtests.db")
	cfg.PersistResults = getEnvAsBool("PERSIST_RESULTS", true)
	if cfg.PersistResults && cfg.DBPath == "" {
		errs = append(errs, "DB_PATH must be set when PERSIST_RESULTS is enabled")
	}

	cfg.ManifestPath = getEnv("MANIFEST_PATH", "./data/manifest.yaml")

	// Logging
	logLevelStr := getEnv("LOG_LEVEL", "INFO")
	cfg.LogLevel = logger.ParseLevel(logLevelStr) // Use the parser from the logger package

	// Combine validation errors
	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// --- Env Var Helpers ---

func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsIntRequired(key string, defaultValue int) (int, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		// Use default if env var is not set at all
		return defaultValue, nil
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		// Return error if env var is set but invalid
		return 0, fmt.Errorf("invalid integer value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsFloatRequired(key string, defaultValue float64) (float64, error) {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue, nil
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid float value '%s' for key %s: %w", valueStr, key, err)
	}
	return value, nil
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
