package config

import (
	"testing"

	"marketReplay/internal/adapters/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	t.Chdir(t.TempDir()) // no .env in scope

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, DefaultKernelConfig(), cfg.Kernel)
	assert.Equal(t, "./data/backtests.db", cfg.DBPath)
	assert.True(t, cfg.PersistResults)
	assert.Equal(t, logger.LevelInfo, cfg.LogLevel)
	assert.Equal(t, 10, cfg.StrategyShortMAPeriod)
	assert.Equal(t, 30, cfg.StrategyLongMAPeriod)
	assert.Equal(t, 14, cfg.StrategyRSIPeriod)
	assert.Equal(t, 70.0, cfg.StrategyRSIOverbought)
	assert.Equal(t, 30.0, cfg.StrategyRSIOversold)
	assert.Zero(t, cfg.StrategyMaxDrawdown)
	assert.False(t, cfg.StrategyAllowShort)
	assert.Equal(t, 4, cfg.OptimizeWorkers)
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("STARTING_CASH", "5000")
	t.Setenv("PRICE_LINE_STEP", "0.25")
	t.Setenv("MAX_ITERATIONS", "42")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, 5000.0, cfg.Kernel.StartingCash)
	assert.Equal(t, 0.25, cfg.Kernel.PriceLineStep)
	assert.Equal(t, 42, cfg.Kernel.MaxIterations)
	assert.Equal(t, 200, cfg.Kernel.MaxSearchIterations)
	assert.Equal(t, logger.LevelDebug, cfg.LogLevel)
}

func TestLoadConfig_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"negative cash", map[string]string{"STARTING_CASH": "-1"}, "STARTING_CASH must be positive"},
		{"bad step", map[string]string{"PRICE_LINE_STEP": "abc"}, "invalid PRICE_LINE_STEP"},
		{"zero iterations", map[string]string{"MAX_ITERATIONS": "0"}, "MAX_ITERATIONS must be positive"},
		{"ma order", map[string]string{"STRATEGY_SHORT_MA_PERIOD": "50"}, "STRATEGY_SHORT_MA_PERIOD must be less than"},
		{"risk range", map[string]string{"STRATEGY_RISK_PER_TRADE": "1.5"}, "STRATEGY_RISK_PER_TRADE"},
		{"rsi bounds", map[string]string{"STRATEGY_RSI_OVERSOLD": "80"}, "STRATEGY_RSI_OVERSOLD must be less than"},
		{"drawdown range", map[string]string{"STRATEGY_MAX_DRAWDOWN": "1"}, "STRATEGY_MAX_DRAWDOWN"},
		{"workers", map[string]string{"OPTIMIZE_WORKERS": "-2"}, "OPTIMIZE_WORKERS must be positive"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(t.TempDir())
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := LoadConfig()
			require.Error(t, err)
			assert.Nil(t, cfg)
			assert.Contains(t, err.Error(), "configuration validation failed")
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestKernelConfig_Validate(t *testing.T) {
	assert.NoError(t, DefaultKernelConfig().Validate())

	k := DefaultKernelConfig()
	k.PriceLineStep = 0
	k.MaxSearchIterations = -1
	err := k.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "PRICE_LINE_STEP")
	assert.Contains(t, err.Error(), "MAX_SEARCH_ITERATIONS")
}
