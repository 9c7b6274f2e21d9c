package indicators

import (
	"context"

	"marketReplay/internal/domain"
)

// RSIConfig holds configuration for the RSI indicator
type RSIConfig struct {
	IndicatorConfig
	Overbought float64
	Oversold   float64
}

var _ Indicator = (*RSI)(nil)

// RSI implements the Relative Strength Index indicator
type RSI struct {
	BaseIndicator
	config RSIConfig
}

// NewRSI creates a new RSI indicator instance
func NewRSI(config RSIConfig) *RSI {
	return &RSI{
		BaseIndicator: BaseIndicator{Config: config.IndicatorConfig},
		config:        config,
	}
}

// Name returns the name of the indicator
func (r *RSI) Name() string {
	return "RSI"
}

// RequiredDataPoints is one more than the period: RSI works on close changes.
func (r *RSI) RequiredDataPoints() int {
	return r.Config.Period + 1
}

// Calculate computes the RSI value using Wilder's smoothing method
func (r *RSI) Calculate(ctx context.Context, bars []domain.Bar) (float64, error) {
	period := r.Config.Period
	if err := r.checkData(r.Name(), bars, period+1); err != nil {
		return 0, err
	}
	p := float64(period)

	var avgGain, avgLoss float64
	for i := 1; i < len(bars); i++ {
		change := bars[i].Close - bars[i-1].Close
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}

		if i <= period {
			avgGain += gain / p
			avgLoss += loss / p
			continue
		}
		avgGain = (avgGain*(p-1) + gain) / p
		avgLoss = (avgLoss*(p-1) + loss) / p
	}

	if avgLoss == 0 {
		if avgGain == 0 {
			return 50, nil
		}
		return 100, nil
	}

	rsi := 100 - 100/(1+avgGain/avgLoss)
	return min(max(rsi, 0), 100), nil
}

// IsOverbought checks if the RSI value indicates an overbought condition
func (r *RSI) IsOverbought(value float64) bool {
	return value >= r.config.Overbought
}

// IsOversold checks if the RSI value indicates an oversold condition
func (r *RSI) IsOversold(value float64) bool {
	return value <= r.config.Oversold
}
