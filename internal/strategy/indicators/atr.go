package indicators

import (
	"context"
	"math"

	"marketReplay/internal/domain"
)

// ATRConfig holds configuration for the Average True Range indicator
type ATRConfig struct {
	IndicatorConfig
}

var _ Indicator = (*ATR)(nil)

// ATR implements the Average True Range indicator with Wilder's smoothing.
type ATR struct {
	BaseIndicator
}

// NewATR creates a new Average True Range indicator instance
func NewATR(config ATRConfig) *ATR {
	return &ATR{BaseIndicator: BaseIndicator{Config: config.IndicatorConfig}}
}

// Name returns the name of the indicator
func (a *ATR) Name() string {
	return "ATR"
}

// RequiredDataPoints is one more than the period: the first true range needs
// a previous close.
func (a *ATR) RequiredDataPoints() int {
	return a.Config.Period + 1
}

// Calculate computes the Average True Range value at the last bar.
func (a *ATR) Calculate(ctx context.Context, bars []domain.Bar) (float64, error) {
	period := a.Config.Period
	if err := a.checkData(a.Name(), bars, period+1); err != nil {
		return 0, err
	}

	// the first bar has no previous close, its true range is its range
	trueRanges := make([]float64, len(bars))
	trueRanges[0] = bars[0].Range()
	for i := 1; i < len(bars); i++ {
		prevClose := bars[i-1].Close
		trueRanges[i] = math.Max(bars[i].Range(),
			math.Max(math.Abs(bars[i].High-prevClose), math.Abs(bars[i].Low-prevClose)))
	}

	atr := 0.0
	for _, tr := range trueRanges[:period] {
		atr += tr
	}
	atr /= float64(period)

	for _, tr := range trueRanges[period:] {
		atr = (atr*float64(period-1) + tr) / float64(period)
	}
	return atr, nil
}
