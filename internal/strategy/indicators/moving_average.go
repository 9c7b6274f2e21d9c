package indicators

import (
	"context"
	"fmt"

	"marketReplay/internal/domain"
)

// MovingAverageType defines the type of moving average
type MovingAverageType string

const (
	// SimpleMovingAverage represents a simple moving average
	SimpleMovingAverage MovingAverageType = "SMA"
	// ExponentialMovingAverage represents an exponential moving average
	ExponentialMovingAverage MovingAverageType = "EMA"
)

// MovingAverageConfig holds configuration for moving average indicators
type MovingAverageConfig struct {
	IndicatorConfig
	Type MovingAverageType
}

var _ Indicator = (*MovingAverage)(nil)

// MovingAverage implements both SMA and EMA indicators over bar closes.
type MovingAverage struct {
	BaseIndicator
	config MovingAverageConfig
}

// NewMovingAverage creates a new moving average indicator instance
func NewMovingAverage(config MovingAverageConfig) *MovingAverage {
	return &MovingAverage{
		BaseIndicator: BaseIndicator{Config: config.IndicatorConfig},
		config:        config,
	}
}

// Name returns the name of the indicator
func (m *MovingAverage) Name() string {
	return string(m.config.Type)
}

// Calculate returns the moving average at the last bar.
func (m *MovingAverage) Calculate(ctx context.Context, bars []domain.Bar) (float64, error) {
	series, err := m.Series(bars)
	if err != nil {
		return 0, err
	}
	return series[len(series)-1], nil
}

// Series returns the moving average at every bar from index Period-1 on, so
// the result has len(bars)-Period+1 values.
func (m *MovingAverage) Series(bars []domain.Bar) ([]float64, error) {
	if err := m.checkData(m.Name(), bars, m.Config.Period); err != nil {
		return nil, err
	}
	switch m.config.Type {
	case SimpleMovingAverage:
		return m.smaSeries(bars), nil
	case ExponentialMovingAverage:
		return m.emaSeries(bars), nil
	default:
		return nil, fmt.Errorf("unsupported moving average type: %s", m.config.Type)
	}
}

func (m *MovingAverage) smaSeries(bars []domain.Bar) []float64 {
	period := m.Config.Period
	out := make([]float64, 0, len(bars)-period+1)
	total := 0.0
	for i, b := range bars {
		total += b.Close
		if i >= period {
			total -= bars[i-period].Close
		}
		if i >= period-1 {
			out = append(out, total/float64(period))
		}
	}
	return out
}

// emaSeries seeds the EMA with the SMA of the first Period closes.
func (m *MovingAverage) emaSeries(bars []domain.Bar) []float64 {
	period := m.Config.Period
	multiplier := 2.0 / float64(period+1)

	seed := 0.0
	for _, b := range bars[:period] {
		seed += b.Close
	}
	ema := seed / float64(period)

	out := make([]float64, 0, len(bars)-period+1)
	out = append(out, ema)
	for _, b := range bars[period:] {
		ema = (b.Close-ema)*multiplier + ema
		out = append(out, ema)
	}
	return out
}
