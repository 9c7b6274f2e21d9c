package indicators

import (
	"context"
	"fmt"

	"marketReplay/internal/domain"
)

// Indicator represents a technical indicator computed from past bars.
type Indicator interface {
	// Calculate computes the indicator value at the last bar
	Calculate(ctx context.Context, bars []domain.Bar) (float64, error)

	// RequiredDataPoints returns the minimum number of bars needed for calculation
	RequiredDataPoints() int

	// Name returns the name of the indicator
	Name() string
}

// IndicatorConfig holds common configuration for indicators
type IndicatorConfig struct {
	Period int
}

// BaseIndicator provides common functionality for indicators
type BaseIndicator struct {
	Config IndicatorConfig
}

// RequiredDataPoints returns the minimum number of bars needed for calculation
func (b *BaseIndicator) RequiredDataPoints() int {
	return b.Config.Period
}

func (b *BaseIndicator) checkData(name string, bars []domain.Bar, need int) error {
	if b.Config.Period <= 0 {
		return fmt.Errorf("%s period must be positive, got %d", name, b.Config.Period)
	}
	if len(bars) < need {
		return fmt.Errorf("not enough data (%d) to calculate %s for period %d", len(bars), name, b.Config.Period)
	}
	return nil
}

// Cross describes how a fast line moved relative to a slow line between two
// consecutive bars.
type Cross int

const (
	NoCross Cross = iota
	CrossUp
	CrossDown
)

// Crossover compares the fast/slow pair of the previous bar with the pair of
// the current bar. Touching counts as not yet crossed.
func Crossover(prevFast, prevSlow, fast, slow float64) Cross {
	switch {
	case prevFast <= prevSlow && fast > slow:
		return CrossUp
	case prevFast >= prevSlow && fast < slow:
		return CrossDown
	default:
		return NoCross
	}
}
