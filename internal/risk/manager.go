package risk

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"marketReplay/internal/domain"
)

// SizerConfig holds configuration for position sizing
type SizerConfig struct {
	RiskPerTrade   float64 // fraction of cash lost when the stop is hit
	MaxPositionPct float64 // cap on position value as a fraction of cash
	MaxDrawdown    float64 // equity drawdown at which new entries stop, 0 disables
	QtyStep        float64 // quantities are rounded down to a multiple of it, 0 disables
}

// Validate checks the sizing parameters.
func (c SizerConfig) Validate() error {
	if c.RiskPerTrade <= 0 || c.RiskPerTrade >= 1 {
		return fmt.Errorf("risk per trade %v must be in (0, 1)", c.RiskPerTrade)
	}
	if c.MaxPositionPct <= 0 || c.MaxPositionPct > 1 {
		return fmt.Errorf("max position pct %v must be in (0, 1]", c.MaxPositionPct)
	}
	if c.MaxDrawdown < 0 || c.MaxDrawdown >= 1 {
		return fmt.Errorf("max drawdown %v must be in [0, 1)", c.MaxDrawdown)
	}
	if c.QtyStep < 0 {
		return fmt.Errorf("quantity step %v must not be negative", c.QtyStep)
	}
	return nil
}

// Sizer turns a stop distance into an order quantity and tracks the equity
// peak to halt entries after a deep drawdown.
type Sizer struct {
	config SizerConfig
	peak   float64
}

// NewSizer creates a new sizer instance
func NewSizer(config SizerConfig) (*Sizer, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Sizer{config: config}, nil
}

// PositionSize returns the quantity that loses RiskPerTrade of cash when
// price moves stopDistance against the position, capped so the position
// value stays within MaxPositionPct of cash. Zero means no trade.
func (s *Sizer) PositionSize(cash, price, stopDistance float64) float64 {
	if cash <= 0 || price <= 0 || stopDistance <= 0 {
		return 0
	}
	qty := cash * s.config.RiskPerTrade / stopDistance
	qty = math.Min(qty, cash*s.config.MaxPositionPct/price)
	if s.config.QtyStep > 0 {
		step := decimal.NewFromFloat(s.config.QtyStep)
		qty = decimal.NewFromFloat(qty).Div(step).Floor().Mul(step).InexactFloat64()
	}
	return qty
}

// StopLoss places a stop distance away from entry on the losing side.
func (s *Sizer) StopLoss(entry, distance float64, typ domain.PositionType) float64 {
	if typ == domain.Long {
		return entry - distance
	}
	return entry + distance
}

// TakeProfit places a target distance away from entry on the winning side.
func (s *Sizer) TakeProfit(entry, distance float64, typ domain.PositionType) float64 {
	if typ == domain.Long {
		return entry + distance
	}
	return entry - distance
}

// CheckDrawdown records equity and fails when it sits more than MaxDrawdown
// below the highest equity seen.
func (s *Sizer) CheckDrawdown(equity float64) error {
	if equity > s.peak {
		s.peak = equity
	}
	if s.config.MaxDrawdown == 0 || s.peak <= 0 {
		return nil
	}
	if dd := (s.peak - equity) / s.peak; dd > s.config.MaxDrawdown {
		return fmt.Errorf("current drawdown %f exceeds maximum allowed %f", dd, s.config.MaxDrawdown)
	}
	return nil
}
