package trigger

import (
	"fmt"

	"marketReplay/internal/domain"
	"marketReplay/internal/ports"
)

// executionPrice returns the fill price of t on bar.
//
// An order hit on the bar it was placed on fills at the trigger price, which
// must lie inside the bar. Otherwise immediate triggers fill at the open, and
// so does a bar that opened beyond the trigger in its direction.
func executionPrice(t *domain.Trigger, p *domain.Position, bar domain.Bar) (float64, error) {
	if p.OrderTime > bar.Time {
		return 0, fmt.Errorf("trigger %d of position %d on bar %d before its order time %d: %w",
			t.ID, p.ID, bar.Time, p.OrderTime, ports.ErrTimeRegression)
	}

	if p.OrderTime == bar.Time {
		if t.Type == domain.Immediate && t.Label == domain.LabelCloseMarket {
			return bar.Close, nil
		}
		if !bar.Contains(t.Price) {
			return 0, fmt.Errorf("trigger %d price %v outside bar [%v, %v]: %w",
				t.ID, t.Price, bar.Low, bar.High, ports.ErrOutOfRangeFill)
		}
		return t.Price, nil
	}

	if t.Type == domain.Immediate {
		return bar.Open, nil
	}

	gapUp := t.Type.IsUpper() && decimalGT(bar.Open, t.Price)
	gapDown := t.Type.IsLower() && decimalLT(bar.Open, t.Price)
	if gapUp || gapDown {
		return bar.Open, nil
	}
	return t.Price, nil
}

// closerStop picks the stop the position would hit first: the higher one for
// LONG, the lower one for SHORT. Ties keep the stop loss.
func closerStop(pt domain.PositionType, stopLoss, trailing *domain.Trigger) *domain.Trigger {
	switch {
	case trailing == nil:
		return stopLoss
	case stopLoss == nil:
		return trailing
	case pt == domain.Long && decimalGT(trailing.Price, stopLoss.Price):
		return trailing
	case pt == domain.Short && decimalLT(trailing.Price, stopLoss.Price):
		return trailing
	default:
		return stopLoss
	}
}

// trailStop returns the new pull and stop prices for a trailing stop after
// bar. The stop trails the bar high by trail, or sits at the bar's opposite
// extreme when the bar is wider than the trail, and never moves against the
// position.
func trailStop(pt domain.PositionType, bar domain.Bar, trail, current float64) (pull, stop float64) {
	wide := decimalLT(trail, decimalSub(bar.High, bar.Low))
	if pt == domain.Long {
		pull = bar.High
		stop = decimalSub(bar.High, trail)
		if wide {
			stop = bar.Low
		}
		if decimalLT(stop, current) {
			stop = current
		}
		return pull, stop
	}
	pull = bar.Low
	stop = decimalAdd(bar.High, trail)
	if wide {
		stop = bar.High
	}
	if decimalGT(stop, current) {
		stop = current
	}
	return pull, stop
}

func closeReason(label domain.TriggerLabel) domain.CloseReason {
	switch label {
	case domain.LabelStopLoss:
		return domain.CloseReasonStopLoss
	case domain.LabelTakeProfit:
		return domain.CloseReasonTakeProfit
	case domain.LabelTrailingStop:
		return domain.CloseReasonTrailingStop
	case domain.LabelCloseMarket:
		return domain.CloseReasonMarket
	default:
		return domain.CloseReasonUnknown
	}
}
