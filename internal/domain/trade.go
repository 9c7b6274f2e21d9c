package domain

import "time"

// Trade represents a completed round trip, projected from a CLOSED position.
type Trade struct {
	ID          int64        // Unique identifier for the trade (usually from DB)
	PositionID  int64        // Identifier of the position this trade closed
	Symbol      string       // Trading symbol
	Type        PositionType // LONG or SHORT
	EntryPrice  float64      // Price at which the position was entered
	ExitPrice   float64      // Price at which the position was exited
	Quantity    float64      // Size of the position traded
	Cost        float64      // Entry value of the position
	PNL         float64      // Profit and Loss for this trade
	EntryTime   time.Time    // Timestamp when the position was entered
	ExitTime    time.Time    // Timestamp when the position was exited
	CloseReason CloseReason  // Reason why the position was closed (SL, TP, etc.)
}

// TradeFromPosition projects a closed position into a Trade.
// It returns nil for positions that are not CLOSED.
func TradeFromPosition(p *Position) *Trade {
	if p == nil || p.Status != StatusClosed {
		return nil
	}
	return &Trade{
		PositionID:  p.ID,
		Symbol:      p.Symbol,
		Type:        p.Type,
		EntryPrice:  p.EntryPrice,
		ExitPrice:   p.ExitPrice,
		Quantity:    p.Qty,
		Cost:        p.Cost,
		PNL:         p.ExitProfit,
		EntryTime:   time.UnixMilli(p.EntryTime).UTC(),
		ExitTime:    time.UnixMilli(p.ExitTime).UTC(),
		CloseReason: p.CloseReason,
	}
}

// ProfitPercent returns PNL relative to cost, or 0 when cost is zero.
func (t *Trade) ProfitPercent() float64 {
	if t.Cost == 0 {
		return 0
	}
	return t.PNL / t.Cost
}
