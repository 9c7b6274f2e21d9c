package domain

// Position represents one simulated order and the position it becomes.
// Fill fields are only meaningful once the matching status is reached:
// Qty/Cost/EntryPrice/EntryTime from OPEN, Exit* on CLOSED, CancelTime on CANCELED.
type Position struct {
	ID        int64
	AccountID int64
	Symbol    string
	Type      PositionType
	Status    PositionStatus

	// Order intent
	OrderQty      float64
	OrderPrice    float64
	OrderType     OrderType
	OrderDuration OrderDuration
	OrderTime     int64 // Unix ms the order was placed

	// Fill fields
	Qty        float64
	Cost       float64 // EntryPrice * Qty, set once on open
	EntryPrice float64
	EntryTime  int64
	ExitPrice  float64
	ExitTime   int64
	ExitProfit float64
	CancelTime int64

	CloseReason CloseReason

	// Optional exit parameters
	StopLoss     *float64
	TakeProfit   *float64
	TrailingStop *float64 // Trail amount in price units
}

// IsOpen checks if the position status is open.
func (p *Position) IsOpen() bool {
	return p.Status == StatusOpen
}

// MarketValue returns Qty valued at price.
func (p *Position) MarketValue(price float64) float64 {
	return price * p.Qty
}

// Clone returns a copy that does not share the optional exit pointers.
func (p *Position) Clone() *Position {
	c := *p
	c.StopLoss = clonePrice(p.StopLoss)
	c.TakeProfit = clonePrice(p.TakeProfit)
	c.TrailingStop = clonePrice(p.TrailingStop)
	return &c
}

// Price is a convenience for building optional price fields.
func Price(v float64) *float64 {
	return &v
}

func clonePrice(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

// PositionFilter selects positions of one account. Empty fields match everything.
type PositionFilter struct {
	AccountID int64
	Status    StatusFilter
	Symbol    string
	Type      PositionType
}
