package domain

// PositionType is the direction of a position.
type PositionType string

const (
	Long  PositionType = "LONG"
	Short PositionType = "SHORT"
)

// PositionStatus represents the lifecycle state of an order/position.
type PositionStatus string

const (
	StatusPending  PositionStatus = "PENDING"
	StatusOpen     PositionStatus = "OPEN"
	StatusClosed   PositionStatus = "CLOSED"
	StatusCanceled PositionStatus = "CANCELED"
)

// IsTerminal reports whether no further transition is possible.
func (s PositionStatus) IsTerminal() bool {
	return s == StatusClosed || s == StatusCanceled
}

// CanTransitionTo reports whether s -> next is a legal one-way transition.
func (s PositionStatus) CanTransitionTo(next PositionStatus) bool {
	switch s {
	case StatusPending:
		return next == StatusOpen || next == StatusCanceled
	case StatusOpen:
		return next == StatusClosed
	default:
		return false
	}
}

// StatusFilter selects positions by a single status or a status group.
// The empty filter matches every status.
type StatusFilter string

const (
	FilterAll            StatusFilter = ""
	FilterPending        StatusFilter = "PENDING"
	FilterOpen           StatusFilter = "OPEN"
	FilterClosed         StatusFilter = "CLOSED"
	FilterCanceled       StatusFilter = "CANCELED"
	FilterOpenPending    StatusFilter = "OPEN_PENDING"
	FilterClosedCanceled StatusFilter = "CLOSED_CANCELED"
)

// Filters returns every filter bucket a position with this status belongs to.
func (s PositionStatus) Filters() []StatusFilter {
	switch s {
	case StatusPending, StatusOpen:
		return []StatusFilter{StatusFilter(s), FilterOpenPending, FilterAll}
	default:
		return []StatusFilter{StatusFilter(s), FilterClosedCanceled, FilterAll}
	}
}

// OrderType is how an order enters the market.
type OrderType string

const (
	OrderMarket OrderType = "MARKET"
	OrderLimit  OrderType = "LIMIT"
	OrderStop   OrderType = "STOP"
)

// OrderDuration is the time-in-force of an entry order.
type OrderDuration string

const (
	DurationDay            OrderDuration = "DAY"
	DurationGoodTillCancel OrderDuration = "GOOD_TILL_CANCEL"
	DurationFillOrKill     OrderDuration = "FILL_OR_KILL"
)

// CloseReason indicates why a position was closed.
type CloseReason string

const (
	CloseReasonStopLoss     CloseReason = "SL"
	CloseReasonTakeProfit   CloseReason = "TP"
	CloseReasonTrailingStop CloseReason = "TRAILING_STOP"
	CloseReasonMarket       CloseReason = "Market" // Manual or strategy-based market close
	CloseReasonUnknown      CloseReason = "Unknown"
)
