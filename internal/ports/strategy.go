package ports

import (
	"context"

	"marketReplay/internal/domain"
)

// Strategy is the trading logic replayed by the backtest runner.
// Both calls are synchronous; the runner never calls them concurrently.
type Strategy interface {
	// Init is called once before the first step.
	Init(ctx context.Context, client Client) error
	// Next is called once per step with the latest built bar per symbol.
	Next(ctx context.Context, bars domain.BarsBySymbol) error
}

// OrderRequest describes an order placed through a Client.
type OrderRequest struct {
	Symbol        string
	Type          domain.PositionType
	OrderQty      float64
	OrderType     domain.OrderType     // MARKET when empty
	OrderDuration domain.OrderDuration // GOOD_TILL_CANCEL when empty
	OrderPrice    *float64             // required for LIMIT and STOP
	StopLoss      *float64
	TakeProfit    *float64
	TrailingStop  *float64
}

// CloseRequest selects the positions to close. PositionID wins over the filter fields.
type CloseRequest struct {
	PositionID int64
	Symbol     string
	Type       domain.PositionType
	Status     domain.StatusFilter // OPEN_PENDING when empty
}

// Quote is the current single-price mark of a symbol.
type Quote struct {
	Bid  float64
	Ask  float64
	Time int64
}

// CandleQuery selects past bars of a series. Nil bounds mean unbounded.
type CandleQuery struct {
	Symbol    string
	Timeframe domain.Timeframe
	StartTime *int64
	EndTime   *int64
}

// Client is the command/query surface a strategy uses, bound to one account.
type Client interface {
	Time() int64
	PlaceOrder(req OrderRequest) (*domain.Position, error)
	CloseOrders(req CloseRequest) ([]*domain.Position, error)
	GetPositions(filter domain.PositionFilter) []*domain.Position
	HasPositions(filter domain.PositionFilter) bool
	GetAccount() (*domain.AccountWithPositions, error)
	GetQuote(symbol string) (Quote, bool)
	GetCandles(q CandleQuery) ([]domain.Bar, error)
}
