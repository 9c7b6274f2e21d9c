package broker

import (
	"context"

	"marketReplay/internal/domain"
	"marketReplay/internal/ports"
)

// Client binds a Broker to one account for use by a strategy.
type Client struct {
	ctx       context.Context
	broker    *Broker
	accountID int64
}

var _ ports.Client = (*Client)(nil)

// NewClient creates a Client for accountID. ctx is used for every call the
// strategy makes through the client.
func NewClient(ctx context.Context, broker *Broker, accountID int64) *Client {
	return &Client{ctx: ctx, broker: broker, accountID: accountID}
}

// AccountID returns the account the client trades for.
func (c *Client) AccountID() int64 {
	return c.accountID
}

func (c *Client) Time() int64 {
	return c.broker.Time()
}

func (c *Client) PlaceOrder(req ports.OrderRequest) (*domain.Position, error) {
	return c.broker.PlaceOrder(c.ctx, c.accountID, req)
}

func (c *Client) CloseOrders(req ports.CloseRequest) ([]*domain.Position, error) {
	return c.broker.CloseOrders(c.ctx, c.accountID, req)
}

// GetPositions ignores filter.AccountID; the client only sees its own account.
func (c *Client) GetPositions(filter domain.PositionFilter) []*domain.Position {
	filter.AccountID = c.accountID
	return c.broker.GetPositions(filter)
}

func (c *Client) HasPositions(filter domain.PositionFilter) bool {
	filter.AccountID = c.accountID
	return c.broker.HasPositions(filter)
}

func (c *Client) GetAccount() (*domain.AccountWithPositions, error) {
	return c.broker.GetAccount(c.accountID)
}

func (c *Client) GetQuote(symbol string) (ports.Quote, bool) {
	return c.broker.GetQuote(symbol)
}

func (c *Client) GetCandles(q ports.CandleQuery) ([]domain.Bar, error) {
	return c.broker.GetCandles(q)
}
