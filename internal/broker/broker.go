package broker

import (
	"context"
	"fmt"

	"marketReplay/internal/domain"
	"marketReplay/internal/ledger"
	"marketReplay/internal/ports"
)

// Broker drives one simulation step by step and exposes the order and
// market data surface used by strategies. Positions and accounts handed out
// are snapshots; call the query methods again to observe later changes.
type Broker struct {
	sim    *Simulation
	logger ports.Logger
}

// NewBroker creates a Broker over sim.
func NewBroker(sim *Simulation) *Broker {
	return &Broker{sim: sim, logger: sim.Logger}
}

// Simulation returns the run state the broker operates on.
func (b *Broker) Simulation() *Simulation {
	return b.sim
}

// Init registers the main series followed by the extra ones, builds the
// step sequence from the main series and moves to startTime. A zero
// startTime starts at the first main bar.
func (b *Broker) Init(ctx context.Context, main domain.PriceHistory, extra []domain.PriceHistory, startTime int64) error {
	if err := b.sim.Timeline.Register(main); err != nil {
		return fmt.Errorf("register main series: %w", err)
	}
	for _, h := range extra {
		if err := b.sim.Timeline.Register(h); err != nil {
			return fmt.Errorf("register series: %w", err)
		}
	}
	if err := b.sim.Timeline.InitFromSeries(main.Key()); err != nil {
		return err
	}

	first := main.Bars[0].Time
	if startTime == 0 {
		startTime = first
	}
	if startTime < first {
		return fmt.Errorf("start time %d is before the first bar %d of %s: %w",
			startTime, first, main.Key(), ports.ErrInvalidRequest)
	}
	if startTime != first {
		if err := b.sim.Timeline.SetStartTime(startTime); err != nil {
			return err
		}
	}

	b.logger.Info(ctx, "Broker initialized", map[string]interface{}{
		"mainSeries": main.Key().String(),
		"series":     len(extra) + 1,
		"steps":      len(b.sim.Timeline.Steps()),
		"startTime":  b.sim.Timeline.Time(),
	})
	return nil
}

// Advance moves the clock one step and resolves the triggers of every
// symbol that built a bar, in build order. It returns the latest built bar
// per symbol, or false once the data is exhausted.
func (b *Broker) Advance(ctx context.Context) (domain.BarsBySymbol, bool, error) {
	ok, err := b.sim.Timeline.Advance()
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	for _, symbol := range b.sim.Timeline.BuiltThisStep() {
		bar, _ := b.sim.Timeline.LatestBuilt(symbol)
		if err := b.sim.Engine.ProcessBar(ctx, symbol, bar); err != nil {
			return nil, false, fmt.Errorf("process %s bar at %d: %w", symbol, bar.Time, err)
		}
	}
	return b.sim.Timeline.LatestBuiltAll(), true, nil
}

// Time returns the current simulated time in unix ms.
func (b *Broker) Time() int64 {
	return b.sim.Timeline.Time()
}

// CreateAccount opens a new account funded with the configured starting cash.
func (b *Broker) CreateAccount() *domain.Account {
	a := b.sim.AccountService.CreateAccount(b.sim.Config.StartingCash)
	c := *a
	return &c
}

// GetQuote returns the close of the latest built bar of symbol as both bid
// and ask. It returns false when no bar has appeared for symbol yet.
func (b *Broker) GetQuote(symbol string) (ports.Quote, bool) {
	bar, ok := b.sim.Timeline.LatestBuilt(symbol)
	if !ok {
		return ports.Quote{}, false
	}
	return ports.Quote{Bid: bar.Close, Ask: bar.Close, Time: bar.Time}, true
}

// GetCandles returns the past bars of a series, optionally bounded by the
// bars nearest to the start and end times. Unknown series yield no bars.
// The returned slice aliases the timeline and must not be modified.
func (b *Broker) GetCandles(q ports.CandleQuery) ([]domain.Bar, error) {
	return b.sim.Timeline.PastBarsBetween(domain.SeriesKey{Symbol: q.Symbol, Timeframe: q.Timeframe}, q.StartTime, q.EndTime)
}

// PlaceOrder places an order for accountID at the current time.
func (b *Broker) PlaceOrder(ctx context.Context, accountID int64, req ports.OrderRequest) (*domain.Position, error) {
	params := ledger.PlaceOrderParams{
		AccountID:     accountID,
		Symbol:        req.Symbol,
		Type:          req.Type,
		OrderQty:      req.OrderQty,
		OrderTime:     b.sim.Timeline.Time(),
		OrderPrice:    req.OrderPrice,
		OrderType:     req.OrderType,
		OrderDuration: req.OrderDuration,
		StopLoss:      req.StopLoss,
		TakeProfit:    req.TakeProfit,
		TrailingStop:  req.TrailingStop,
	}
	if bar, ok := b.sim.Timeline.LatestBuilt(req.Symbol); ok {
		params.LatestBar = &bar
	}
	p, err := b.sim.AccountService.PlaceOrder(ctx, params)
	if err != nil {
		return nil, err
	}
	return p.Clone(), nil
}

// CloseOrders closes the OPEN positions and cancels the PENDING ones
// selected by req. A position id wins over the filter fields. Positions
// whose symbol has no quote yet are closed on the next bar of the symbol.
func (b *Broker) CloseOrders(ctx context.Context, accountID int64, req ports.CloseRequest) ([]*domain.Position, error) {
	status := req.Status
	if status == domain.FilterAll {
		status = domain.FilterOpenPending
	}
	switch status {
	case domain.FilterOpen, domain.FilterPending, domain.FilterOpenPending:
	default:
		return nil, fmt.Errorf("close orders with status %s: %w", status, ports.ErrInvalidRequest)
	}

	var targets []*domain.Position
	if req.PositionID != 0 {
		p, err := b.sim.Positions.Get(req.PositionID)
		if err != nil {
			return nil, err
		}
		if p.AccountID != accountID {
			return nil, fmt.Errorf("position %d of account %d: %w", p.ID, accountID, ports.ErrNotFound)
		}
		targets = []*domain.Position{p}
	} else {
		targets = b.sim.Positions.Lookup(domain.PositionFilter{
			AccountID: accountID,
			Status:    status,
			Symbol:    req.Symbol,
			Type:      req.Type,
		})
	}

	exitTime := b.sim.Timeline.Time()
	closed := make([]*domain.Position, 0, len(targets))
	for _, p := range targets {
		params := ledger.CloseOrderParams{PositionID: p.ID, ExitTime: exitTime}
		if bar, ok := b.sim.Timeline.LatestBuilt(p.Symbol); ok {
			params.LatestBar = &bar
		}
		out, err := b.sim.AccountService.CloseOrder(ctx, params)
		if err != nil {
			return nil, err
		}
		closed = append(closed, out.Clone())
	}
	return closed, nil
}

// GetPositions returns snapshots of the positions matching filter in id order.
func (b *Broker) GetPositions(filter domain.PositionFilter) []*domain.Position {
	found := b.sim.Positions.Lookup(filter)
	out := make([]*domain.Position, len(found))
	for i, p := range found {
		out[i] = p.Clone()
	}
	return out
}

// HasPositions reports whether any position matches filter.
func (b *Broker) HasPositions(filter domain.PositionFilter) bool {
	return b.sim.Positions.Has(filter)
}

// GetAccount returns a snapshot of the account with all its positions.
func (b *Broker) GetAccount(accountID int64) (*domain.AccountWithPositions, error) {
	a, err := b.sim.Accounts.Get(accountID)
	if err != nil {
		return nil, fmt.Errorf("could not get account: %w", err)
	}
	return &domain.AccountWithPositions{
		Account:   *a,
		Positions: b.GetPositions(domain.PositionFilter{AccountID: accountID}),
	}, nil
}
