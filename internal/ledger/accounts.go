package ledger

import (
	"context"
	"fmt"

	"marketReplay/internal/domain"
	"marketReplay/internal/ports"
	"marketReplay/internal/store"
)

// PlaceOrderParams describes a new order. OrderType defaults to MARKET and
// OrderDuration to GOOD_TILL_CANCEL. LatestBar is the newest bar of Symbol,
// nil when none has appeared yet.
type PlaceOrderParams struct {
	AccountID     int64
	Symbol        string
	Type          domain.PositionType
	OrderQty      float64
	OrderTime     int64
	OrderPrice    *float64
	OrderType     domain.OrderType
	OrderDuration domain.OrderDuration
	StopLoss      *float64
	TakeProfit    *float64
	TrailingStop  *float64
	LatestBar     *domain.Bar
}

// CloseOrderParams describes a close request for one position.
type CloseOrderParams struct {
	PositionID int64
	ExitTime   int64
	LatestBar  *domain.Bar
}

// AccountService is the order lifecycle state machine. It creates orders,
// fills and closes them against a price and keeps account cash and margin
// debt in step.
type AccountService struct {
	accounts  *store.AccountStore
	positions *store.PositionStore
	service   *PositionService
	logger    ports.Logger
}

// NewAccountService creates an AccountService.
func NewAccountService(accounts *store.AccountStore, positions *store.PositionStore, service *PositionService, logger ports.Logger) *AccountService {
	return &AccountService{
		accounts:  accounts,
		positions: positions,
		service:   service,
		logger:    logger,
	}
}

// CreateAccount opens an account funded with startingCash.
func (s *AccountService) CreateAccount(startingCash float64) *domain.Account {
	return s.accounts.Create(startingCash)
}

// PlaceOrder creates a PENDING order. A MARKET order placed at the time of
// the latest bar opens immediately at its close; anything else waits for its
// entry trigger.
func (s *AccountService) PlaceOrder(ctx context.Context, params PlaceOrderParams) (*domain.Position, error) {
	if params.OrderType == "" {
		params.OrderType = domain.OrderMarket
	}
	if params.OrderDuration == "" {
		params.OrderDuration = domain.DurationGoodTillCancel
	}
	if params.Type != domain.Long && params.Type != domain.Short {
		return nil, fmt.Errorf("position type %q: %w", params.Type, ports.ErrInvalidRequest)
	}
	if params.OrderQty <= 0 {
		return nil, fmt.Errorf("order quantity %v must be positive: %w", params.OrderQty, ports.ErrInvalidRequest)
	}
	if _, err := s.accounts.Get(params.AccountID); err != nil {
		return nil, err
	}

	latest := params.LatestBar
	sameTime := latest != nil && latest.Time == params.OrderTime
	if latest != nil && params.OrderTime < latest.Time {
		return nil, fmt.Errorf("order time %d is before the latest bar %d: %w", params.OrderTime, latest.Time, ports.ErrInvalidRequest)
	}

	orderPrice := params.OrderPrice
	if orderPrice == nil && params.OrderType == domain.OrderMarket && latest != nil {
		orderPrice = domain.Price(latest.Close)
	}
	if orderPrice == nil {
		return nil, fmt.Errorf("%s order on %s needs an order price: %w", params.OrderType, params.Symbol, ports.ErrInvalidRequest)
	}

	p := s.positions.Create(&domain.Position{
		AccountID:     params.AccountID,
		Symbol:        params.Symbol,
		Type:          params.Type,
		Status:        domain.StatusPending,
		OrderQty:      params.OrderQty,
		OrderPrice:    *orderPrice,
		OrderType:     params.OrderType,
		OrderDuration: params.OrderDuration,
		OrderTime:     params.OrderTime,
		StopLoss:      params.StopLoss,
		TakeProfit:    params.TakeProfit,
		TrailingStop:  params.TrailingStop,
	})
	s.logger.Info(ctx, "Order placed", map[string]interface{}{
		"positionId": p.ID,
		"symbol":     p.Symbol,
		"type":       p.Type,
		"orderType":  p.OrderType,
		"orderPrice": p.OrderPrice,
		"orderQty":   p.OrderQty,
	})

	if params.OrderType == domain.OrderMarket && sameTime {
		return s.ExecuteOpen(ctx, p, *latest, nil)
	}
	if err := s.service.AddEntryTriggers(p); err != nil {
		return nil, err
	}
	return p, nil
}

// ExecuteOpen fills a PENDING order at price, or at the bar close when price
// is nil, and provisions its exit triggers.
func (s *AccountService) ExecuteOpen(ctx context.Context, p *domain.Position, bar domain.Bar, price *float64) (*domain.Position, error) {
	if p.Status != domain.StatusPending {
		return nil, fmt.Errorf("cannot open order %d with status %s: %w", p.ID, p.Status, ports.ErrInvalidTransition)
	}
	account, err := s.accounts.Get(p.AccountID)
	if err != nil {
		return nil, err
	}
	if err := s.service.RemoveTriggers(p); err != nil {
		return nil, err
	}

	fill := bar.Close
	if price != nil {
		fill = *price
	}
	cost := marketValue(fill, p.OrderQty)

	opened, err := s.positions.UpdateStatus(p.ID, domain.StatusOpen, func(pos *domain.Position) {
		pos.Qty = pos.OrderQty
		pos.Cost = cost
		pos.EntryPrice = fill
		pos.EntryTime = bar.Time
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.accounts.Update(account.ID, func(a *domain.Account) {
		if opened.Type == domain.Long {
			a.Cash = sub(a.Cash, cost)
		} else {
			a.MarginDebt = add(a.MarginDebt, cost)
		}
	}); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Order opened", map[string]interface{}{
		"positionId": opened.ID,
		"symbol":     opened.Symbol,
		"entryPrice": fill,
		"cost":       cost,
		"time":       bar.Time,
	})

	if err := s.service.AddExitTriggers(ctx, opened, nil); err != nil {
		return nil, err
	}
	return opened, nil
}

// ExecuteClose closes an OPEN position at price, or at the bar close when
// price is nil, and cancels a PENDING one. Canceling has no ledger effect.
func (s *AccountService) ExecuteClose(ctx context.Context, p *domain.Position, bar domain.Bar, price *float64, reason domain.CloseReason) (*domain.Position, error) {
	if p.Status != domain.StatusOpen && p.Status != domain.StatusPending {
		return nil, fmt.Errorf("cannot close order %d with status %s: %w", p.ID, p.Status, ports.ErrInvalidTransition)
	}
	account, err := s.accounts.Get(p.AccountID)
	if err != nil {
		return nil, err
	}
	if err := s.service.RemoveTriggers(p); err != nil {
		return nil, err
	}

	if p.Status == domain.StatusPending {
		canceled, err := s.positions.UpdateStatus(p.ID, domain.StatusCanceled, func(pos *domain.Position) {
			pos.CancelTime = bar.Time
		})
		if err != nil {
			return nil, err
		}
		s.logger.Info(ctx, "Order canceled", map[string]interface{}{
			"positionId": canceled.ID,
			"symbol":     canceled.Symbol,
			"time":       bar.Time,
		})
		return canceled, nil
	}

	exit := bar.Close
	if price != nil {
		exit = *price
	}
	if reason == "" {
		reason = domain.CloseReasonMarket
	}
	value := marketValue(exit, p.Qty)
	cost := p.Cost
	profit := sub(value, cost)
	if p.Type == domain.Short {
		profit = sub(cost, value)
	}

	closed, err := s.positions.UpdateStatus(p.ID, domain.StatusClosed, func(pos *domain.Position) {
		pos.ExitPrice = exit
		pos.ExitTime = bar.Time
		pos.ExitProfit = profit
		pos.CloseReason = reason
	})
	if err != nil {
		return nil, err
	}

	if _, err := s.accounts.Update(account.ID, func(a *domain.Account) {
		if closed.Type == domain.Long {
			a.Cash = add(a.Cash, value)
			return
		}
		a.MarginDebt = sub(a.MarginDebt, cost)
		a.Cash = add(a.Cash, profit)
	}); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Order closed", map[string]interface{}{
		"positionId": closed.ID,
		"symbol":     closed.Symbol,
		"exitPrice":  exit,
		"exitProfit": profit,
		"reason":     reason,
		"time":       bar.Time,
	})
	return closed, nil
}

// CloseOrder closes a position at the latest bar close when that bar is at
// the exit time. Otherwise the close waits for the next bar of the symbol
// through an immediate closeMarket trigger.
func (s *AccountService) CloseOrder(ctx context.Context, params CloseOrderParams) (*domain.Position, error) {
	p, err := s.positions.Get(params.PositionID)
	if err != nil {
		return nil, err
	}
	if p.Status != domain.StatusOpen && p.Status != domain.StatusPending {
		return nil, fmt.Errorf("cannot close order %d with status %s: %w", p.ID, p.Status, ports.ErrInvalidTransition)
	}

	if params.LatestBar != nil && params.LatestBar.Time == params.ExitTime {
		return s.ExecuteClose(ctx, p, *params.LatestBar, nil, domain.CloseReasonMarket)
	}

	if err := s.service.RemoveTriggers(p); err != nil {
		return nil, err
	}
	if _, err := s.service.SetPositionTrigger(domain.LabelCloseMarket, PositionTriggerParams{
		PositionID:   p.ID,
		Symbol:       p.Symbol,
		PositionType: p.Type,
	}); err != nil {
		return nil, err
	}
	s.logger.Debug(ctx, "Close deferred to next bar", map[string]interface{}{
		"positionId": p.ID,
		"symbol":     p.Symbol,
	})
	return p, nil
}
