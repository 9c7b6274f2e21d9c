package trigger

import (
	"context"
	"fmt"

	"marketReplay/internal/domain"
	"marketReplay/internal/ledger"
	"marketReplay/internal/ports"
	"marketReplay/internal/store"
)

// EventKind tells fired triggers from expired ones.
type EventKind string

const (
	EventFired   EventKind = "fired"
	EventExpired EventKind = "expired"
)

// Event describes one resolved trigger. Trigger is a snapshot taken right
// after resolution.
type Event struct {
	Kind    EventKind
	Trigger domain.Trigger
	Bar     domain.Bar
}

// Engine resolves standing triggers against each new bar. Per symbol it only
// looks at the price-line buckets crossed since the previous bar.
type Engine struct {
	positions *store.PositionStore
	triggers  *store.TriggerStore
	accounts  *ledger.AccountService
	logger    ports.Logger

	lastIndex map[string]int64
	observers []func(Event)
}

// NewEngine creates an Engine.
func NewEngine(positions *store.PositionStore, triggers *store.TriggerStore, accounts *ledger.AccountService, logger ports.Logger) *Engine {
	return &Engine{
		positions: positions,
		triggers:  triggers,
		accounts:  accounts,
		logger:    logger,
		lastIndex: make(map[string]int64),
	}
}

// Observe registers fn for every fired or expired trigger.
func (e *Engine) Observe(fn func(Event)) {
	e.observers = append(e.observers, fn)
}

// Reset forgets the last visited bucket of every symbol.
func (e *Engine) Reset() {
	e.lastIndex = make(map[string]int64)
}

// ProcessBar resolves the triggers of symbol against bar.
//
// Positions owning an immediate trigger are visited first. The first bar of
// a symbol then visits every position with active triggers; later bars walk
// the price line from the previous close bucket to this close bucket, both
// included. Each position is processed once per bar, in visiting order.
func (e *Engine) ProcessBar(ctx context.Context, symbol string, bar domain.Bar) error {
	var order []int64
	seen := make(map[int64]bool)
	visit := func(positionID int64) {
		if positionID == 0 || seen[positionID] {
			return
		}
		seen[positionID] = true
		order = append(order, positionID)
	}

	for _, t := range e.triggers.BySymbolType(symbol, domain.Immediate) {
		visit(t.PositionID)
	}

	target := e.triggers.BucketIndex(bar.Close)
	if last, ok := e.lastIndex[symbol]; ok {
		e.triggers.VisitBuckets(symbol, last, target, func(t *domain.Trigger) {
			visit(t.PositionID)
		})
	} else {
		for _, id := range e.triggers.ActivePositionIDs(symbol) {
			visit(id)
		}
	}
	e.lastIndex[symbol] = target

	for _, id := range order {
		if err := e.processPosition(ctx, id, bar); err != nil {
			return err
		}
	}
	return nil
}

// processPosition runs the triggers of one position in priority order:
// entry, trailing-stop pull, then close market, the closer stop and take
// profit. Each step re-reads the labels so that exits provisioned by a
// same-bar entry are evaluated too.
func (e *Engine) processPosition(ctx context.Context, positionID int64, bar domain.Bar) error {
	p, err := e.positions.Get(positionID)
	if err != nil {
		return err
	}
	if p.Status.IsTerminal() {
		return nil
	}

	labels := e.triggers.LabelsFor(positionID)
	for _, label := range []domain.TriggerLabel{domain.LabelEntryMarket, domain.LabelEntryLimit, domain.LabelEntryStop} {
		if t, ok := labels[label]; ok {
			if err := e.processTrigger(ctx, t, p, bar); err != nil {
				return err
			}
			break
		}
	}

	labels = e.triggers.LabelsFor(positionID)
	if t, ok := labels[domain.LabelPullTrailingStop]; ok {
		if err := e.processTrigger(ctx, t, p, bar); err != nil {
			return err
		}
	}

	labels = e.triggers.LabelsFor(positionID)
	stop := closerStop(p.Type, labels[domain.LabelStopLoss], labels[domain.LabelTrailingStop])
	for _, t := range []*domain.Trigger{labels[domain.LabelCloseMarket], stop, labels[domain.LabelTakeProfit]} {
		if t == nil {
			continue
		}
		if err := e.processTrigger(ctx, t, p, bar); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) processTrigger(ctx context.Context, t *domain.Trigger, p *domain.Position, bar domain.Bar) error {
	if p.Status.IsTerminal() || !t.IsActive {
		return nil
	}
	if t.IsExpired(bar.Time) {
		return e.expire(ctx, t, p, bar)
	}
	if !t.Hit(bar) {
		return nil
	}

	price, err := executionPrice(t, p, bar)
	if err != nil {
		return err
	}
	if _, err := e.triggers.RecordHit(t.ID, bar, price); err != nil {
		return err
	}
	if t.RemoveAfterTrigger {
		if err := e.triggers.Deactivate(t.ID); err != nil {
			return err
		}
	}

	e.logger.Info(ctx, "Trigger fired", map[string]interface{}{
		"triggerId":  t.ID,
		"positionId": p.ID,
		"symbol":     t.Symbol,
		"label":      t.Label,
		"price":      price,
		"time":       bar.Time,
	})

	switch t.Label {
	case domain.LabelEntryMarket, domain.LabelEntryLimit, domain.LabelEntryStop:
		_, err = e.accounts.ExecuteOpen(ctx, p, bar, &price)
	case domain.LabelStopLoss, domain.LabelTakeProfit, domain.LabelTrailingStop, domain.LabelCloseMarket:
		_, err = e.accounts.ExecuteClose(ctx, p, bar, &price, closeReason(t.Label))
	case domain.LabelPullTrailingStop:
		err = e.pullTrailingStop(p, bar)
	default:
		err = fmt.Errorf("trigger %d has unknown label %q: %w", t.ID, t.Label, ports.ErrInvariantViolation)
	}
	if err != nil {
		return err
	}

	e.notify(EventFired, t, bar)
	return nil
}

// expire deactivates t without firing. An expired entry cancels its
// position.
func (e *Engine) expire(ctx context.Context, t *domain.Trigger, p *domain.Position, bar domain.Bar) error {
	if err := e.triggers.Deactivate(t.ID); err != nil {
		return err
	}
	e.logger.Info(ctx, "Trigger expired", map[string]interface{}{
		"triggerId":  t.ID,
		"positionId": p.ID,
		"label":      t.Label,
		"time":       bar.Time,
	})
	if t.Label.IsEntry() && p.Status == domain.StatusPending {
		if _, err := e.accounts.ExecuteClose(ctx, p, bar, nil, ""); err != nil {
			return err
		}
	}
	e.notify(EventExpired, t, bar)
	return nil
}

func (e *Engine) pullTrailingStop(p *domain.Position, bar domain.Bar) error {
	labels := e.triggers.LabelsFor(p.ID)
	pull, okPull := labels[domain.LabelPullTrailingStop]
	stop, okStop := labels[domain.LabelTrailingStop]
	if !okPull || !okStop || p.TrailingStop == nil {
		return nil
	}

	pullPrice, stopPrice := trailStop(p.Type, bar, *p.TrailingStop, stop.Price)
	if _, err := e.triggers.UpdatePrice(pull.ID, pullPrice); err != nil {
		return err
	}
	_, err := e.triggers.UpdatePrice(stop.ID, stopPrice)
	return err
}

func (e *Engine) notify(kind EventKind, t *domain.Trigger, bar domain.Bar) {
	if len(e.observers) == 0 {
		return
	}
	ev := Event{Kind: kind, Trigger: *t, Bar: bar}
	for _, fn := range e.observers {
		fn(ev)
	}
}
