package ledger

import (
	"context"
	"fmt"

	"marketReplay/internal/domain"
	"marketReplay/internal/ports"
	"marketReplay/internal/store"
)

const msPerDay int64 = 86400000

// PositionTriggerParams describes a trigger owned by a position.
type PositionTriggerParams struct {
	PositionID       int64
	Symbol           string
	PositionType     domain.PositionType
	Price            float64
	ExpirationTime   int64
	KeepAfterTrigger bool
}

// PositionService provisions and removes the triggers that represent a
// position's entry and exit conditions.
type PositionService struct {
	triggers *store.TriggerStore
	logger   ports.Logger
}

// NewPositionService creates a PositionService over the trigger store.
func NewPositionService(triggers *store.TriggerStore, logger ports.Logger) *PositionService {
	return &PositionService{triggers: triggers, logger: logger}
}

// TriggerTypeFor returns the hit test used by label for a position of type pt.
func TriggerTypeFor(pt domain.PositionType, label domain.TriggerLabel) domain.TriggerType {
	long := pt == domain.Long
	pick := func(forLong, forShort domain.TriggerType) domain.TriggerType {
		if long {
			return forLong
		}
		return forShort
	}
	switch label {
	case domain.LabelCloseMarket, domain.LabelEntryMarket:
		return domain.Immediate
	case domain.LabelEntryLimit, domain.LabelStopLoss, domain.LabelTrailingStop:
		return pick(domain.TouchFromAbove, domain.TouchFromBelow)
	case domain.LabelEntryStop, domain.LabelTakeProfit, domain.LabelPullTrailingStop:
		return pick(domain.TouchFromBelow, domain.TouchFromAbove)
	default:
		return ""
	}
}

// SetPositionTrigger creates the trigger for label.
func (s *PositionService) SetPositionTrigger(label domain.TriggerLabel, params PositionTriggerParams) (*domain.Trigger, error) {
	typ := TriggerTypeFor(params.PositionType, label)
	if typ == "" {
		return nil, fmt.Errorf("no trigger type for label %q: %w", label, ports.ErrInvalidRequest)
	}
	return s.triggers.Create(store.TriggerCreateParams{
		Symbol:           params.Symbol,
		Price:            params.Price,
		Type:             typ,
		Label:            label,
		PositionID:       params.PositionID,
		ExpirationTime:   params.ExpirationTime,
		KeepAfterTrigger: params.KeepAfterTrigger,
	})
}

// SetTrailingStop creates the pull trigger at price and the stop trailAmount
// behind it. Both stay active after firing.
func (s *PositionService) SetTrailingStop(p *domain.Position, price, trailAmount float64) error {
	stopPrice := add(price, trailAmount)
	if p.Type == domain.Long {
		stopPrice = sub(price, trailAmount)
	}
	base := PositionTriggerParams{
		PositionID:       p.ID,
		Symbol:           p.Symbol,
		PositionType:     p.Type,
		KeepAfterTrigger: true,
	}

	pull := base
	pull.Price = price
	if _, err := s.SetPositionTrigger(domain.LabelPullTrailingStop, pull); err != nil {
		return err
	}
	stop := base
	stop.Price = stopPrice
	_, err := s.SetPositionTrigger(domain.LabelTrailingStop, stop)
	return err
}

func (s *PositionService) hasTrigger(positionID int64, label domain.TriggerLabel) bool {
	_, ok := s.triggers.LabelsFor(positionID)[label]
	return ok
}

// AddEntryTriggers provisions the entry trigger matching the order type. DAY
// orders expire one day after the order time.
func (s *PositionService) AddEntryTriggers(p *domain.Position) error {
	params := PositionTriggerParams{
		PositionID:   p.ID,
		Symbol:       p.Symbol,
		PositionType: p.Type,
		Price:        p.OrderPrice,
	}
	if p.OrderDuration == domain.DurationDay {
		params.ExpirationTime = p.OrderTime + msPerDay
	}

	var label domain.TriggerLabel
	switch p.OrderType {
	case domain.OrderLimit:
		label = domain.LabelEntryLimit
	case domain.OrderStop:
		label = domain.LabelEntryStop
	case domain.OrderMarket:
		label = domain.LabelEntryMarket
	default:
		return fmt.Errorf("position %d has unknown order type %q: %w", p.ID, p.OrderType, ports.ErrInvalidRequest)
	}
	if s.hasTrigger(p.ID, label) {
		return nil
	}
	_, err := s.SetPositionTrigger(label, params)
	return err
}

// AddExitTriggers provisions the configured stop loss, take profit and
// trailing stop of an OPEN position. Labels that already have an active
// trigger are skipped. curPrice anchors the trailing stop and defaults to
// the entry price.
func (s *PositionService) AddExitTriggers(ctx context.Context, p *domain.Position, curPrice *float64) error {
	if p.Status != domain.StatusOpen {
		return nil
	}
	anchor := p.EntryPrice
	if curPrice != nil {
		anchor = *curPrice
	}
	base := PositionTriggerParams{PositionID: p.ID, Symbol: p.Symbol, PositionType: p.Type}

	if p.StopLoss != nil && !s.hasTrigger(p.ID, domain.LabelStopLoss) {
		params := base
		params.Price = *p.StopLoss
		if _, err := s.SetPositionTrigger(domain.LabelStopLoss, params); err != nil {
			return err
		}
	}
	if p.TakeProfit != nil && !s.hasTrigger(p.ID, domain.LabelTakeProfit) {
		params := base
		params.Price = *p.TakeProfit
		if _, err := s.SetPositionTrigger(domain.LabelTakeProfit, params); err != nil {
			return err
		}
	}
	if p.TrailingStop != nil && !s.hasTrigger(p.ID, domain.LabelTrailingStop) {
		if err := s.SetTrailingStop(p, anchor, *p.TrailingStop); err != nil {
			return err
		}
	}
	s.logger.Debug(ctx, "Exit triggers provisioned", map[string]interface{}{
		"positionId": p.ID,
		"symbol":     p.Symbol,
	})
	return nil
}

// RemoveTriggers deactivates every active trigger of p.
func (s *PositionService) RemoveTriggers(p *domain.Position) error {
	return s.triggers.DeactivateForPosition(p.ID)
}
