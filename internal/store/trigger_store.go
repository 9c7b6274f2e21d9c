package store

import (
	"fmt"
	"math"
	"sort"

	"marketReplay/internal/domain"
	"marketReplay/internal/ports"
)

// DefaultPriceStep is the default price-line bucket width.
const DefaultPriceStep = 0.5

// triggerKey addresses one symbol x type bucket. Empty fields mean "all".
type triggerKey struct {
	symbol string
	typ    domain.TriggerType
}

// TriggerCreateParams describes a new trigger. RemoveAfterTrigger defaults
// to true unless KeepAfterTrigger is set.
type TriggerCreateParams struct {
	Symbol           string
	Price            float64
	Type             domain.TriggerType
	Label            domain.TriggerLabel
	PositionID       int64
	ExpirationTime   int64
	KeepAfterTrigger bool
}

// TriggerStore keeps triggers indexed by symbol x type, by owning position
// label (active and inactive separately) and on a per-symbol price line.
// Only active triggers are present in the symbol x type index and the price
// line.
type TriggerStore struct {
	table *Table[domain.Trigger]
	step  float64

	bySymbolType map[triggerKey]*IDSet
	active       map[int64]domain.LabelMap // position id -> label -> trigger
	inactive     map[int64]domain.LabelMap
	bySymbol     map[string]*IDSet // symbol -> ids of positions owning active triggers
	lines        map[string]*PriceLine
}

// NewTriggerStore creates an empty store. A non-positive step falls back
// to DefaultPriceStep.
func NewTriggerStore(step float64) *TriggerStore {
	if step <= 0 {
		step = DefaultPriceStep
	}
	s := &TriggerStore{
		table: NewTable("trigger",
			func(t *domain.Trigger) int64 { return t.ID },
			func(t *domain.Trigger, id int64) { t.ID = id }),
		step:         step,
		bySymbolType: make(map[triggerKey]*IDSet),
		active:       make(map[int64]domain.LabelMap),
		inactive:     make(map[int64]domain.LabelMap),
		bySymbol:     make(map[string]*IDSet),
		lines:        make(map[string]*PriceLine),
	}
	s.table.SetIndexer(s.set, s.unset)
	return s
}

// Step returns the price-line bucket width.
func (s *TriggerStore) Step() float64 {
	return s.step
}

// BucketIndex returns the price-line bucket of price.
func (s *TriggerStore) BucketIndex(price float64) int64 {
	return int64(math.Floor(price / s.step))
}

// Observe registers a mutation observer.
func (s *TriggerStore) Observe(fn Observer[domain.Trigger]) {
	s.table.Observe(fn)
}

func (s *TriggerStore) line(symbol string) *PriceLine {
	l, ok := s.lines[symbol]
	if !ok {
		l = NewPriceLine(s.step)
		s.lines[symbol] = l
	}
	return l
}

func (s *TriggerStore) ensureBucket(key triggerKey) *IDSet {
	bucket, ok := s.bySymbolType[key]
	if !ok {
		bucket = NewIDSet()
		s.bySymbolType[key] = bucket
	}
	return bucket
}

func typeKeys(t *domain.Trigger) [4]triggerKey {
	return [4]triggerKey{
		{symbol: t.Symbol, typ: t.Type},
		{symbol: t.Symbol},
		{typ: t.Type},
		{},
	}
}

func (s *TriggerStore) set(t *domain.Trigger) {
	if !t.IsActive {
		if t.PositionID != 0 {
			labels, ok := s.inactive[t.PositionID]
			if !ok {
				labels = make(domain.LabelMap)
				s.inactive[t.PositionID] = labels
			}
			labels[t.Label] = t
		}
		return
	}
	for _, k := range typeKeys(t) {
		s.ensureBucket(k).Add(t.ID)
	}
	s.line(t.Symbol).Add(t.ID, t.Price)
	if t.PositionID == 0 {
		return
	}
	labels, ok := s.active[t.PositionID]
	if !ok {
		labels = make(domain.LabelMap)
		s.active[t.PositionID] = labels
	}
	labels[t.Label] = t
	owners, ok := s.bySymbol[t.Symbol]
	if !ok {
		owners = NewIDSet()
		s.bySymbol[t.Symbol] = owners
	}
	owners.Add(t.PositionID)
}

func (s *TriggerStore) unset(t *domain.Trigger) {
	if !t.IsActive {
		if labels, ok := s.inactive[t.PositionID]; ok && labels[t.Label] == t {
			delete(labels, t.Label)
			if len(labels) == 0 {
				delete(s.inactive, t.PositionID)
			}
		}
		return
	}
	for _, k := range typeKeys(t) {
		if bucket, ok := s.bySymbolType[k]; ok {
			bucket.Remove(t.ID)
		}
	}
	s.line(t.Symbol).Remove(t.ID, t.Price)
	if t.PositionID == 0 {
		return
	}
	labels, ok := s.active[t.PositionID]
	if !ok || labels[t.Label] != t {
		return
	}
	delete(labels, t.Label)
	if len(labels) > 0 {
		return
	}
	delete(s.active, t.PositionID)
	if owners, ok := s.bySymbol[t.Symbol]; ok {
		owners.Remove(t.PositionID)
	}
}

// Create stores a new active trigger. A second active trigger with the same
// position and label is an invariant violation.
func (s *TriggerStore) Create(params TriggerCreateParams) (*domain.Trigger, error) {
	if params.PositionID != 0 {
		if existing, ok := s.active[params.PositionID][params.Label]; ok {
			return nil, fmt.Errorf("trigger %s for position %d already exists as %d: %w",
				params.Label, params.PositionID, existing.ID, ports.ErrInvariantViolation)
		}
	}
	t := &domain.Trigger{
		Category:           domain.CategoryPosition,
		Symbol:             params.Symbol,
		Price:              params.Price,
		Type:               params.Type,
		PositionID:         params.PositionID,
		Label:              params.Label,
		ExpirationTime:     params.ExpirationTime,
		RemoveAfterTrigger: !params.KeepAfterTrigger,
		IsActive:           true,
	}
	return s.table.Create(t), nil
}

// Get returns the trigger with id.
func (s *TriggerStore) Get(id int64) (*domain.Trigger, error) {
	return s.table.MustGet(id)
}

// UpdatePrice moves the trigger to price, and to the matching bucket.
func (s *TriggerStore) UpdatePrice(id int64, price float64) (*domain.Trigger, error) {
	return s.table.Update(id, func(t *domain.Trigger) { t.Price = price })
}

// RecordHit stores the bar that fired the trigger and its execution price.
func (s *TriggerStore) RecordHit(id int64, bar domain.Bar, price float64) (*domain.Trigger, error) {
	return s.table.Update(id, func(t *domain.Trigger) {
		b := bar
		t.LastTriggerBar = &b
		t.LastExecutionPrice = price
	})
}

// Deactivate takes the trigger out of every active index. It stays
// retrievable by id and through InactiveLabelsFor.
func (s *TriggerStore) Deactivate(id int64) error {
	t, err := s.table.MustGet(id)
	if err != nil {
		return err
	}
	if !t.IsActive {
		return nil
	}
	_, err = s.table.Update(id, func(t *domain.Trigger) { t.IsActive = false })
	return err
}

// DeactivateForPosition deactivates every active trigger of positionID.
func (s *TriggerStore) DeactivateForPosition(positionID int64) error {
	for _, t := range sortedLabels(s.active[positionID]) {
		if err := s.Deactivate(t.ID); err != nil {
			return err
		}
	}
	return nil
}

// Remove deletes the trigger from the table and every index.
func (s *TriggerStore) Remove(id int64) bool {
	_, ok := s.table.Remove(id)
	return ok
}

// LabelsFor returns a copy of the active label map of positionID.
func (s *TriggerStore) LabelsFor(positionID int64) domain.LabelMap {
	return copyLabels(s.active[positionID])
}

// InactiveLabelsFor returns a copy of the most recent inactive trigger per
// label of positionID.
func (s *TriggerStore) InactiveLabelsFor(positionID int64) domain.LabelMap {
	return copyLabels(s.inactive[positionID])
}

// BySymbolType returns the active triggers matching symbol and type in id
// order. Empty arguments match everything.
func (s *TriggerStore) BySymbolType(symbol string, typ domain.TriggerType) []*domain.Trigger {
	bucket, ok := s.bySymbolType[triggerKey{symbol: symbol, typ: typ}]
	if !ok {
		return []*domain.Trigger{}
	}
	ids := bucket.IDs()
	out := make([]*domain.Trigger, 0, len(ids))
	for _, id := range ids {
		if t, ok := s.table.Get(id); ok {
			out = append(out, t)
		}
	}
	return out
}

// ActivePositionIDs returns the ids of positions owning active triggers on
// symbol, ascending.
func (s *TriggerStore) ActivePositionIDs(symbol string) []int64 {
	owners, ok := s.bySymbol[symbol]
	if !ok {
		return nil
	}
	return append([]int64(nil), owners.IDs()...)
}

// VisitBuckets walks the price line of symbol from bucket from to bucket to,
// both included, and calls fn for every active trigger found, bucket by
// bucket in the direction of travel and by id inside a bucket.
func (s *TriggerStore) VisitBuckets(symbol string, from, to int64, fn func(*domain.Trigger)) {
	l, ok := s.lines[symbol]
	if !ok {
		return
	}
	l.Walk(from, to, func(_ int64, ids []int64) {
		for _, id := range ids {
			if t, ok := s.table.Get(id); ok && t.IsActive {
				fn(t)
			}
		}
	})
}

// All returns every trigger, active or not, in id order.
func (s *TriggerStore) All() []*domain.Trigger {
	return s.table.All()
}

func copyLabels(src domain.LabelMap) domain.LabelMap {
	out := make(domain.LabelMap, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

// sortedLabels returns the triggers of labels by id.
func sortedLabels(labels domain.LabelMap) []*domain.Trigger {
	out := make([]*domain.Trigger, 0, len(labels))
	for _, t := range labels {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
