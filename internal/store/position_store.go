package store

import (
	"fmt"

	"marketReplay/internal/domain"
	"marketReplay/internal/ports"
)

// positionKey addresses one index bucket. Empty symbol or type means "all".
type positionKey struct {
	accountID int64
	status    domain.StatusFilter
	symbol    string
	typ       domain.PositionType
}

// PositionStore keeps positions indexed by account x status group x type x symbol.
type PositionStore struct {
	table    *Table[domain.Position]
	index    map[positionKey]*IDSet
	accounts map[int64]struct{}
}

// NewPositionStore creates an empty position store.
func NewPositionStore() *PositionStore {
	s := &PositionStore{
		table: NewTable("position",
			func(p *domain.Position) int64 { return p.ID },
			func(p *domain.Position, id int64) { p.ID = id }),
		index:    make(map[positionKey]*IDSet),
		accounts: make(map[int64]struct{}),
	}
	s.table.SetIndexer(s.set, s.unset)
	return s
}

// Observe registers a mutation observer.
func (s *PositionStore) Observe(fn Observer[domain.Position]) {
	s.table.Observe(fn)
}

func (s *PositionStore) ensureBucket(key positionKey) *IDSet {
	bucket, ok := s.index[key]
	if !ok {
		bucket = NewIDSet()
		s.index[key] = bucket
	}
	return bucket
}

// keys returns the buckets p belongs to: every status filter it matches,
// crossed with its symbol or all and its type or all.
func keys(p *domain.Position) []positionKey {
	filters := p.Status.Filters()
	out := make([]positionKey, 0, len(filters)*4)
	for _, f := range filters {
		for _, sym := range [2]string{p.Symbol, ""} {
			for _, typ := range [2]domain.PositionType{p.Type, ""} {
				out = append(out, positionKey{accountID: p.AccountID, status: f, symbol: sym, typ: typ})
			}
		}
	}
	return out
}

func (s *PositionStore) set(p *domain.Position) {
	s.accounts[p.AccountID] = struct{}{}
	for _, k := range keys(p) {
		s.ensureBucket(k).Add(p.ID)
	}
}

func (s *PositionStore) unset(p *domain.Position) {
	for _, k := range keys(p) {
		if bucket, ok := s.index[k]; ok {
			bucket.Remove(p.ID)
		}
	}
}

// Create stores a new position. A missing status defaults to PENDING.
func (s *PositionStore) Create(p *domain.Position) *domain.Position {
	if p.Status == "" {
		p.Status = domain.StatusPending
	}
	if p.OrderDuration == "" {
		p.OrderDuration = domain.DurationGoodTillCancel
	}
	if p.OrderType == "" {
		p.OrderType = domain.OrderMarket
	}
	return s.table.Create(p)
}

// Import bulk-loads positions keeping their ids.
func (s *PositionStore) Import(positions []*domain.Position) error {
	return s.table.Import(positions)
}

// Get returns the position with id.
func (s *PositionStore) Get(id int64) (*domain.Position, error) {
	return s.table.MustGet(id)
}

// Update applies mutate and re-indexes the position. Status changes should
// go through UpdateStatus.
func (s *PositionStore) Update(id int64, mutate func(*domain.Position)) (*domain.Position, error) {
	return s.table.Update(id, mutate)
}

// UpdateStatus moves the position to status, enforcing the one-way lifecycle.
func (s *PositionStore) UpdateStatus(id int64, status domain.PositionStatus, mutate func(*domain.Position)) (*domain.Position, error) {
	p, err := s.table.MustGet(id)
	if err != nil {
		return nil, err
	}
	if !p.Status.CanTransitionTo(status) {
		return nil, fmt.Errorf("position %d from %s to %s: %w", id, p.Status, status, ports.ErrInvalidTransition)
	}
	return s.Update(id, func(pos *domain.Position) {
		pos.Status = status
		if mutate != nil {
			mutate(pos)
		}
	})
}

// Lookup returns the positions matching filter in id order. An unknown
// account yields an empty result.
func (s *PositionStore) Lookup(filter domain.PositionFilter) []*domain.Position {
	bucket, ok := s.index[positionKey{
		accountID: filter.AccountID,
		status:    filter.Status,
		symbol:    filter.Symbol,
		typ:       filter.Type,
	}]
	if !ok {
		return []*domain.Position{}
	}
	ids := bucket.IDs()
	out := make([]*domain.Position, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.table.Get(id); ok {
			out = append(out, p)
		}
	}
	return out
}

// Has reports whether any position matches filter.
func (s *PositionStore) Has(filter domain.PositionFilter) bool {
	bucket, ok := s.index[positionKey{
		accountID: filter.AccountID,
		status:    filter.Status,
		symbol:    filter.Symbol,
		typ:       filter.Type,
	}]
	return ok && bucket.Len() > 0
}

// HasAccount reports whether any position was ever created for accountID.
func (s *PositionStore) HasAccount(accountID int64) bool {
	_, ok := s.accounts[accountID]
	return ok
}

// All returns every position in id order.
func (s *PositionStore) All() []*domain.Position {
	return s.table.All()
}
