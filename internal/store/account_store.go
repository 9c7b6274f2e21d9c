package store

import "marketReplay/internal/domain"

// AccountStore holds the simulated accounts of one run.
type AccountStore struct {
	table *Table[domain.Account]
}

// NewAccountStore creates an empty account store.
func NewAccountStore() *AccountStore {
	return &AccountStore{
		table: NewTable("account",
			func(a *domain.Account) int64 { return a.ID },
			func(a *domain.Account, id int64) { a.ID = id }),
	}
}

// Create opens an account funded with startingCash.
func (s *AccountStore) Create(startingCash float64) *domain.Account {
	return s.table.Create(&domain.Account{
		Cash:         startingCash,
		StartingCash: startingCash,
	})
}

// Get returns the account with id or an ErrNotFound error.
func (s *AccountStore) Get(id int64) (*domain.Account, error) {
	return s.table.MustGet(id)
}

// Update applies mutate to the account.
func (s *AccountStore) Update(id int64, mutate func(*domain.Account)) (*domain.Account, error) {
	return s.table.Update(id, mutate)
}

// Observe registers a mutation observer.
func (s *AccountStore) Observe(fn Observer[domain.Account]) {
	s.table.Observe(fn)
}

// All returns every account in id order.
func (s *AccountStore) All() []*domain.Account {
	return s.table.All()
}
