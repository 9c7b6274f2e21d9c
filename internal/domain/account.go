package domain

// Account holds the simulated cash ledger of one strategy.
type Account struct {
	ID                 int64
	Cash               float64
	MarginDebt         float64 // Outstanding cost of open SHORT positions
	StartingCash       float64
	StartingMarginDebt float64
}

// AccountWithPositions is an account snapshot together with its positions.
type AccountWithPositions struct {
	Account
	Positions []*Position
}
