package domain

import "time"

// Run summarizes one finished backtest.
type Run struct {
	ID           string // uuid
	StartedAt    time.Time
	FinishedAt   time.Time
	MainSeries   SeriesKey
	StartingCash float64
	EndingCash   float64
	EndingEquity float64
	Iterations   int
	MetricsJSON  string // serialized analytics summary
}
