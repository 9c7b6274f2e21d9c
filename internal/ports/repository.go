package ports

import (
	"context"
	"time"

	"marketReplay/internal/domain"
)

// ResultRepository stores the outcome of finished backtest runs.
type ResultRepository interface {
	// SaveRun stores the run summary. Runs are keyed by their uuid.
	SaveRun(ctx context.Context, run *domain.Run) error
	// SavePositions stores every position of a run, whatever its status.
	SavePositions(ctx context.Context, runID string, positions []*domain.Position) error
	// SaveTrades stores the closed round trips of a run.
	SaveTrades(ctx context.Context, runID string, trades []*domain.Trade) error
	// FindRuns returns all runs, most recent first.
	FindRuns(ctx context.Context) ([]*domain.Run, error)
	// FindTradesByRun returns the trades of one run ordered by entry time.
	FindTradesByRun(ctx context.Context, runID string) ([]*domain.Trade, error)
}

// BarReader loads one price series from a file.
type BarReader interface {
	ReadBars(ctx context.Context, path string) ([]domain.Bar, error)
}

// BarWriter persists one price series to a file.
type BarWriter interface {
	WriteBars(ctx context.Context, path string, bars []domain.Bar) error
}

// HistorySource fetches historical bars from a remote market data provider.
type HistorySource interface {
	FetchBars(ctx context.Context, symbol string, tf domain.Timeframe, start, end time.Time) ([]domain.Bar, error)
}
