package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"marketReplay/internal/domain"
	"marketReplay/internal/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockLogger implements ports.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(ctx context.Context, msg string, fields ...map[string]interface{}) {}
func (m *mockLogger) Info(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Warn(ctx context.Context, msg string, fields ...map[string]interface{})  {}
func (m *mockLogger) Error(ctx context.Context, err error, msg string, fields ...map[string]interface{}) {
}

// setupTestDB creates a temporary database for testing
func setupTestDB(t *testing.T) (*Repository, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "market-replay-test-*")
	require.NoError(t, err)

	repo, err := NewRepository(Config{
		DBPath: filepath.Join(tmpDir, "test.db"),
		Logger: &mockLogger{},
	})
	require.NoError(t, err)

	cleanup := func() {
		repo.Close()
		os.RemoveAll(tmpDir)
	}
	return repo, cleanup
}

var base = time.Date(2022, 8, 20, 12, 0, 0, 0, time.UTC)

func testRun(id string, startedAt time.Time) *domain.Run {
	return &domain.Run{
		ID:           id,
		StartedAt:    startedAt,
		FinishedAt:   startedAt.Add(time.Second),
		MainSeries:   domain.SeriesKey{Symbol: "AAPL", Timeframe: domain.Day},
		StartingCash: 5000,
		EndingCash:   5090,
		EndingEquity: 5090,
		Iterations:   6,
		MetricsJSON:  `{"tradeCount":1}`,
	}
}

func TestNewRepository_RequiresLogger(t *testing.T) {
	_, err := NewRepository(Config{DBPath: filepath.Join(t.TempDir(), "x.db")})
	assert.Error(t, err)
}

func TestRepository_SaveAndFindRuns(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	older := testRun("run-a", base)
	newer := testRun("run-b", base.Add(time.Hour))
	require.NoError(t, repo.SaveRun(ctx, older))
	require.NoError(t, repo.SaveRun(ctx, newer))

	runs, err := repo.FindRuns(ctx)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-b", runs[0].ID)
	assert.Equal(t, "run-a", runs[1].ID)

	got := runs[1]
	assert.True(t, older.StartedAt.Equal(got.StartedAt))
	assert.True(t, older.FinishedAt.Equal(got.FinishedAt))
	assert.Equal(t, older.MainSeries, got.MainSeries)
	assert.Equal(t, 5090.0, got.EndingEquity)
	assert.Equal(t, 6, got.Iterations)
	assert.Equal(t, `{"tradeCount":1}`, got.MetricsJSON)
}

func TestRepository_SaveRunDuplicate(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, repo.SaveRun(ctx, testRun("dup", base)))
	err := repo.SaveRun(ctx, testRun("dup", base))
	assert.ErrorIs(t, err, ports.ErrDuplicateEntry)
}

func TestRepository_Positions(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	require.NoError(t, repo.SaveRun(ctx, testRun("run", base)))

	positions := []*domain.Position{
		{
			ID: 2, AccountID: 1, Symbol: "TSLA", Type: domain.Short, Status: domain.StatusCanceled,
			OrderQty: 5, OrderPrice: 70, OrderType: domain.OrderLimit, OrderDuration: domain.DurationDay,
			OrderTime: 1000, CancelTime: 2000,
		},
		{
			ID: 1, AccountID: 1, Symbol: "AAPL", Type: domain.Long, Status: domain.StatusClosed,
			OrderQty: 30, OrderType: domain.OrderMarket, OrderDuration: domain.DurationGoodTillCancel, OrderTime: 1000,
			Qty: 30, Cost: 90, EntryPrice: 3, EntryTime: 1000, ExitPrice: 6, ExitTime: 4000, ExitProfit: 90,
			CloseReason: domain.CloseReasonTakeProfit, StopLoss: domain.Price(2), TakeProfit: domain.Price(6),
		},
	}
	require.NoError(t, repo.SavePositions(ctx, "run", positions))

	got, err := repo.FindPositionsByRun(ctx, "run")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, positions[1], got[0])
	assert.Equal(t, positions[0], got[1])
	assert.Nil(t, got[0].TrailingStop)

	err = repo.SavePositions(ctx, "run", positions[:1])
	assert.ErrorIs(t, err, ports.ErrDuplicateEntry)

	empty, err := repo.FindPositionsByRun(ctx, "other")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRepository_Trades(t *testing.T) {
	repo, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()
	require.NoError(t, repo.SaveRun(ctx, testRun("run", base)))
	require.NoError(t, repo.SaveRun(ctx, testRun("other", base)))

	trades := []*domain.Trade{
		{
			PositionID: 3, Symbol: "AAPL", Type: domain.Long, EntryPrice: 4, ExitPrice: 3, Quantity: 10, Cost: 40,
			PNL: -10, EntryTime: base.Add(48 * time.Hour), ExitTime: base.Add(72 * time.Hour),
			CloseReason: domain.CloseReasonStopLoss,
		},
		{
			PositionID: 1, Symbol: "AAPL", Type: domain.Long, EntryPrice: 3, ExitPrice: 6, Quantity: 30, Cost: 90,
			PNL: 90, EntryTime: base, ExitTime: base.Add(72 * time.Hour),
		},
	}
	require.NoError(t, repo.SaveTrades(ctx, "run", trades))
	assert.NotZero(t, trades[0].ID)
	assert.NotZero(t, trades[1].ID)
	require.NoError(t, repo.SaveTrades(ctx, "other", []*domain.Trade{{PositionID: 9, Symbol: "GM", EntryTime: base, ExitTime: base}}))

	got, err := repo.FindTradesByRun(ctx, "run")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, int64(1), got[0].PositionID, "ordered by entry time")
	assert.Equal(t, domain.CloseReasonUnknown, got[0].CloseReason)
	assert.True(t, base.Equal(got[0].EntryTime))
	assert.Equal(t, 90.0, got[0].PNL)

	assert.Equal(t, int64(3), got[1].PositionID)
	assert.Equal(t, domain.CloseReasonStopLoss, got[1].CloseReason)
	assert.Equal(t, domain.Long, got[1].Type)
	assert.Equal(t, 40.0, got[1].Cost)
	assert.True(t, trades[0].ExitTime.Equal(got[1].ExitTime))
}
