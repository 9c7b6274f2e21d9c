package analytics

import (
	"math"
	"testing"
	"time"

	"marketReplay/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2022, 8, 20, 12, 0, 0, 0, time.UTC)

func trade(id int64, pnl, cost float64, entry, exit time.Time, reason domain.CloseReason) *domain.Trade {
	return &domain.Trade{
		PositionID:  id,
		Symbol:      "BTCUSDT",
		Type:        domain.Long,
		Cost:        cost,
		PNL:         pnl,
		EntryTime:   entry,
		ExitTime:    exit,
		CloseReason: reason,
	}
}

func TestAnalyzePerformance(t *testing.T) {
	initialBalance := 10000.0
	trades := []*domain.Trade{
		trade(1, 1000, 5000, base.Add(-24*time.Hour), base, domain.CloseReasonTakeProfit),
		trade(2, -1000, 5500, base.Add(-12*time.Hour), base.Add(-6*time.Hour), domain.CloseReasonStopLoss),
	}

	metrics := AnalyzePerformance(trades, initialBalance)

	assert.Equal(t, 2, metrics.TotalTrades)
	assert.Equal(t, 1, metrics.WinningTrades)
	assert.Equal(t, 1, metrics.LosingTrades)
	assert.Equal(t, 0.5, metrics.WinRate)
	assert.Equal(t, 0.0, metrics.TotalProfit)
	assert.Equal(t, initialBalance, metrics.FinalBalance)

	assert.Equal(t, 1, metrics.MaxConsecutiveWins)
	assert.Equal(t, 1, metrics.MaxConsecutiveLosses)
	assert.Equal(t, 1000.0, metrics.AverageWin)
	assert.Equal(t, -1000.0, metrics.AverageLoss)
	assert.Equal(t, 1.0, metrics.ProfitFactor)
	assert.Equal(t, 1.0, metrics.RiskRewardRatio)
	assert.Equal(t, 15*time.Hour, metrics.AverageTradeDuration)
	assert.Equal(t, map[domain.CloseReason]int{domain.CloseReasonTakeProfit: 1, domain.CloseReasonStopLoss: 1}, metrics.ReasonCounts)

	// replayed in exit order: the loss comes first
	require.Len(t, metrics.EquityCurve, 2)
	assert.Equal(t, 9000.0, metrics.EquityCurve[0].Value)
	assert.Equal(t, 10000.0, metrics.EquityCurve[1].Value)
	assert.Equal(t, int64(1), trades[0].PositionID, "input order is preserved")

	assert.Len(t, metrics.GetMonthlyReturns(), 1)
}

func TestAnalyzePerformanceEmptyTrades(t *testing.T) {
	metrics := AnalyzePerformance([]*domain.Trade{}, 10000.0)
	assert.Equal(t, 0, metrics.TotalTrades)
	assert.Equal(t, 10000.0, metrics.FinalBalance)
	assert.Empty(t, metrics.EquityCurve)
}

func TestAnalyzePerformanceDrawdown(t *testing.T) {
	trades := []*domain.Trade{
		trade(1, 1000, 5000, base.Add(-24*time.Hour), base.Add(-18*time.Hour), domain.CloseReasonTakeProfit),
		trade(2, -2200, 11000, base.Add(-12*time.Hour), base.Add(-6*time.Hour), domain.CloseReasonStopLoss),
	}

	metrics := AnalyzePerformance(trades, 10000.0)

	assert.Equal(t, 0.2, metrics.MaxDrawdown)
	require.Len(t, metrics.Drawdowns, 1)
	assert.Equal(t, 0.2, metrics.Drawdowns[0].Depth)
	assert.Equal(t, 11000.0, metrics.Drawdowns[0].StartValue)
	assert.Equal(t, 8800.0, metrics.Drawdowns[0].EndValue)
	assert.InDelta(t, -1200.0/2200.0, metrics.RecoveryFactor, 1e-12)
}

func TestAnalyzePerformanceConsecutiveTrades(t *testing.T) {
	trades := []*domain.Trade{
		trade(1, 1000, 5000, base.Add(-24*time.Hour), base.Add(-18*time.Hour), domain.CloseReasonTakeProfit),
		trade(2, 1000, 5000, base.Add(-12*time.Hour), base.Add(-6*time.Hour), domain.CloseReasonTrailingStop),
	}

	metrics := AnalyzePerformance(trades, 10000.0)

	assert.Equal(t, 2, metrics.MaxConsecutiveWins)
	assert.Equal(t, 0, metrics.MaxConsecutiveLosses)
	assert.Equal(t, 1.0, metrics.WinRate)
	assert.Equal(t, 0.0, metrics.ProfitFactor)
	assert.Equal(t, 0.0, metrics.SharpeRatio, "identical returns have no deviation")
}

func TestSharpeRatio(t *testing.T) {
	assert.Equal(t, 0.0, sharpeRatio(nil))
	assert.Equal(t, 0.0, sharpeRatio([]float64{0.5}))
	assert.InDelta(t, math.Sqrt2, sharpeRatio([]float64{0.1, 0.3}), 1e-9)
}
