package analytics

import (
	"math"
	"sort"
	"time"

	"marketReplay/internal/domain"
)

// PerformanceMetrics holds trade-level performance metrics of a run.
type PerformanceMetrics struct {
	// Basic Metrics
	TotalTrades        int
	WinningTrades      int
	LosingTrades       int
	WinRate            float64
	TotalProfit        float64
	MaxDrawdown        float64
	ProfitFactor       float64
	AverageWin         float64
	AverageLoss        float64
	SharpeRatio        float64
	FinalBalance       float64
	ReturnOnInvestment float64

	// Advanced Metrics
	MaxConsecutiveWins   int
	MaxConsecutiveLosses int
	AverageTradeDuration time.Duration
	RecoveryFactor       float64
	Expectancy           float64
	RiskRewardRatio      float64
	ReasonCounts         map[domain.CloseReason]int
	MonthlyReturns       map[string]float64
	Drawdowns            []Drawdown
	EquityCurve          []EquityPoint
}

// Drawdown represents a drawdown period of the realized balance.
type Drawdown struct {
	StartTime  time.Time
	EndTime    time.Time
	StartValue float64
	EndValue   float64
	Depth      float64
	Duration   time.Duration
}

// EquityPoint represents a point on the realized equity curve.
type EquityPoint struct {
	Time     time.Time
	Value    float64
	Drawdown float64
}

// AnalyzePerformance calculates performance metrics from closed trades,
// replayed in exit order against initialBalance. trades is not modified.
func AnalyzePerformance(trades []*domain.Trade, initialBalance float64) *PerformanceMetrics {
	metrics := &PerformanceMetrics{
		FinalBalance:   initialBalance,
		ReasonCounts:   make(map[domain.CloseReason]int),
		MonthlyReturns: make(map[string]float64),
		Drawdowns:      make([]Drawdown, 0),
		EquityCurve:    make([]EquityPoint, 0),
	}

	if len(trades) == 0 {
		return metrics
	}

	ordered := make([]*domain.Trade, len(trades))
	copy(ordered, trades)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].ExitTime.Before(ordered[j].ExitTime)
	})

	var currentBalance = initialBalance
	var peakBalance = initialBalance
	var currentDrawdown *Drawdown
	var consecutiveWins, consecutiveLosses int
	var grossProfit, grossLoss float64
	returns := make([]float64, 0, len(ordered))

	for _, trade := range ordered {
		metrics.TotalTrades++
		metrics.ReasonCounts[trade.CloseReason]++
		if trade.PNL > 0 {
			metrics.WinningTrades++
			consecutiveWins++
			consecutiveLosses = 0
			grossProfit += trade.PNL
			metrics.AverageWin = (metrics.AverageWin*float64(metrics.WinningTrades-1) + trade.PNL) / float64(metrics.WinningTrades)
		} else {
			metrics.LosingTrades++
			consecutiveLosses++
			consecutiveWins = 0
			grossLoss += -trade.PNL
			metrics.AverageLoss = (metrics.AverageLoss*float64(metrics.LosingTrades-1) + trade.PNL) / float64(metrics.LosingTrades)
		}
		returns = append(returns, trade.ProfitPercent())

		if consecutiveWins > metrics.MaxConsecutiveWins {
			metrics.MaxConsecutiveWins = consecutiveWins
		}
		if consecutiveLosses > metrics.MaxConsecutiveLosses {
			metrics.MaxConsecutiveLosses = consecutiveLosses
		}

		currentBalance += trade.PNL
		metrics.TotalProfit += trade.PNL
		metrics.FinalBalance = currentBalance

		monthKey := trade.ExitTime.Format("2006-01")
		metrics.MonthlyReturns[monthKey] += trade.PNL

		if currentBalance > peakBalance {
			peakBalance = currentBalance
			if currentDrawdown != nil {
				currentDrawdown.EndTime = trade.ExitTime
				currentDrawdown.EndValue = currentBalance
				currentDrawdown.Duration = currentDrawdown.EndTime.Sub(currentDrawdown.StartTime)
				metrics.Drawdowns = append(metrics.Drawdowns, *currentDrawdown)
				currentDrawdown = nil
			}
		} else if currentBalance < peakBalance {
			drawdown := (peakBalance - currentBalance) / peakBalance
			if currentDrawdown == nil {
				currentDrawdown = &Drawdown{
					StartTime:  trade.ExitTime,
					StartValue: peakBalance,
					Depth:      drawdown,
				}
			} else {
				currentDrawdown.Depth = math.Max(currentDrawdown.Depth, drawdown)
			}
			if drawdown > metrics.MaxDrawdown {
				metrics.MaxDrawdown = drawdown
			}
		}

		metrics.EquityCurve = append(metrics.EquityCurve, EquityPoint{
			Time:     trade.ExitTime,
			Value:    currentBalance,
			Drawdown: (peakBalance - currentBalance) / peakBalance,
		})
	}

	// Close any open drawdown
	if currentDrawdown != nil {
		currentDrawdown.EndTime = ordered[len(ordered)-1].ExitTime
		currentDrawdown.EndValue = currentBalance
		currentDrawdown.Duration = currentDrawdown.EndTime.Sub(currentDrawdown.StartTime)
		metrics.Drawdowns = append(metrics.Drawdowns, *currentDrawdown)
	}

	metrics.WinRate = float64(metrics.WinningTrades) / float64(metrics.TotalTrades)
	if grossLoss != 0 {
		metrics.ProfitFactor = grossProfit / grossLoss
	}
	if initialBalance != 0 {
		metrics.ReturnOnInvestment = (metrics.FinalBalance - initialBalance) / initialBalance
	}

	var totalDuration time.Duration
	for _, trade := range ordered {
		totalDuration += trade.ExitTime.Sub(trade.EntryTime)
	}
	metrics.AverageTradeDuration = totalDuration / time.Duration(len(ordered))

	if metrics.MaxDrawdown > 0 {
		metrics.RecoveryFactor = metrics.TotalProfit / (peakBalance * metrics.MaxDrawdown)
	}

	metrics.Expectancy = (metrics.WinRate * metrics.AverageWin) + ((1 - metrics.WinRate) * metrics.AverageLoss)

	if metrics.AverageLoss != 0 {
		metrics.RiskRewardRatio = metrics.AverageWin / -metrics.AverageLoss
	}

	metrics.SharpeRatio = sharpeRatio(returns)

	return metrics
}

// sharpeRatio is the mean over the sample standard deviation of per-trade
// returns, with a zero risk-free rate.
func sharpeRatio(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var variance float64
	for _, r := range returns {
		variance += (r - mean) * (r - mean)
	}
	variance /= float64(len(returns) - 1)
	if variance == 0 {
		return 0
	}
	return mean / math.Sqrt(variance)
}

// GetMonthlyReturns returns the monthly returns as a sorted slice
func (m *PerformanceMetrics) GetMonthlyReturns() []MonthlyReturn {
	returns := make([]MonthlyReturn, 0, len(m.MonthlyReturns))
	for month, profit := range m.MonthlyReturns {
		date, _ := time.Parse("2006-01", month)
		returns = append(returns, MonthlyReturn{
			Month:  date,
			Return: profit,
		})
	}
	sort.Slice(returns, func(i, j int) bool {
		return returns[i].Month.Before(returns[j].Month)
	})
	return returns
}

// MonthlyReturn represents a monthly return value
type MonthlyReturn struct {
	Month  time.Time
	Return float64
}
