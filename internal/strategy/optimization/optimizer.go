package optimization

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"marketReplay/internal/analytics"
	"marketReplay/internal/backtest"
	"marketReplay/internal/ports"
)

// StrategyFactory builds a fresh strategy for one parameter combination.
type StrategyFactory func(params map[string]float64) (ports.Strategy, error)

// OptimizationResult holds the results of one parameter combination.
type OptimizationResult struct {
	Parameters map[string]float64
	RunID      string
	Metrics    *analytics.PerformanceMetrics
	Score      float64
}

// OptimizerConfig holds configuration for the optimizer
type OptimizerConfig struct {
	ParameterRanges []backtest.ParamRange
	Backtest        backtest.Config
	ScoreFunction   func(*analytics.PerformanceMetrics) float64 // DefaultScoreFunction when nil
	Workers         int                                         // concurrent runs, 1 when not positive
}

// Optimizer runs one backtest per point of a parameter grid.
type Optimizer struct {
	config OptimizerConfig
	logger ports.Logger
	repo   ports.ResultRepository
}

// NewOptimizer creates a new optimizer instance. repo may be nil; when set
// every run is persisted.
func NewOptimizer(config OptimizerConfig, logger ports.Logger, repo ports.ResultRepository) *Optimizer {
	if config.ScoreFunction == nil {
		config.ScoreFunction = DefaultScoreFunction
	}
	if config.Workers <= 0 {
		config.Workers = 1
	}
	return &Optimizer{config: config, logger: logger, repo: repo}
}

// Optimize backtests every parameter combination and returns the results
// sorted by descending score. Combinations whose strategy cannot be built or
// whose run fails are logged and left out. Cancellation stops the search.
func (o *Optimizer) Optimize(ctx context.Context, factory StrategyFactory) ([]OptimizationResult, error) {
	combinations := o.generateParameterCombinations()
	o.logger.Info(ctx, "Optimization started", map[string]interface{}{
		"combinations": len(combinations),
		"workers":      o.config.Workers,
	})

	runner := backtest.NewRunner(o.config.Backtest, o.logger, o.repo)
	resultChan := make(chan OptimizationResult, len(combinations))
	sem := make(chan struct{}, o.config.Workers)
	var wg sync.WaitGroup

	for _, params := range combinations {
		select {
		case <-ctx.Done():
			wg.Wait()
			return nil, fmt.Errorf("optimization: %w: %v", ports.ErrContextCanceled, ctx.Err())
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(params map[string]float64) {
			defer wg.Done()
			defer func() { <-sem }()

			strategy, err := factory(params)
			if err != nil {
				o.logger.Warn(ctx, "Skipping parameter combination", map[string]interface{}{
					"params": params,
					"error":  err.Error(),
				})
				return
			}

			result, err := runner.Run(ctx, strategy)
			if result == nil {
				o.logger.Warn(ctx, "Backtest of parameter combination failed", map[string]interface{}{
					"params": params,
					"error":  err.Error(),
				})
				return
			}

			resultChan <- OptimizationResult{
				Parameters: params,
				RunID:      result.Run.ID,
				Metrics:    result.Performance,
				Score:      o.config.ScoreFunction(result.Performance),
			}
		}(params)
	}

	wg.Wait()
	close(resultChan)
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("optimization: %w: %v", ports.ErrContextCanceled, err)
	}

	results := make([]OptimizationResult, 0, len(combinations))
	for result := range resultChan {
		results = append(results, result)
	}
	sortResultsByScore(results)
	return results, nil
}

// generateParameterCombinations generates all possible parameter combinations
func (o *Optimizer) generateParameterCombinations() []map[string]float64 {
	var combinations []map[string]float64
	current := make(map[string]float64)

	var generate func(int)
	generate = func(paramIndex int) {
		if paramIndex == len(o.config.ParameterRanges) {
			combination := make(map[string]float64, len(current))
			for k, v := range current {
				combination[k] = v
			}
			combinations = append(combinations, combination)
			return
		}

		param := o.config.ParameterRanges[paramIndex]
		// counting steps keeps float accumulation from dropping the last value
		steps := int(math.Floor((param.Max-param.Min)/param.Step + 1e-9))
		for i := 0; i <= steps; i++ {
			value := param.Min + float64(i)*param.Step
			if param.IsInt {
				value = math.Round(value)
			}
			current[param.Name] = value
			generate(paramIndex + 1)
		}
	}

	generate(0)
	return combinations
}

// sortResultsByScore sorts results by descending score. Ties are ordered by
// their parameters so the output is stable across runs.
func sortResultsByScore(results []OptimizationResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return paramKey(results[i].Parameters) < paramKey(results[j].Parameters)
	})
}

func paramKey(params map[string]float64) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	for _, name := range names {
		fmt.Fprintf(&b, "%s=%g;", name, params[name])
	}
	return b.String()
}

// DefaultScoreFunction provides a default scoring function for optimization
func DefaultScoreFunction(metrics *analytics.PerformanceMetrics) float64 {
	// It combines several metrics into a single score
	score := 0.0

	score += metrics.WinRate * 0.3
	score += metrics.ProfitFactor * 0.2
	score += (1 - metrics.MaxDrawdown) * 0.2
	score += metrics.ReturnOnInvestment * 0.2
	score += metrics.RiskRewardRatio * 0.1

	return score
}
