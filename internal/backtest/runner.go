package backtest

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"marketReplay/config"
	"marketReplay/internal/analytics"
	"marketReplay/internal/broker"
	"marketReplay/internal/domain"
	"marketReplay/internal/ports"
)

// Config holds configuration for one backtest run.
type Config struct {
	Kernel config.KernelConfig
	Main   domain.PriceHistory   // drives the steps of the run
	Extra  []domain.PriceHistory // replayed alongside the main series
	// StartTime is the first step of the run in unix ms. Zero starts at the
	// first bar of Main.
	StartTime int64
}

// Result holds the outcome of a backtest.
type Result struct {
	Run           domain.Run
	Account       domain.AccountWithPositions
	Trades        []*domain.Trade
	Metrics       analytics.Results
	Performance   *analytics.PerformanceMetrics
	EquityHistory []float64
}

// Runner replays a strategy against the configured price histories. Every
// call to Run builds a fresh simulation.
type Runner struct {
	cfg    Config
	logger ports.Logger
	repo   ports.ResultRepository // optional
	now    func() time.Time
}

// NewRunner creates a Runner. repo may be nil to skip persistence.
func NewRunner(cfg Config, logger ports.Logger, repo ports.ResultRepository) *Runner {
	return &Runner{cfg: cfg, logger: logger, repo: repo, now: time.Now}
}

// Run executes the strategy until the data is exhausted. Kernel errors, the
// iteration ceiling and context cancellation abort the run.
func (r *Runner) Run(ctx context.Context, strategy ports.Strategy) (*Result, error) {
	runID := uuid.NewString()
	logger := ports.WithFields(r.logger, map[string]interface{}{
		"runId":      runID,
		"mainSeries": r.cfg.Main.Key().String(),
	})

	res, err := r.run(ctx, runID, logger, strategy)
	if err != nil {
		logger.Error(ctx, err, "Backtest failed")
		return nil, err
	}

	logger.Info(ctx, "Backtest finished", map[string]interface{}{
		"iterations":   res.Run.Iterations,
		"trades":       len(res.Trades),
		"endingCash":   res.Run.EndingCash,
		"endingEquity": res.Run.EndingEquity,
	})

	if r.repo != nil {
		if err := r.persist(ctx, res); err != nil {
			logger.Error(ctx, err, "Failed to persist backtest results")
			return res, err
		}
	}
	return res, nil
}

func (r *Runner) run(ctx context.Context, runID string, logger ports.Logger, strategy ports.Strategy) (*Result, error) {
	if err := r.cfg.Kernel.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ports.ErrConfigurationError, err)
	}
	startedAt := r.now().UTC()

	sim := broker.NewSimulation(r.cfg.Kernel, logger)
	b := broker.NewBroker(sim)
	if err := b.Init(ctx, r.cfg.Main, r.cfg.Extra, r.cfg.StartTime); err != nil {
		return nil, fmt.Errorf("init broker: %w", err)
	}

	account := b.CreateAccount()
	tracker := analytics.NewTracker(*account)
	sim.Positions.Observe(tracker.OnPosition)
	sim.Accounts.Observe(tracker.OnAccount)

	logger.Info(ctx, "Backtest started", map[string]interface{}{
		"accountId":    account.ID,
		"startingCash": account.StartingCash,
		"startTime":    b.Time(),
	})

	client := broker.NewClient(ctx, b, account.ID)
	if err := strategy.Init(ctx, client); err != nil {
		return nil, fmt.Errorf("strategy init: %w", err)
	}

	maxIterations := sim.Config.MaxIterations
	iterations := 0
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("run stopped after %d iterations: %w: %v", iterations, ports.ErrContextCanceled, ctx.Err())
		default:
		}

		bars, ok, err := b.Advance(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		tracker.OnStep(b.Time(), bars)

		if err := strategy.Next(ctx, bars); err != nil {
			return nil, fmt.Errorf("strategy next at %d: %w", b.Time(), err)
		}

		iterations++
		if iterations > maxIterations {
			return nil, fmt.Errorf("max iterations reached: %d: %w", maxIterations, ports.ErrRunawayLoop)
		}
	}

	snapshot, err := b.GetAccount(account.ID)
	if err != nil {
		return nil, err
	}
	metrics := tracker.Results()
	metricsJSON, err := json.Marshal(metrics)
	if err != nil {
		return nil, fmt.Errorf("encode metrics: %w", err)
	}
	trades := tracker.Trades()

	return &Result{
		Run: domain.Run{
			ID:           runID,
			StartedAt:    startedAt,
			FinishedAt:   r.now().UTC(),
			MainSeries:   r.cfg.Main.Key(),
			StartingCash: account.StartingCash,
			EndingCash:   snapshot.Cash,
			EndingEquity: metrics.EquityEnding,
			Iterations:   iterations,
			MetricsJSON:  string(metricsJSON),
		},
		Account:       *snapshot,
		Trades:        trades,
		Metrics:       metrics,
		Performance:   analytics.AnalyzePerformance(trades, account.StartingCash),
		EquityHistory: tracker.EquityHistory(),
	}, nil
}

func (r *Runner) persist(ctx context.Context, res *Result) error {
	if err := r.repo.SaveRun(ctx, &res.Run); err != nil {
		return fmt.Errorf("save run %s: %w", res.Run.ID, err)
	}
	if err := r.repo.SavePositions(ctx, res.Run.ID, res.Account.Positions); err != nil {
		return fmt.Errorf("save positions of run %s: %w", res.Run.ID, err)
	}
	if err := r.repo.SaveTrades(ctx, res.Run.ID, res.Trades); err != nil {
		return fmt.Errorf("save trades of run %s: %w", res.Run.ID, err)
	}
	r.logger.Debug(ctx, "Backtest results persisted", map[string]interface{}{"runId": res.Run.ID})
	return nil
}
