package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"marketReplay/config"
	"marketReplay/internal/backtest"
	"marketReplay/internal/ports"
	"marketReplay/internal/strategy"
	"marketReplay/internal/strategy/optimization"
)

// Report is the outcome of one manifest: a single run, or the ranked runs
// of a grid search.
type Report struct {
	Name         string
	Result       *backtest.Result
	Optimization []optimization.OptimizationResult
}

// BacktestService orchestrates loading a run manifest, building the demo
// strategy and replaying it.
type BacktestService struct {
	cfg     *config.Config
	logger  ports.Logger
	repo    ports.ResultRepository // optional
	readers map[string]ports.BarReader
}

// NewBacktestService creates a new application service instance. repo may
// be nil to skip persistence.
func NewBacktestService(
	cfg *config.Config,
	logger ports.Logger,
	repo ports.ResultRepository,
	readers map[string]ports.BarReader,
) (*BacktestService, error) {
	if cfg == nil || logger == nil || len(readers) == 0 {
		return nil, fmt.Errorf("missing required dependencies for BacktestService")
	}
	return &BacktestService{cfg: cfg, logger: logger, repo: repo, readers: readers}, nil
}

// Start runs the manifest at the configured path. SIGINT and SIGTERM cancel
// the run.
func (s *BacktestService) Start(ctx context.Context) (*Report, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			s.logger.Info(ctx, "Received shutdown signal", map[string]interface{}{"signal": sig.String()})
			cancel()
		case <-ctx.Done():
		}
	}()

	manifest, err := backtest.LoadManifest(s.cfg.ManifestPath)
	if err != nil {
		s.logger.Error(ctx, err, "Failed to load manifest", map[string]interface{}{"path": s.cfg.ManifestPath})
		return nil, err
	}
	return s.Run(ctx, manifest)
}

// Run replays manifest. The strategy starts from the application settings,
// overridden by the manifest's strategy section. When the manifest lists
// optimize ranges, every grid point is run and ranked instead.
//
// A failure to persist results returns the report together with the error.
func (s *BacktestService) Run(ctx context.Context, manifest *backtest.Manifest) (*Report, error) {
	runCfg, err := manifest.LoadSeries(ctx, s.readers)
	if err != nil {
		return nil, fmt.Errorf("load series: %w", err)
	}
	runCfg.Kernel = s.cfg.Kernel

	base := strategy.FromAppConfig(s.cfg, runCfg.Main.Key())
	if err := base.ApplyParams(manifest.Strategy); err != nil {
		return nil, err
	}

	s.logger.Info(ctx, "Running manifest", map[string]interface{}{
		"name":       manifest.Name,
		"mainSeries": runCfg.Main.Key().String(),
		"series":     len(runCfg.Extra) + 1,
		"optimize":   len(manifest.Optimize) > 0,
	})

	if len(manifest.Optimize) > 0 {
		return s.optimize(ctx, manifest, runCfg, base)
	}

	strat, err := strategy.New(base, s.logger)
	if err != nil {
		return nil, err
	}
	res, err := backtest.NewRunner(runCfg, s.logger, s.repo).Run(ctx, strat)
	if res == nil {
		return nil, err
	}
	return &Report{Name: manifest.Name, Result: res}, err
}

func (s *BacktestService) optimize(ctx context.Context, manifest *backtest.Manifest, runCfg backtest.Config, base strategy.Config) (*Report, error) {
	optimizer := optimization.NewOptimizer(optimization.OptimizerConfig{
		ParameterRanges: manifest.Optimize,
		Backtest:        runCfg,
		Workers:         s.cfg.OptimizeWorkers,
	}, s.logger, s.repo)

	results, err := optimizer.Optimize(ctx, func(params map[string]float64) (ports.Strategy, error) {
		cfg := base
		if err := cfg.ApplyParams(params); err != nil {
			return nil, err
		}
		return strategy.New(cfg, s.logger)
	})
	if err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no parameter combination of %s produced a run: %w", manifest.Name, ports.ErrInvalidRequest)
	}

	best := results[0]
	s.logger.Info(ctx, "Optimization finished", map[string]interface{}{
		"runs":       len(results),
		"bestRunId":  best.RunID,
		"bestScore":  best.Score,
		"bestParams": best.Parameters,
	})
	return &Report{Name: manifest.Name, Optimization: results}, nil
}
