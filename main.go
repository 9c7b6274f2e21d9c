package main

import (
	"context"
	"log" // Use standard log only for initial fatal errors before logger is set up

	"marketReplay/config"
	"marketReplay/internal/adapters/logger"
	"marketReplay/internal/adapters/parquet"
	"marketReplay/internal/adapters/sqlite"
	"marketReplay/internal/app"
	"marketReplay/internal/backtest"
	"marketReplay/internal/ports"
	"marketReplay/internal/utils"
)

func main() {
	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx := context.Background()
	appLogger.Info(ctx, "Logger initialized", map[string]interface{}{"level": cfg.LogLevel.String()})

	// 3. Initialize Repository (Database Adapter)
	var repo ports.ResultRepository
	if cfg.PersistResults {
		sqliteRepo, err := sqlite.NewRepository(sqlite.Config{
			DBPath: cfg.DBPath,
			Logger: appLogger,
		})
		if err != nil {
			appLogger.Error(ctx, err, "FATAL: Failed to initialize database repository")
			log.Fatalf("FATAL: Failed to initialize database repository: %v", err) // Also log to stderr
		}
		defer func() {
			if err := sqliteRepo.Close(); err != nil {
				appLogger.Error(ctx, err, "Error closing database repository")
			}
		}()
		repo = sqliteRepo
		appLogger.Info(ctx, "Database repository initialized")
	}

	// 4. Initialize Application Service
	service, err := app.NewBacktestService(cfg, appLogger, repo, map[string]ports.BarReader{
		backtest.FormatCSV:     utils.BarCSV{},
		backtest.FormatParquet: parquet.NewBarFile(),
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to create application service")
		log.Fatalf("FATAL: Failed to create application service: %v", err)
	}

	// 5. Run the manifest
	report, err := service.Start(ctx)
	if err != nil {
		appLogger.Error(ctx, err, "Backtest service finished with error")
		if report == nil {
			log.Fatalf("FATAL: %v", err)
		}
	}

	if report.Result != nil {
		run := report.Result.Run
		appLogger.Info(ctx, "Backtest summary", map[string]interface{}{
			"runId":        run.ID,
			"iterations":   run.Iterations,
			"startingCash": run.StartingCash,
			"endingEquity": run.EndingEquity,
			"returnPct":    report.Result.Metrics.ReturnPercent,
			"trades":       len(report.Result.Trades),
		})
	}
	for i, r := range report.Optimization {
		appLogger.Info(ctx, "Optimization rank", map[string]interface{}{
			"rank":   i + 1,
			"runId":  r.RunID,
			"score":  r.Score,
			"params": r.Parameters,
		})
	}
}
