package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"text/tabwriter"

	"marketReplay/config"
	"marketReplay/internal/adapters/logger"
	"marketReplay/internal/adapters/sqlite"
	"marketReplay/internal/analytics"
	"marketReplay/internal/domain"
)

var runID = flag.String("run", "", "print the close reason breakdown of one run only")

func main() {
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx := context.Background()

	repo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
	if err != nil {
		log.Fatalf("FATAL: Failed to open results database: %v", err)
	}
	defer repo.Close()

	runs, err := repo.FindRuns(ctx)
	if err != nil {
		log.Fatalf("Error loading runs: %v", err)
	}
	if len(runs) == 0 {
		log.Println("No backtest runs found. Run the backtest runner first.")
		return
	}

	// Create a tabwriter for formatted output
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Run\tStarted\tSeries\tTrades\tWinRate\tAvgWin\tAvgLoss\tTotalPnL\tMaxDD\tStillOpen\tEquity\t")

	tradesByRun := make(map[string][]*domain.Trade, len(runs))
	for _, run := range runs {
		trades, err := repo.FindTradesByRun(ctx, run.ID)
		if err != nil {
			log.Printf("Error reading trades of run %s: %v", run.ID, err)
			continue
		}
		tradesByRun[run.ID] = trades

		positions, err := repo.FindPositionsByRun(ctx, run.ID)
		if err != nil {
			log.Printf("Error reading positions of run %s: %v", run.ID, err)
			continue
		}
		stillOpen := 0
		for _, p := range positions {
			if p.IsOpen() {
				stillOpen++
			}
		}

		stats := analytics.AnalyzePerformance(trades, run.StartingCash)
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\t%d\t%.2f\t\n",
			shortID(run.ID),
			run.StartedAt.Format("2006-01-02 15:04"),
			run.MainSeries,
			stats.TotalTrades,
			stats.WinRate*100,
			stats.AverageWin,
			stats.AverageLoss,
			stats.TotalProfit,
			stats.MaxDrawdown*100,
			stillOpen,
			run.EndingEquity,
		)
	}
	w.Flush()

	fmt.Println("\n## Close Reason Analysis")
	for _, run := range runs {
		if *runID != "" && run.ID != *runID {
			continue
		}
		analyzeCloseReasons(run, tradesByRun[run.ID])
	}
}

// analyzeCloseReasons prints the count and profit per close reason of a run.
func analyzeCloseReasons(run *domain.Run, trades []*domain.Trade) {
	if len(trades) == 0 {
		return
	}
	counts := make(map[domain.CloseReason]int)
	pnl := make(map[domain.CloseReason]float64)
	for _, trade := range trades {
		counts[trade.CloseReason]++
		pnl[trade.CloseReason] += trade.PNL
	}

	// Sort reasons for consistent output
	reasons := make([]domain.CloseReason, 0, len(counts))
	for reason := range counts {
		reasons = append(reasons, reason)
	}
	sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })

	fmt.Printf("\nRun: %s\n", run.ID)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "Close Reason\tCount\tTotal PnL\tAvg PnL")
	for _, reason := range reasons {
		fmt.Fprintf(w, "%s\t%d\t%.2f\t%.2f\n", reason, counts[reason], pnl[reason], pnl[reason]/float64(counts[reason]))
	}
	w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
