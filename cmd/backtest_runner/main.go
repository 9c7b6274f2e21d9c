package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"marketReplay/config"
	"marketReplay/internal/adapters/logger"
	"marketReplay/internal/adapters/parquet"
	"marketReplay/internal/adapters/sqlite"
	"marketReplay/internal/app"
	"marketReplay/internal/backtest"
	"marketReplay/internal/domain"
	"marketReplay/internal/ports"
	"marketReplay/internal/strategy/optimization"
	"marketReplay/internal/utils"
)

var (
	manifestPath = flag.String("manifest", "", "run manifest (default MANIFEST_PATH)")
	noPersist    = flag.Bool("no-persist", false, "do not write results to the database")
	top          = flag.Int("top", 10, "optimization results to print")
)

func main() {
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}
	if *manifestPath != "" {
		cfg.ManifestPath = *manifestPath
	}

	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx := context.Background()

	// 2. Results database
	var repo ports.ResultRepository
	if cfg.PersistResults && !*noPersist {
		sqliteRepo, err := sqlite.NewRepository(sqlite.Config{DBPath: cfg.DBPath, Logger: appLogger})
		if err != nil {
			log.Fatalf("FATAL: Failed to initialize database repository: %v", err)
		}
		defer sqliteRepo.Close()
		repo = sqliteRepo
	}

	// 3. Run
	service, err := app.NewBacktestService(cfg, appLogger, repo, map[string]ports.BarReader{
		backtest.FormatCSV:     utils.BarCSV{},
		backtest.FormatParquet: parquet.NewBarFile(),
	})
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	report, err := service.Start(ctx)
	if err != nil {
		appLogger.Error(ctx, err, "Backtest error")
		if report == nil {
			os.Exit(1)
		}
	}

	// 4. Print the report
	fmt.Printf("# %s\n\n", report.Name)
	if report.Result != nil {
		printResult(report.Result)
	}
	if len(report.Optimization) > 0 {
		printOptimization(report.Optimization, *top)
	}
}

func printResult(res *backtest.Result) {
	run, m, perf := res.Run, res.Metrics, res.Performance

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', 0)
	fmt.Fprintf(w, "Run\t%s\n", run.ID)
	fmt.Fprintf(w, "Series\t%s\n", run.MainSeries)
	fmt.Fprintf(w, "Steps\t%d\n", run.Iterations)
	fmt.Fprintf(w, "Starting cash\t%.2f\n", run.StartingCash)
	fmt.Fprintf(w, "Ending equity\t%.2f\n", run.EndingEquity)
	fmt.Fprintf(w, "Return\t%.2f%%\n", m.ReturnPercent)
	fmt.Fprintf(w, "Max drawdown\t%.2f%%\n", m.DrawdownPercentMax)
	fmt.Fprintf(w, "Calmar\t%.2f\n", m.CalmarRatio)
	fmt.Fprintf(w, "Trades\t%d (long %d, short %d)\n", m.TradeCount, m.TradeCountLong, m.TradeCountShort)
	fmt.Fprintf(w, "Win rate\t%.2f%%\n", m.WinPercent)
	fmt.Fprintf(w, "Profit factor\t%.2f\n", perf.ProfitFactor)
	fmt.Fprintf(w, "Sharpe\t%.2f\n", perf.SharpeRatio)
	fmt.Fprintf(w, "Expectancy\t%.2f\n", perf.Expectancy)
	w.Flush()

	if len(perf.ReasonCounts) > 0 {
		fmt.Println("\n## Close reasons")
		reasons := make([]domain.CloseReason, 0, len(perf.ReasonCounts))
		for r := range perf.ReasonCounts {
			reasons = append(reasons, r)
		}
		sort.Slice(reasons, func(i, j int) bool { return reasons[i] < reasons[j] })
		for _, r := range reasons {
			fmt.Printf("%-15s %d\n", r, perf.ReasonCounts[r])
		}
	}

	if monthly := perf.GetMonthlyReturns(); len(monthly) > 0 {
		fmt.Println("\n## Monthly profit")
		for _, mr := range monthly {
			fmt.Printf("%s %10.2f\n", mr.Month.Format("2006-01"), mr.Return)
		}
	}

	if len(res.Trades) > 0 {
		fmt.Println("\n## Trades")
		w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight|tabwriter.Debug)
		fmt.Fprintln(w, "Position\tType\tEntry\tExit\tQty\tPnL\tReason\t")
		for _, t := range res.Trades {
			fmt.Fprintf(w, "%d\t%s\t%.4f\t%.4f\t%.4f\t%.2f\t%s\t\n",
				t.PositionID, t.Type, t.EntryPrice, t.ExitPrice, t.Quantity, t.PNL, t.CloseReason)
		}
		w.Flush()
	}
}

func printOptimization(results []optimization.OptimizationResult, limit int) {
	if limit <= 0 || limit > len(results) {
		limit = len(results)
	}
	fmt.Printf("## Top %d of %d parameter sets\n", limit, len(results))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', tabwriter.AlignRight|tabwriter.Debug)
	fmt.Fprintln(w, "Rank\tScore\tTrades\tWinRate\tPnL\tMaxDD\tParams\t")
	for i, r := range results[:limit] {
		fmt.Fprintf(w, "%d\t%.4f\t%d\t%.2f\t%.2f\t%.2f\t%s\t\n",
			i+1, r.Score, r.Metrics.TotalTrades, r.Metrics.WinRate*100, r.Metrics.TotalProfit,
			r.Metrics.MaxDrawdown*100, formatParams(r.Parameters))
	}
	w.Flush()
}

func formatParams(params map[string]float64) string {
	names := make([]string, 0, len(params))
	for name := range params {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, len(names))
	for i, name := range names {
		parts[i] = fmt.Sprintf("%s=%g", name, params[name])
	}
	return strings.Join(parts, " ")
}
