package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"marketReplay/config"
	"marketReplay/internal/adapters/binanceclient"
	"marketReplay/internal/adapters/logger"
	"marketReplay/internal/adapters/parquet"
	"marketReplay/internal/domain"
	"marketReplay/internal/ports"
	"marketReplay/internal/utils"
)

var (
	symbol   = flag.String("symbol", "ETHUSDT", "futures symbol to download")
	interval = flag.String("interval", "1h", "bar timeframe, e.g. 1m, 4h, day")
	days     = flag.Int("days", 90, "days of history ending at -end")
	endFlag  = flag.String("end", "", "end of the range, RFC3339 (default now)")
	outDir   = flag.String("out", "data", "output directory")
	format   = flag.String("format", "csv", "output format: csv or parquet")
)

func main() {
	flag.Parse()

	// 1. Load Configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err) // Use standard log before logger is ready
	}

	// 2. Initialize Logger
	appLogger := logger.NewStdLogger(cfg.LogLevel)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tf, err := domain.ParseTimeframe(*interval)
	if err != nil {
		log.Fatalf("FATAL: %v", err)
	}
	end := time.Now().UTC()
	if *endFlag != "" {
		if end, err = time.Parse(time.RFC3339, *endFlag); err != nil {
			log.Fatalf("FATAL: invalid -end: %v", err)
		}
	}
	start := end.AddDate(0, 0, -*days)

	var writer ports.BarWriter
	switch *format {
	case "csv":
		writer = utils.BarCSV{}
	case "parquet":
		writer = parquet.NewBarFile()
	default:
		log.Fatalf("FATAL: unknown format %q", *format)
	}

	// 3. Initialize Exchange Client (Binance Adapter)
	binanceClient, err := binanceclient.New(binanceclient.Config{
		APIKey:     cfg.APIKey,
		SecretKey:  cfg.SecretKey,
		UseTestnet: cfg.IsTestnet,
		Logger:     appLogger,
		PageDelay:  250 * time.Millisecond,
	})
	if err != nil {
		appLogger.Error(ctx, err, "FATAL: Failed to initialize Binance client")
		log.Fatalf("FATAL: Failed to initialize Binance client: %v", err)
	}
	if err := binanceClient.Ping(ctx); err != nil {
		log.Fatalf("FATAL: Binance is unreachable: %v", err)
	}

	appLogger.Info(ctx, "Fetching bars", map[string]interface{}{
		"symbol":    *symbol,
		"timeframe": tf,
		"start":     start.Format(time.RFC3339),
		"end":       end.Format(time.RFC3339),
	})
	bars, err := binanceClient.FetchBars(ctx, *symbol, tf, start, end)
	if err != nil {
		appLogger.Error(ctx, err, "Error fetching bars")
		log.Fatalf("Error fetching bars: %v", err)
	}
	appLogger.Info(ctx, "Fetched bars", map[string]interface{}{"count": len(bars)})

	filename := filepath.Join(*outDir, fmt.Sprintf("%s_%s.%s", *symbol, tf.Interval(), *format))
	if err := writer.WriteBars(ctx, filename, bars); err != nil {
		appLogger.Error(ctx, err, "Error writing bars")
		log.Fatalf("Error writing bars: %v", err)
	}
	appLogger.Info(ctx, "Saved to", map[string]interface{}{"filename": filename})
}
