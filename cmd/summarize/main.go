// cmd/summarize fetches one bar series and prints its indicator summary.
//
// Usage:
//
//	go run ./cmd/summarize -inst BTC-USDT-SWAP -bar 1H
//	go run ./cmd/summarize -source sqlite -db data/bars.db -inst ETH-USDT -bar 4H -json
//	go run ./cmd/summarize -inst BTC-USDT -bar 15m -save data/bars.db
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ta-snapshot/internal/indicator"
	"ta-snapshot/internal/logger"
	"ta-snapshot/internal/marketdata/okx"
	"ta-snapshot/internal/model"
	sqlitestore "ta-snapshot/internal/store/sqlite"
)

func main() {
	source := flag.String("source", "okx", "Bar source: okx or sqlite")
	inst := flag.String("inst", "BTC-USDT-SWAP", "Instrument ID")
	bar := flag.String("bar", "1H", "Bar interval, e.g. 1m, 15m, 1H, 4H, 1D")
	limit := flag.Int("limit", 300, "Number of most recent bars to use")
	dbPath := flag.String("db", "data/bars.db", "SQLite database (source=sqlite)")
	baseURL := flag.String("base-url", okx.DefaultBaseURL, "OKX REST base URL")
	asJSON := flag.Bool("json", false, "Print the summary as JSON")
	savePath := flag.String("save", "", "Also store the fetched bars in this SQLite database")
	verbose := flag.Bool("v", false, "Debug logging on stderr")
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(logger.New(os.Stderr, "summarize", level))

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, 30*time.Second)
	defer cancelTimeout()

	if err := run(ctx, *source, model.SeriesKey{InstID: *inst, Bar: *bar}, *limit, *dbPath, *baseURL, *savePath, *asJSON); err != nil {
		fmt.Fprintln(os.Stderr, "summarize:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, sourceKind string, key model.SeriesKey, limit int, dbPath, baseURL, savePath string, asJSON bool) error {
	var src model.BarSource
	switch sourceKind {
	case "okx":
		src = okx.NewClient(okx.Config{BaseURL: baseURL})
	case "sqlite":
		reader, err := sqlitestore.NewReader(dbPath)
		if err != nil {
			return err
		}
		defer reader.Close()
		src = reader
	default:
		return fmt.Errorf("unknown source %q (want okx or sqlite)", sourceKind)
	}

	bars, err := src.FetchBars(ctx, key, limit)
	if err != nil {
		return err
	}

	if savePath != "" {
		w, err := sqlitestore.NewWriter(sqlitestore.WriterConfig{DBPath: savePath})
		if err != nil {
			return err
		}
		err = w.WriteBars(ctx, key, bars)
		w.Close()
		if err != nil {
			return err
		}
	}

	sum, err := indicator.ComputeBars(bars)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sum)
	}
	fmt.Printf("%s  (%d bars, last %s)\n", key, len(bars), bars[len(bars)-1].Time().Format(time.RFC3339))
	fmt.Print(sum.String())
	return nil
}
