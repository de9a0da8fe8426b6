// Command export moves bars between PostgreSQL and CSV files.
//
//	export -start 2024-01-01T00:00:00Z -end 2024-02-01T00:00:00Z > bars.csv
//	export -import bars.csv
//	export -prune-before 2023-01-01T00:00:00Z
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/your-org/regime-switch-bot/internal/config"
	"github.com/your-org/regime-switch-bot/internal/datastore"
	"github.com/your-org/regime-switch-bot/internal/market"
	"github.com/your-org/regime-switch-bot/pkg/logger"
)

type rangeFetcher interface {
	FetchRange(ctx context.Context, symbol, timeframe string, start, end time.Time) (market.Series, error)
}

type barSaver interface {
	SaveBars(ctx context.Context, symbol, timeframe string, bars market.Series) error
}

func main() {
	// --- Argument Parsing ---
	configPath := flag.String("config", "config/config.yaml", "Path to the configuration file")
	symbol := flag.String("symbol", "", "Symbol; defaults to the configured symbol")
	timeframe := flag.String("timeframe", "", "Timeframe; defaults to the configured timeframe")
	startTimeStr := flag.String("start", "", "Start time for the export window (RFC3339)")
	endTimeStr := flag.String("end", "", "End time for the export window (RFC3339)")
	importPath := flag.String("import", "", "Load bars from this CSV file into the database instead of exporting")
	pruneBefore := flag.String("prune-before", "", "Delete bars older than this time (RFC3339)")
	flag.Parse()

	// --- Config and Logger Setup ---
	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		logger.Fatalf("Failed to load configuration to get DB settings: %v", err)
	}
	logger.SetGlobalLogLevel(cfg.LogLevel)
	if *symbol == "" {
		*symbol = cfg.Symbol
	}
	if *timeframe == "" {
		*timeframe = cfg.Timeframe
	}

	// --- Database Connection ---
	ctx := context.Background()
	dbpool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		logger.Fatalf("Unable to connect to database: %v", err)
	}
	defer dbpool.Close()
	repo := datastore.NewPostgresRepository(dbpool)

	switch {
	case *pruneBefore != "":
		cutoff, err := time.Parse(time.RFC3339, *pruneBefore)
		if err != nil {
			logger.Fatalf("Invalid -prune-before: %v", err)
		}
		n, err := repo.DeleteBefore(ctx, cutoff)
		if err != nil {
			logger.Fatalf("%v", err)
		}
		logger.Infof("Deleted %d bars older than %s.", n, cutoff.Format(time.RFC3339))
	case *importPath != "":
		f, err := os.Open(*importPath)
		if err != nil {
			logger.Fatalf("Failed to open %s: %v", *importPath, err)
		}
		defer f.Close()
		n, err := importBars(ctx, repo, f, *symbol, *timeframe)
		if err != nil {
			logger.Fatalf("%v", err)
		}
		logger.Infof("Successfully imported %d bars for %s %s.", n, *symbol, *timeframe)
	default:
		start, end, err := parseWindow(*startTimeStr, *endTimeStr)
		if err != nil {
			logger.Fatalf("%v", err)
		}
		logger.Infof("Exporting %s %s bars from %s to %s...", *symbol, *timeframe, *startTimeStr, *endTimeStr)
		n, err := exportBars(ctx, repo, os.Stdout, *symbol, *timeframe, start, end)
		if err != nil {
			logger.Fatalf("%v", err)
		}
		logger.Infof("Successfully exported %d rows.", n)
	}
}

func exportBars(ctx context.Context, src rangeFetcher, w io.Writer, symbol, timeframe string, start, end time.Time) (int, error) {
	bars, err := src.FetchRange(ctx, symbol, timeframe, start, end)
	if err != nil {
		return 0, err
	}
	if err := datastore.WriteBarsCSV(w, bars); err != nil {
		return 0, err
	}
	return len(bars), nil
}

func importBars(ctx context.Context, dst barSaver, r io.Reader, symbol, timeframe string) (int, error) {
	bars, err := datastore.ReadBarsCSV(r)
	if err != nil {
		return 0, fmt.Errorf("refusing to import: %w", err)
	}
	if len(bars) == 0 {
		return 0, nil
	}
	if err := dst.SaveBars(ctx, symbol, timeframe, bars); err != nil {
		return 0, err
	}
	return len(bars), nil
}

func parseWindow(startStr, endStr string) (time.Time, time.Time, error) {
	if startStr == "" || endStr == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("both -start and -end flags are required")
	}
	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid -start: %w", err)
	}
	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid -end: %w", err)
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end %s is not after start %s", endStr, startStr)
	}
	return start, end, nil
}
