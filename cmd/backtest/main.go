// Command backtest replays historical bars through one strategy or all of them
// and prints the performance metrics of each run. With -optimize it grid-searches
// the parameters of one strategy instead:
//
//	backtest -strategy rsi -optimize "period=7,14,21;oversold=25,30" -objective sharpe_ratio
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/your-org/regime-switch-bot/internal/backtest"
	"github.com/your-org/regime-switch-bot/internal/config"
	"github.com/your-org/regime-switch-bot/internal/csvwriter"
	"github.com/your-org/regime-switch-bot/internal/datastore"
	"github.com/your-org/regime-switch-bot/internal/market"
	"github.com/your-org/regime-switch-bot/internal/report"
	"github.com/your-org/regime-switch-bot/internal/strategy"
	"github.com/your-org/regime-switch-bot/pkg/logger"
)

const allStrategies = "all"

func main() {
	// --- Argument Parsing ---
	configPath := flag.String("config", "config/config.yaml", "Path to the configuration file")
	strategyID := flag.String("strategy", allStrategies, "Strategy id to test, or \"all\"")
	data := flag.String("data", "", "Comma-separated SYMBOL=path.csv pairs; defaults to the configured symbol and csv_path")
	fromDB := flag.Bool("db", false, "Load bars from PostgreSQL instead of CSV")
	startStr := flag.String("start", "", "Start of the window when loading from PostgreSQL (RFC3339)")
	endStr := flag.String("end", "", "End of the window when loading from PostgreSQL (RFC3339)")
	outDir := flag.String("out", "", "Directory for trades and equity CSV exports")
	save := flag.Bool("save", false, "Save metrics to the backtest_reports table")
	optimize := flag.String("optimize", "", "Parameter grid for one strategy, e.g. \"period=7,14;oversold=25,30\"")
	objective := flag.String("objective", "total_return", "Metric ranking -optimize trials: "+strings.Join(backtest.Objectives(), ", "))
	top := flag.Int("top", 10, "Number of -optimize trials to print")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	ctx := context.Background()
	var pool *pgxpool.Pool
	if *fromDB || *save {
		pool, err = pgxpool.New(ctx, cfg.Database.DSN())
		if err != nil {
			logger.Fatalf("Unable to connect to database: %v", err)
		}
		defer pool.Close()
	}

	// --- Load Bars ---
	var series map[string]market.Series
	if *fromDB {
		start, end, err := parseWindow(*startStr, *endStr)
		if err != nil {
			logger.Fatalf("Invalid window: %v", err)
		}
		repo := datastore.NewPostgresRepository(pool)
		bars, err := repo.FetchRange(ctx, cfg.Symbol, cfg.Timeframe, start, end)
		if err != nil {
			logger.Fatalf("Failed to load bars: %v", err)
		}
		series = map[string]market.Series{cfg.Symbol: bars}
	} else {
		paths, err := parseData(*data, cfg.Symbol, cfg.DataSource.CSVPath)
		if err != nil {
			logger.Fatalf("Invalid -data: %v", err)
		}
		series, err = loadCSV(paths)
		if err != nil {
			logger.Fatalf("Failed to load bars: %v", err)
		}
	}

	if *optimize != "" {
		if err := runOptimize(ctx, os.Stdout, cfg, *strategyID, *optimize, *objective, *top, series); err != nil {
			logger.Fatalf("Optimization failed: %v", err)
		}
		return
	}

	// --- Run ---
	registry := strategy.NewRegistry(cfg.Strategies)
	ids := []string{*strategyID}
	if *strategyID == allStrategies {
		ids = registry.IDs()
	}

	var store *report.Store
	if *save {
		store = report.NewStore(pool)
	}
	runID := uuid.New()
	failed := false
	for _, id := range ids {
		strat, err := registry.Get(id)
		if err != nil {
			logger.Fatalf("%v", err)
		}
		res, err := runOne(backtest.New(cfg.Backtest, cfg.Risk, strat, logger.Zap()), series)
		if err != nil {
			logger.Errorf("Backtest %s failed: %v", id, err)
			failed = true
			continue
		}
		fmt.Printf("=== %s on %s ===\n%s\n", id, strings.Join(res.symbols, ","), res.metrics.Summary())

		if *outDir != "" {
			if err := export(*outDir, id, res); err != nil {
				logger.Errorf("Export %s failed: %v", id, err)
				failed = true
			}
		}
		if store != nil {
			if err := store.Save(ctx, runID, strings.Join(res.symbols, ","), id, res.metrics); err != nil {
				logger.Errorf("%v", err)
				failed = true
			}
		}
	}
	if failed {
		logger.Sync()
		os.Exit(1)
	}
}

type outcome struct {
	symbols []string
	trades  []backtest.Trade
	equity  []backtest.EquityPoint
	metrics report.Metrics
}

// runOne uses the single-symbol engine for one series and the multi-symbol
// engine otherwise.
func runOne(eng *backtest.Engine, series map[string]market.Series) (outcome, error) {
	if len(series) == 1 {
		for sym, bars := range series {
			res, err := eng.Run(sym, bars)
			if err != nil {
				return outcome{}, err
			}
			return outcome{symbols: []string{sym}, trades: res.Trades, equity: res.Equity, metrics: res.Metrics}, nil
		}
	}
	res, err := eng.RunMulti(series)
	if err != nil {
		return outcome{}, err
	}
	return outcome{symbols: res.Symbols, trades: res.Trades, equity: res.Equity, metrics: res.Metrics}, nil
}

func export(dir, id string, res outcome) error {
	tw, err := csvwriter.NewWriter(filepath.Join(dir, id+"_trades.csv"), csvwriter.TradeHeader, logger.Zap())
	if err != nil {
		return err
	}
	if err := tw.WriteTrades(res.trades); err != nil {
		_ = tw.Close()
		return err
	}
	if err := tw.Close(); err != nil {
		return err
	}

	ew, err := csvwriter.NewWriter(filepath.Join(dir, id+"_equity.csv"), csvwriter.EquityHeader, logger.Zap())
	if err != nil {
		return err
	}
	if err := ew.WriteEquity(res.equity); err != nil {
		_ = ew.Close()
		return err
	}
	logger.Infof("Exported %d trades and %d equity points to %s", tw.Rows(), ew.Rows(), dir)
	return ew.Close()
}

// parseData parses "BTCUSDT=a.csv,ETHUSDT=b.csv". An empty value selects the
// configured symbol and path.
func parseData(data, symbol, path string) (map[string]string, error) {
	if strings.TrimSpace(data) == "" {
		if path == "" {
			return nil, fmt.Errorf("no data files given and data_source.csv_path is empty")
		}
		return map[string]string{symbol: path}, nil
	}
	out := make(map[string]string)
	for _, part := range strings.Split(data, ",") {
		sym, p, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok || sym == "" || p == "" {
			return nil, fmt.Errorf("expected SYMBOL=path, got %q", part)
		}
		if _, dup := out[sym]; dup {
			return nil, fmt.Errorf("symbol %s given twice", sym)
		}
		out[sym] = p
	}
	return out, nil
}

func loadCSV(paths map[string]string) (map[string]market.Series, error) {
	symbols := make([]string, 0, len(paths))
	for s := range paths {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	out := make(map[string]market.Series, len(paths))
	for _, sym := range symbols {
		bars, err := datastore.LoadBarsFromCSV(paths[sym])
		if err != nil {
			return nil, fmt.Errorf("%s: %w", sym, err)
		}
		logger.Infof("Loaded %d bars for %s from %s", len(bars), sym, paths[sym])
		out[sym] = bars
	}
	return out, nil
}

func parseWindow(startStr, endStr string) (time.Time, time.Time, error) {
	if startStr == "" || endStr == "" {
		return time.Time{}, time.Time{}, fmt.Errorf("both -start and -end are required with -db")
	}
	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("end %s is not after start %s", endStr, startStr)
	}
	return start, end, nil
}

// runOptimize grid-searches the parameters of strategy id and prints the best
// top trials.
func runOptimize(ctx context.Context, out io.Writer, cfg *config.Config, id, gridSpec, objective string, top int, series map[string]market.Series) error {
	if id == allStrategies {
		return fmt.Errorf("-optimize needs a single -strategy")
	}
	grid, err := parseGrid(gridSpec)
	if err != nil {
		return err
	}
	opt, err := backtest.NewOptimizer(cfg.Backtest, cfg.Risk, strategy.ParamFactory(cfg.Strategies, id), objective, logger.Zap())
	if err != nil {
		return err
	}
	trials, err := opt.Optimize(ctx, grid, series)
	if err != nil {
		return err
	}
	if top <= 0 || top > len(trials) {
		top = len(trials)
	}
	fmt.Fprintf(out, "=== %s: %d trials ranked by %s ===\n", id, len(trials), objective)
	for i, tr := range trials[:top] {
		fmt.Fprintf(out, "%2d. %-40s score %10.4f  return %8.2f%%  trades %d\n",
			i+1, tr.Params, tr.Score, tr.Metrics.TotalReturnPct, tr.Metrics.TotalTrades)
	}
	fmt.Fprintf(out, "\nBest parameters: %s\n%s\n", trials[0].Params, trials[0].Metrics.Summary())
	return nil
}

// parseGrid parses "period=7,14;oversold=25,30".
func parseGrid(spec string) (backtest.Grid, error) {
	grid := make(backtest.Grid)
	for _, part := range strings.Split(spec, ";") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, vals, ok := strings.Cut(part, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" || strings.TrimSpace(vals) == "" {
			return nil, fmt.Errorf("expected name=v1,v2, got %q", part)
		}
		if _, dup := grid[key]; dup {
			return nil, fmt.Errorf("parameter %s given twice", key)
		}
		for _, v := range strings.Split(vals, ",") {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return nil, fmt.Errorf("parameter %s: %w", key, err)
			}
			grid[key] = append(grid[key], f)
		}
	}
	if len(grid) == 0 {
		return nil, fmt.Errorf("empty parameter grid")
	}
	return grid, nil
}
