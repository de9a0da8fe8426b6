// Package main is the entry point of the regime-switching paper trading bot.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/your-org/regime-switch-bot/internal/alert"
	"github.com/your-org/regime-switch-bot/internal/autoswitch"
	"github.com/your-org/regime-switch-bot/internal/benchmark"
	"github.com/your-org/regime-switch-bot/internal/config"
	"github.com/your-org/regime-switch-bot/internal/datastore"
	"github.com/your-org/regime-switch-bot/internal/dbwriter"
	"github.com/your-org/regime-switch-bot/internal/engine"
	"github.com/your-org/regime-switch-bot/internal/http/handler"
	"github.com/your-org/regime-switch-bot/internal/journal"
	"github.com/your-org/regime-switch-bot/internal/market"
	"github.com/your-org/regime-switch-bot/internal/pnl"
	"github.com/your-org/regime-switch-bot/internal/position"
	"github.com/your-org/regime-switch-bot/internal/risk"
	"github.com/your-org/regime-switch-bot/internal/scheduler"
	"github.com/your-org/regime-switch-bot/internal/selector"
	"github.com/your-org/regime-switch-bot/internal/strategy"
	"github.com/your-org/regime-switch-bot/pkg/logger"
)

const (
	equitySnapshotSpec = "0 * * * * *"
	configReloadSpec   = "*/30 * * * * *"
)

type flags struct {
	configPath string
	dryRun     bool
}

func (f flags) apply(cfg *config.Config) {
	if f.dryRun {
		cfg.AutoSwitch.DryRun = true
	}
}

func main() {
	// --- Configuration ---
	var f flags
	flag.StringVar(&f.configPath, "config", "config/config.yaml", "Path to the configuration file")
	flag.BoolVar(&f.dryRun, "dry-run", false, "Evaluate and journal switches without executing them")
	flag.Parse()

	cfg, err := config.LoadConfig(f.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	f.apply(cfg)
	config.SetConfig(cfg)

	// --- Logger ---
	logger.NewLogger(cfg.LogLevel)
	defer logger.Sync()
	logger.Info("Regime switch bot starting...")
	logger.Infof("Loaded configuration from: %s", f.configPath)
	logger.Infof("Target symbol: %s (%s)", cfg.Symbol, cfg.Timeframe)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, stop, cfg, f); err != nil {
		logger.Errorf("Bot exited with error: %v", err)
		logger.Sync()
		os.Exit(1)
	}
	logger.Info("Regime switch bot shut down gracefully.")
}

func run(ctx context.Context, stop context.CancelFunc, cfg *config.Config, f flags) error {
	zl := logger.Zap()

	// --- PostgreSQL (optional) ---
	var pool *pgxpool.Pool
	if cfg.DataSource.Kind == "postgres" || bool(cfg.Journal.MirrorToDB) {
		var err error
		pool, err = pgxpool.New(ctx, cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("unable to connect to database: %w", err)
		}
		defer pool.Close()
	}

	// --- Journal ---
	var mirrorPool dbwriter.Pool
	var benchDB benchmark.Execer
	if bool(cfg.Journal.MirrorToDB) && pool != nil {
		mirrorPool = pool
		benchDB = pool
	}
	mirror := dbwriter.NewPostgresWriter(mirrorPool, cfg.Journal, zl)
	jw, err := journal.Open(cfg.Journal.SwitchPath, cfg.Journal.TradePath, mirror, zl)
	if err != nil {
		mirror.Close()
		return err
	}
	defer func() {
		if err := jw.Close(); err != nil {
			logger.Warnf("Failed to close journal: %v", err)
		}
	}()

	// --- Bar source ---
	var source datastore.BarSource
	var replay *datastore.ReplaySource
	pollInterval := cfg.DataSource.PollInterval
	switch cfg.DataSource.Kind {
	case "postgres":
		repo := datastore.NewPostgresRepository(pool)
		source = datastore.NewRetryingSource(repo, cfg.DataSource.MaxRetries, cfg.DataSource.RetryBase, zl)
		if pollInterval <= 0 {
			pollInterval = barInterval(cfg.Timeframe)
		}
	default:
		bars, err := datastore.LoadBarsFromCSV(cfg.DataSource.CSVPath)
		if err != nil {
			return err
		}
		replay = datastore.NewReplaySource(bars, cfg.Lookback)
		source = replay
		pollInterval = cfg.DataSource.ReplayInterval
		logger.Infof("[Paper] replaying %d bars from %s", len(bars), cfg.DataSource.CSVPath)
	}

	// --- Trading components ---
	registry := strategy.NewRegistry(cfg.Strategies)
	analyzer := market.NewAnalyzer(cfg.Analysis)
	sel, err := selector.New(cfg.Selector, selector.DefaultRules(), cfg.AutoSwitch.FallbackStrategy, registry.IDs())
	if err != nil {
		return fmt.Errorf("failed to build strategy selector: %w", err)
	}
	losses := pnl.NewCalculator()
	book := position.NewBook(1)

	initial := cfg.AutoSwitch.InitialStrategy
	if initial == "" {
		initial = cfg.AutoSwitch.FallbackStrategy
	}
	exec := engine.NewPaperExecutor(initial, cfg.Backtest.InitialCapital, book, losses, zl,
		engine.WithTradeSink(jw),
		engine.WithStrategyCheck(registry.Has),
		engine.WithCommission(cfg.Backtest.CommissionPct))
	bench := benchmark.NewService(zl, benchDB, cfg.Backtest.InitialCapital)
	riskMgr := risk.NewManager(cfg.Risk, losses, zl)
	session := engine.NewSession(cfg.Symbol, registry, exec, riskMgr, zl)
	session.SetStopFirst(cfg.Backtest.TieBreak != "target_first")

	hub := handler.NewStreamHub(zl)
	mgr := autoswitch.NewManager(
		autoswitch.Settings{Switch: cfg.AutoSwitch, Symbol: cfg.Symbol, Timeframe: cfg.Timeframe, Lookback: cfg.Lookback},
		source, analyzer, sel, exec,
		autoswitch.WithLogger(zl),
		autoswitch.WithRecorder(jw),
		autoswitch.WithNotifier(alert.NewLogNotifier(zl)),
		autoswitch.WithObserver(hub.Publish),
		autoswitch.WithConfigSource(func() config.AutoSwitchConfig { return config.GetConfig().AutoSwitch }),
	)

	// --- Scheduled jobs ---
	cron := scheduler.New(zl, ctx)
	if err := cron.AddLossWindowResets(losses); err != nil {
		return fmt.Errorf("schedule loss window resets: %w", err)
	}
	if _, err := cron.Add(configReloadSpec, func(context.Context) {
		next, err := config.ReloadConfig(f.configPath)
		if err != nil {
			logger.Warnf("Config reload failed, keeping previous configuration: %v", err)
			return
		}
		f.apply(next)
		logger.SetGlobalLogLevel(next.LogLevel)
	}); err != nil {
		return fmt.Errorf("schedule config reload: %w", err)
	}
	if cfg.Journal.MirrorToDB {
		job := snapshotJob(session.ID.String(), cfg.Symbol, cfg.Backtest.InitialCapital, exec, losses, mirror)
		if _, err := cron.Add(equitySnapshotSpec, job); err != nil {
			return fmt.Errorf("schedule equity snapshots: %w", err)
		}
	}
	cron.Start()
	defer cron.Stop()

	// --- Status API ---
	if cfg.Server.Enabled {
		srv := &http.Server{
			Addr:              cfg.Server.Addr,
			Handler:           handler.NewRouter(handler.NewStatusHandler(mgr, exec), hub),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Infof("Status server starting on %s", cfg.Server.Addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Errorf("Status server failed: %v", err)
				stop()
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	// --- Main loops ---
	done := make(chan error, 1)
	go func() { done <- mgr.Run(ctx) }()
	tradeLoop(ctx, stop, pollInterval, replay, source, session, bench, cfg)

	if err := <-done; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Infof("[Paper] equity %.2f, buy and hold %.2f", exec.Account().Equity, bench.Value(cfg.Symbol))
	if exec.Book().Len() > 0 {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := exec.CloseAllPositions(closeCtx); err != nil {
			logger.Warnf("[Paper] failed to close positions on shutdown: %v", err)
		}
	}
	return nil
}

// tradeLoop hands every new bar to the session and the buy-and-hold benchmark.
// In replay mode each tick reveals one more bar and the loop ends the process
// when the file is exhausted.
func tradeLoop(ctx context.Context, stop context.CancelFunc, interval time.Duration, replay *datastore.ReplaySource, source datastore.BarSource, session *engine.Session, bench *benchmark.Service, cfg *config.Config) {
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if replay != nil && !replay.Advance() {
			logger.Info("[Paper] replay finished")
			stop()
			return
		}
		bars, err := source.FetchBars(ctx, cfg.Symbol, cfg.Timeframe, cfg.Lookback)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				logger.Warnf("[Paper] failed to fetch bars: %v", err)
			}
			continue
		}
		if len(bars) == 0 || !bars.Last().Time.After(last) {
			continue
		}
		last = bars.Last().Time
		bench.Tick(ctx, cfg.Symbol, bars.Last().Close)
		fill, err := session.OnBar(ctx, bars)
		if err != nil {
			var ve *risk.ValidationError
			if !errors.As(err, &ve) {
				logger.Warnf("[Paper] bar %s: %v", last.Format(time.RFC3339), err)
			}
			continue
		}
		if fill != nil {
			logger.Infof("[Paper] opened %s %.6f @ %.2f", fill.Side, fill.Quantity, fill.Price)
		}
	}
}

// snapshotJob writes the paper account summary to equity_snapshots.
func snapshotJob(sessionID, symbol string, capital float64, exec *engine.PaperExecutor, losses *pnl.Calculator, mirror dbwriter.DBWriter) func(context.Context) {
	return func(ctx context.Context) {
		id, err := exec.CurrentStrategy(ctx)
		if err != nil {
			logger.Warnf("Equity snapshot skipped: %v", err)
			return
		}
		acct := exec.Account()
		realized := losses.GetRealizedPnL()
		snap := dbwriter.EquitySnapshot{
			Time:          time.Now().UTC(),
			SessionID:     sessionID,
			Strategy:      id,
			Symbol:        symbol,
			RealizedPnL:   decimal.NewFromFloat(realized),
			UnrealizedPnL: decimal.NewFromFloat(acct.Equity - capital - realized),
			Equity:        decimal.NewFromFloat(acct.Equity),
		}
		if p, ok := exec.Book().Get(symbol); ok {
			qty, entry := p.Get()
			snap.PositionSize = decimal.NewFromFloat(qty * p.Side.Sign())
			snap.AvgEntryPrice = decimal.NewFromFloat(entry)
		}
		if err := mirror.SaveEquitySnapshot(ctx, snap); err != nil {
			logger.Warnf("Failed to save equity snapshot: %v", err)
		}
	}
}

// barInterval parses timeframes such as 15m, 4h or 1d. Unknown values fall back to one minute.
func barInterval(timeframe string) time.Duration {
	if n, ok := strings.CutSuffix(timeframe, "d"); ok {
		if days, err := strconv.Atoi(n); err == nil && days > 0 {
			return time.Duration(days) * 24 * time.Hour
		}
	}
	if d, err := time.ParseDuration(timeframe); err == nil && d > 0 {
		return d
	}
	return time.Minute
}
