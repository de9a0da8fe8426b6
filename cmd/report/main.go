// Command report summarizes the paper trading journals: overall and
// per-strategy performance plus the strategy switch history.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"syscall"
	"time"

	"github.com/your-org/regime-switch-bot/internal/autoswitch"
	"github.com/your-org/regime-switch-bot/internal/config"
	"github.com/your-org/regime-switch-bot/internal/journal"
	"github.com/your-org/regime-switch-bot/internal/position"
	"github.com/your-org/regime-switch-bot/internal/report"
	"github.com/your-org/regime-switch-bot/pkg/logger"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "Path to the configuration file")
	watch := flag.Duration("watch", 0, "Regenerate the report at this interval; 0 runs once")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	logger.NewLogger(cfg.LogLevel)
	defer logger.Sync()

	if err := runReportGeneration(os.Stdout, cfg); err != nil {
		logger.Fatalf("Failed to generate report: %v", err)
	}
	if *watch <= 0 {
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ticker := time.NewTicker(*watch)
	defer ticker.Stop()
	logger.Infof("Report generator started. Will run every %v.", *watch)
	for {
		select {
		case <-ticker.C:
			if err := runReportGeneration(os.Stdout, cfg); err != nil {
				logger.Errorf("Failed to generate report: %v", err)
			}
		case <-ctx.Done():
			logger.Info("Shutting down report generator.")
			return
		}
	}
}

// runReportGeneration reads both journals and writes the report to out.
// A missing journal file counts as an empty journal.
func runReportGeneration(out io.Writer, cfg *config.Config) error {
	trades, err := journal.ReadTradesFile(cfg.Journal.TradePath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	switches, err := journal.ReadSwitchesFile(cfg.Journal.SwitchPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	if len(trades) == 0 && len(switches) == 0 {
		logger.Info("No journal entries to report.")
		return nil
	}

	rep := analyzeTrades(trades, cfg.Backtest.InitialCapital, cfg.Backtest.PeriodsPerYear)
	fmt.Fprintf(out, "=== Overall ===\n%s\n", rep.Overall.Summary())
	fmt.Fprintf(out, "Long: %d won, %d lost   Short: %d won, %d lost\n\n",
		rep.LongWinningTrades, rep.LongLosingTrades, rep.ShortWinningTrades, rep.ShortLosingTrades)
	for _, id := range rep.Strategies() {
		fmt.Fprintf(out, "=== %s ===\n%s\n", id, rep.PerStrategy[id].Summary())
	}

	sw := summarizeSwitches(switches)
	fmt.Fprintf(out, "=== Switches ===\nexecuted %d, dry run %d, rejected %d, forced %d\n",
		sw.Executed, sw.DryRun, sw.Rejected, sw.Forced)
	for _, tr := range sw.Transitions {
		fmt.Fprintf(out, "%s -> %s: %d\n", tr.From, tr.To, tr.Count)
	}
	return nil
}

// tradeReport is the journal ledger broken down by strategy and side.
type tradeReport struct {
	Overall     report.Metrics
	PerStrategy map[string]report.Metrics

	LongWinningTrades  int
	LongLosingTrades   int
	ShortWinningTrades int
	ShortLosingTrades  int
}

// Strategies returns the strategy ids of PerStrategy in sorted order.
func (r tradeReport) Strategies() []string {
	ids := make([]string, 0, len(r.PerStrategy))
	for id := range r.PerStrategy {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func analyzeTrades(trades []position.Trade, capital, periodsPerYear float64) tradeReport {
	trades = append([]position.Trade(nil), trades...)
	sort.SliceStable(trades, func(i, j int) bool { return trades[i].ExitTime.Before(trades[j].ExitTime) })

	rep := tradeReport{
		Overall:     report.Compute(trades, equityFromTrades(trades, capital), capital, periodsPerYear),
		PerStrategy: make(map[string]report.Metrics),
	}

	byStrategy := make(map[string][]position.Trade)
	for _, t := range trades {
		id := t.Strategy
		if id == "" {
			id = "unknown"
		}
		byStrategy[id] = append(byStrategy[id], t)

		switch {
		case t.Side == position.Long && t.PnL > 0:
			rep.LongWinningTrades++
		case t.Side == position.Long && t.PnL < 0:
			rep.LongLosingTrades++
		case t.Side == position.Short && t.PnL > 0:
			rep.ShortWinningTrades++
		case t.Side == position.Short && t.PnL < 0:
			rep.ShortLosingTrades++
		}
	}
	for id, ts := range byStrategy {
		rep.PerStrategy[id] = report.Compute(ts, equityFromTrades(ts, capital), capital, periodsPerYear)
	}
	return rep
}

// equityFromTrades rebuilds a realized equity curve, one point per closed
// trade, starting from capital at the first entry.
func equityFromTrades(trades []position.Trade, capital float64) []report.EquityPoint {
	if len(trades) == 0 {
		return nil
	}
	curve := make([]report.EquityPoint, 0, len(trades)+1)
	curve = append(curve, report.EquityPoint{Time: trades[0].EntryTime, Equity: capital})
	eq := capital
	for _, t := range trades {
		eq += t.PnL
		curve = append(curve, report.EquityPoint{Time: t.ExitTime, Equity: eq})
	}
	return curve
}

type transition struct {
	From  string
	To    string
	Count int
}

type switchSummary struct {
	Executed    int
	DryRun      int
	Rejected    int
	Forced      int
	Transitions []transition
}

// summarizeSwitches counts journaled switch attempts. Transitions only
// include executed switches, most frequent first.
func summarizeSwitches(records []autoswitch.SwitchRecord) switchSummary {
	var s switchSummary
	counts := make(map[[2]string]int)
	for _, r := range records {
		if r.Forced {
			s.Forced++
		}
		switch {
		case r.RejectReason != "":
			s.Rejected++
		case r.DryRun:
			s.DryRun++
		case r.Executed:
			s.Executed++
			counts[[2]string{r.FromStrategy, r.ToStrategy}]++
		}
	}
	for k, n := range counts {
		s.Transitions = append(s.Transitions, transition{From: k[0], To: k[1], Count: n})
	}
	sort.Slice(s.Transitions, func(i, j int) bool {
		a, b := s.Transitions[i], s.Transitions[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		if a.From != b.From {
			return a.From < b.From
		}
		return a.To < b.To
	})
	return s
}
