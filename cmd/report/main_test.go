package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/regime-switch-bot/internal/autoswitch"
	"github.com/your-org/regime-switch-bot/internal/config"
	"github.com/your-org/regime-switch-bot/internal/journal"
	"github.com/your-org/regime-switch-bot/internal/position"
)

var t0 = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func trade(strategy string, side position.Side, pnl float64, hour int) position.Trade {
	return position.Trade{
		ID:        fmt.Sprintf("%s-%d", strategy, hour),
		Symbol:    "BTCUSDT",
		Side:      side,
		Strategy:  strategy,
		EntryTime: t0.Add(time.Duration(hour) * time.Hour),
		ExitTime:  t0.Add(time.Duration(hour+1) * time.Hour),
		PnL:       pnl,
		Duration:  time.Hour,
	}
}

func TestAnalyzeTrades(t *testing.T) {
	t.Run("single winning long", func(t *testing.T) {
		rep := analyzeTrades([]position.Trade{trade("rsi", position.Long, 10, 0)}, 1000, 365)
		assert.Equal(t, 1, rep.Overall.WinningTrades)
		assert.Equal(t, 0, rep.Overall.LosingTrades)
		assert.Equal(t, 1, rep.LongWinningTrades)
		assert.Equal(t, 0, rep.ShortWinningTrades)
		assert.Equal(t, "10.00", rep.Overall.NetPnL.StringFixed(2))
		assert.Equal(t, "1010.00", rep.Overall.FinalEquity.StringFixed(2))
	})

	t.Run("single losing short", func(t *testing.T) {
		rep := analyzeTrades([]position.Trade{trade("macd", position.Short, -10, 0)}, 1000, 365)
		assert.Equal(t, 0, rep.Overall.WinningTrades)
		assert.Equal(t, 1, rep.Overall.LosingTrades)
		assert.Equal(t, 1, rep.ShortLosingTrades)
		assert.Equal(t, 0, rep.LongLosingTrades)
		assert.Equal(t, "-10.00", rep.Overall.NetPnL.StringFixed(2))
	})

	t.Run("per strategy breakdown", func(t *testing.T) {
		trades := []position.Trade{
			trade("rsi", position.Long, 20, 4),
			trade("macd", position.Short, -5, 2),
			trade("rsi", position.Short, 15, 0),
			trade("", position.Long, 1, 6),
		}
		rep := analyzeTrades(trades, 1000, 365)
		assert.Equal(t, []string{"macd", "rsi", "unknown"}, rep.Strategies())
		assert.Equal(t, 2, rep.PerStrategy["rsi"].TotalTrades)
		assert.Equal(t, "35.00", rep.PerStrategy["rsi"].NetPnL.StringFixed(2))
		assert.Equal(t, "31.00", rep.Overall.NetPnL.StringFixed(2))
		assert.Equal(t, 4, rep.Overall.TotalTrades)
	})

	t.Run("no trades", func(t *testing.T) {
		rep := analyzeTrades(nil, 1000, 365)
		assert.Equal(t, 0, rep.Overall.TotalTrades)
		assert.Empty(t, rep.PerStrategy)
	})
}

func TestEquityFromTrades(t *testing.T) {
	curve := equityFromTrades([]position.Trade{
		trade("rsi", position.Long, 10, 0),
		trade("rsi", position.Long, -4, 1),
	}, 100)
	require.Len(t, curve, 3)
	assert.Equal(t, t0, curve[0].Time)
	assert.Equal(t, []float64{100, 110, 106}, []float64{curve[0].Equity, curve[1].Equity, curve[2].Equity})
	assert.Nil(t, equityFromTrades(nil, 100))
}

func TestSummarizeSwitches(t *testing.T) {
	s := summarizeSwitches([]autoswitch.SwitchRecord{
		{FromStrategy: "rsi", ToStrategy: "macd", Executed: true},
		{FromStrategy: "macd", ToStrategy: "rsi", Executed: true},
		{FromStrategy: "rsi", ToStrategy: "macd", Executed: true, Forced: true},
		{FromStrategy: "rsi", ToStrategy: "macd", DryRun: true},
		{FromStrategy: "rsi", ToStrategy: "ema_cross", RejectReason: "score below threshold"},
	})
	assert.Equal(t, 3, s.Executed)
	assert.Equal(t, 1, s.DryRun)
	assert.Equal(t, 1, s.Rejected)
	assert.Equal(t, 1, s.Forced)
	assert.Equal(t, []transition{
		{From: "rsi", To: "macd", Count: 2},
		{From: "macd", To: "rsi", Count: 1},
	}, s.Transitions)
}

func TestRunReportGeneration(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Journal.TradePath = filepath.Join(dir, "trades.ndjson")
	cfg.Journal.SwitchPath = filepath.Join(dir, "switches.ndjson")

	var out bytes.Buffer
	require.NoError(t, runReportGeneration(&out, cfg))
	assert.Empty(t, out.String())

	w, err := journal.Open(cfg.Journal.SwitchPath, cfg.Journal.TradePath, nil, nil)
	require.NoError(t, err)
	require.NoError(t, w.RecordTrade(trade("rsi", position.Long, 25, 0)))
	require.NoError(t, w.RecordSwitch(autoswitch.SwitchRecord{Timestamp: t0, FromStrategy: "rsi", ToStrategy: "macd", Executed: true}))
	require.NoError(t, w.Close())

	require.NoError(t, runReportGeneration(&out, cfg))
	assert.Contains(t, out.String(), "=== rsi ===")
	assert.Contains(t, out.String(), "rsi -> macd: 1")
	assert.Contains(t, out.String(), "executed 1, dry run 0, rejected 0, forced 0")
}

func TestRunReportGeneration_BadJournal(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Journal.TradePath = filepath.Join(dir, "trades.ndjson")
	cfg.Journal.SwitchPath = filepath.Join(dir, "switches.ndjson")
	require.NoError(t, os.WriteFile(cfg.Journal.TradePath, []byte("{not json\n"), 0o644))

	assert.Error(t, runReportGeneration(&bytes.Buffer{}, cfg))
}
