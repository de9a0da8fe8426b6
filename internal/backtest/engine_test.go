package backtest

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/regime-switch-bot/internal/config"
	"github.com/your-org/regime-switch-bot/internal/market"
	"github.com/your-org/regime-switch-bot/internal/position"
	"github.com/your-org/regime-switch-bot/internal/strategy"
)

var t0 = time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)

// scripted emits the signal mapped to the index of the newest bar.
type scripted map[int]strategy.SignalType

func (s scripted) ID() string   { return "scripted" }
func (s scripted) MinBars() int { return 1 }
func (s scripted) GenerateSignal(bars market.Series) strategy.Signal {
	return strategy.Signal{Type: s[len(bars)-1], Price: bars.Last().Close}
}

type ohlc struct{ o, h, l, c float64 }

func series(rows ...ohlc) market.Series {
	out := make(market.Series, len(rows))
	for i, r := range rows {
		out[i] = market.Bar{
			Time:   t0.Add(time.Duration(i) * 15 * time.Minute),
			Open:   r.o,
			High:   r.h,
			Low:    r.l,
			Close:  r.c,
			Volume: 10,
		}
	}
	return out
}

var flat = ohlc{100, 101, 99, 100}

func testConfig() (config.BacktestConfig, config.RiskConfig) {
	def := config.Default()
	bt := def.Backtest
	bt.CommissionPct = 0
	bt.SlippagePct = 0
	bt.Warmup = 1
	bt.PeriodsPerYear = 365 * 96
	rc := def.Risk
	rc.MaxPositionPct = 0
	return bt, rc
}

func TestRun_BarTouchingStopAndTargetClosesAtStop(t *testing.T) {
	bt, rc := testConfig()
	bars := series(flat, flat, ohlc{100, 105, 97, 100})

	res, err := New(bt, rc, scripted{1: strategy.SignalLong}, nil).Run("BTCUSDT", bars)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	tr := res.Trades[0]
	assert.Equal(t, position.Long, tr.Side)
	assert.Equal(t, 100.0, tr.EntryPrice)
	assert.Equal(t, 98.0, tr.ExitPrice)
	assert.Equal(t, position.ExitStopLoss, tr.ExitReason)
	assert.InDelta(t, 100.0, tr.Quantity, 1e-9)
	assert.InDelta(t, -200.0, tr.PnL, 1e-9)
	assert.Equal(t, bars[1].Time, tr.EntryTime)
	assert.Equal(t, bars[2].Time, tr.ExitTime)
	assert.Equal(t, 15*time.Minute, tr.Duration)
	assert.Equal(t, "scripted", tr.Strategy)

	require.Len(t, res.Equity, 3)
	assert.Equal(t, 10000.0, res.Equity[0].Equity)
	assert.Equal(t, 10000.0, res.Equity[1].Equity)
	assert.InDelta(t, 9800.0, res.Equity[2].Equity, 1e-9)
	assert.Equal(t, 1, res.Metrics.LosingTrades)
	assert.InDelta(t, -2.0, res.Metrics.TotalReturnPct, 1e-9)
}

func TestRun_TargetFirstTieBreak(t *testing.T) {
	bt, rc := testConfig()
	bt.TieBreak = TargetFirst
	bars := series(flat, flat, ohlc{100, 105, 97, 100})

	res, err := New(bt, rc, scripted{1: strategy.SignalLong}, nil).Run("BTCUSDT", bars)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, 104.0, res.Trades[0].ExitPrice)
	assert.Equal(t, position.ExitTakeProfit, res.Trades[0].ExitReason)
	assert.InDelta(t, 400.0, res.Trades[0].PnL, 1e-9)
}

func TestRun_GapThroughStopFillsAtOpen(t *testing.T) {
	bt, rc := testConfig()
	bars := series(flat, flat, ohlc{96, 97, 95, 96})

	res, err := New(bt, rc, scripted{1: strategy.SignalLong}, nil).Run("BTCUSDT", bars)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, 96.0, res.Trades[0].ExitPrice)
	assert.InDelta(t, -400.0, res.Trades[0].PnL, 1e-9)
}

func TestRun_ShortStopAndTarget(t *testing.T) {
	bt, rc := testConfig()
	bars := series(flat, flat, ohlc{100, 101, 95, 96})

	res, err := New(bt, rc, scripted{1: strategy.SignalShort}, nil).Run("BTCUSDT", bars)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.Equal(t, position.Short, res.Trades[0].Side)
	assert.Equal(t, 96.0, res.Trades[0].ExitPrice)
	assert.Equal(t, position.ExitTakeProfit, res.Trades[0].ExitReason)
	assert.InDelta(t, 400.0, res.Trades[0].PnL, 1e-9)
}

func TestRun_SignalReversalFlipsPosition(t *testing.T) {
	bt, rc := testConfig()
	bars := series(flat, flat, flat, ohlc{100, 101.5, 99.5, 101}, flat)

	res, err := New(bt, rc, scripted{1: strategy.SignalLong, 3: strategy.SignalShort}, nil).Run("BTCUSDT", bars)
	require.NoError(t, err)
	require.Len(t, res.Trades, 2)

	assert.Equal(t, position.ExitSignalReversal, res.Trades[0].ExitReason)
	assert.InDelta(t, 100.0, res.Trades[0].PnL, 1e-9)

	short := res.Trades[1]
	assert.Equal(t, position.Short, short.Side)
	assert.Equal(t, 101.0, short.EntryPrice)
	assert.Equal(t, position.ExitEndOfData, short.ExitReason)
	assert.Equal(t, 100.0, short.ExitPrice)
	// 10100 × 2% / (101 × 2%)
	assert.InDelta(t, 100.0, short.Quantity, 1e-9)
	assert.InDelta(t, 100.0, short.PnL, 1e-9)

	assert.NotEqual(t, res.Trades[0].ID, short.ID)
	assert.InDelta(t, 10200.0, res.Equity[len(res.Equity)-1].Equity, 1e-9)
}

func TestRun_AllInWithCommission(t *testing.T) {
	bt, rc := testConfig()
	bt.Sizing = SizingAllIn
	bt.CommissionPct = 0.001
	bars := series(flat, flat, ohlc{100, 101, 99.5, 100}, ohlc{100, 103.5, 100, 103})

	res, err := New(bt, rc, scripted{1: strategy.SignalLong}, nil).Run("BTCUSDT", bars)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)

	qty := 10000 / (100 * 1.001)
	tr := res.Trades[0]
	assert.InDelta(t, qty, tr.Quantity, 1e-9)
	assert.Equal(t, position.ExitEndOfData, tr.ExitReason)
	assert.InDelta(t, (100*0.001+103*0.001)*qty, tr.Commission, 1e-9)
	assert.InDelta(t, (3-0.203)*qty, tr.PnL, 1e-9)
	assert.InDelta(t, 10000+tr.PnL, res.Equity[3].Equity, 1e-9)
	// equity after the entry bar carries the entry commission
	assert.InDelta(t, 10000-0.1*qty, res.Equity[1].Equity, 1e-9)
}

func TestRun_SlippageWorksAgainstTheTrade(t *testing.T) {
	bt, rc := testConfig()
	bt.SlippagePct = 0.001
	bars := series(flat, flat, flat)

	res, err := New(bt, rc, scripted{1: strategy.SignalLong}, nil).Run("BTCUSDT", bars)
	require.NoError(t, err)
	require.Len(t, res.Trades, 1)
	assert.InDelta(t, 100.1, res.Trades[0].EntryPrice, 1e-9)
	assert.Less(t, res.Trades[0].PnL, 0.0)
}

func TestRun_RejectedEntries(t *testing.T) {
	bt, rc := testConfig()
	rc.Bounds.MinNotional = 1e9
	bars := series(flat, flat, flat)

	res, err := New(bt, rc, scripted{1: strategy.SignalLong, 2: strategy.SignalLong}, nil).Run("BTCUSDT", bars)
	require.NoError(t, err)
	assert.Empty(t, res.Trades)
	assert.Equal(t, 2, res.Rejected)
	assert.Equal(t, 10000.0, res.Equity[2].Equity)
}

func TestRun_InputErrors(t *testing.T) {
	bt, rc := testConfig()
	bt.Warmup = 5
	_, err := New(bt, rc, scripted{}, nil).Run("BTCUSDT", series(flat, flat))
	assert.True(t, errors.Is(err, market.ErrInsufficientData))

	bt, rc = testConfig()
	bars := series(flat, flat, flat)
	bars[2].Time = bars[0].Time
	_, err = New(bt, rc, scripted{}, nil).Run("BTCUSDT", bars)
	assert.Error(t, err)

	bt.InitialCapital = 0
	_, err = New(bt, rc, scripted{}, nil).Run("BTCUSDT", series(flat, flat))
	assert.Error(t, err)
}

func trending(n int) market.Series {
	out := make(market.Series, n)
	for i := range out {
		c := 100 + 0.2*float64(i) + 8*math.Sin(2*math.Pi*float64(i)/40)
		out[i] = market.Bar{
			Time:   t0.Add(time.Duration(i) * time.Hour),
			Open:   c - 0.3,
			High:   c + 1,
			Low:    c - 1,
			Close:  c,
			Volume: 100 + float64(i%7),
		}
	}
	return out
}

func TestRun_Deterministic(t *testing.T) {
	cfg := config.Default()
	strat := strategy.NewRegistry(cfg.Strategies)
	ema, err := strat.Get(strategy.IDEMACross)
	require.NoError(t, err)
	bars := trending(400)

	first, err := New(cfg.Backtest, cfg.Risk, ema, nil).Run("BTCUSDT", bars)
	require.NoError(t, err)
	second, err := New(cfg.Backtest, cfg.Risk, ema, nil).Run("BTCUSDT", bars)
	require.NoError(t, err)

	require.NotEmpty(t, first.Trades)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("runs differ (-first +second):\n%s", diff)
	}
	assert.Len(t, first.Equity, len(bars))
}

func TestRunMulti(t *testing.T) {
	bt, rc := testConfig()
	eng := New(bt, rc, scripted{1: strategy.SignalLong}, nil)

	res, err := eng.RunMulti(map[string]market.Series{
		"ETHUSDT": series(flat, flat, ohlc{100, 105, 97, 100}),
		"BTCUSDT": series(flat, flat, flat),
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, res.Symbols)
	require.Len(t, res.Trades, 2)
	assert.Equal(t, "BTCUSDT", res.Trades[0].Symbol) // same exit time, ordered by symbol
	assert.Equal(t, position.ExitEndOfData, res.Trades[0].ExitReason)
	assert.Equal(t, position.ExitStopLoss, res.Trades[1].ExitReason)
	// 5000 × 2% / 2 units on the ETH share
	assert.InDelta(t, -100.0, res.Trades[1].PnL, 1e-9)

	require.Len(t, res.Equity, 3)
	assert.InDelta(t, 10000.0, res.Equity[0].Equity, 1e-9)
	assert.InDelta(t, 9900.0, res.Equity[2].Equity, 1e-9)
	assert.InDelta(t, 5000.0, res.PerSymbol["BTCUSDT"].Metrics.FinalEquity.InexactFloat64(), 1e-9)

	_, err = eng.RunMulti(nil)
	assert.Error(t, err)
}

func TestMergeEquity_UnionOfTimes(t *testing.T) {
	results := map[string]*Result{
		"A": {Equity: []EquityPoint{{Time: t0, Equity: 50}, {Time: t0.Add(2 * time.Hour), Equity: 60}}},
		"B": {Equity: []EquityPoint{{Time: t0.Add(time.Hour), Equity: 40}}},
	}
	got := mergeEquity([]string{"A", "B"}, results, 50)
	want := []EquityPoint{
		{Time: t0, Equity: 100},
		{Time: t0.Add(time.Hour), Equity: 90},
		{Time: t0.Add(2 * time.Hour), Equity: 100},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("merged curve mismatch (-want +got):\n%s", diff)
	}
}
