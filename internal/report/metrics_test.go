package report

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/regime-switch-bot/internal/position"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func trade(pnl float64, dur time.Duration) position.Trade {
	return position.Trade{Symbol: "BTCUSDT", PnL: pnl, Commission: 1, Duration: dur}
}

func curve(values ...float64) []EquityPoint {
	out := make([]EquityPoint, len(values))
	for i, v := range values {
		out[i] = EquityPoint{Time: t0.AddDate(0, 0, i), Equity: v}
	}
	return out
}

func decEq(t *testing.T, want float64, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.NewFromFloat(want).Equal(got), "want %v, got %s", want, got)
}

func TestCompute(t *testing.T) {
	trades := []position.Trade{
		trade(100, time.Hour),
		trade(-50, 2*time.Hour),
		trade(30, time.Hour),
		trade(-20, 4*time.Hour),
	}
	m := Compute(trades, curve(10000, 10100, 10050, 10080, 10060), 10000, 365)

	assert.Equal(t, 4, m.TotalTrades)
	assert.Equal(t, 2, m.WinningTrades)
	assert.Equal(t, 2, m.LosingTrades)
	assert.InDelta(t, 50.0, m.WinRate, 1e-9)
	decEq(t, 130, m.GrossProfit)
	decEq(t, 70, m.GrossLoss)
	decEq(t, 60, m.NetPnL)
	decEq(t, 4, m.TotalCommission)
	decEq(t, 65, m.AverageProfit)
	decEq(t, -35, m.AverageLoss)
	decEq(t, 100, m.LargestWin)
	decEq(t, -50, m.LargestLoss)
	decEq(t, 15, m.Expectancy)
	assert.InDelta(t, 130.0/70.0, m.ProfitFactor, 1e-9)
	assert.Equal(t, 1, m.MaxConsecutiveWins)
	assert.Equal(t, 1, m.MaxConsecutiveLosses)
	assert.InDelta(t, 7200.0, m.AverageHoldingPeriodSeconds, 1e-9)
	assert.InDelta(t, 3600.0, m.AverageWinningHoldingPeriodSeconds, 1e-9)
	assert.InDelta(t, 10800.0, m.AverageLosingHoldingPeriodSeconds, 1e-9)

	decEq(t, 10060, m.FinalEquity)
	decEq(t, 60, m.TotalReturn)
	assert.InDelta(t, 0.6, m.TotalReturnPct, 1e-9)
	decEq(t, 50, m.MaxDrawdown)
	assert.InDelta(t, 50.0/10100*100, m.MaxDrawdownPct, 1e-9)
	assert.InDelta(t, 1.2, m.RecoveryFactor, 1e-9)
	assert.Equal(t, t0, m.StartDate)
	assert.Equal(t, t0.AddDate(0, 0, 4), m.EndDate)
	assert.Greater(t, m.CAGR, 0.0)
	assert.Greater(t, m.CalmarRatio, 0.0)
	assert.NotZero(t, m.SharpeRatio)
	assert.NotZero(t, m.SortinoRatio)
}

func TestCompute_Streaks(t *testing.T) {
	trades := []position.Trade{
		trade(1, 0), trade(2, 0), trade(3, 0),
		trade(-1, 0), trade(-1, 0),
		trade(0, 0),
		trade(-1, 0),
	}
	m := Compute(trades, nil, 1000, 0)
	assert.Equal(t, 3, m.MaxConsecutiveWins)
	assert.Equal(t, 2, m.MaxConsecutiveLosses)
}

func TestCompute_ProfitFactorEdges(t *testing.T) {
	onlyWins := Compute([]position.Trade{trade(10, 0), trade(5, 0)}, nil, 1000, 0)
	assert.Equal(t, ProfitFactorCap, onlyWins.ProfitFactor)

	flat := Compute([]position.Trade{trade(0, 0)}, nil, 1000, 0)
	assert.Zero(t, flat.ProfitFactor)
	assert.Zero(t, flat.WinRate)
}

func TestCompute_Empty(t *testing.T) {
	m := Compute(nil, nil, 1000, 252)

	decEq(t, 1000, m.FinalEquity)
	assert.True(t, m.TotalReturn.IsZero())
	assert.Zero(t, m.TotalTrades)
	assert.Zero(t, m.SharpeRatio)
	assert.Zero(t, m.CAGR)
	assert.True(t, m.MaxDrawdown.IsZero())
	assert.NotEmpty(t, m.Summary())
}

func TestCompute_FlatCurveHasNoRiskRatios(t *testing.T) {
	m := Compute(nil, curve(1000, 1000, 1000), 1000, 252)
	assert.Zero(t, m.SharpeRatio)
	assert.Zero(t, m.SortinoRatio)
	assert.Zero(t, m.MaxDrawdownPct)
}

func TestSetBuyAndHold(t *testing.T) {
	m := Compute(nil, curve(1000, 1100), 1000, 0)
	m.SetBuyAndHold(100, 105)
	assert.InDelta(t, 5.0, m.BuyAndHoldReturnPct, 1e-9)
	assert.InDelta(t, 5.0, m.ReturnVsBuyAndHold, 1e-9)

	m.SetBuyAndHold(0, 105)
	assert.InDelta(t, 5.0, m.BuyAndHoldReturnPct, 1e-9)
}

func TestSummary(t *testing.T) {
	m := Compute([]position.Trade{trade(10, time.Hour)}, curve(1000, 1010), 1000, 365)
	s := m.Summary()
	assert.Contains(t, s, "Total return")
	assert.Contains(t, s, "10.00 (1.00%)")
	assert.Contains(t, s, "1 (1 won, 0 lost)")
}

type fakeExecer struct {
	sql  string
	args []any
	err  error
}

func (f *fakeExecer) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.sql, f.args = sql, args
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func TestStore_Save(t *testing.T) {
	db := &fakeExecer{}
	s := NewStore(db)
	s.now = func() time.Time { return t0 }
	id := uuid.MustParse("6f1c2b64-3c0b-4f8e-9d62-0a4b8e3f7a11")

	m := Compute([]position.Trade{trade(10, time.Hour)}, curve(1000, 1010), 1000, 365)
	require.NoError(t, s.Save(context.Background(), id, "BTCUSDT", "ema_cross", m))

	assert.Contains(t, db.sql, "INSERT INTO backtest_reports")
	require.Len(t, db.args, 30)
	assert.Equal(t, id, db.args[0])
	assert.Equal(t, t0, db.args[1])
	assert.Equal(t, "BTCUSDT", db.args[2])
	assert.Equal(t, "ema_cross", db.args[3])
	assert.Equal(t, 1, db.args[15])

	db.err = errors.New("connection reset")
	err := s.Save(context.Background(), id, "BTCUSDT", "ema_cross", m)
	require.Error(t, err)
	assert.Contains(t, err.Error(), id.String())
}
