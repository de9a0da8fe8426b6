// Package report computes performance metrics for a trade ledger and its
// equity curve.
package report

import (
	"fmt"
	"math"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"

	"github.com/your-org/regime-switch-bot/internal/position"
)

// ProfitFactorCap is reported as the profit factor when there are profits but no losses.
const ProfitFactorCap = 1000.0

// EquityPoint is one mark-to-market sample of account equity.
type EquityPoint struct {
	Time   time.Time `json:"time"`
	Equity float64   `json:"equity"`
}

// Metrics は取引台帳とエクイティカーブの分析結果を保持します。
type Metrics struct {
	StartDate                          time.Time       `json:"start_date"`
	EndDate                            time.Time       `json:"end_date"`
	InitialCapital                     decimal.Decimal `json:"initial_capital"`
	FinalEquity                        decimal.Decimal `json:"final_equity"`
	TotalReturn                        decimal.Decimal `json:"total_return"`
	TotalReturnPct                     float64         `json:"total_return_pct"`
	CAGR                               float64         `json:"cagr"`
	SharpeRatio                        float64         `json:"sharpe_ratio"`
	SortinoRatio                       float64         `json:"sortino_ratio"`
	MaxDrawdown                        decimal.Decimal `json:"max_drawdown"`
	MaxDrawdownPct                     float64         `json:"max_drawdown_pct"`
	TotalTrades                        int             `json:"total_trades"`
	WinningTrades                      int             `json:"winning_trades"`
	LosingTrades                       int             `json:"losing_trades"`
	WinRate                            float64         `json:"win_rate"`
	GrossProfit                        decimal.Decimal `json:"gross_profit"`
	GrossLoss                          decimal.Decimal `json:"gross_loss"`
	NetPnL                             decimal.Decimal `json:"net_pnl"`
	TotalCommission                    decimal.Decimal `json:"total_commission"`
	AverageProfit                      decimal.Decimal `json:"average_profit"`
	AverageLoss                        decimal.Decimal `json:"average_loss"`
	LargestWin                         decimal.Decimal `json:"largest_win"`
	LargestLoss                        decimal.Decimal `json:"largest_loss"`
	ProfitFactor                       float64         `json:"profit_factor"`
	Expectancy                         decimal.Decimal `json:"expectancy"`
	MaxConsecutiveWins                 int             `json:"max_consecutive_wins"`
	MaxConsecutiveLosses               int             `json:"max_consecutive_losses"`
	AverageHoldingPeriodSeconds        float64         `json:"average_holding_period_seconds"`
	AverageWinningHoldingPeriodSeconds float64         `json:"average_winning_holding_period_seconds"`
	AverageLosingHoldingPeriodSeconds  float64         `json:"average_losing_holding_period_seconds"`
	RecoveryFactor                     float64         `json:"recovery_factor"`
	CalmarRatio                        float64         `json:"calmar_ratio"`
	BuyAndHoldReturnPct                float64         `json:"buy_and_hold_return_pct"`
	ReturnVsBuyAndHold                 float64         `json:"return_vs_buy_and_hold"`
}

// Compute analyzes trades and the equity curve sampled periodsPerYear times a year.
// An empty ledger yields zero trade statistics; an empty curve is treated as
// flat at initialCapital.
func Compute(trades []position.Trade, equity []EquityPoint, initialCapital, periodsPerYear float64) Metrics {
	m := Metrics{InitialCapital: decimal.NewFromFloat(initialCapital)}
	m.FinalEquity = m.InitialCapital
	if len(equity) > 0 {
		m.StartDate = equity[0].Time
		m.EndDate = equity[len(equity)-1].Time
		m.FinalEquity = decimal.NewFromFloat(equity[len(equity)-1].Equity)
	}
	m.TotalReturn = m.FinalEquity.Sub(m.InitialCapital)
	if initialCapital > 0 {
		m.TotalReturnPct = m.TotalReturn.Div(m.InitialCapital).InexactFloat64() * 100
	}

	analyzeTrades(&m, trades)
	analyzeEquity(&m, equity, initialCapital, periodsPerYear)
	return m
}

func analyzeTrades(m *Metrics, trades []position.Trade) {
	var holding, winHolding, lossHolding []float64
	var wins, losses int

	for _, t := range trades {
		pnl := decimal.NewFromFloat(t.PnL)
		m.NetPnL = m.NetPnL.Add(pnl)
		m.TotalCommission = m.TotalCommission.Add(decimal.NewFromFloat(t.Commission))
		secs := t.Duration.Seconds()
		holding = append(holding, secs)

		switch {
		case pnl.IsPositive():
			m.WinningTrades++
			m.GrossProfit = m.GrossProfit.Add(pnl)
			winHolding = append(winHolding, secs)
			if pnl.GreaterThan(m.LargestWin) {
				m.LargestWin = pnl
			}
			wins++
			losses = 0
			m.MaxConsecutiveWins = max(m.MaxConsecutiveWins, wins)
		case pnl.IsNegative():
			m.LosingTrades++
			m.GrossLoss = m.GrossLoss.Add(pnl.Abs())
			lossHolding = append(lossHolding, secs)
			if pnl.LessThan(m.LargestLoss) {
				m.LargestLoss = pnl
			}
			losses++
			wins = 0
			m.MaxConsecutiveLosses = max(m.MaxConsecutiveLosses, losses)
		default:
			wins, losses = 0, 0
		}
	}

	m.TotalTrades = len(trades)
	if m.TotalTrades == 0 {
		return
	}
	winRate := float64(m.WinningTrades) / float64(m.TotalTrades)
	m.WinRate = winRate * 100
	if m.WinningTrades > 0 {
		m.AverageProfit = m.GrossProfit.Div(decimal.NewFromInt(int64(m.WinningTrades)))
	}
	if m.LosingTrades > 0 {
		m.AverageLoss = m.GrossLoss.Div(decimal.NewFromInt(int64(m.LosingTrades))).Neg()
	}

	switch {
	case m.GrossLoss.IsPositive():
		m.ProfitFactor = m.GrossProfit.Div(m.GrossLoss).InexactFloat64()
	case m.GrossProfit.IsPositive():
		m.ProfitFactor = ProfitFactorCap
	}

	// (win% × avg win) - (loss% × |avg loss|), break-even trades count as losses here
	m.Expectancy = m.AverageProfit.Mul(decimal.NewFromFloat(winRate)).
		Sub(m.AverageLoss.Abs().Mul(decimal.NewFromFloat(1 - winRate)))

	m.AverageHoldingPeriodSeconds = mean(holding)
	m.AverageWinningHoldingPeriodSeconds = mean(winHolding)
	m.AverageLosingHoldingPeriodSeconds = mean(lossHolding)
}

func analyzeEquity(m *Metrics, equity []EquityPoint, initialCapital, periodsPerYear float64) {
	peak := decimal.NewFromFloat(initialCapital)
	var returns []float64
	prev := initialCapital

	for i, p := range equity {
		e := decimal.NewFromFloat(p.Equity)
		if e.GreaterThan(peak) {
			peak = e
		}
		if dd := peak.Sub(e); dd.GreaterThan(m.MaxDrawdown) {
			m.MaxDrawdown = dd
		}
		if peak.IsPositive() {
			if pct := peak.Sub(e).Div(peak).InexactFloat64() * 100; pct > m.MaxDrawdownPct {
				m.MaxDrawdownPct = pct
			}
		}
		if i > 0 && prev > 0 {
			returns = append(returns, p.Equity/prev-1)
		}
		prev = p.Equity
	}

	annualize := 1.0
	if periodsPerYear > 0 {
		annualize = math.Sqrt(periodsPerYear)
	}
	m.SharpeRatio = calculateSharpeRatio(returns, 0) * annualize
	m.SortinoRatio = calculateSortinoRatio(returns, 0) * annualize

	if m.MaxDrawdown.IsPositive() {
		m.RecoveryFactor = m.TotalReturn.Div(m.MaxDrawdown).InexactFloat64()
	}

	years := m.EndDate.Sub(m.StartDate).Hours() / 24 / 365.25
	final := m.FinalEquity.InexactFloat64()
	if years > 0 && initialCapital > 0 && final > 0 {
		m.CAGR = (math.Pow(final/initialCapital, 1/years) - 1) * 100
	}
	if m.MaxDrawdownPct > 0 {
		m.CalmarRatio = m.CAGR / m.MaxDrawdownPct
	}
}

// SetBuyAndHold records the return of holding from first to last price and the
// strategy's excess over it, both in percent.
func (m *Metrics) SetBuyAndHold(first, last float64) {
	if first <= 0 {
		return
	}
	m.BuyAndHoldReturnPct = (last - first) / first * 100
	m.ReturnVsBuyAndHold = m.TotalReturnPct - m.BuyAndHoldReturnPct
}

// Summary renders the metrics as an aligned two-column table.
func (m Metrics) Summary() string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', 0)
	rows := []struct {
		k string
		v string
	}{
		{"Period", fmt.Sprintf("%s - %s", m.StartDate.Format(time.RFC3339), m.EndDate.Format(time.RFC3339))},
		{"Initial capital", m.InitialCapital.StringFixed(2)},
		{"Final equity", m.FinalEquity.StringFixed(2)},
		{"Total return", fmt.Sprintf("%s (%.2f%%)", m.TotalReturn.StringFixed(2), m.TotalReturnPct)},
		{"CAGR", fmt.Sprintf("%.2f%%", m.CAGR)},
		{"Sharpe", fmt.Sprintf("%.3f", m.SharpeRatio)},
		{"Sortino", fmt.Sprintf("%.3f", m.SortinoRatio)},
		{"Max drawdown", fmt.Sprintf("%s (%.2f%%)", m.MaxDrawdown.StringFixed(2), m.MaxDrawdownPct)},
		{"Trades", fmt.Sprintf("%d (%d won, %d lost)", m.TotalTrades, m.WinningTrades, m.LosingTrades)},
		{"Win rate", fmt.Sprintf("%.2f%%", m.WinRate)},
		{"Profit factor", fmt.Sprintf("%.2f", m.ProfitFactor)},
		{"Expectancy", m.Expectancy.StringFixed(2)},
		{"Largest win / loss", fmt.Sprintf("%s / %s", m.LargestWin.StringFixed(2), m.LargestLoss.StringFixed(2))},
		{"Streaks (win / loss)", fmt.Sprintf("%d / %d", m.MaxConsecutiveWins, m.MaxConsecutiveLosses)},
		{"Avg holding", (time.Duration(m.AverageHoldingPeriodSeconds) * time.Second).String()},
		{"Commission", m.TotalCommission.StringFixed(2)},
		{"Recovery factor", fmt.Sprintf("%.2f", m.RecoveryFactor)},
		{"Calmar", fmt.Sprintf("%.2f", m.CalmarRatio)},
		{"Buy and hold", fmt.Sprintf("%.2f%% (excess %.2f%%)", m.BuyAndHoldReturnPct, m.ReturnVsBuyAndHold)},
	}
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\n", r.k, r.v)
	}
	_ = w.Flush()
	return b.String()
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// calculateStandardDeviation はリターンの標準偏差を計算します。
func calculateStandardDeviation(returns []float64, mu float64) float64 {
	if len(returns) == 0 {
		return 0.0
	}
	variance := 0.0
	for _, r := range returns {
		variance += math.Pow(r-mu, 2)
	}
	return math.Sqrt(variance / float64(len(returns)))
}

// calculateDownsideDeviation は下方偏差を計算します。
func calculateDownsideDeviation(returns []float64, target float64) float64 {
	downsideVariance := 0.0
	downsideCount := 0
	for _, r := range returns {
		if r < target {
			downsideVariance += math.Pow(r-target, 2)
			downsideCount++
		}
	}
	if downsideCount == 0 {
		return 0.0
	}
	return math.Sqrt(downsideVariance / float64(downsideCount))
}

// calculateSharpeRatio はシャープレシオを計算します。
func calculateSharpeRatio(returns []float64, riskFreeRate float64) float64 {
	if len(returns) == 0 {
		return 0.0
	}
	mu := mean(returns)
	stdDev := calculateStandardDeviation(returns, mu)
	if stdDev == 0 {
		return 0.0
	}
	return (mu - riskFreeRate) / stdDev
}

// calculateSortinoRatio はソルティノレシオを計算します。
func calculateSortinoRatio(returns []float64, riskFreeRate float64) float64 {
	if len(returns) == 0 {
		return 0.0
	}
	downsideDev := calculateDownsideDeviation(returns, 0)
	if downsideDev == 0 {
		return 0.0
	}
	return (mean(returns) - riskFreeRate) / downsideDev
}
