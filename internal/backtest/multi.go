package backtest

import (
	"fmt"
	"sort"
	"time"

	"github.com/your-org/regime-switch-bot/internal/market"
	"github.com/your-org/regime-switch-bot/internal/report"
)

// MultiResult combines independent per-symbol runs over a shared capital.
type MultiResult struct {
	Symbols   []string           `json:"symbols"`
	PerSymbol map[string]*Result `json:"per_symbol"`
	Trades    []Trade            `json:"trades"`
	Equity    []EquityPoint      `json:"equity"`
	Metrics   report.Metrics     `json:"metrics"`
}

// RunMulti splits the initial capital evenly across symbols, runs each book
// independently in symbol order and merges the equity curves on the union of
// bar times.
func (e *Engine) RunMulti(series map[string]market.Series) (*MultiResult, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("backtest: no symbols")
	}
	symbols := make([]string, 0, len(series))
	for s := range series {
		symbols = append(symbols, s)
	}
	sort.Strings(symbols)

	share := *e
	share.cfg.InitialCapital = e.cfg.InitialCapital / float64(len(symbols))

	out := &MultiResult{Symbols: symbols, PerSymbol: make(map[string]*Result, len(symbols))}
	var firstPx, lastPx float64
	for _, sym := range symbols {
		res, err := share.Run(sym, series[sym])
		if err != nil {
			return nil, err
		}
		out.PerSymbol[sym] = res
		out.Trades = append(out.Trades, res.Trades...)
		bars := series[sym]
		firstPx += bars[0].Close / float64(len(symbols))
		lastPx += bars[len(bars)-1].Close / float64(len(symbols))
	}

	sort.SliceStable(out.Trades, func(i, j int) bool {
		a, b := out.Trades[i], out.Trades[j]
		if !a.ExitTime.Equal(b.ExitTime) {
			return a.ExitTime.Before(b.ExitTime)
		}
		return a.Symbol < b.Symbol
	})
	out.Equity = mergeEquity(symbols, out.PerSymbol, share.cfg.InitialCapital)
	out.Metrics = report.Compute(out.Trades, out.Equity, e.cfg.InitialCapital, e.cfg.PeriodsPerYear)
	out.Metrics.SetBuyAndHold(firstPx, lastPx)
	return out, nil
}

// mergeEquity sums the per-symbol curves. A symbol without a sample yet at a
// given time contributes its starting share; afterwards its last sample.
func mergeEquity(symbols []string, results map[string]*Result, share float64) []EquityPoint {
	var times []time.Time
	seen := make(map[int64]bool)
	for _, sym := range symbols {
		for _, p := range results[sym].Equity {
			if k := p.Time.UnixNano(); !seen[k] {
				seen[k] = true
				times = append(times, p.Time)
			}
		}
	}
	sort.Slice(times, func(i, j int) bool { return times[i].Before(times[j]) })

	cursor := make([]int, len(symbols))
	last := make([]float64, len(symbols))
	for i := range last {
		last[i] = share
	}
	out := make([]EquityPoint, 0, len(times))
	for _, t := range times {
		total := 0.0
		for k, sym := range symbols {
			curve := results[sym].Equity
			for cursor[k] < len(curve) && !curve[cursor[k]].Time.After(t) {
				last[k] = curve[cursor[k]].Equity
				cursor[k]++
			}
			total += last[k]
		}
		out = append(out, EquityPoint{Time: t, Equity: total})
	}
	return out
}
