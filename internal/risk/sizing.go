package risk

import (
	"math"

	"go.uber.org/zap"
)

// TradeStats summarizes recent closed trades for Kelly sizing.
type TradeStats struct {
	Trades  int
	WinRate float64 // 0..1
	AvgWin  float64 // mean profit of winners, positive
	AvgLoss float64 // mean loss of losers, positive
}

// StatsFromPnL builds TradeStats from realized trade PnLs.
func StatsFromPnL(pnls []float64) TradeStats {
	var wins, losses int
	var sumWin, sumLoss float64
	for _, p := range pnls {
		switch {
		case p > 0:
			wins++
			sumWin += p
		case p < 0:
			losses++
			sumLoss -= p
		}
	}
	s := TradeStats{Trades: len(pnls)}
	if len(pnls) > 0 {
		s.WinRate = float64(wins) / float64(len(pnls))
	}
	if wins > 0 {
		s.AvgWin = sumWin / float64(wins)
	}
	if losses > 0 {
		s.AvgLoss = sumLoss / float64(losses)
	}
	return s
}

// SizingInput carries what position sizing needs for one entry.
type SizingInput struct {
	Capital         float64
	AvailableMargin float64 // zero means Capital
	Entry           float64
	Stop            float64
	Leverage        float64 // zero means the configured leverage
	Stats           *TradeStats
}

// RawFixedRiskQuantity is capital × risk_per_trade_pct / stop distance, before any clamp.
func (m *Manager) RawFixedRiskQuantity(capital, entry, stop float64) (float64, error) {
	return m.riskQuantity(capital, m.cfg.RiskPerTradePct, entry, stop)
}

func (m *Manager) riskQuantity(capital, fraction, entry, stop float64) (float64, error) {
	dist := math.Abs(entry - stop)
	if dist == 0 || math.IsNaN(dist) {
		return 0, reject("stop_distance", "stop %.8f equals entry %.8f", stop, entry)
	}
	if capital <= 0 {
		return 0, reject("capital", "capital %.2f is not positive", capital)
	}
	return capital * fraction / dist, nil
}

// KellyFraction returns the fraction of capital to risk, or false when stats
// cannot support a Kelly estimate.
func (m *Manager) KellyFraction(stats *TradeStats) (float64, bool) {
	sz := m.cfg.Sizing
	if stats == nil || stats.Trades < sz.KellyMinTrades {
		return 0, false
	}
	if stats.WinRate <= 0 || stats.WinRate >= 1 || stats.AvgLoss == 0 {
		return 0, false
	}
	r := math.Abs(stats.AvgWin / stats.AvgLoss)
	k := stats.WinRate - (1-stats.WinRate)/r
	k = math.Max(0, math.Min(k*sz.KellyFraction, sz.KellyMax))
	if k <= 0 {
		k = sz.KellyMin
	}
	return k, true
}

// PositionSize returns the quantity to open under the configured sizing mode,
// clamped to margin × leverage and to max_position_pct of capital.
func (m *Manager) PositionSize(in SizingInput) (float64, error) {
	fraction := m.cfg.RiskPerTradePct
	if m.cfg.Sizing.Mode == SizingKelly {
		if k, ok := m.KellyFraction(in.Stats); ok {
			fraction = k
		} else {
			m.logger.Debug("insufficient statistics for kelly sizing, using fixed risk")
		}
	}

	qty, err := m.riskQuantity(in.Capital, fraction, in.Entry, in.Stop)
	if err != nil {
		return 0, err
	}

	lev := in.Leverage
	if lev <= 0 {
		lev = m.leverage(AccountState{})
	}
	margin := in.AvailableMargin
	if margin <= 0 {
		margin = in.Capital
	}
	if maxQty := margin * lev / in.Entry; qty > maxQty {
		m.logger.Debug("size clamped to margin", zap.Float64("qty", qty), zap.Float64("max", maxQty))
		qty = maxQty
	}
	if m.cfg.MaxPositionPct > 0 {
		if maxQty := in.Capital * m.cfg.MaxPositionPct * lev / in.Entry; qty > maxQty {
			m.logger.Debug("size clamped to max position", zap.Float64("qty", qty), zap.Float64("max", maxQty))
			qty = maxQty
		}
	}
	return qty, nil
}
