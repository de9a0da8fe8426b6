package strategy

import (
	"fmt"
	"math"

	"github.com/your-org/regime-switch-bot/internal/config"
	"github.com/your-org/regime-switch-bot/internal/indicator"
	"github.com/your-org/regime-switch-bot/internal/market"
)

// RSI trades reversals out of oversold and overbought zones.
type RSI struct {
	cfg         config.RSIConf
	extremeLow  float64
	extremeHigh float64
}

// NewRSI creates the RSI reversal strategy. Extreme zones sit 10 points beyond the thresholds.
func NewRSI(cfg config.RSIConf) *RSI {
	return &RSI{cfg: cfg, extremeLow: cfg.Oversold - 10, extremeHigh: cfg.Overbought + 10}
}

func (s *RSI) ID() string   { return IDRSI }
func (s *RSI) MinBars() int { return s.cfg.Period + 2 }

func (s *RSI) GenerateSignal(bars market.Series) Signal {
	if len(bars) < s.MinBars() {
		return none(bars, "insufficient data")
	}
	close := bars.Closes()
	rsi := indicator.RSI(close, s.cfg.Period)
	cur, prev := indicator.At(rsi, 0), indicator.At(rsi, 1)
	c, pc := indicator.At(close, 0), indicator.At(close, 1)
	if math.IsNaN(cur) || math.IsNaN(prev) {
		return none(bars, "incomplete data")
	}
	oversold, overbought := s.cfg.Oversold, s.cfg.Overbought

	if cur < s.extremeLow {
		if cur > prev && c > pc {
			return directional(bars, SignalLong, 1-cur/s.extremeLow, fmt.Sprintf("extreme oversold reversal, RSI=%.1f", cur))
		}
	} else if prev < oversold && cur > oversold && c > pc {
		return directional(bars, SignalLong, (cur-oversold)/(50-oversold), fmt.Sprintf("RSI reversal from oversold, RSI=%.1f", cur))
	}

	if cur > s.extremeHigh {
		if cur < prev && c < pc {
			return directional(bars, SignalShort, (cur-s.extremeHigh)/(100-s.extremeHigh), fmt.Sprintf("extreme overbought reversal, RSI=%.1f", cur))
		}
	} else if prev > overbought && cur < overbought && c < pc {
		return directional(bars, SignalShort, (overbought-cur)/(overbought-50), fmt.Sprintf("RSI reversal from overbought, RSI=%.1f", cur))
	}
	return none(bars, "no RSI signal")
}

// MACD trades crosses of the MACD line over its signal line.
type MACD struct {
	cfg config.MACDConf
}

// NewMACD creates the MACD cross strategy.
func NewMACD(cfg config.MACDConf) *MACD { return &MACD{cfg: cfg} }

func (s *MACD) ID() string   { return IDMACD }
func (s *MACD) MinBars() int { return s.cfg.Slow + s.cfg.Signal }

func (s *MACD) GenerateSignal(bars market.Series) Signal {
	if len(bars) < s.MinBars() {
		return none(bars, "insufficient data")
	}
	res := indicator.MACD(bars.Closes(), s.cfg.Fast, s.cfg.Slow, s.cfg.Signal)
	m, sig, hist := indicator.At(res.MACD, 0), indicator.At(res.Signal, 0), indicator.At(res.Histogram, 0)
	pm, psig := indicator.At(res.MACD, 1), indicator.At(res.Signal, 1)
	if math.IsNaN(sig) || math.IsNaN(psig) {
		return none(bars, "incomplete data")
	}

	strength := 0.5
	if hist != 0 {
		strength += 0.2
	}
	switch {
	case m > sig && pm <= psig:
		if m > 0 {
			strength += 0.3
		}
		return directional(bars, SignalLong, strength, fmt.Sprintf("MACD bullish cross, MACD=%.4f", m))
	case m < sig && pm >= psig:
		if m < 0 {
			strength += 0.3
		}
		return directional(bars, SignalShort, strength, fmt.Sprintf("MACD bearish cross, MACD=%.4f", m))
	}
	return none(bars, "no MACD signal")
}

// Momentum trades rate-of-change breakouts confirmed by a volume spike.
type Momentum struct {
	cfg config.MomentumConf
}

// NewMomentum creates the momentum strategy.
func NewMomentum(cfg config.MomentumConf) *Momentum { return &Momentum{cfg: cfg} }

func (s *Momentum) ID() string   { return IDMomentum }
func (s *Momentum) MinBars() int { return max(s.cfg.Period+2, s.cfg.VolumePeriod) }

func (s *Momentum) GenerateSignal(bars market.Series) Signal {
	if len(bars) < s.MinBars() {
		return none(bars, "insufficient data")
	}
	close := bars.Closes()
	roc := indicator.ROC(close, s.cfg.Period)
	cur, prev := indicator.At(roc, 0), indicator.At(roc, 1)
	if math.IsNaN(cur) || math.IsNaN(prev) {
		return none(bars, "incomplete data")
	}
	th := s.cfg.ThresholdPct
	spike := indicator.VolumeRatio(bars.Volumes(), s.cfg.VolumePeriod) > s.cfg.VolumeSpikeMult
	if !spike {
		return none(bars, "no volume confirmation")
	}
	switch {
	case cur > th && prev <= th:
		return directional(bars, SignalLong, cur/(th*3), fmt.Sprintf("strong momentum, ROC=%.2f", cur))
	case cur < -th && prev >= -th:
		return directional(bars, SignalShort, -cur/(th*3), fmt.Sprintf("negative momentum, ROC=%.2f", cur))
	}
	return none(bars, "no momentum signal")
}
