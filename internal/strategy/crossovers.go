package strategy

import (
	"fmt"
	"math"

	"github.com/your-org/regime-switch-bot/internal/config"
	"github.com/your-org/regime-switch-bot/internal/indicator"
	"github.com/your-org/regime-switch-bot/internal/market"
)

type cross int

const (
	noCross cross = iota
	bullishCross
	bearishCross
)

func crossOf(fast, slow []float64) cross {
	f, s := indicator.At(fast, 0), indicator.At(slow, 0)
	pf, ps := indicator.At(fast, 1), indicator.At(slow, 1)
	if math.IsNaN(f) || math.IsNaN(s) || math.IsNaN(pf) || math.IsNaN(ps) {
		return noCross
	}
	switch {
	case f > s && pf <= ps:
		return bullishCross
	case f < s && pf >= ps:
		return bearishCross
	}
	return noCross
}

// EMACross trades fast/slow EMA crosses in the direction of the trend EMA.
type EMACross struct {
	cfg config.EMACrossConf
}

// NewEMACross creates the EMA crossover strategy.
func NewEMACross(cfg config.EMACrossConf) *EMACross { return &EMACross{cfg: cfg} }

func (s *EMACross) ID() string   { return IDEMACross }
func (s *EMACross) MinBars() int { return s.cfg.Slow + 1 }

func (s *EMACross) GenerateSignal(bars market.Series) Signal {
	if len(bars) < s.MinBars() {
		return none(bars, "insufficient data")
	}
	close := bars.Closes()
	fast, slow := indicator.EMA(close, s.cfg.Fast), indicator.EMA(close, s.cfg.Slow)
	c := indicator.At(close, 0)

	// Without enough bars for the trend EMA the filter passes both directions.
	trend := indicator.At(indicator.EMA(close, s.cfg.Trend), 0)
	up, down := true, true
	if !math.IsNaN(trend) {
		up, down = c > trend, c <= trend
	}

	f, sl := indicator.At(fast, 0), indicator.At(slow, 0)
	switch crossOf(fast, slow) {
	case bullishCross:
		if up {
			return directional(bars, SignalLong, (f-sl)/sl*100, "EMA bullish cross")
		}
	case bearishCross:
		if down {
			return directional(bars, SignalShort, (sl-f)/sl*100, "EMA bearish cross")
		}
	}
	return none(bars, "no EMA cross")
}

// Scalping trades fast EMA crosses confirmed by RSI and a volume spike.
type Scalping struct {
	cfg config.ScalpingConf
}

// NewScalping creates the scalping strategy.
func NewScalping(cfg config.ScalpingConf) *Scalping { return &Scalping{cfg: cfg} }

func (s *Scalping) ID() string { return IDScalping }
func (s *Scalping) MinBars() int {
	return max(s.cfg.Slow+1, s.cfg.RSIPeriod+1, s.cfg.VolumePeriod)
}

func (s *Scalping) GenerateSignal(bars market.Series) Signal {
	if len(bars) < s.MinBars() {
		return none(bars, "insufficient data")
	}
	close := bars.Closes()
	rsi := indicator.At(indicator.RSI(close, s.cfg.RSIPeriod), 0)
	if math.IsNaN(rsi) {
		return none(bars, "incomplete data")
	}
	volumeOK := indicator.VolumeRatio(bars.Volumes(), s.cfg.VolumePeriod) > s.cfg.MinVolumeRatio

	switch crossOf(indicator.EMA(close, s.cfg.Fast), indicator.EMA(close, s.cfg.Slow)) {
	case bullishCross:
		if rsi > s.cfg.RSILower && volumeOK {
			return directional(bars, SignalLong, (rsi-s.cfg.RSILower)/(50-s.cfg.RSILower), fmt.Sprintf("bullish EMA cross, RSI=%.1f, volume spike", rsi))
		}
	case bearishCross:
		if rsi < s.cfg.RSIUpper && volumeOK {
			return directional(bars, SignalShort, (s.cfg.RSIUpper-rsi)/(s.cfg.RSIUpper-50), fmt.Sprintf("bearish EMA cross, RSI=%.1f, volume spike", rsi))
		}
	}
	return none(bars, "no signal")
}
