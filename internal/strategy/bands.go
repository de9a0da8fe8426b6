package strategy

import (
	"fmt"
	"math"

	"github.com/your-org/regime-switch-bot/internal/config"
	"github.com/your-org/regime-switch-bot/internal/indicator"
	"github.com/your-org/regime-switch-bot/internal/market"
)

// Bollinger trades bounces back inside the bands.
type Bollinger struct {
	cfg config.BollingerConf
}

// NewBollinger creates the band bounce strategy.
func NewBollinger(cfg config.BollingerConf) *Bollinger { return &Bollinger{cfg: cfg} }

func (s *Bollinger) ID() string   { return IDBollinger }
func (s *Bollinger) MinBars() int { return s.cfg.Period + 1 }

func (s *Bollinger) GenerateSignal(bars market.Series) Signal {
	if len(bars) < s.MinBars() {
		return none(bars, "insufficient data")
	}
	close := bars.Closes()
	bb := indicator.Bollinger(close, s.cfg.Period, s.cfg.StdDev)
	last := len(close) - 1
	c, pc := close[last], close[last-1]
	upper, mid, lower := bb.Upper[last], bb.Middle[last], bb.Lower[last]
	pUpper, pLower := bb.Upper[last-1], bb.Lower[last-1]
	if math.IsNaN(pUpper) || upper == lower {
		return none(bars, "incomplete data")
	}
	switch {
	case pc <= pLower && c > lower:
		return directional(bars, SignalLong, (mid-c)/(mid-lower), "BB lower band bounce")
	case pc >= pUpper && c < upper:
		return directional(bars, SignalShort, (c-mid)/(upper-mid), "BB upper band bounce")
	}
	return none(bars, fmt.Sprintf("no BB signal, %%B=%.2f", bb.PercentB(last, c)))
}
