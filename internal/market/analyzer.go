package market

import (
	"math"

	"github.com/your-org/regime-switch-bot/internal/config"
	"github.com/your-org/regime-switch-bot/internal/indicator"
)

// Analyzer classifies volatility, trend and volume regimes from a bar window.
// It holds no mutable state and may be shared between goroutines.
type Analyzer struct {
	cfg config.AnalysisConfig
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(cfg config.AnalysisConfig) *Analyzer {
	return &Analyzer{cfg: cfg}
}

// MinBars is the shortest window Analyze accepts. ADX needs 2*trend_period
// bars before its first smoothed value.
func (a *Analyzer) MinBars() int {
	return max(a.cfg.VolatilityPeriod, a.cfg.TrendPeriod, a.cfg.VolumePeriod, 2*a.cfg.TrendPeriod)
}

// Analyze returns the Condition of the window. ComputedAt is the time of the last bar,
// so the same window always yields the same Condition.
func (a *Analyzer) Analyze(bars Series) (Condition, error) {
	need := a.MinBars()
	if len(bars) < need {
		return Condition{}, &InsufficientDataError{Have: len(bars), Need: need, What: "market analysis"}
	}

	_, high, low, close, volume := bars.Columns()
	var m Metrics
	m.Close = close[len(close)-1]

	if !a.measureVolatility(&m, high, low, close) || !a.measureTrend(&m, high, low, close) {
		return Condition{}, &InsufficientDataError{Have: len(bars), Need: need + 1, What: "indicator warm-up"}
	}
	a.measureVolume(&m, high, low, close, volume)

	return Condition{
		Volatility: a.classifyVolatility(&m),
		Trend:      a.classifyTrend(m),
		Volume:     a.classifyVolume(m),
		ComputedAt: bars.Last().Time,
		Metrics:    m,
	}, nil
}

func (a *Analyzer) measureVolatility(m *Metrics, high, low, close []float64) bool {
	n := a.cfg.VolatilityPeriod
	last := len(close) - 1
	m.ATR = indicator.ATR(high, low, close, n)[last]

	bb := indicator.Bollinger(close, n, a.cfg.BollingerK)
	mid := bb.Middle[last]
	if math.IsNaN(m.ATR) || math.IsNaN(mid) {
		return false
	}
	if m.Close > 0 {
		m.ATRPct = m.ATR / m.Close * 100
	}
	// Half band width: k standard deviations relative to the middle band.
	if mid > 0 {
		m.BBWidthPct = (bb.Upper[last] - mid) / mid * 100
	}

	hi, lo := math.Inf(-1), math.Inf(1)
	for i := len(close) - n; i <= last; i++ {
		hi = math.Max(hi, high[i])
		lo = math.Min(lo, low[i])
	}
	if lo > 0 {
		m.RangePct = (hi - lo) / lo * 100
	}

	window := close[len(close)-n:]
	m.RealizedVol = indicator.RealizedVolatility(window)
	if a.cfg.EWMLambda > 0 {
		m.EWMVol = indicator.EWMStdDev(close, a.cfg.EWMLambda)
	}
	return true
}

func (a *Analyzer) measureTrend(m *Metrics, high, low, close []float64) bool {
	n := a.cfg.TrendPeriod
	last := len(close) - 1
	adx := indicator.ADX(high, low, close, n)
	m.ADX, m.PlusDI, m.MinusDI = adx.ADX[last], adx.PlusDI[last], adx.MinusDI[last]
	if math.IsNaN(m.ADX) {
		return false
	}
	e5 := indicator.EMA(close, 5)[last]
	e20 := indicator.EMA(close, 20)[last]
	e50 := indicator.EMA(close, 50)[last]
	m.EMAOrder = emaDirection(e5, e20, e50)
	m.EMA5, m.EMA20, m.EMA50 = zeroNaN(e5), zeroNaN(e20), zeroNaN(e50)

	slope := indicator.LinRegSlope(close[len(close)-n:])
	if m.Close > 0 {
		m.SlopePct = slope / m.Close * 100
	}
	return true
}

func (a *Analyzer) measureVolume(m *Metrics, high, low, close, volume []float64) {
	n := a.cfg.VolumePeriod
	m.AvgVolume = indicator.Last(indicator.SMA(volume, n))
	m.VolumeRatio = indicator.VolumeRatio(volume, n)
	m.VWAP = indicator.Last(indicator.VWAP(high, low, close, volume))
	if m.VWAP > 0 {
		m.PriceVsVWAPPct = (m.Close - m.VWAP) / m.VWAP * 100
	}
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// volatilityScore is the weighted mean of the normalized inputs. Each input saturates
// at 3% ATR, 15% band width and 15% range.
func (a *Analyzer) volatilityScore(m Metrics) float64 {
	w := a.cfg.VolatilityWeights
	total := w.ATR + w.BBWidth + w.Range
	if total <= 0 {
		return 0
	}
	return (w.ATR*clamp01(m.ATRPct/3) + w.BBWidth*clamp01(m.BBWidthPct/15) + w.Range*clamp01(m.RangePct/15)) / total
}

func (a *Analyzer) classifyVolatility(m *Metrics) VolatilityLevel {
	m.VolatilityScore = a.volatilityScore(*m)
	switch {
	case m.VolatilityScore < a.cfg.VolatilityLow:
		return VolatilityLow
	case m.VolatilityScore < a.cfg.VolatilityHigh:
		return VolatilityMedium
	default:
		return VolatilityHigh
	}
}

func emaDirection(e5, e20, e50 float64) int {
	switch {
	case math.IsNaN(e5) || math.IsNaN(e20):
		return 0
	case math.IsNaN(e50):
		// Short window: order the two defined averages.
		return sign(e5 - e20)
	case e5 > e20 && e20 > e50:
		return 1
	case e5 < e20 && e20 < e50:
		return -1
	}
	return 0
}

func zeroNaN(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}

func sign(v float64) int {
	switch {
	case v > 0:
		return 1
	case v < 0:
		return -1
	}
	return 0
}

// classifyTrend needs ADX strength plus two agreeing direction votes for a STRONG_* label.
// The votes come from EMA ordering, regression slope and the directional indicators.
func (a *Analyzer) classifyTrend(m Metrics) TrendLevel {
	emaDir := m.EMAOrder
	slopeDir := 0
	if math.Abs(m.SlopePct) >= a.cfg.FlatSlopePct {
		slopeDir = sign(m.SlopePct)
	}
	diDir := sign(m.PlusDI - m.MinusDI)

	var up, down int
	for _, d := range []int{emaDir, slopeDir, diDir} {
		switch d {
		case 1:
			up++
		case -1:
			down++
		}
	}

	strong := m.ADX > a.cfg.ADXStrong
	weak := m.ADX < a.cfg.ADXWeak
	switch {
	case strong && up >= 2:
		return TrendStrongUp
	case strong && down >= 2:
		return TrendStrongDown
	case weak || (slopeDir == 0 && emaDir == 0):
		return TrendRanging
	case up > down:
		return TrendWeakUp
	case down > up:
		return TrendWeakDown
	}
	return TrendRanging
}

func (a *Analyzer) classifyVolume(m Metrics) VolumeLevel {
	switch {
	case m.VolumeRatio < a.cfg.VolumeLowRatio:
		return VolumeLow
	case m.VolumeRatio <= a.cfg.VolumeHighRatio:
		return VolumeNormal
	default:
		return VolumeHigh
	}
}
