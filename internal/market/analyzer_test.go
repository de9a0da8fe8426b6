package market

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/your-org/regime-switch-bot/internal/config"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// linearSeries builds n bars whose close moves by step each bar.
func linearSeries(n int, start, step, halfRange float64) Series {
	bars := make(Series, n)
	for i := 0; i < n; i++ {
		c := start + step*float64(i)
		bars[i] = Bar{
			Time:   t0.Add(time.Duration(i) * time.Minute),
			Open:   c - step,
			High:   c + halfRange,
			Low:    c - halfRange,
			Close:  c,
			Volume: 100,
		}
	}
	return bars
}

func newTestAnalyzer() *Analyzer {
	return NewAnalyzer(config.Default().Analysis)
}

func TestAnalyze_InsufficientData(t *testing.T) {
	a := newTestAnalyzer()
	require.Equal(t, 28, a.MinBars())

	for _, n := range []int{0, 1, 20, 27} {
		_, err := a.Analyze(linearSeries(n, 100, 1, 0.5))
		require.Error(t, err, "n=%d", n)
		var ide *InsufficientDataError
		require.True(t, errors.As(err, &ide))
		assert.Equal(t, n, ide.Have)
		assert.Equal(t, 28, ide.Need)
		assert.True(t, errors.Is(err, ErrInsufficientData))
	}
}

func TestAnalyze_SteadyRiseIsStrongUp(t *testing.T) {
	bars := linearSeries(50, 100, 1, 0.5)
	cond, err := newTestAnalyzer().Analyze(bars)
	require.NoError(t, err)

	assert.Greater(t, cond.Metrics.ADX, 40.0)
	assert.Greater(t, cond.Metrics.EMA5, cond.Metrics.EMA20)
	assert.Greater(t, cond.Metrics.EMA20, cond.Metrics.EMA50)
	assert.Equal(t, TrendStrongUp, cond.Trend)
	assert.Equal(t, VolumeNormal, cond.Volume)
	assert.Equal(t, VolatilityMedium, cond.Volatility)
	assert.Equal(t, bars.Last().Time, cond.ComputedAt)
}

func TestAnalyze_SteadyFallIsStrongDown(t *testing.T) {
	cond, err := newTestAnalyzer().Analyze(linearSeries(50, 200, -1, 0.5))
	require.NoError(t, err)
	assert.Equal(t, TrendStrongDown, cond.Trend)
	assert.Equal(t, -1, cond.Metrics.EMAOrder)
}

func TestAnalyze_FlatMarketRangingWithVolumeSpike(t *testing.T) {
	bars := linearSeries(40, 100, 0, 1)
	bars[len(bars)-1].Volume = 300

	cond, err := newTestAnalyzer().Analyze(bars)
	require.NoError(t, err)
	assert.Equal(t, TrendRanging, cond.Trend)
	assert.Equal(t, VolatilityLow, cond.Volatility)
	assert.Equal(t, VolumeHigh, cond.Volume)
	assert.InDelta(t, 300.0/110.0, cond.Metrics.VolumeRatio, 1e-9)
}

func TestAnalyze_LowVolume(t *testing.T) {
	bars := linearSeries(40, 100, 0, 1)
	bars[len(bars)-1].Volume = 10

	cond, err := newTestAnalyzer().Analyze(bars)
	require.NoError(t, err)
	assert.Equal(t, VolumeLow, cond.Volume)
}

func TestAnalyze_Idempotent(t *testing.T) {
	bars := linearSeries(60, 100, 0.3, 2)
	a := newTestAnalyzer()
	first, err := a.Analyze(bars)
	require.NoError(t, err)
	second, err := a.Analyze(bars)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestVolatilityScore_Monotonic(t *testing.T) {
	a := newTestAnalyzer()
	base := Metrics{ATRPct: 1, BBWidthPct: 5, RangePct: 5}
	prev := a.volatilityScore(base)
	for _, bump := range []func(m *Metrics){
		func(m *Metrics) { m.ATRPct += 0.5 },
		func(m *Metrics) { m.BBWidthPct += 2 },
		func(m *Metrics) { m.RangePct += 2 },
	} {
		bump(&base)
		next := a.volatilityScore(base)
		assert.GreaterOrEqual(t, next, prev)
		prev = next
	}

	saturated := a.volatilityScore(Metrics{ATRPct: 30, BBWidthPct: 150, RangePct: 150})
	assert.Equal(t, 1.0, saturated)
}

func TestClassifyTrend_Consensus(t *testing.T) {
	a := newTestAnalyzer()
	tests := []struct {
		name string
		m    Metrics
		want TrendLevel
	}{
		{"strong adx two votes", Metrics{ADX: 45, EMAOrder: 1, SlopePct: 0.5, PlusDI: 10, MinusDI: 30}, TrendStrongUp},
		{"strong adx single vote", Metrics{ADX: 45, EMAOrder: 1, SlopePct: 0.05, PlusDI: 10, MinusDI: 30}, TrendRanging},
		{"moderate adx", Metrics{ADX: 30, EMAOrder: 1, SlopePct: 0.5, PlusDI: 30, MinusDI: 10}, TrendWeakUp},
		{"moderate adx down", Metrics{ADX: 30, EMAOrder: 0, SlopePct: -0.5, PlusDI: 10, MinusDI: 30}, TrendWeakDown},
		{"weak adx", Metrics{ADX: 15, EMAOrder: 1, SlopePct: 0.5, PlusDI: 30, MinusDI: 10}, TrendRanging},
		{"flat slope no ordering", Metrics{ADX: 30, EMAOrder: 0, SlopePct: 0.01, PlusDI: 30, MinusDI: 10}, TrendRanging},
		{"strong adx down", Metrics{ADX: 60, EMAOrder: -1, SlopePct: -1, PlusDI: 5, MinusDI: 40}, TrendStrongDown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, a.classifyTrend(tt.m))
		})
	}
}

func TestSeries_Validate(t *testing.T) {
	bars := linearSeries(3, 100, 1, 1)
	assert.NoError(t, bars.Validate())

	bars[2].Time = bars[1].Time
	assert.Error(t, bars.Validate())

	bars = linearSeries(2, 100, 1, 1)
	bars[1].High = bars[1].Low - 1
	assert.Error(t, bars.Validate())
}

func TestSeries_Tail(t *testing.T) {
	bars := linearSeries(5, 100, 1, 1)
	assert.Len(t, bars.Tail(2), 2)
	assert.Equal(t, bars[4], bars.Tail(2)[1])
	assert.Len(t, bars.Tail(10), 5)
}
