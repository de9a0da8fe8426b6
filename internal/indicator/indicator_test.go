// Copyright (c) 2024 OBI-Scalp-Bot
//
// Permission is hereby granted, free of charge, to any person obtaining a copy
// of this software and associated documentation files (the "Software"), to deal
// in the Software without restriction, including without limitation the rights
// to use, copy, modify, merge, publish, distribute, sublicense, and/or sell
// copies of the Software, and to permit persons to whom the Software is
// furnished to do so, subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// THE SOFTWARE IS PROVIDED "AS IS", WITHOUT WARRANTY OF ANY KIND, EXPRESS OR
// IMPLIED, INCLUDING BUT NOT LIMITED TO THE WARRANTIES OF MERCHANTABILITY,
// FITNESS FOR A PARTICULAR PURPOSE AND NONINFRINGEMENT. IN NO EVENT SHALL THE
// AUTHORS OR COPYRIGHT HOLDERS BE LIABLE FOR ANY CLAIM, DAMAGES OR OTHER
// LIABILITY, WHETHER IN AN ACTION OF CONTRACT, TORT OR OTHERWISE, ARISING FROM,
// OUT OF OR IN CONNECTION WITH THE SOFTWARE OR THE USE OR OTHER DEALINGS IN THE
// SOFTWARE.

package indicator

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var nan = math.NaN()

var approx = cmp.Options{cmpopts.EquateNaNs(), cmpopts.EquateApprox(0, 1e-9)}

func assertSeries(t *testing.T, want, got []float64) {
	t.Helper()
	if diff := cmp.Diff(want, got, approx); diff != "" {
		t.Errorf("series mismatch (-want +got):\n%s", diff)
	}
}

func TestSMA(t *testing.T) {
	assertSeries(t, []float64{nan, nan, 2, 3, 4}, SMA([]float64{1, 2, 3, 4, 5}, 3))
	assertSeries(t, []float64{nan, nan}, SMA([]float64{1, 2}, 3))
}

func TestEMA(t *testing.T) {
	// alpha = 2/(3+1) = 0.5, seeded with SMA(1,2,3) = 2
	assertSeries(t, []float64{nan, nan, 2, 3, 4}, EMA([]float64{1, 2, 3, 4, 5}, 3))
}

func TestEMA_SkipsLeadingNaN(t *testing.T) {
	in := []float64{nan, nan, 2, 4, 6}
	assertSeries(t, []float64{nan, nan, nan, 3, 5}, EMA(in, 2))
}

func TestRSI(t *testing.T) {
	t.Run("all gains yields 100", func(t *testing.T) {
		close := make([]float64, 15)
		for i := range close {
			close[i] = float64(100 + i)
		}
		out := RSI(close, 14)
		require.Len(t, out, 15)
		assert.True(t, math.IsNaN(out[13]))
		assert.Equal(t, 100.0, out[14])
	})

	t.Run("flat series yields 50", func(t *testing.T) {
		out := RSI([]float64{5, 5, 5, 5}, 2)
		assert.Equal(t, 50.0, out[3])
	})

	t.Run("wilder smoothing", func(t *testing.T) {
		out := RSI([]float64{1, 2, 1, 2, 1}, 2)
		assertSeries(t, []float64{nan, nan, 50, 75, 37.5}, out)
	})
}

func TestMACD_ConstantSeries(t *testing.T) {
	res := MACD([]float64{10, 10, 10, 10, 10, 10}, 2, 3, 2)
	assertSeries(t, []float64{nan, nan, 0, 0, 0, 0}, res.MACD)
	assertSeries(t, []float64{nan, nan, nan, 0, 0, 0}, res.Signal)
	assertSeries(t, []float64{nan, nan, nan, 0, 0, 0}, res.Histogram)
}

func TestATR(t *testing.T) {
	close := []float64{10, 10, 10, 10, 10}
	high := []float64{11, 11, 11, 11, 11}
	low := []float64{9, 9, 9, 9, 9}
	assertSeries(t, []float64{nan, nan, 2, 2, 2}, ATR(high, low, close, 3))
}

func TestTrueRange_UsesPreviousClose(t *testing.T) {
	tr := TrueRange([]float64{10, 15}, []float64{9, 14}, []float64{10, 14.5})
	assertSeries(t, []float64{1, 5}, tr)
}

func TestADX_SteadyUptrend(t *testing.T) {
	size := 10
	high, low, close := make([]float64, size), make([]float64, size), make([]float64, size)
	for i := 0; i < size; i++ {
		close[i] = float64(100 + i)
		high[i] = close[i] + 1
		low[i] = close[i] - 1
	}
	res := ADX(high, low, close, 3)
	assert.True(t, math.IsNaN(res.ADX[4]))
	assert.InDelta(t, 100, res.ADX[5], 1e-9)
	assert.InDelta(t, 100, res.ADX[9], 1e-9)
	assert.InDelta(t, 50, res.PlusDI[9], 1e-9)
	assert.Equal(t, 0.0, res.MinusDI[9])
}

func TestADX_TooShort(t *testing.T) {
	res := ADX([]float64{1, 2}, []float64{0, 1}, []float64{1, 2}, 3)
	assertSeries(t, []float64{nan, nan}, res.ADX)
}

func TestBollinger(t *testing.T) {
	bb := Bollinger([]float64{10, 10, 10, 10}, 3, 2)
	assertSeries(t, []float64{nan, nan, 10, 10}, bb.Upper)
	assert.Equal(t, 0.0, bb.WidthPct(3))
	assert.Equal(t, 0.5, bb.PercentB(3, 10))
	assert.True(t, math.IsNaN(bb.WidthPct(0)))

	bb = Bollinger([]float64{1, 3}, 2, 1)
	assert.InDelta(t, 3, bb.Upper[1], 1e-9)
	assert.InDelta(t, 1, bb.Lower[1], 1e-9)
	assert.InDelta(t, 100, bb.WidthPct(1), 1e-9)
}

func TestVWAP(t *testing.T) {
	high := []float64{11, 13}
	low := []float64{9, 11}
	close := []float64{10, 12}
	vol := []float64{1, 3}
	// typical prices 10 and 12 -> (10 + 36) / 4
	assertSeries(t, []float64{10, 11.5}, VWAP(high, low, close, vol))
	assertSeries(t, []float64{10}, VWAP(high[:1], low[:1], close[:1], []float64{0}))
}

func TestVolumeRatio(t *testing.T) {
	assert.InDelta(t, 1.5, VolumeRatio([]float64{1, 1, 1, 3}, 2), 1e-9)
	assert.Equal(t, 1.0, VolumeRatio([]float64{0, 0, 0}, 2))
	assert.Equal(t, 1.0, VolumeRatio([]float64{1}, 3))
}

func TestROCAndMomentum(t *testing.T) {
	assertSeries(t, []float64{nan, 10, 0}, ROC([]float64{100, 110, 110}, 1))
	assertSeries(t, []float64{nan, nan, 5}, Momentum([]float64{10, 12, 15}, 2))
}

func TestLinRegSlope(t *testing.T) {
	assert.InDelta(t, 2.0, LinRegSlope([]float64{1, 3, 5, 7}), 1e-9)
	assert.Equal(t, 0.0, LinRegSlope([]float64{4}))
	assert.InDelta(t, 0.0, LinRegSlope([]float64{2, 2, 2}), 1e-9)
}

func TestLastAndAt(t *testing.T) {
	vals := []float64{1, 2, nan}
	assert.Equal(t, 2.0, Last(vals))
	assert.True(t, math.IsNaN(Last([]float64{nan})))
	assert.Equal(t, 1.0, At(vals, 2))
	assert.True(t, math.IsNaN(At(vals, 3)))
}
