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

import "math"

// TrueRange returns the true range of each bar. The first bar uses high - low.
func TrueRange(high, low, close []float64) []float64 {
	out := make([]float64, len(close))
	for i := range close {
		hl := high[i] - low[i]
		if i == 0 {
			out[i] = hl
			continue
		}
		hc := math.Abs(high[i] - close[i-1])
		lc := math.Abs(low[i] - close[i-1])
		out[i] = math.Max(hl, math.Max(hc, lc))
	}
	return out
}

// ATR returns the Wilder-smoothed average true range.
func ATR(high, low, close []float64, n int) []float64 {
	return Wilder(TrueRange(high, low, close), n)
}

// BollingerBands holds the upper, middle and lower bands.
type BollingerBands struct {
	Upper  []float64
	Middle []float64
	Lower  []float64
}

// Bollinger returns SMA(n) +/- k standard deviations.
func Bollinger(close []float64, n int, k float64) BollingerBands {
	mid := SMA(close, n)
	sd := StdDev(close, n)
	upper := nanSlice(len(close))
	lower := nanSlice(len(close))
	for i := range close {
		if math.IsNaN(mid[i]) {
			continue
		}
		upper[i] = mid[i] + k*sd[i]
		lower[i] = mid[i] - k*sd[i]
	}
	return BollingerBands{Upper: upper, Middle: mid, Lower: lower}
}

// WidthPct returns (upper - lower) / middle * 100 at index i, or 0 when middle is 0.
func (b BollingerBands) WidthPct(i int) float64 {
	if i < 0 || i >= len(b.Middle) || math.IsNaN(b.Middle[i]) {
		return math.NaN()
	}
	if b.Middle[i] == 0 {
		return 0
	}
	return (b.Upper[i] - b.Lower[i]) / b.Middle[i] * 100
}

// PercentB returns the position of price within the bands at index i (0 = lower, 1 = upper).
func (b BollingerBands) PercentB(i int, price float64) float64 {
	if i < 0 || i >= len(b.Middle) || math.IsNaN(b.Middle[i]) {
		return math.NaN()
	}
	width := b.Upper[i] - b.Lower[i]
	if width == 0 {
		return 0.5
	}
	return (price - b.Lower[i]) / width
}

// VolatilityCalculator calculates the EWMA and EWM standard deviation of simple
// price returns incrementally.
type VolatilityCalculator struct {
	lambda        float64 // weight of the newest return
	prevPrice     float64
	ewmaReturn    float64
	ewmVarReturn  float64
	isInitialized bool
}

// NewVolatilityCalculator creates a new VolatilityCalculator.
func NewVolatilityCalculator(lambda float64) *VolatilityCalculator {
	return &VolatilityCalculator{lambda: lambda}
}

// Update feeds the next price and returns the EWMA of returns and the EWM standard deviation.
func (vc *VolatilityCalculator) Update(currentPrice float64) (ewmaRet float64, ewmStdDev float64) {
	if !vc.isInitialized || vc.prevPrice == 0 {
		vc.prevPrice = currentPrice
		vc.isInitialized = true
		return vc.ewmaReturn, math.Sqrt(vc.ewmVarReturn)
	}
	ret := (currentPrice - vc.prevPrice) / vc.prevPrice
	vc.ewmaReturn = vc.lambda*ret + (1-vc.lambda)*vc.ewmaReturn
	// RiskMetrics form: zero mean return.
	vc.ewmVarReturn = (1-vc.lambda)*vc.ewmVarReturn + vc.lambda*(ret*ret)
	vc.prevPrice = currentPrice
	return vc.ewmaReturn, math.Sqrt(vc.ewmVarReturn)
}

// EWMStdDev runs a VolatilityCalculator over prices and returns the final EWM standard deviation.
func EWMStdDev(prices []float64, lambda float64) float64 {
	vc := NewVolatilityCalculator(lambda)
	var sd float64
	for _, p := range prices {
		_, sd = vc.Update(p)
	}
	return sd
}
