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

// RSI returns the relative strength index using Wilder's smoothing of gains and losses.
// The first defined value is at index n. When the average loss is zero the value is 100,
// or 50 if the average gain is zero as well.
func RSI(close []float64, n int) []float64 {
	out := nanSlice(len(close))
	if n <= 0 || len(close) <= n {
		return out
	}
	var avgGain, avgLoss float64
	for i := 1; i <= n; i++ {
		g, l := gainLoss(close[i] - close[i-1])
		avgGain += g
		avgLoss += l
	}
	avgGain /= float64(n)
	avgLoss /= float64(n)
	out[n] = rsiValue(avgGain, avgLoss)
	for i := n + 1; i < len(close); i++ {
		g, l := gainLoss(close[i] - close[i-1])
		avgGain = (avgGain*float64(n-1) + g) / float64(n)
		avgLoss = (avgLoss*float64(n-1) + l) / float64(n)
		out[i] = rsiValue(avgGain, avgLoss)
	}
	return out
}

func gainLoss(delta float64) (float64, float64) {
	if delta > 0 {
		return delta, 0
	}
	return 0, -delta
}

func rsiValue(avgGain, avgLoss float64) float64 {
	if avgLoss == 0 {
		if avgGain == 0 {
			return 50
		}
		return 100
	}
	rs := avgGain / avgLoss
	return 100 - 100/(1+rs)
}

// MACDResult holds the MACD line, its signal line and the histogram.
type MACDResult struct {
	MACD      []float64
	Signal    []float64
	Histogram []float64
}

// MACD computes EMA(fast) - EMA(slow) and its EMA(signal).
func MACD(close []float64, fast, slow, signal int) MACDResult {
	fastEMA := EMA(close, fast)
	slowEMA := EMA(close, slow)
	line := nanSlice(len(close))
	for i := range close {
		if !math.IsNaN(fastEMA[i]) && !math.IsNaN(slowEMA[i]) {
			line[i] = fastEMA[i] - slowEMA[i]
		}
	}
	sig := EMA(line, signal)
	hist := nanSlice(len(close))
	for i := range close {
		if !math.IsNaN(sig[i]) {
			hist[i] = line[i] - sig[i]
		}
	}
	return MACDResult{MACD: line, Signal: sig, Histogram: hist}
}

// ROC returns the n-period rate of change in percent.
func ROC(close []float64, n int) []float64 {
	out := nanSlice(len(close))
	if n <= 0 {
		return out
	}
	for i := n; i < len(close); i++ {
		if close[i-n] == 0 {
			out[i] = 0
			continue
		}
		out[i] = (close[i] - close[i-n]) / close[i-n] * 100
	}
	return out
}

// Momentum returns close[i] - close[i-n].
func Momentum(close []float64, n int) []float64 {
	out := nanSlice(len(close))
	if n <= 0 {
		return out
	}
	for i := n; i < len(close); i++ {
		out[i] = close[i] - close[i-n]
	}
	return out
}
