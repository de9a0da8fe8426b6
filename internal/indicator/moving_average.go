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

// Package indicator implements technical indicators over ordered price series.
// Every series function returns a slice aligned with its input; positions inside
// the warm-up window are NaN.
package indicator

import "math"

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// firstValid returns the index of the first non-NaN value, or len(values).
func firstValid(values []float64) int {
	for i, v := range values {
		if !math.IsNaN(v) {
			return i
		}
	}
	return len(values)
}

// SMA returns the simple moving average over period n.
func SMA(values []float64, n int) []float64 {
	out := nanSlice(len(values))
	if n <= 0 {
		return out
	}
	start := firstValid(values)
	if len(values)-start < n {
		return out
	}
	var sum float64
	for i := start; i < len(values); i++ {
		sum += values[i]
		if i-start >= n {
			sum -= values[i-n]
		}
		if i-start >= n-1 {
			out[i] = sum / float64(n)
		}
	}
	return out
}

// EMA returns the exponential moving average with smoothing factor 2/(n+1).
// The first defined value is the SMA of the first n inputs.
func EMA(values []float64, n int) []float64 {
	return smooth(values, n, 2.0/float64(n+1))
}

// Wilder returns Wilder's moving average (smoothing factor 1/n), seeded with an SMA.
func Wilder(values []float64, n int) []float64 {
	return smooth(values, n, 1.0/float64(n))
}

func smooth(values []float64, n int, alpha float64) []float64 {
	out := nanSlice(len(values))
	if n <= 0 {
		return out
	}
	start := firstValid(values)
	seed := start + n - 1
	if seed >= len(values) {
		return out
	}
	var sum float64
	for i := start; i <= seed; i++ {
		sum += values[i]
	}
	prev := sum / float64(n)
	out[seed] = prev
	for i := seed + 1; i < len(values); i++ {
		prev = alpha*values[i] + (1-alpha)*prev
		out[i] = prev
	}
	return out
}

// StdDev returns the rolling population standard deviation over period n.
func StdDev(values []float64, n int) []float64 {
	out := nanSlice(len(values))
	mean := SMA(values, n)
	for i := range values {
		if math.IsNaN(mean[i]) {
			continue
		}
		var acc float64
		for j := i - n + 1; j <= i; j++ {
			d := values[j] - mean[i]
			acc += d * d
		}
		out[i] = math.Sqrt(acc / float64(n))
	}
	return out
}

// Last returns the last non-NaN value of the series, or NaN if there is none.
func Last(values []float64) float64 {
	for i := len(values) - 1; i >= 0; i-- {
		if !math.IsNaN(values[i]) {
			return values[i]
		}
	}
	return math.NaN()
}

// At returns values[len(values)-1-back], or NaN when out of range.
func At(values []float64, back int) float64 {
	i := len(values) - 1 - back
	if i < 0 || i >= len(values) {
		return math.NaN()
	}
	return values[i]
}
