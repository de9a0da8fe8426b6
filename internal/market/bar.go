// Package market holds OHLCV bars and the market regime classification.
package market

import (
	"fmt"
	"time"
)

// Bar is one OHLCV candle.
type Bar struct {
	Time   time.Time `json:"time"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// Series is an ordered sequence of bars with strictly increasing timestamps.
type Series []Bar

// Validate reports the first out-of-order timestamp or malformed bar.
func (s Series) Validate() error {
	for i, b := range s {
		if b.High < b.Low {
			return fmt.Errorf("bar %d at %s: high %.8f below low %.8f", i, b.Time.Format(time.RFC3339), b.High, b.Low)
		}
		if i > 0 && !b.Time.After(s[i-1].Time) {
			return fmt.Errorf("bar %d at %s: timestamp not after previous %s", i, b.Time.Format(time.RFC3339), s[i-1].Time.Format(time.RFC3339))
		}
	}
	return nil
}

// Tail returns the last n bars, or the whole series if it is shorter.
func (s Series) Tail(n int) Series {
	if n <= 0 || n >= len(s) {
		return s
	}
	return s[len(s)-n:]
}

// Last returns the newest bar. It panics on an empty series.
func (s Series) Last() Bar { return s[len(s)-1] }

// Columns splits the series into open, high, low, close and volume slices.
func (s Series) Columns() (open, high, low, close, volume []float64) {
	open = make([]float64, len(s))
	high = make([]float64, len(s))
	low = make([]float64, len(s))
	close = make([]float64, len(s))
	volume = make([]float64, len(s))
	for i, b := range s {
		open[i], high[i], low[i], close[i], volume[i] = b.Open, b.High, b.Low, b.Close, b.Volume
	}
	return
}

// Closes returns the closing prices.
func (s Series) Closes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Close
	}
	return out
}

// Volumes returns the bar volumes.
func (s Series) Volumes() []float64 {
	out := make([]float64, len(s))
	for i, b := range s {
		out[i] = b.Volume
	}
	return out
}
