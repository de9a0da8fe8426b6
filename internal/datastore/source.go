// Package datastore provides OHLCV bar sources: CSV files, PostgreSQL, memory,
// and a retrying wrapper for transient failures.
package datastore

import (
	"context"
	"errors"

	"github.com/your-org/regime-switch-bot/internal/market"
)

// ErrNoBars is returned when a source holds no bars for the requested key.
var ErrNoBars = errors.New("no bars")

// BarSource fetches the newest count bars of symbol at timeframe, oldest first.
type BarSource interface {
	FetchBars(ctx context.Context, symbol, timeframe string, count int) (market.Series, error)
}

// BarSourceFunc adapts a function to BarSource.
type BarSourceFunc func(ctx context.Context, symbol, timeframe string, count int) (market.Series, error)

// FetchBars calls f.
func (f BarSourceFunc) FetchBars(ctx context.Context, symbol, timeframe string, count int) (market.Series, error) {
	return f(ctx, symbol, timeframe, count)
}
