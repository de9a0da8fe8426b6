package datastore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/your-org/regime-switch-bot/internal/market"
)

type seriesKey struct {
	symbol    string
	timeframe string
}

// InMemRepository is an in-memory bar store. It serves tests and CSV-backed runs.
type InMemRepository struct {
	mu     sync.RWMutex
	series map[seriesKey]market.Series
}

// NewInMemRepository creates a new InMemRepository.
func NewInMemRepository() *InMemRepository {
	return &InMemRepository{series: make(map[seriesKey]market.Series)}
}

// SaveBars merges bars into the stored series, replacing bars with equal timestamps.
func (r *InMemRepository) SaveBars(ctx context.Context, symbol, timeframe string, bars market.Series) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := seriesKey{symbol, timeframe}
	byTime := make(map[int64]market.Bar, len(r.series[key])+len(bars))
	for _, b := range r.series[key] {
		byTime[b.Time.UnixNano()] = b
	}
	for _, b := range bars {
		byTime[b.Time.UnixNano()] = b
	}
	merged := make(market.Series, 0, len(byTime))
	for _, b := range byTime {
		merged = append(merged, b)
	}
	sort.Slice(merged, func(i, j int) bool { return merged[i].Time.Before(merged[j].Time) })
	r.series[key] = merged
	return nil
}

// FetchBars returns the newest count bars.
func (r *InMemRepository) FetchBars(ctx context.Context, symbol, timeframe string, count int) (market.Series, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.series[seriesKey{symbol, timeframe}]
	if !ok || len(s) == 0 {
		return nil, fmt.Errorf("%w for %s %s", ErrNoBars, symbol, timeframe)
	}
	return append(market.Series(nil), s.Tail(count)...), nil
}

// FetchRange returns the bars with start <= time < end.
func (r *InMemRepository) FetchRange(ctx context.Context, symbol, timeframe string, start, end time.Time) (market.Series, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out market.Series
	for _, b := range r.series[seriesKey{symbol, timeframe}] {
		if !b.Time.Before(start) && b.Time.Before(end) {
			out = append(out, b)
		}
	}
	return out, nil
}

// Clear removes every stored series.
func (r *InMemRepository) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.series = make(map[seriesKey]market.Series)
}
