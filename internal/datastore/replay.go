package datastore

import (
	"context"
	"fmt"
	"sync"

	"github.com/your-org/regime-switch-bot/internal/market"
)

// ReplaySource reveals a recorded series one bar at a time, so a paper session
// sees history as if it were arriving live.
type ReplaySource struct {
	mu     sync.Mutex
	bars   market.Series
	cursor int
}

// NewReplaySource starts with the first start bars visible.
func NewReplaySource(bars market.Series, start int) *ReplaySource {
	return &ReplaySource{bars: bars, cursor: min(max(start, 0), len(bars))}
}

// Advance reveals the next bar. It returns false when the series is exhausted.
func (s *ReplaySource) Advance() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor >= len(s.bars) {
		return false
	}
	s.cursor++
	return true
}

// Visible returns the number of revealed bars.
func (s *ReplaySource) Visible() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// FetchBars returns the newest count revealed bars. symbol and timeframe are ignored.
func (s *ReplaySource) FetchBars(ctx context.Context, symbol, timeframe string, count int) (market.Series, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cursor == 0 {
		return nil, fmt.Errorf("%w: replay has not started", ErrNoBars)
	}
	return append(market.Series(nil), s.bars[:s.cursor].Tail(count)...), nil
}
