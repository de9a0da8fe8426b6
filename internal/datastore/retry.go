package datastore

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/regime-switch-bot/internal/market"
)

// RetryingSource retries a BarSource with exponential backoff. Context errors
// and ErrNoBars are returned immediately.
type RetryingSource struct {
	source     BarSource
	maxRetries int
	base       time.Duration
	maxDelay   time.Duration
	logger     *zap.Logger
	sleep      func(ctx context.Context, d time.Duration) error
}

// NewRetryingSource wraps source. base is the first delay; each retry doubles it.
func NewRetryingSource(source BarSource, maxRetries int, base time.Duration, logger *zap.Logger) *RetryingSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	if base <= 0 {
		base = 100 * time.Millisecond
	}
	return &RetryingSource{
		source:     source,
		maxRetries: max(maxRetries, 0),
		base:       base,
		maxDelay:   30 * time.Second,
		logger:     logger,
		sleep:      sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// FetchBars implements BarSource.
func (s *RetryingSource) FetchBars(ctx context.Context, symbol, timeframe string, count int) (market.Series, error) {
	delay := s.base
	for attempt := 0; ; attempt++ {
		bars, err := s.source.FetchBars(ctx, symbol, timeframe, count)
		if err == nil {
			return bars, nil
		}
		if attempt >= s.maxRetries || !retryable(err) || ctx.Err() != nil {
			return nil, err
		}
		s.logger.Warn("fetch bars failed, retrying",
			zap.String("symbol", symbol),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err))
		if err := s.sleep(ctx, delay); err != nil {
			return nil, err
		}
		delay = min(delay*2, s.maxDelay)
	}
}

func retryable(err error) bool {
	return !errors.Is(err, context.Canceled) &&
		!errors.Is(err, context.DeadlineExceeded) &&
		!errors.Is(err, ErrNoBars)
}
