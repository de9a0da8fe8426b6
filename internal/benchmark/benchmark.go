// Package benchmark tracks a buy-and-hold reference equity next to the
// strategies the bot actually runs.
package benchmark

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Execer is the subset of *pgxpool.Pool used to persist benchmark values.
type Execer interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
}

const insertQuery = `
	INSERT INTO benchmark_values (time, symbol, price, value)
	VALUES ($1, $2, $3, $4)
`

// Service values capital as if it had been fully invested at the first
// observed price and held since.
type Service struct {
	logger  *zap.Logger
	db      Execer
	capital float64
	now     func() time.Time

	mu   sync.Mutex
	base map[string]float64
	last map[string]float64
}

// NewService returns a Service for capital. db may be nil, in which case
// values are only kept in memory.
func NewService(logger *zap.Logger, db Execer, capital float64) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		logger:  logger,
		db:      db,
		capital: capital,
		now:     time.Now,
		base:    make(map[string]float64),
		last:    make(map[string]float64),
	}
}

// Tick records the benchmark value of symbol at price and returns it.
// Non-positive prices are ignored. A failed insert is logged and the value
// is still tracked in memory.
func (s *Service) Tick(ctx context.Context, symbol string, price float64) float64 {
	if price <= 0 {
		return s.Value(symbol)
	}
	s.mu.Lock()
	base, ok := s.base[symbol]
	if !ok {
		base = price
		s.base[symbol] = price
	}
	value := s.capital * price / base
	s.last[symbol] = value
	s.mu.Unlock()

	if s.db == nil {
		return value
	}
	if _, err := s.db.Exec(ctx, insertQuery, s.now().UTC(), symbol, decimal.NewFromFloat(price), decimal.NewFromFloat(value)); err != nil {
		s.logger.Warn("Failed to save benchmark value", zap.String("symbol", symbol), zap.Float64("value", value), zap.Error(err))
	}
	return value
}

// Value returns the last benchmark value of symbol, or the capital before
// the first tick.
func (s *Service) Value(symbol string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.last[symbol]; ok {
		return v
	}
	return s.capital
}
