package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/your-org/regime-switch-bot/internal/indicator"
	"github.com/your-org/regime-switch-bot/internal/market"
	"github.com/your-org/regime-switch-bot/internal/position"
	"github.com/your-org/regime-switch-bot/internal/risk"
	"github.com/your-org/regime-switch-bot/internal/strategy"
	"github.com/your-org/regime-switch-bot/pkg/ringbuf"
)

// Session owns the trading state of one symbol: the active strategy's signals,
// the open position and the trade statistics used for sizing. Independent
// sessions share nothing.
type Session struct {
	ID     uuid.UUID
	Symbol string

	registry  *strategy.Registry
	exec      *PaperExecutor
	risk      *risk.Manager
	atrPeriod int
	stopFirst bool
	logger    *zap.Logger

	mutex   sync.Mutex
	recent  *ringbuf.RingBuffer[float64]
	partial map[*position.Position]bool
}

// NewSession creates a Session trading symbol through exec.
func NewSession(symbol string, registry *strategy.Registry, exec *PaperExecutor, riskMgr *risk.Manager, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	atrPeriod := riskMgr.Config().StopLoss.ATRPeriod
	if atrPeriod <= 0 {
		atrPeriod = 14
	}
	history := riskMgr.Config().Sizing.KellyMinTrades * 5
	if history < 50 {
		history = 50
	}
	id := uuid.New()
	return &Session{
		ID:        id,
		Symbol:    symbol,
		registry:  registry,
		exec:      exec,
		risk:      riskMgr,
		atrPeriod: atrPeriod,
		stopFirst: true,
		logger:    logger.With(zap.String("session", id.String()), zap.String("symbol", symbol)),
		recent:    ringbuf.New[float64](history),
		partial:   make(map[*position.Position]bool),
	}
}

// SetStopFirst selects the policy for bars that touch both stop and target.
func (s *Session) SetStopFirst(v bool) { s.stopFirst = v }

// Stats returns the sizing statistics of the session's recent trades.
func (s *Session) Stats() risk.TradeStats {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return risk.StatsFromPnL(s.recent.Values())
}

// OnBar processes the newest bar of bars: protective exits first, then the
// active strategy's signal. It returns the fill when a position was opened.
func (s *Session) OnBar(ctx context.Context, bars market.Series) (*Fill, error) {
	if len(bars) == 0 {
		return nil, nil
	}
	bar := bars.Last()
	s.exec.Mark(s.Symbol, bar.Close)

	p, open := s.exec.Book().Get(s.Symbol)
	if open {
		closed, err := s.manage(ctx, p, bar)
		if err != nil || closed {
			return nil, err
		}
	}

	id, err := s.exec.CurrentStrategy(ctx)
	if err != nil {
		return nil, &ExecutionCollaboratorError{Op: "current_strategy", Err: err}
	}
	strat, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	sig := strat.GenerateSignal(bars)

	if open {
		snap := p.Snapshot()
		if sideOf(sig.Type) != "" && sideOf(sig.Type) != snap.Side {
			_, err := s.close(ctx, p, 0, bar.Close, position.ExitSignalReversal)
			return nil, err
		}
		return nil, nil
	}
	if sig.IsNone() {
		return nil, nil
	}

	_, high, low, closes, _ := bars.Columns()
	atr := indicator.Last(indicator.ATR(high, low, closes, s.atrPeriod))
	stats := s.Stats()
	acct := s.exec.Account()

	intent, err := s.risk.BuildIntent(s.Symbol, sideOf(sig.Type), bar.Close, atr, &stats, acct)
	if err != nil {
		var ve *risk.ValidationError
		if errors.As(err, &ve) {
			s.logger.Info("[Paper] order intent discarded", zap.String("rule", ve.Rule), zap.String("detail", ve.Detail))
		}
		return nil, err
	}
	intent.Strategy = id
	intent.Reason = sig.Reason

	fill, err := s.exec.PlaceOrder(ctx, intent)
	if err != nil {
		return nil, fmt.Errorf("place order: %w", err)
	}
	return fill, nil
}

// manage applies stop, target, partial take-profit and trailing updates to p.
func (s *Session) manage(ctx context.Context, p *position.Position, bar market.Bar) (bool, error) {
	snap := p.Snapshot()
	if price, reason, hit := snap.ExitOnBar(bar.Open, bar.High, bar.Low, s.stopFirst); hit {
		_, err := s.close(ctx, p, 0, price, reason)
		return true, err
	}

	s.mutex.Lock()
	taken := s.partial[p]
	s.mutex.Unlock()
	if !taken && s.risk.ShouldPartialTakeProfit(snap, bar.Close) {
		if _, err := s.close(ctx, p, snap.Quantity/2, bar.Close, position.ExitPartial); err != nil {
			return false, err
		}
		s.mutex.Lock()
		s.partial[p] = true
		s.mutex.Unlock()
	}

	if stop, moved := s.risk.UpdateTrailing(p, bar.Close); moved {
		s.logger.Debug("trailing stop tightened", zap.Float64("stop", stop), zap.Float64("price", bar.Close))
	}
	return false, nil
}

func (s *Session) close(ctx context.Context, p *position.Position, qty, price float64, reason string) (position.Trade, error) {
	trade, err := s.exec.ClosePosition(ctx, p, qty, price, reason)
	if err != nil {
		return trade, err
	}
	s.mutex.Lock()
	s.recent.Add(trade.PnL)
	if remaining, _ := p.Get(); remaining <= 0 {
		delete(s.partial, p)
	}
	s.mutex.Unlock()
	return trade, nil
}

func sideOf(t strategy.SignalType) position.Side {
	switch t {
	case strategy.SignalLong:
		return position.Long
	case strategy.SignalShort:
		return position.Short
	}
	return ""
}
