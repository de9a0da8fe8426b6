package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/your-org/regime-switch-bot/internal/pnl"
	"github.com/your-org/regime-switch-bot/internal/position"
	"github.com/your-org/regime-switch-bot/internal/risk"
)

// ErrUnknownStrategy is returned by SetStrategy for an id the executor cannot run.
var ErrUnknownStrategy = errors.New("unknown strategy")

// PaperExecutor simulates order execution in process. Orders fill immediately
// at the intent's entry price.
type PaperExecutor struct {
	mutex         sync.Mutex
	strategy      string
	cash          float64
	commissionPct float64
	marks         map[string]float64
	book          *position.Book
	losses        *pnl.Calculator
	trades        TradeSink
	known         func(id string) bool
	now           func() time.Time
	logger        *zap.Logger
}

// PaperOption configures a PaperExecutor.
type PaperOption func(*PaperExecutor)

// WithTradeSink sends every closed trade to sink.
func WithTradeSink(sink TradeSink) PaperOption {
	return func(e *PaperExecutor) { e.trades = sink }
}

// WithStrategyCheck makes SetStrategy reject ids for which known returns false.
func WithStrategyCheck(known func(id string) bool) PaperOption {
	return func(e *PaperExecutor) { e.known = known }
}

// WithNow replaces the wall clock used for fill and exit times.
func WithNow(now func() time.Time) PaperOption {
	return func(e *PaperExecutor) { e.now = now }
}

// WithCommission charges pct of notional on each fill and exit.
func WithCommission(pct float64) PaperOption {
	return func(e *PaperExecutor) { e.commissionPct = pct }
}

// NewPaperExecutor creates a PaperExecutor with starting capital.
func NewPaperExecutor(initialStrategy string, capital float64, book *position.Book, losses *pnl.Calculator, logger *zap.Logger, opts ...PaperOption) *PaperExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &PaperExecutor{
		strategy: initialStrategy,
		cash:     capital,
		marks:    make(map[string]float64),
		book:     book,
		losses:   losses,
		now:      time.Now,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CurrentStrategy returns the strategy orders are attributed to.
func (e *PaperExecutor) CurrentStrategy(ctx context.Context) (string, error) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	return e.strategy, nil
}

// SetStrategy changes the active strategy.
func (e *PaperExecutor) SetStrategy(ctx context.Context, id string) error {
	if e.known != nil && !e.known(id) {
		return fmt.Errorf("%w: %s", ErrUnknownStrategy, id)
	}
	e.mutex.Lock()
	prev := e.strategy
	e.strategy = id
	e.mutex.Unlock()
	e.logger.Info("[Paper] strategy set", zap.String("from", prev), zap.String("to", id))
	return nil
}

// HasOpenPositions reports whether the book holds any position.
func (e *PaperExecutor) HasOpenPositions(ctx context.Context) (bool, error) {
	return e.book.Len() > 0, nil
}

// PlaceOrder fills intent immediately and opens a position for it.
func (e *PaperExecutor) PlaceOrder(ctx context.Context, intent risk.OrderIntent) (*Fill, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	orderID, err := uuid.NewRandom()
	if err != nil {
		return nil, fmt.Errorf("failed to generate order ID: %w", err)
	}
	at := e.now().UTC()

	p, err := position.New(intent.Symbol, intent.Side, intent.Entry, intent.Quantity, intent.StopLoss, intent.TakeProfit, at)
	if err != nil {
		return nil, err
	}
	e.mutex.Lock()
	p.Strategy = e.strategy
	e.mutex.Unlock()
	if err := e.book.Open(p); err != nil {
		return nil, err
	}

	commission := intent.Notional() * e.commissionPct
	e.mutex.Lock()
	e.cash -= commission
	e.marks[intent.Symbol] = intent.Entry
	e.mutex.Unlock()

	e.logger.Info("[Paper] order filled",
		zap.String("order_id", orderID.String()),
		zap.String("symbol", intent.Symbol),
		zap.String("side", string(intent.Side)),
		zap.Float64("price", intent.Entry),
		zap.Float64("qty", intent.Quantity),
		zap.Float64("stop", intent.StopLoss),
		zap.Float64("target", intent.TakeProfit))

	return &Fill{
		OrderID:  orderID.String(),
		Symbol:   intent.Symbol,
		Side:     intent.Side,
		Price:    intent.Entry,
		Quantity: intent.Quantity,
		Time:     at,
	}, nil
}

// Mark records the latest price of symbol for mark-to-market and closes.
func (e *PaperExecutor) Mark(symbol string, price float64) {
	e.mutex.Lock()
	defer e.mutex.Unlock()
	e.marks[symbol] = price
}

// ClosePosition exits qty of p at price, realizes the PnL and records the trade.
// A qty of zero or more than the open quantity closes the whole position.
func (e *PaperExecutor) ClosePosition(ctx context.Context, p *position.Position, qty, price float64, reason string) (position.Trade, error) {
	open, _ := p.Get()
	if qty <= 0 || qty > open {
		qty = open
	}
	closed, gross := p.Reduce(qty, price)
	commission := closed * price * e.commissionPct
	net := gross - commission
	at := e.now().UTC()

	if remaining, _ := p.Get(); remaining <= 0 {
		e.book.Remove(p)
	}
	e.mutex.Lock()
	e.cash += net
	e.marks[p.Symbol] = price
	e.mutex.Unlock()
	if e.losses != nil {
		e.losses.Record(net, at)
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return position.Trade{}, fmt.Errorf("failed to generate trade ID: %w", err)
	}
	trade := position.Close(p, id.String(), closed, price, net, commission, at, reason)
	e.logger.Info("[Paper] position closed",
		zap.String("symbol", trade.Symbol),
		zap.String("reason", reason),
		zap.Float64("price", price),
		zap.Float64("qty", closed),
		zap.Float64("pnl", net))

	if e.trades != nil {
		if err := e.trades.RecordTrade(trade); err != nil {
			e.logger.Error("[Paper] failed to record trade", zap.Error(err))
		}
	}
	return trade, nil
}

// CloseAllPositions exits every open position at its last marked price.
func (e *PaperExecutor) CloseAllPositions(ctx context.Context) error {
	var errs []error
	for _, p := range e.book.All() {
		if err := ctx.Err(); err != nil {
			return err
		}
		e.mutex.Lock()
		price, ok := e.marks[p.Symbol]
		e.mutex.Unlock()
		if !ok {
			_, price = p.Get()
		}
		if _, err := e.ClosePosition(ctx, p, 0, price, position.ExitStrategySwitch); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Book returns the executor's position book.
func (e *PaperExecutor) Book() *position.Book { return e.book }

// Account returns the account view for risk validation. Equity marks open
// positions to the last known prices.
func (e *PaperExecutor) Account() risk.AccountState {
	e.mutex.Lock()
	cash := e.cash
	marks := make(map[string]float64, len(e.marks))
	for k, v := range e.marks {
		marks[k] = v
	}
	e.mutex.Unlock()

	positions := e.book.All()
	equity := cash
	var used float64
	for _, p := range positions {
		qty, entry := p.Get()
		used += qty * entry
		if price, ok := marks[p.Symbol]; ok {
			equity += p.UnrealizedPnL(price)
		}
	}
	return risk.AccountState{
		Equity:          equity,
		AvailableMargin: max(0, equity-used),
		OpenPositions:   len(positions),
	}
}
