// Package risk sizes positions, places protective stops and targets, and gates
// order intents against the configured limits.
package risk

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/your-org/regime-switch-bot/internal/config"
	"github.com/your-org/regime-switch-bot/internal/pnl"
	"github.com/your-org/regime-switch-bot/internal/position"
)

// Stop-loss, take-profit and sizing modes.
const (
	StopPercentage = "percentage"
	StopATR        = "atr"
	StopTrailing   = "trailing"

	TargetPercentage = "percentage"
	TargetRiskReward = "risk_reward"

	SizingFixedRisk = "fixed_risk"
	SizingKelly     = "kelly_criterion"
)

// OrderIntent is what the execution collaborator is asked to place.
type OrderIntent struct {
	Symbol     string        `json:"symbol"`
	Side       position.Side `json:"side"`
	Quantity   float64       `json:"quantity"`
	Entry      float64       `json:"entry_price"`
	StopLoss   float64       `json:"stop_loss_price"`
	TakeProfit float64       `json:"take_profit_price"`
	Strategy   string        `json:"strategy,omitempty"`
	Reason     string        `json:"reason,omitempty"`
}

// Notional is the order value at the entry price.
func (o OrderIntent) Notional() float64 { return o.Quantity * o.Entry }

// AccountState is the account view an order is validated against.
type AccountState struct {
	Equity          float64
	AvailableMargin float64 // zero means Equity
	OpenPositions   int
	Leverage        float64 // zero means the configured leverage
}

func (a AccountState) margin() float64 {
	if a.AvailableMargin > 0 {
		return a.AvailableMargin
	}
	return a.Equity
}

// Manager holds no mutable state of its own and is safe for concurrent use.
type Manager struct {
	cfg    config.RiskConfig
	losses *pnl.Calculator
	logger *zap.Logger
}

// NewManager creates a Manager. losses may be nil, which disables the loss-window gate.
func NewManager(cfg config.RiskConfig, losses *pnl.Calculator, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{cfg: cfg, losses: losses, logger: logger}
}

// Config returns the risk parameters the manager was built with.
func (m *Manager) Config() config.RiskConfig { return m.cfg }

func (m *Manager) leverage(acct AccountState) float64 {
	if acct.Leverage > 0 {
		return acct.Leverage
	}
	if m.cfg.Leverage > 0 {
		return m.cfg.Leverage
	}
	return 1
}

// StopLoss returns the initial stop price for a new position.
// ATR mode falls back to the percentage offset when atr is not usable.
func (m *Manager) StopLoss(side position.Side, entry, atr float64) float64 {
	sl := m.cfg.StopLoss
	switch sl.Mode {
	case StopATR:
		if !math.IsNaN(atr) && atr > 0 {
			return entry - side.Sign()*atr*sl.ATRMultiplier
		}
		m.logger.Debug("atr unavailable, using percentage stop", zap.Float64("atr", atr))
	case StopTrailing:
		return entry * (1 - side.Sign()*sl.TrailingPct)
	}
	return entry * (1 - side.Sign()*sl.Pct)
}

// TakeProfit returns the target price. risk_reward mode needs a stop; without
// one it uses the percentage offset.
func (m *Manager) TakeProfit(side position.Side, entry, stop float64) float64 {
	tp := m.cfg.TakeProfit
	if tp.Mode == TargetRiskReward && stop > 0 && stop != entry {
		return entry + side.Sign()*math.Abs(entry-stop)*tp.RiskReward
	}
	return entry * (1 + side.Sign()*tp.Pct)
}

// UpdateTrailing ratchets the stop of p toward price. Outside trailing mode it
// leaves the stop alone.
func (m *Manager) UpdateTrailing(p *position.Position, price float64) (float64, bool) {
	if m.cfg.StopLoss.Mode != StopTrailing {
		return p.Stop(), false
	}
	return p.Ratchet(price, m.cfg.StopLoss.TrailingPct, m.cfg.StopLoss.ActivationPct)
}

// ShouldPartialTakeProfit reports whether the open profit of p at price has
// reached the partial trigger. The trigger defaults to half the full target percentage.
func (m *Manager) ShouldPartialTakeProfit(p position.Snapshot, price float64) bool {
	tp := m.cfg.TakeProfit
	if !bool(tp.PartialEnabled) || p.EntryPrice <= 0 {
		return false
	}
	trigger := tp.PartialTrigger
	if trigger <= 0 {
		trigger = tp.Pct / 2
	}
	profit := (price - p.EntryPrice) / p.EntryPrice * p.Side.Sign()
	return profit >= trigger
}

// AdjustForOpenPositions shrinks qty as the book fills up. At max_positions it returns 0.
func (m *Manager) AdjustForOpenPositions(qty float64, open int) float64 {
	limit := m.cfg.MaxPositions
	if limit <= 0 {
		return qty
	}
	if open >= limit {
		return 0
	}
	if float64(open) > float64(limit)/2 {
		return qty * (1 - float64(open)/float64(limit*2))
	}
	return qty
}

// Validate is the hard gate an order intent must pass before it is placed.
func (m *Manager) Validate(o OrderIntent, acct AccountState) error {
	b := m.cfg.Bounds
	lev := m.leverage(acct)

	if acct.Equity <= 0 {
		return reject("capital", "equity %.2f is not positive", acct.Equity)
	}
	if o.Quantity <= 0 || math.IsNaN(o.Quantity) {
		return reject("quantity", "quantity %.8f is not positive", o.Quantity)
	}
	if o.Entry <= 0 {
		return reject("entry_price", "entry %.8f is not positive", o.Entry)
	}
	if b.MinQuantity > 0 && o.Quantity < b.MinQuantity {
		return reject("min_quantity", "quantity %.8f below %.8f", o.Quantity, b.MinQuantity)
	}
	if b.MaxQuantity > 0 && o.Quantity > b.MaxQuantity {
		return reject("max_quantity", "quantity %.8f above %.8f", o.Quantity, b.MaxQuantity)
	}
	notional := o.Notional()
	if b.MinNotional > 0 && notional < b.MinNotional {
		return reject("min_notional", "notional %.2f below %.2f", notional, b.MinNotional)
	}
	if b.MaxNotional > 0 && notional > b.MaxNotional {
		return reject("max_notional", "notional %.2f above %.2f", notional, b.MaxNotional)
	}
	if m.cfg.MaxPositionPct > 0 {
		// Small tolerance so a size clamped to the limit does not fail on rounding.
		if limit := acct.Equity * m.cfg.MaxPositionPct * lev; notional > limit*(1+1e-9) {
			return reject("max_position", "notional %.2f exceeds max position size %.2f", notional, limit)
		}
	}
	if m.cfg.MaxLeverage > 0 && lev > m.cfg.MaxLeverage {
		return reject("leverage", "leverage %.1f above %.1f", lev, m.cfg.MaxLeverage)
	}
	if m.cfg.MaxPositions > 0 && acct.OpenPositions >= m.cfg.MaxPositions {
		return reject("max_positions", "max positions limit reached: %d", acct.OpenPositions)
	}
	if err := m.checkLossWindows(acct.Equity); err != nil {
		return err
	}

	switch o.Side {
	case position.Long:
		if o.StopLoss > 0 && o.StopLoss >= o.Entry {
			return reject("stop_side", "long stop %.2f not below entry %.2f", o.StopLoss, o.Entry)
		}
	case position.Short:
		if o.StopLoss > 0 && o.StopLoss <= o.Entry {
			return reject("stop_side", "short stop %.2f not above entry %.2f", o.StopLoss, o.Entry)
		}
	default:
		return reject("side", "unknown side %q", o.Side)
	}
	return nil
}

func (m *Manager) checkLossWindows(equity float64) error {
	if m.losses == nil {
		return nil
	}
	if limit := equity * m.cfg.MaxDailyLossPct; m.cfg.MaxDailyLossPct > 0 && m.losses.DailyLoss() >= limit {
		return reject("daily_loss_limit", "daily loss limit reached: %.2f >= %.2f", m.losses.DailyLoss(), limit)
	}
	if limit := equity * m.cfg.MaxWeeklyLossPct; m.cfg.MaxWeeklyLossPct > 0 && m.losses.WeeklyLoss() >= limit {
		return reject("weekly_loss_limit", "weekly loss limit reached: %.2f >= %.2f", m.losses.WeeklyLoss(), limit)
	}
	return nil
}

// BuildIntent computes stop, target and size for a new position and validates the result.
func (m *Manager) BuildIntent(symbol string, side position.Side, entry, atr float64, stats *TradeStats, acct AccountState) (OrderIntent, error) {
	stop := m.StopLoss(side, entry, atr)
	intent := OrderIntent{
		Symbol:     symbol,
		Side:       side,
		Entry:      entry,
		StopLoss:   stop,
		TakeProfit: m.TakeProfit(side, entry, stop),
	}

	qty, err := m.PositionSize(SizingInput{
		Capital:         acct.Equity,
		AvailableMargin: acct.margin(),
		Entry:           entry,
		Stop:            stop,
		Leverage:        m.leverage(acct),
		Stats:           stats,
	})
	if err != nil {
		return intent, fmt.Errorf("sizing %s %s: %w", symbol, side, err)
	}
	intent.Quantity = m.AdjustForOpenPositions(qty, acct.OpenPositions)

	if err := m.Validate(intent, acct); err != nil {
		m.logger.Info("order intent rejected",
			zap.String("symbol", symbol),
			zap.String("side", string(side)),
			zap.Error(err))
		return intent, err
	}
	return intent, nil
}
