// Package position tracks open positions and their protective stops.
package position

import (
	"errors"
	"fmt"
	"sync"
	"time"
)

// Side is the direction of a position.
type Side string

const (
	Long  Side = "long"
	Short Side = "short"
)

// Sign returns 1 for long and -1 for short.
func (s Side) Sign() float64 {
	if s == Short {
		return -1
	}
	return 1
}

// ErrInvalidFill is returned when a fill has a non-positive quantity or price.
var ErrInvalidFill = errors.New("invalid fill")

// Trailing is the state of a trailing stop.
type Trailing struct {
	Active  bool    `json:"active"`
	Extreme float64 `json:"extreme"` // best price seen since entry
}

// Position holds the state of one open position.
// The stop is guarded by the position's own mutex and only ever tightens.
type Position struct {
	Symbol     string
	Side       Side
	Strategy   string
	OpenedAt   time.Time
	TakeProfit float64

	mutex      sync.RWMutex
	entryPrice float64
	quantity   float64
	stopLoss   float64
	trailing   Trailing
}

// Snapshot is a copy of a Position taken under its lock.
type Snapshot struct {
	Symbol     string    `json:"symbol"`
	Side       Side      `json:"side"`
	Strategy   string    `json:"strategy,omitempty"`
	EntryPrice float64   `json:"entry_price"`
	Quantity   float64   `json:"quantity"`
	StopLoss   float64   `json:"stop_loss"`
	TakeProfit float64   `json:"take_profit"`
	Trailing   Trailing  `json:"trailing"`
	OpenedAt   time.Time `json:"opened_at"`
}

// New creates a Position from an acknowledged fill.
func New(symbol string, side Side, entry, qty, stop, target float64, openedAt time.Time) (*Position, error) {
	if entry <= 0 || qty <= 0 {
		return nil, fmt.Errorf("%w: entry=%.8f qty=%.8f", ErrInvalidFill, entry, qty)
	}
	return &Position{
		Symbol:     symbol,
		Side:       side,
		OpenedAt:   openedAt,
		TakeProfit: target,
		entryPrice: entry,
		quantity:   qty,
		stopLoss:   stop,
		trailing:   Trailing{Extreme: entry},
	}, nil
}

// Add increases the position at price and re-averages the entry.
func (p *Position) Add(qty, price float64) error {
	if qty <= 0 || price <= 0 {
		return fmt.Errorf("%w: qty=%.8f price=%.8f", ErrInvalidFill, qty, price)
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()

	currentValue := p.quantity * p.entryPrice
	newQty := p.quantity + qty
	p.entryPrice = (currentValue + qty*price) / newQty
	p.quantity = newQty
	return nil
}

// Reduce closes up to qty at price and returns the closed quantity and realized PnL.
// The entry price of the remainder is unchanged.
func (p *Position) Reduce(qty, price float64) (closed, realizedPnL float64) {
	p.mutex.Lock()
	defer p.mutex.Unlock()

	closed = min(qty, p.quantity)
	if closed <= 0 {
		return 0, 0
	}
	realizedPnL = (price - p.entryPrice) * closed * p.Side.Sign()
	p.quantity -= closed
	return closed, realizedPnL
}

// Stop returns the current stop price.
func (p *Position) Stop() float64 {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.stopLoss
}

// TightenStop sets the stop to candidate if it is tighter than the current stop.
// A zero stop means no stop, so any positive candidate tightens it.
func (p *Position) TightenStop(candidate float64) bool {
	p.mutex.Lock()
	defer p.mutex.Unlock()
	return p.tighten(candidate)
}

func (p *Position) tighten(candidate float64) bool {
	if candidate <= 0 {
		return false
	}
	if p.stopLoss > 0 {
		if p.Side == Long && candidate <= p.stopLoss {
			return false
		}
		if p.Side == Short && candidate >= p.stopLoss {
			return false
		}
	}
	p.stopLoss = candidate
	return true
}

// Ratchet records price and, once the move in favour of the position reaches
// activationPct, trails the stop trailingPct behind the best price seen.
// It returns the stop after the update and whether it moved.
func (p *Position) Ratchet(price, trailingPct, activationPct float64) (float64, bool) {
	if price <= 0 || trailingPct <= 0 {
		return p.Stop(), false
	}
	p.mutex.Lock()
	defer p.mutex.Unlock()

	if (p.Side == Long && price > p.trailing.Extreme) || (p.Side == Short && price < p.trailing.Extreme) {
		p.trailing.Extreme = price
	}
	if !p.trailing.Active {
		gain := (p.trailing.Extreme - p.entryPrice) / p.entryPrice * p.Side.Sign()
		if gain < activationPct {
			return p.stopLoss, false
		}
		p.trailing.Active = true
	}

	candidate := p.trailing.Extreme * (1 - trailingPct*p.Side.Sign())
	moved := p.tighten(candidate)
	return p.stopLoss, moved
}

// UnrealizedPnL is the mark-to-market PnL at price.
func (p *Position) UnrealizedPnL(price float64) float64 {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return (price - p.entryPrice) * p.quantity * p.Side.Sign()
}

// Get returns the current quantity and entry price of the position.
func (p *Position) Get() (float64, float64) {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return p.quantity, p.entryPrice
}

// Snapshot returns a consistent copy of the position.
func (p *Position) Snapshot() Snapshot {
	p.mutex.RLock()
	defer p.mutex.RUnlock()
	return Snapshot{
		Symbol:     p.Symbol,
		Side:       p.Side,
		Strategy:   p.Strategy,
		EntryPrice: p.entryPrice,
		Quantity:   p.quantity,
		StopLoss:   p.stopLoss,
		TakeProfit: p.TakeProfit,
		Trailing:   p.trailing,
		OpenedAt:   p.OpenedAt,
	}
}

// String returns a string representation of the position.
func (p *Position) String() string {
	s := p.Snapshot()
	return fmt.Sprintf("Position{%s %s Qty: %.4f, Entry: %.2f, Stop: %.2f, Target: %.2f}",
		s.Symbol, s.Side, s.Quantity, s.EntryPrice, s.StopLoss, s.TakeProfit)
}
