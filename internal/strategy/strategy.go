// Package strategy implements the trading strategies behind a single
// GenerateSignal capability and a registry that resolves them by id.
package strategy

import (
	"errors"
	"fmt"
	"sort"

	"github.com/your-org/regime-switch-bot/internal/config"
	"github.com/your-org/regime-switch-bot/internal/market"
)

// Strategy identifiers.
const (
	IDScalping  = "scalping"
	IDRSI       = "rsi"
	IDMACD      = "macd"
	IDBollinger = "bollinger"
	IDMomentum  = "momentum"
	IDEMACross  = "ema_cross"
	IDCombined  = "combined"
)

// ErrUnknownStrategy is returned by Registry.Get for an unregistered id.
var ErrUnknownStrategy = errors.New("unknown strategy")

// Strategy produces a signal for the newest bar of a window.
type Strategy interface {
	ID() string
	// MinBars is the shortest window for which the strategy can emit a directional signal.
	MinBars() int
	GenerateSignal(bars market.Series) Signal
}

// Registry resolves strategies by id. It is read-only after construction.
type Registry struct {
	byID map[string]Strategy
}

// NewRegistry builds every strategy from its configuration.
func NewRegistry(cfg config.StrategiesConfig) *Registry {
	r := &Registry{byID: make(map[string]Strategy)}
	members := []Strategy{
		NewScalping(cfg.Scalping),
		NewRSI(cfg.RSI),
		NewMACD(cfg.MACD),
		NewBollinger(cfg.Bollinger),
		NewMomentum(cfg.Momentum),
		NewEMACross(cfg.EMACross),
	}
	for _, s := range members {
		r.Register(s)
	}
	r.Register(NewCombined(cfg.Combined, members))
	return r
}

// Register adds or replaces a strategy.
func (r *Registry) Register(s Strategy) {
	r.byID[s.ID()] = s
}

// Get returns the strategy with the given id.
func (r *Registry) Get(id string) (Strategy, error) {
	s, ok := r.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStrategy, id)
	}
	return s, nil
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	_, ok := r.byID[id]
	return ok
}

// IDs returns the registered ids in lexical order.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.byID))
	for id := range r.byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func none(bars market.Series, reason string) Signal {
	s := Signal{Type: SignalNone, Reason: reason}
	if len(bars) > 0 {
		last := bars.Last()
		s.Price, s.Time = last.Close, last.Time
	}
	return s
}

func directional(bars market.Series, t SignalType, strength float64, reason string) Signal {
	s := none(bars, reason)
	s.Type = t
	s.Strength = clampStrength(strength)
	return s
}
