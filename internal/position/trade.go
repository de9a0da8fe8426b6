package position

import "time"

// Exit reasons of a closed trade.
const (
	ExitStopLoss       = "stop_loss"
	ExitTakeProfit     = "take_profit"
	ExitSignalReversal = "signal_reversal"
	ExitEndOfData      = "end_of_data"
	ExitPartial        = "partial_take_profit"
	ExitStrategySwitch = "strategy_switch"
)

// Trade is a closed position. It is never mutated after it is built.
type Trade struct {
	ID         string        `json:"id"`
	Symbol     string        `json:"symbol"`
	Side       Side          `json:"side"`
	Strategy   string        `json:"strategy,omitempty"`
	EntryTime  time.Time     `json:"entry_time"`
	EntryPrice float64       `json:"entry_price"`
	ExitTime   time.Time     `json:"exit_time"`
	ExitPrice  float64       `json:"exit_price"`
	Quantity   float64       `json:"quantity"`
	PnL        float64       `json:"pnl"`
	PnLPct     float64       `json:"pnl_pct"`
	Commission float64       `json:"commission"`
	Duration   time.Duration `json:"duration"`
	ExitReason string        `json:"exit_reason"`
}

// Won reports whether the trade closed with a positive PnL.
func (t Trade) Won() bool { return t.PnL > 0 }

// Close builds the Trade for quantity qty of p exiting at price. pnl is the
// realized amount after commission.
func Close(p *Position, id string, qty, price, pnl, commission float64, at time.Time, reason string) Trade {
	s := p.Snapshot()
	var pct float64
	if notional := s.EntryPrice * qty; notional > 0 {
		pct = pnl / notional * 100
	}
	return Trade{
		ID:         id,
		Symbol:     s.Symbol,
		Side:       s.Side,
		Strategy:   s.Strategy,
		EntryTime:  s.OpenedAt,
		EntryPrice: s.EntryPrice,
		ExitTime:   at,
		ExitPrice:  price,
		Quantity:   qty,
		PnL:        pnl,
		PnLPct:     pct,
		Commission: commission,
		Duration:   at.Sub(s.OpenedAt),
		ExitReason: reason,
	}
}
