// Package backtest replays a bar series through one strategy with the live
// risk rules and a simple fill model, producing a trade ledger, an equity
// curve and performance metrics. A run is single-threaded and never reads the
// wall clock, so identical inputs give identical results.
package backtest

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/your-org/regime-switch-bot/internal/config"
	"github.com/your-org/regime-switch-bot/internal/indicator"
	"github.com/your-org/regime-switch-bot/internal/market"
	"github.com/your-org/regime-switch-bot/internal/pnl"
	"github.com/your-org/regime-switch-bot/internal/position"
	"github.com/your-org/regime-switch-bot/internal/report"
	"github.com/your-org/regime-switch-bot/internal/risk"
	"github.com/your-org/regime-switch-bot/internal/strategy"
)

// Tie-break policies and sizing modes.
const (
	StopFirst   = "stop_first"
	TargetFirst = "target_first"

	SizingRisk  = "risk"
	SizingAllIn = "all_in"
)

// Trade is a closed backtest trade.
type Trade = position.Trade

// EquityPoint is one equity sample per bar.
type EquityPoint = report.EquityPoint

// Result is the outcome of a single-symbol run.
type Result struct {
	Symbol   string         `json:"symbol"`
	Strategy string         `json:"strategy"`
	Trades   []Trade        `json:"trades"`
	Equity   []EquityPoint  `json:"equity"`
	Metrics  report.Metrics `json:"metrics"`
	Rejected int            `json:"rejected"` // entries refused by the risk gate
}

// Engine runs backtests of one strategy.
type Engine struct {
	cfg      config.BacktestConfig
	riskCfg  config.RiskConfig
	strategy strategy.Strategy
	logger   *zap.Logger
}

// New creates an Engine.
func New(cfg config.BacktestConfig, riskCfg config.RiskConfig, strat strategy.Strategy, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{cfg: cfg, riskCfg: riskCfg, strategy: strat, logger: logger}
}

// run is the mutable state of one Run call.
type run struct {
	e       *Engine
	symbol  string
	bars    market.Series
	risk    *risk.Manager
	losses  *pnl.Calculator
	capital float64

	pos        *position.Position
	entryIdx   int
	entryComm  float64 // entry commission not yet attributed to a trade
	partial    bool
	legs       int
	trades     []Trade
	pnls       []float64
	equity     []EquityPoint
	rejected   int
	atrPeriod  int
	stopFirst  bool
	commission float64
	slippage   float64
}

// Run replays bars for symbol.
func (e *Engine) Run(symbol string, bars market.Series) (*Result, error) {
	if e.cfg.InitialCapital <= 0 {
		return nil, fmt.Errorf("backtest %s: initial capital %.2f is not positive", symbol, e.cfg.InitialCapital)
	}
	if err := bars.Validate(); err != nil {
		return nil, fmt.Errorf("backtest %s: %w", symbol, err)
	}
	start := max(e.cfg.Warmup, e.strategy.MinBars()-1, 0)
	if len(bars) <= start {
		return nil, &market.InsufficientDataError{Have: len(bars), Need: start + 1, What: "backtest " + symbol}
	}

	losses := pnl.NewCalculator()
	r := &run{
		e:          e,
		symbol:     symbol,
		bars:       bars,
		losses:     losses,
		risk:       risk.NewManager(e.riskCfg, losses, e.logger),
		capital:    e.cfg.InitialCapital,
		atrPeriod:  e.riskCfg.StopLoss.ATRPeriod,
		stopFirst:  e.cfg.TieBreak != TargetFirst,
		commission: e.cfg.CommissionPct,
		slippage:   e.cfg.SlippagePct,
	}
	if r.atrPeriod <= 0 {
		r.atrPeriod = 14
	}

	for i, bar := range bars {
		if r.pos != nil {
			r.manage(i, bar)
		}
		if i >= start {
			r.evaluate(i)
		}
		r.mark(bar)
	}
	if r.pos != nil {
		last := len(bars) - 1
		qty, _ := r.pos.Get()
		r.close(last, qty, bars[last].Close, position.ExitEndOfData)
		r.equity[last].Equity = r.capital
	}

	res := &Result{
		Symbol:   symbol,
		Strategy: e.strategy.ID(),
		Trades:   r.trades,
		Equity:   r.equity,
		Rejected: r.rejected,
	}
	res.Metrics = report.Compute(res.Trades, res.Equity, e.cfg.InitialCapital, e.cfg.PeriodsPerYear)
	res.Metrics.SetBuyAndHold(bars[start].Close, bars[len(bars)-1].Close)

	e.logger.Info("[Backtest] run completed",
		zap.String("symbol", symbol),
		zap.String("strategy", res.Strategy),
		zap.Int("bars", len(bars)),
		zap.Int("trades", len(res.Trades)),
		zap.Int("rejected", res.Rejected),
		zap.String("final_equity", res.Metrics.FinalEquity.StringFixed(2)))
	return res, nil
}

// manage applies the intrabar stop/target check, then partial take-profit and
// trailing updates at the close.
func (r *run) manage(i int, bar market.Bar) {
	snap := r.pos.Snapshot()
	if price, reason, hit := snap.ExitOnBar(bar.Open, bar.High, bar.Low, r.stopFirst); hit {
		r.close(i, snap.Quantity, r.exitPrice(snap.Side, price), reason)
		return
	}
	if !r.partial && r.risk.ShouldPartialTakeProfit(snap, bar.Close) {
		r.close(i, snap.Quantity/2, r.exitPrice(snap.Side, bar.Close), position.ExitPartial)
		r.partial = true
	}
	if r.pos != nil {
		r.risk.UpdateTrailing(r.pos, bar.Close)
	}
}

// evaluate runs the strategy on the window ending at bar i.
func (r *run) evaluate(i int) {
	window := r.bars[:i+1]
	if r.e.cfg.Window > 0 {
		window = window.Tail(r.e.cfg.Window)
	}
	sig := r.e.strategy.GenerateSignal(window)
	side := sideOf(sig.Type)
	bar := r.bars[i]

	if r.pos != nil {
		snap := r.pos.Snapshot()
		if side == "" || side == snap.Side {
			return
		}
		r.close(i, snap.Quantity, r.exitPrice(snap.Side, bar.Close), position.ExitSignalReversal)
	}
	if side == "" {
		return
	}
	r.open(i, side, window)
}

func (r *run) open(i int, side position.Side, window market.Series) {
	bar := r.bars[i]
	entry := bar.Close * (1 + side.Sign()*r.slippage)

	_, high, low, closes, _ := window.Columns()
	atr := indicator.Last(indicator.ATR(high, low, closes, r.atrPeriod))
	stop := r.risk.StopLoss(side, entry, atr)
	target := r.risk.TakeProfit(side, entry, stop)

	var qty float64
	switch r.e.cfg.Sizing {
	case SizingAllIn:
		qty = r.capital / (entry * (1 + r.commission))
	default:
		stats := risk.StatsFromPnL(r.pnls)
		intent, err := r.risk.BuildIntent(r.symbol, side, entry, atr, &stats, risk.AccountState{Equity: r.capital})
		if err != nil {
			r.rejected++
			var ve *risk.ValidationError
			if errors.As(err, &ve) {
				r.e.logger.Debug("[Backtest] entry rejected",
					zap.Time("bar", bar.Time), zap.String("rule", ve.Rule), zap.String("detail", ve.Detail))
			}
			return
		}
		qty, stop, target = intent.Quantity, intent.StopLoss, intent.TakeProfit
	}

	p, err := position.New(r.symbol, side, entry, qty, stop, target, bar.Time)
	if err != nil {
		r.rejected++
		return
	}
	p.Strategy = r.e.strategy.ID()
	r.pos = p
	r.entryIdx = i
	r.entryComm = entry * qty * r.commission
	r.capital -= r.entryComm
	r.partial = false
	r.legs = 0
}

// close realizes qty of the open position at price. Entry commission is
// attributed to legs pro rata.
func (r *run) close(i int, qty, price float64, reason string) {
	bar := r.bars[i]
	remaining, _ := r.pos.Get()
	if qty <= 0 || qty > remaining {
		qty = remaining
	}
	closed, gross := r.pos.Reduce(qty, price)
	entryComm := r.entryComm * closed / remaining
	r.entryComm -= entryComm
	exitComm := price * closed * r.commission
	net := gross - entryComm - exitComm

	id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(fmt.Sprintf("%s/%d/%d", r.symbol, r.entryIdx, r.legs)))
	r.legs++
	t := position.Close(r.pos, id.String(), closed, price, net, entryComm+exitComm, bar.Time, reason)
	r.trades = append(r.trades, t)
	r.pnls = append(r.pnls, net)
	r.losses.Record(net, bar.Time)
	r.capital += gross - exitComm

	if left, _ := r.pos.Get(); left <= 0 {
		r.pos = nil
	}
}

// exitPrice applies slippage against the exiting side.
func (r *run) exitPrice(side position.Side, price float64) float64 {
	return price * (1 - side.Sign()*r.slippage)
}

// mark samples equity at the close of bar.
func (r *run) mark(bar market.Bar) {
	eq := r.capital
	if r.pos != nil {
		eq += r.pos.UnrealizedPnL(bar.Close)
	}
	r.equity = append(r.equity, EquityPoint{Time: bar.Time, Equity: eq})
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
