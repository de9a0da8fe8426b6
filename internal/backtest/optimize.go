package backtest

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/your-org/regime-switch-bot/internal/config"
	"github.com/your-org/regime-switch-bot/internal/market"
	"github.com/your-org/regime-switch-bot/internal/report"
	"github.com/your-org/regime-switch-bot/internal/strategy"
)

// MaxCombinations bounds the size of a parameter grid.
const MaxCombinations = 10000

// objectives maps a metric name to a score where higher is better.
var objectives = map[string]func(report.Metrics) float64{
	"total_return":     func(m report.Metrics) float64 { return m.TotalReturn.InexactFloat64() },
	"total_return_pct": func(m report.Metrics) float64 { return m.TotalReturnPct },
	"sharpe_ratio":     func(m report.Metrics) float64 { return m.SharpeRatio },
	"sortino_ratio":    func(m report.Metrics) float64 { return m.SortinoRatio },
	"calmar_ratio":     func(m report.Metrics) float64 { return m.CalmarRatio },
	"recovery_factor":  func(m report.Metrics) float64 { return m.RecoveryFactor },
	"profit_factor":    func(m report.Metrics) float64 { return m.ProfitFactor },
	"win_rate":         func(m report.Metrics) float64 { return m.WinRate },
	"expectancy":       func(m report.Metrics) float64 { return m.Expectancy.InexactFloat64() },
	"max_drawdown_pct": func(m report.Metrics) float64 { return -m.MaxDrawdownPct },
}

// Objectives returns the metric names accepted by NewOptimizer.
func Objectives() []string {
	names := make([]string, 0, len(objectives))
	for name := range objectives {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Grid lists the candidate values of each parameter.
type Grid map[string][]float64

// Combinations enumerates every parameter set of g. Keys vary in sorted order
// with the last key changing fastest, and values keep their given order. An
// empty grid yields a single empty set.
func (g Grid) Combinations() ([]strategy.Params, error) {
	keys := make([]string, 0, len(g))
	total := 1
	for k, vs := range g {
		if len(vs) == 0 {
			return nil, fmt.Errorf("parameter %q has no values", k)
		}
		keys = append(keys, k)
		total *= len(vs)
		if total > MaxCombinations {
			return nil, fmt.Errorf("grid exceeds %d combinations", MaxCombinations)
		}
	}
	sort.Strings(keys)

	out := make([]strategy.Params, 0, total)
	idx := make([]int, len(keys))
	for {
		p := make(strategy.Params, len(keys))
		for i, k := range keys {
			p[k] = g[k][idx[i]]
		}
		out = append(out, p)

		i := len(keys) - 1
		for ; i >= 0; i-- {
			idx[i]++
			if idx[i] < len(g[keys[i]]) {
				break
			}
			idx[i] = 0
		}
		if i < 0 {
			return out, nil
		}
	}
}

// Trial is one evaluated parameter set.
type Trial struct {
	Params  strategy.Params `json:"params"`
	Score   float64         `json:"score"`
	Metrics report.Metrics  `json:"metrics"`
}

// Optimizer grid-searches strategy parameters with the backtest engine.
type Optimizer struct {
	cfg       config.BacktestConfig
	riskCfg   config.RiskConfig
	factory   strategy.Factory
	objective string
	score     func(report.Metrics) float64
	logger    *zap.Logger
}

// NewOptimizer creates an Optimizer ranking trials by objective, one of Objectives().
func NewOptimizer(cfg config.BacktestConfig, riskCfg config.RiskConfig, factory strategy.Factory, objective string, logger *zap.Logger) (*Optimizer, error) {
	score, ok := objectives[objective]
	if !ok {
		return nil, fmt.Errorf("unknown objective %q", objective)
	}
	if factory == nil {
		return nil, errors.New("optimizer needs a strategy factory")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Optimizer{cfg: cfg, riskCfg: riskCfg, factory: factory, objective: objective, score: score, logger: logger}, nil
}

// Optimize backtests every combination of grid over series and returns the
// trials best first. Equal scores keep enumeration order, so the ranking is
// deterministic. Combinations without enough bars to run are skipped; a
// parameter set the factory rejects aborts the search.
func (o *Optimizer) Optimize(ctx context.Context, grid Grid, series map[string]market.Series) ([]Trial, error) {
	combos, err := grid.Combinations()
	if err != nil {
		return nil, err
	}
	o.logger.Info("[Optimize] starting grid search",
		zap.Int("combinations", len(combos)),
		zap.String("objective", o.objective))

	trials := make([]Trial, 0, len(combos))
	skipped := 0
	for _, params := range combos {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		strat, err := o.factory(params)
		if err != nil {
			return nil, fmt.Errorf("parameters %s: %w", params, err)
		}
		metrics, err := o.run(New(o.cfg, o.riskCfg, strat, zap.NewNop()), series)
		var insufficient *market.InsufficientDataError
		if errors.As(err, &insufficient) {
			o.logger.Debug("[Optimize] skipping parameters", zap.Stringer("params", params), zap.Error(err))
			skipped++
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("parameters %s: %w", params, err)
		}
		trials = append(trials, Trial{Params: params, Score: o.score(metrics), Metrics: metrics})
	}
	if len(trials) == 0 {
		return nil, fmt.Errorf("no parameter set could run: %d of %d skipped for insufficient data", skipped, len(combos))
	}

	sort.SliceStable(trials, func(i, j int) bool { return trials[i].Score > trials[j].Score })
	o.logger.Info("[Optimize] grid search completed",
		zap.Int("trials", len(trials)),
		zap.Int("skipped", skipped),
		zap.Stringer("best", trials[0].Params),
		zap.Float64("score", trials[0].Score))
	return trials, nil
}

func (o *Optimizer) run(eng *Engine, series map[string]market.Series) (report.Metrics, error) {
	if len(series) == 1 {
		for sym, bars := range series {
			res, err := eng.Run(sym, bars)
			if err != nil {
				return report.Metrics{}, err
			}
			return res.Metrics, nil
		}
	}
	res, err := eng.RunMulti(series)
	if err != nil {
		return report.Metrics{}, err
	}
	return res.Metrics, nil
}
