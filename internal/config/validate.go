package config

import (
	"errors"
	"fmt"
	"time"
)

// Validate checks thresholds and modes. It joins every violation into one error
// so a broken file can be fixed in a single pass.
func (c *Config) Validate() error {
	var errs []error
	bad := func(field, format string, args ...interface{}) {
		errs = append(errs, &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)})
	}

	if c.Symbol == "" {
		bad("symbol", "must not be empty")
	}
	if c.Lookback <= 0 {
		bad("lookback", "must be positive, got %d", c.Lookback)
	}

	a := c.Analysis
	for name, v := range map[string]int{
		"market_analysis.volatility_period": a.VolatilityPeriod,
		"market_analysis.trend_period":      a.TrendPeriod,
		"market_analysis.volume_period":     a.VolumePeriod,
	} {
		if v <= 0 {
			bad(name, "must be positive, got %d", v)
		}
	}
	if !(a.VolatilityLow > 0 && a.VolatilityLow < a.VolatilityHigh && a.VolatilityHigh < 1) {
		bad("market_analysis.volatility_low/high", "need 0 < low < high < 1, got %.2f/%.2f", a.VolatilityLow, a.VolatilityHigh)
	}
	w := a.VolatilityWeights
	if w.ATR < 0 || w.BBWidth < 0 || w.Range < 0 || w.ATR+w.BBWidth+w.Range == 0 {
		bad("market_analysis.volatility_weights", "must be non-negative with a positive sum")
	}
	if a.ADXWeak >= a.ADXStrong {
		bad("market_analysis.adx_weak", "must be below adx_strong (%.1f >= %.1f)", a.ADXWeak, a.ADXStrong)
	}
	if a.VolumeLowRatio <= 0 || a.VolumeLowRatio >= a.VolumeHighRatio {
		bad("market_analysis.volume_low_ratio", "need 0 < low < high, got %.2f/%.2f", a.VolumeLowRatio, a.VolumeHighRatio)
	}
	if a.FlatSlopePct < 0 {
		bad("market_analysis.flat_slope_pct", "must not be negative")
	}

	s := c.AutoSwitch
	if s.CheckInterval <= 0 {
		bad("auto_strategy_switching.check_interval", "must be positive")
	}
	for name, d := range map[string]time.Duration{
		"auto_strategy_switching.min_strategy_duration": s.MinStrategyDuration,
		"auto_strategy_switching.switch_cooldown":       s.SwitchCooldown,
		"auto_strategy_switching.warmup_delay":          s.WarmupDelay,
	} {
		if d < 0 {
			bad(name, "must not be negative")
		}
	}
	if s.CallTimeout <= 0 {
		bad("auto_strategy_switching.call_timeout", "must be positive")
	}
	if s.ScoreThreshold < 0 || s.ScoreThreshold > 100 {
		bad("auto_strategy_switching.score_threshold", "must be within [0,100], got %.1f", s.ScoreThreshold)
	}
	if s.MaxSwitchesPerHour < 1 {
		bad("auto_strategy_switching.max_switches_per_hour", "must be at least 1")
	}
	if s.FallbackStrategy == "" {
		bad("auto_strategy_switching.fallback_strategy", "must not be empty")
	}
	for id, weight := range c.Selector.Weights {
		if weight < 0 {
			bad("strategy_selection.strategy_weights."+id, "must not be negative")
		}
	}

	r := c.Risk
	if r.RiskPerTradePct <= 0 || r.RiskPerTradePct > 1 {
		bad("risk_management.risk_per_trade_pct", "must be within (0,1], got %v", r.RiskPerTradePct)
	}
	if r.MaxDailyLossPct <= 0 || r.MaxDailyLossPct > 1 {
		bad("risk_management.max_daily_loss_pct", "must be within (0,1], got %v", r.MaxDailyLossPct)
	}
	if r.MaxWeeklyLossPct < 0 || r.MaxWeeklyLossPct > 1 {
		bad("risk_management.max_weekly_loss_pct", "must be within [0,1], got %v", r.MaxWeeklyLossPct)
	}
	if r.MaxPositions < 1 {
		bad("risk_management.max_positions", "must be at least 1")
	}
	if r.Leverage <= 0 || (r.MaxLeverage > 0 && r.Leverage > r.MaxLeverage) {
		bad("risk_management.leverage", "must be positive and not above max_leverage, got %v", r.Leverage)
	}
	if r.MaxPositionPct < 0 {
		bad("risk_management.max_position_pct", "must not be negative")
	}
	switch r.StopLoss.Mode {
	case "percentage", "atr", "trailing":
	default:
		bad("risk_management.stop_loss.mode", "unknown mode %q", r.StopLoss.Mode)
	}
	if r.StopLoss.Pct <= 0 {
		bad("risk_management.stop_loss.pct", "must be positive")
	}
	if r.StopLoss.Mode == "atr" && (r.StopLoss.ATRMultiplier <= 0 || r.StopLoss.ATRPeriod <= 0) {
		bad("risk_management.stop_loss.atr_multiplier", "atr mode needs a positive multiplier and period")
	}
	if r.StopLoss.Mode == "trailing" && (r.StopLoss.TrailingPct <= 0 || r.StopLoss.ActivationPct < 0) {
		bad("risk_management.stop_loss.trailing_pct", "trailing mode needs a positive trailing_pct")
	}
	switch r.TakeProfit.Mode {
	case "percentage":
		if r.TakeProfit.Pct <= 0 {
			bad("risk_management.take_profit.pct", "must be positive")
		}
	case "risk_reward":
		if r.TakeProfit.RiskReward <= 0 {
			bad("risk_management.take_profit.risk_reward", "must be positive")
		}
	default:
		bad("risk_management.take_profit.mode", "unknown mode %q", r.TakeProfit.Mode)
	}
	if t := r.TakeProfit.PartialTrigger; t < 0 || t >= 1 || (r.TakeProfit.Mode == "percentage" && t >= r.TakeProfit.Pct) {
		bad("risk_management.take_profit.partial_trigger_pct", "must be a fraction below the full target")
	}
	switch r.Sizing.Mode {
	case "fixed_risk":
	case "kelly_criterion":
		if r.Sizing.KellyFraction <= 0 || r.Sizing.KellyFraction > 1 {
			bad("risk_management.sizing.kelly_fraction", "must be within (0,1]")
		}
		if r.Sizing.KellyMax <= 0 || r.Sizing.KellyMin < 0 || r.Sizing.KellyMin > r.Sizing.KellyMax {
			bad("risk_management.sizing.kelly_max_fraction", "need 0 <= min <= max, max > 0")
		}
	default:
		bad("risk_management.sizing.mode", "unknown mode %q", r.Sizing.Mode)
	}
	b := r.Bounds
	if b.MinQuantity < 0 || b.MinNotional < 0 || b.MaxQuantity < 0 || b.MaxNotional < 0 {
		bad("risk_management.bounds", "must not be negative")
	}
	if b.MaxQuantity > 0 && b.MinQuantity > b.MaxQuantity {
		bad("risk_management.bounds.min_quantity", "above max_quantity")
	}
	if b.MaxNotional > 0 && b.MinNotional > b.MaxNotional {
		bad("risk_management.bounds.min_notional", "above max_notional")
	}

	bt := c.Backtest
	if bt.InitialCapital <= 0 {
		bad("backtest.initial_capital", "must be positive")
	}
	if bt.CommissionPct < 0 || bt.SlippagePct < 0 {
		bad("backtest.commission_pct", "commission and slippage must not be negative")
	}
	switch bt.TieBreak {
	case "stop_first", "target_first":
	default:
		bad("backtest.tie_break", "unknown policy %q", bt.TieBreak)
	}
	switch bt.Sizing {
	case "risk", "all_in":
	default:
		bad("backtest.sizing", "unknown mode %q", bt.Sizing)
	}
	if bt.PeriodsPerYear <= 0 {
		bad("backtest.periods_per_year", "must be positive")
	}

	switch c.DataSource.Kind {
	case "csv", "postgres":
	default:
		bad("data_source.kind", "unknown kind %q", c.DataSource.Kind)
	}

	return errors.Join(errs...)
}
