package selector

import (
	"github.com/your-org/regime-switch-bot/internal/market"
	"github.com/your-org/regime-switch-bot/internal/strategy"
)

// Rule declares the regimes in which a strategy performs best.
type Rule struct {
	StrategyID  string
	Volatility  []market.VolatilityLevel
	Trend       []market.TrendLevel
	Volume      []market.VolumeLevel
	Description string
}

var (
	anyVolatility = market.VolatilityLevels
	anyTrend      = market.TrendLevels
	anyVolume     = market.VolumeLevels
	sideways      = []market.TrendLevel{market.TrendRanging, market.TrendWeakUp, market.TrendWeakDown}
	strong        = []market.TrendLevel{market.TrendStrongUp, market.TrendStrongDown}
)

// DefaultRules is the built-in preference table. Its order is the default tie-break priority.
func DefaultRules() []Rule {
	return []Rule{
		{
			StrategyID:  strategy.IDScalping,
			Volatility:  []market.VolatilityLevel{market.VolatilityMedium, market.VolatilityHigh},
			Trend:       sideways,
			Volume:      []market.VolumeLevel{market.VolumeNormal, market.VolumeHigh},
			Description: "Short-term trades in sideways markets",
		},
		{
			StrategyID:  strategy.IDRSI,
			Volatility:  []market.VolatilityLevel{market.VolatilityLow, market.VolatilityMedium},
			Trend:       sideways,
			Volume:      anyVolume,
			Description: "Mean reversion in ranging or weakly trending markets",
		},
		{
			StrategyID:  strategy.IDMACD,
			Volatility:  []market.VolatilityLevel{market.VolatilityMedium, market.VolatilityHigh},
			Trend:       strong,
			Volume:      []market.VolumeLevel{market.VolumeHigh},
			Description: "Trend following in strong trends",
		},
		{
			StrategyID:  strategy.IDBollinger,
			Volatility:  []market.VolatilityLevel{market.VolatilityHigh},
			Trend:       anyTrend,
			Volume:      []market.VolumeLevel{market.VolumeHigh},
			Description: "Breakout and bounce plays in high volatility",
		},
		{
			StrategyID:  strategy.IDMomentum,
			Volatility:  []market.VolatilityLevel{market.VolatilityHigh},
			Trend:       strong,
			Volume:      []market.VolumeLevel{market.VolumeHigh},
			Description: "Ride strong trends with high volatility",
		},
		{
			StrategyID:  strategy.IDEMACross,
			Volatility:  []market.VolatilityLevel{market.VolatilityMedium},
			Trend:       []market.TrendLevel{market.TrendWeakUp, market.TrendWeakDown, market.TrendStrongUp, market.TrendStrongDown},
			Volume:      []market.VolumeLevel{market.VolumeNormal, market.VolumeHigh},
			Description: "Catch trend changes and continuations",
		},
		{
			StrategyID:  strategy.IDCombined,
			Volatility:  anyVolatility,
			Trend:       anyTrend,
			Volume:      anyVolume,
			Description: "Default balanced strategy for uncertain conditions",
		},
	}
}
