package market

import (
	"fmt"
	"time"
)

// VolatilityLevel classifies realized volatility.
type VolatilityLevel string

// TrendLevel classifies trend strength and direction.
type TrendLevel string

// VolumeLevel classifies traded volume against its trailing average.
type VolumeLevel string

const (
	VolatilityLow    VolatilityLevel = "LOW"
	VolatilityMedium VolatilityLevel = "MEDIUM"
	VolatilityHigh   VolatilityLevel = "HIGH"

	TrendStrongUp   TrendLevel = "STRONG_UP"
	TrendWeakUp     TrendLevel = "WEAK_UP"
	TrendRanging    TrendLevel = "RANGING"
	TrendWeakDown   TrendLevel = "WEAK_DOWN"
	TrendStrongDown TrendLevel = "STRONG_DOWN"

	VolumeLow    VolumeLevel = "LOW"
	VolumeNormal VolumeLevel = "NORMAL"
	VolumeHigh   VolumeLevel = "HIGH"
)

// VolatilityLevels lists the volatility levels in ascending order.
var VolatilityLevels = []VolatilityLevel{VolatilityLow, VolatilityMedium, VolatilityHigh}

// TrendLevels lists the trend levels from strongest up to strongest down.
var TrendLevels = []TrendLevel{TrendStrongUp, TrendWeakUp, TrendRanging, TrendWeakDown, TrendStrongDown}

// VolumeLevels lists the volume levels in ascending order.
var VolumeLevels = []VolumeLevel{VolumeLow, VolumeNormal, VolumeHigh}

// Rank returns the ordinal of the level, or -1 if unknown.
func (v VolatilityLevel) Rank() int {
	for i, l := range VolatilityLevels {
		if l == v {
			return i
		}
	}
	return -1
}

// Rank returns the ordinal of the level, or -1 if unknown.
func (v VolumeLevel) Rank() int {
	for i, l := range VolumeLevels {
		if l == v {
			return i
		}
	}
	return -1
}

// Direction returns 1 for up trends, -1 for down trends and 0 for ranging.
func (t TrendLevel) Direction() int {
	switch t {
	case TrendStrongUp, TrendWeakUp:
		return 1
	case TrendStrongDown, TrendWeakDown:
		return -1
	default:
		return 0
	}
}

// Strong reports whether the trend is a STRONG_* level.
func (t TrendLevel) Strong() bool {
	return t == TrendStrongUp || t == TrendStrongDown
}

// Metrics carries the raw values the classification was derived from.
type Metrics struct {
	ATR             float64 `json:"atr"`
	ATRPct          float64 `json:"atr_pct"`
	BBWidthPct      float64 `json:"bb_width_pct"`
	RangePct        float64 `json:"range_pct"`
	VolatilityScore float64 `json:"volatility_score"`
	RealizedVol     float64 `json:"realized_vol"`
	EWMVol          float64 `json:"ewm_vol"`
	ADX             float64 `json:"adx"`
	PlusDI          float64 `json:"plus_di"`
	MinusDI         float64 `json:"minus_di"`
	EMA5            float64 `json:"ema5"`
	EMA20           float64 `json:"ema20"`
	EMA50           float64 `json:"ema50"`
	EMAOrder        int     `json:"ema_order"` // 1 when EMA5 > EMA20 > EMA50, -1 when reversed
	SlopePct        float64 `json:"slope_pct"`
	VolumeRatio     float64 `json:"volume_ratio"`
	AvgVolume       float64 `json:"avg_volume"`
	VWAP            float64 `json:"vwap"`
	PriceVsVWAPPct  float64 `json:"price_vs_vwap_pct"`
	Close           float64 `json:"close"`
}

// Condition is an immutable snapshot of the market regime.
type Condition struct {
	Volatility VolatilityLevel `json:"volatility"`
	Trend      TrendLevel      `json:"trend"`
	Volume     VolumeLevel     `json:"volume"`
	ComputedAt time.Time       `json:"computed_at"`
	Metrics    Metrics         `json:"metrics"`
}

func (c Condition) String() string {
	return fmt.Sprintf("Volatility: %s, Trend: %s, Volume: %s", c.Volatility, c.Trend, c.Volume)
}
