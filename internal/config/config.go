// Package config handles application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"
)

// Config defines the structure for all application configuration.
type Config struct {
	Symbol     string           `yaml:"symbol"`
	Timeframe  string           `yaml:"timeframe"`
	Lookback   int              `yaml:"lookback"` // bars fetched per evaluation tick
	LogLevel   string           `yaml:"log_level"`
	Analysis   AnalysisConfig   `yaml:"market_analysis"`
	AutoSwitch AutoSwitchConfig `yaml:"auto_strategy_switching"`
	Selector   SelectorConfig   `yaml:"strategy_selection"`
	Strategies StrategiesConfig `yaml:"strategies"`
	Risk       RiskConfig       `yaml:"risk_management"`
	Backtest   BacktestConfig   `yaml:"backtest"`
	Journal    JournalConfig    `yaml:"journal"`
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	DataSource DataSourceConfig `yaml:"data_source"`
	APIKey     string           `yaml:"-"` // Loaded from env
	APISecret  string           `yaml:"-"` // Loaded from env
}

// AnalysisConfig holds the market regime classification parameters.
type AnalysisConfig struct {
	VolatilityPeriod  int               `yaml:"volatility_period"`
	TrendPeriod       int               `yaml:"trend_period"`
	VolumePeriod      int               `yaml:"volume_period"`
	BollingerK        float64           `yaml:"bollinger_k"`
	VolatilityWeights VolatilityWeights `yaml:"volatility_weights"`
	VolatilityLow     float64           `yaml:"volatility_low"`  // score below is LOW
	VolatilityHigh    float64           `yaml:"volatility_high"` // score at or above is HIGH
	ADXStrong         float64           `yaml:"adx_strong"`
	ADXWeak           float64           `yaml:"adx_weak"`
	FlatSlopePct      float64           `yaml:"flat_slope_pct"`
	VolumeLowRatio    float64           `yaml:"volume_low_ratio"`
	VolumeHighRatio   float64           `yaml:"volume_high_ratio"`
	EWMLambda         float64           `yaml:"ewm_lambda"`
}

// VolatilityWeights weights the three normalized volatility inputs.
type VolatilityWeights struct {
	ATR     float64 `yaml:"atr"`
	BBWidth float64 `yaml:"bb_width"`
	Range   float64 `yaml:"range"`
}

// AutoSwitchConfig holds the strategy switching policy.
type AutoSwitchConfig struct {
	Enabled                   FlexBool      `yaml:"enabled"`
	DryRun                    FlexBool      `yaml:"dry_run"`
	InitialStrategy           string        `yaml:"initial_strategy"`
	FallbackStrategy          string        `yaml:"fallback_strategy"`
	CheckInterval             time.Duration `yaml:"check_interval"`
	WarmupDelay               time.Duration `yaml:"warmup_delay"`
	MinStrategyDuration       time.Duration `yaml:"min_strategy_duration"`
	SwitchCooldown            time.Duration `yaml:"switch_cooldown"`
	ScoreThreshold            float64       `yaml:"score_threshold"`
	MaxSwitchesPerHour        int           `yaml:"max_switches_per_hour"`
	ClosePositionBeforeSwitch FlexBool      `yaml:"close_position_before_switch"`
	CallTimeout               time.Duration `yaml:"call_timeout"`
	JournalRejections         FlexBool      `yaml:"journal_rejections"`
	HistorySize               int           `yaml:"history_size"`
}

// SelectorConfig holds strategy weights and the priority used for tie-breaking.
type SelectorConfig struct {
	Weights  map[string]float64 `yaml:"strategy_weights"`
	Priority []string           `yaml:"strategy_priority"`
}

// StrategiesConfig holds per-strategy signal parameters.
type StrategiesConfig struct {
	RSI       RSIConf       `yaml:"rsi"`
	MACD      MACDConf      `yaml:"macd"`
	Bollinger BollingerConf `yaml:"bollinger"`
	Momentum  MomentumConf  `yaml:"momentum"`
	EMACross  EMACrossConf  `yaml:"ema_cross"`
	Scalping  ScalpingConf  `yaml:"scalping"`
	Combined  CombinedConf  `yaml:"combined"`
}

// RSIConf configures the RSI reversal strategy.
type RSIConf struct {
	Period     int     `yaml:"period"`
	Oversold   float64 `yaml:"oversold"`
	Overbought float64 `yaml:"overbought"`
}

// MACDConf configures the MACD cross strategy.
type MACDConf struct {
	Fast   int `yaml:"fast"`
	Slow   int `yaml:"slow"`
	Signal int `yaml:"signal"`
}

// BollingerConf configures the band bounce strategy.
type BollingerConf struct {
	Period int     `yaml:"period"`
	StdDev float64 `yaml:"std_dev"`
}

// MomentumConf configures the rate-of-change strategy.
type MomentumConf struct {
	Period          int     `yaml:"period"`
	ThresholdPct    float64 `yaml:"threshold_pct"`
	VolumePeriod    int     `yaml:"volume_period"`
	VolumeSpikeMult float64 `yaml:"volume_spike_mult"`
}

// EMACrossConf configures the EMA crossover strategy.
type EMACrossConf struct {
	Fast  int `yaml:"fast"`
	Slow  int `yaml:"slow"`
	Trend int `yaml:"trend"`
}

// ScalpingConf configures the fast EMA scalping strategy.
type ScalpingConf struct {
	Fast           int     `yaml:"fast"`
	Slow           int     `yaml:"slow"`
	RSIPeriod      int     `yaml:"rsi_period"`
	RSILower       float64 `yaml:"rsi_lower"`
	RSIUpper       float64 `yaml:"rsi_upper"`
	VolumePeriod   int     `yaml:"volume_period"`
	MinVolumeRatio float64 `yaml:"min_volume_ratio"`
}

// CombinedConf configures the weighted vote of the other strategies.
type CombinedConf struct {
	MinSignals int                `yaml:"min_signals"`
	Weights    map[string]float64 `yaml:"weights"`
}

// RiskConfig holds the risk parameters. Percentages are fractions (0.02 = 2%).
type RiskConfig struct {
	RiskPerTradePct        float64        `yaml:"risk_per_trade_pct"`
	MaxPositions           int            `yaml:"max_positions"`
	MaxConcurrentPositions int            `yaml:"max_concurrent_positions"`
	MaxDailyLossPct        float64        `yaml:"max_daily_loss_pct"`
	MaxWeeklyLossPct       float64        `yaml:"max_weekly_loss_pct"`
	Leverage               float64        `yaml:"leverage"`
	MaxLeverage            float64        `yaml:"max_leverage"`
	MaxPositionPct         float64        `yaml:"max_position_pct"`
	StopLoss               StopLossConf   `yaml:"stop_loss"`
	TakeProfit             TakeProfitConf `yaml:"take_profit"`
	Sizing                 SizingConf     `yaml:"sizing"`
	Bounds                 OrderBounds    `yaml:"bounds"`
}

// StopLossConf selects the stop-loss mode.
type StopLossConf struct {
	Mode          string  `yaml:"mode"` // percentage, atr, trailing
	Pct           float64 `yaml:"pct"`
	ATRMultiplier float64 `yaml:"atr_multiplier"`
	ATRPeriod     int     `yaml:"atr_period"`
	TrailingPct   float64 `yaml:"trailing_pct"`
	ActivationPct float64 `yaml:"activation_pct"`
}

// TakeProfitConf selects the take-profit mode.
type TakeProfitConf struct {
	Mode           string   `yaml:"mode"` // percentage, risk_reward
	Pct            float64  `yaml:"pct"`
	RiskReward     float64  `yaml:"risk_reward"`
	PartialEnabled FlexBool `yaml:"partial_enabled"`
	PartialTrigger float64  `yaml:"partial_trigger_pct"`
}

// SizingConf selects the position sizing mode.
type SizingConf struct {
	Mode           string  `yaml:"mode"` // fixed_risk, kelly_criterion
	KellyFraction  float64 `yaml:"kelly_fraction"`
	KellyMax       float64 `yaml:"kelly_max_fraction"`
	KellyMin       float64 `yaml:"kelly_min_fraction"`
	KellyMinTrades int     `yaml:"kelly_min_trades"`
}

// OrderBounds are the hard limits enforced by order validation.
type OrderBounds struct {
	MinQuantity float64 `yaml:"min_quantity"`
	MaxQuantity float64 `yaml:"max_quantity"`
	MinNotional float64 `yaml:"min_notional"`
	MaxNotional float64 `yaml:"max_notional"`
}

// BacktestConfig holds the simulated fill model.
type BacktestConfig struct {
	InitialCapital float64 `yaml:"initial_capital"`
	CommissionPct  float64 `yaml:"commission_pct"`
	SlippagePct    float64 `yaml:"slippage_pct"`
	Warmup         int     `yaml:"warmup"`
	Window         int     `yaml:"window"`    // trailing bars passed to the strategy, 0 = all
	TieBreak       string  `yaml:"tie_break"` // stop_first, target_first
	Sizing         string  `yaml:"sizing"`    // risk, all_in
	PeriodsPerYear float64 `yaml:"periods_per_year"`
}

// JournalConfig configures the append-only switch journal and trade ledger.
type JournalConfig struct {
	SwitchPath    string        `yaml:"switch_path"`
	TradePath     string        `yaml:"trade_path"`
	MirrorToDB    FlexBool      `yaml:"mirror_to_db"`
	BatchSize     int           `yaml:"batch_size"`
	WriteInterval time.Duration `yaml:"write_interval"`
}

// ServerConfig configures the status API.
type ServerConfig struct {
	Enabled FlexBool `yaml:"enabled"`
	Addr    string   `yaml:"addr"`
}

// DatabaseConfig holds PostgreSQL connection settings.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslmode"`
}

// DataSourceConfig selects where bars come from.
type DataSourceConfig struct {
	Kind           string        `yaml:"kind"` // csv, postgres
	CSVPath        string        `yaml:"csv_path"`
	MaxRetries     int           `yaml:"max_retries"`
	RetryBase      time.Duration `yaml:"retry_base"`
	ReplayInterval time.Duration `yaml:"replay_interval"` // csv only: wall time per revealed bar
	PollInterval   time.Duration `yaml:"poll_interval"`   // postgres only: 0 means one timeframe
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s", d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Default returns a Config populated with the built-in defaults.
func Default() *Config {
	return &Config{
		Symbol:    "BTCUSDT",
		Timeframe: "15m",
		Lookback:  200,
		LogLevel:  "info",
		Analysis: AnalysisConfig{
			VolatilityPeriod:  14,
			TrendPeriod:       14,
			VolumePeriod:      20,
			BollingerK:        2,
			VolatilityWeights: VolatilityWeights{ATR: 1, BBWidth: 1, Range: 1},
			VolatilityLow:     0.33,
			VolatilityHigh:    0.66,
			ADXStrong:         40,
			ADXWeak:           20,
			FlatSlopePct:      0.1,
			VolumeLowRatio:    0.7,
			VolumeHighRatio:   1.5,
			EWMLambda:         0.06,
		},
		AutoSwitch: AutoSwitchConfig{
			Enabled:             true,
			InitialStrategy:     "combined",
			FallbackStrategy:    "combined",
			CheckInterval:       5 * time.Minute,
			MinStrategyDuration: 30 * time.Minute,
			SwitchCooldown:      10 * time.Minute,
			ScoreThreshold:      70,
			MaxSwitchesPerHour:  3,
			CallTimeout:         10 * time.Second,
			HistorySize:         500,
		},
		Selector: SelectorConfig{
			Weights: map[string]float64{"combined": 0.8},
		},
		Strategies: StrategiesConfig{
			RSI:       RSIConf{Period: 14, Oversold: 30, Overbought: 70},
			MACD:      MACDConf{Fast: 12, Slow: 26, Signal: 9},
			Bollinger: BollingerConf{Period: 20, StdDev: 2},
			Momentum:  MomentumConf{Period: 10, ThresholdPct: 2, VolumePeriod: 20, VolumeSpikeMult: 1.5},
			EMACross:  EMACrossConf{Fast: 9, Slow: 21, Trend: 50},
			Scalping:  ScalpingConf{Fast: 5, Slow: 13, RSIPeriod: 7, RSILower: 30, RSIUpper: 70, VolumePeriod: 20, MinVolumeRatio: 1.0},
			Combined: CombinedConf{
				MinSignals: 2,
				Weights: map[string]float64{
					"scalping": 1.0, "rsi": 1.5, "macd": 1.5,
					"bollinger": 1.0, "momentum": 1.0, "ema_cross": 1.0,
				},
			},
		},
		Risk: RiskConfig{
			RiskPerTradePct:        0.02,
			MaxPositions:           4,
			MaxConcurrentPositions: 1,
			MaxDailyLossPct:        0.05,
			MaxWeeklyLossPct:       0.10,
			Leverage:               1,
			MaxLeverage:            10,
			MaxPositionPct:         0.25,
			StopLoss:               StopLossConf{Mode: "percentage", Pct: 0.02, ATRMultiplier: 2, ATRPeriod: 14, TrailingPct: 0.015, ActivationPct: 0.01},
			TakeProfit:             TakeProfitConf{Mode: "risk_reward", Pct: 0.03, RiskReward: 2},
			Sizing:                 SizingConf{Mode: "fixed_risk", KellyFraction: 0.25, KellyMax: 0.1, KellyMin: 0.01, KellyMinTrades: 20},
		},
		Backtest: BacktestConfig{
			InitialCapital: 10000,
			CommissionPct:  0.001,
			SlippagePct:    0.0005,
			Warmup:         50,
			TieBreak:       "stop_first",
			Sizing:         "risk",
			PeriodsPerYear: 365 * 24 * 4,
		},
		Journal: JournalConfig{
			SwitchPath:    "data/switches.ndjson",
			TradePath:     "data/trades.ndjson",
			BatchSize:     100,
			WriteInterval: 5 * time.Second,
		},
		Server:     ServerConfig{Addr: ":8080"},
		Database:   DatabaseConfig{Host: "localhost", Port: 5432, Name: "regime"},
		DataSource: DataSourceConfig{Kind: "csv", MaxRetries: 3, RetryBase: 500 * time.Millisecond, ReplayInterval: time.Second},
	}
}

// LoadConfig loads configuration from the specified YAML file path
// and environment variables, then validates it.
func LoadConfig(configPath string) (*Config, error) {
	cfg := Default()

	file, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(file, cfg); err != nil {
		return nil, &ConfigurationError{Field: configPath, Reason: err.Error()}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if apiKey := os.Getenv("EXCHANGE_API_KEY"); apiKey != "" {
		cfg.APIKey = apiKey
	}
	if apiSecret := os.Getenv("EXCHANGE_API_SECRET"); apiSecret != "" {
		cfg.APISecret = apiSecret
	}
	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if dbHost := os.Getenv("DB_HOST"); dbHost != "" {
		cfg.Database.Host = dbHost
	}
	if dbPort := os.Getenv("DB_PORT"); dbPort != "" {
		if p, err := strconv.Atoi(dbPort); err == nil {
			cfg.Database.Port = p
		}
	}
	if dbUser := os.Getenv("DB_USER"); dbUser != "" {
		cfg.Database.User = dbUser
	}
	if dbPassword := os.Getenv("DB_PASSWORD"); dbPassword != "" {
		cfg.Database.Password = dbPassword
	}
	if dbName := os.Getenv("DB_NAME"); dbName != "" {
		cfg.Database.Name = dbName
	}
	if dryRun := os.Getenv("BOT_DRY_RUN"); dryRun != "" {
		if b, err := strconv.ParseBool(dryRun); err == nil {
			cfg.AutoSwitch.DryRun = FlexBool(b)
		}
	}
}

var current atomic.Pointer[Config]

// ReloadConfig loads the file at configPath and atomically replaces the
// global configuration. On error the previous configuration stays active.
func ReloadConfig(configPath string) (*Config, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	current.Store(cfg)
	return cfg, nil
}

// SetConfig replaces the global configuration.
func SetConfig(cfg *Config) {
	current.Store(cfg)
}

// GetConfig returns the active global configuration, or the defaults if none was loaded.
func GetConfig() *Config {
	if cfg := current.Load(); cfg != nil {
		return cfg
	}
	return Default()
}
