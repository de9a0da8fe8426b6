package autoswitch

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/regime-switch-bot/internal/alert"
	"github.com/your-org/regime-switch-bot/internal/config"
	"github.com/your-org/regime-switch-bot/internal/datastore"
	"github.com/your-org/regime-switch-bot/internal/engine"
	"github.com/your-org/regime-switch-bot/internal/market"
	"github.com/your-org/regime-switch-bot/internal/selector"
	"github.com/your-org/regime-switch-bot/pkg/ringbuf"
)

// ErrAlreadyActive is returned by ForceSwitch when the target is already live.
var ErrAlreadyActive = errors.New("strategy already active")

// Settings are the static inputs of a Manager.
type Settings struct {
	Switch    config.AutoSwitchConfig
	Symbol    string
	Timeframe string
	Lookback  int // bars fetched per tick
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithRecorder sets the switch journal.
func WithRecorder(r Recorder) Option {
	return func(m *Manager) { m.recorder = r }
}

// WithNotifier sets the notifier that receives executed switches.
func WithNotifier(n alert.Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithObserver registers a callback that receives every Decision.
func WithObserver(fn func(Decision)) Option {
	return func(m *Manager) { m.observers = append(m.observers, fn) }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithConfigSource makes the manager read the switching policy from fn at the
// start of every tick, so reloaded configuration takes effect between ticks.
func WithConfigSource(fn func() config.AutoSwitchConfig) Option {
	return func(m *Manager) { m.configSource = fn }
}

// Manager is the auto-strategy state machine. Evaluate and ForceSwitch are
// serialized; Snapshot, History and Statistics may be called from any goroutine.
type Manager struct {
	settings     Settings
	source       datastore.BarSource
	analyzer     *market.Analyzer
	selector     *selector.Selector
	exec         engine.Executor
	recorder     Recorder
	notifier     alert.Notifier
	observers    []func(Decision)
	logger       *zap.Logger
	now          func() time.Time
	configSource func() config.AutoSwitchConfig

	evalMu sync.Mutex // single writer

	mu            sync.RWMutex
	state         State
	history       *ringbuf.RingBuffer[SwitchRecord]
	lastCondition market.Condition
	timeIn        map[string]time.Duration
	totalSwitches int
	forced        int
}

// NewManager creates a Manager with settings.Switch.InitialStrategy active.
func NewManager(settings Settings, source datastore.BarSource, analyzer *market.Analyzer, sel *selector.Selector, exec engine.Executor, opts ...Option) *Manager {
	m := &Manager{
		settings: settings,
		source:   source,
		analyzer: analyzer,
		selector: sel,
		exec:     exec,
		notifier: alert.NewNoOpNotifier(),
		logger:   zap.NewNop(),
		now:      time.Now,
		timeIn:   make(map[string]time.Duration),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.configSource == nil {
		m.configSource = func() config.AutoSwitchConfig { return m.settings.Switch }
	}
	if m.settings.Lookback <= 0 {
		m.settings.Lookback = max(analyzer.MinBars(), 200)
	}
	size := settings.Switch.HistorySize
	if size <= 0 {
		size = 500
	}
	m.history = ringbuf.New[SwitchRecord](size)

	initial := settings.Switch.InitialStrategy
	if initial == "" {
		initial = sel.Fallback()
	}
	m.state = State{ActiveStrategy: initial, ActivatedAt: m.now()}
	return m
}

// Sync adopts the collaborator's current strategy as the active one.
func (m *Manager) Sync(ctx context.Context) error {
	m.evalMu.Lock()
	defer m.evalMu.Unlock()

	cfg := m.configSource()
	current, err := engine.CallValue(ctx, cfg.CallTimeout, "get_current_strategy", m.exec.CurrentStrategy)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if current != "" && current != m.state.ActiveStrategy {
		m.logger.Info("Adopting collaborator strategy", zap.String("from", m.state.ActiveStrategy), zap.String("to", current))
		m.state.ActiveStrategy = current
		m.state.ActivatedAt = m.now()
	}
	return nil
}

// Snapshot returns a copy of the current state.
func (m *Manager) Snapshot() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.clone()
}

// LastCondition returns the condition computed by the most recent successful tick.
func (m *Manager) LastCondition() market.Condition {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastCondition
}

// Recommendation returns the selector's pick for the last computed condition,
// falling back below the score threshold. ok is false before the first tick.
func (m *Manager) Recommendation() (score selector.Score, ok bool) {
	cond := m.LastCondition()
	if cond.ComputedAt.IsZero() {
		return selector.Score{}, false
	}
	return m.selector.Recommend(cond, m.configSource().ScoreThreshold), true
}

// History returns the retained switch records, oldest first.
func (m *Manager) History() []SwitchRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.history.Values()
}

// Statistics summarizes the switches performed so far.
func (m *Manager) Statistics() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	now := m.now()
	current := now.Sub(m.state.ActivatedAt)
	per := make(map[string]time.Duration, len(m.timeIn)+1)
	for id, d := range m.timeIn {
		per[id] = d
	}
	per[m.state.ActiveStrategy] += current
	return Stats{
		CurrentStrategy:  m.state.ActiveStrategy,
		CurrentDuration:  current,
		TotalSwitches:    m.totalSwitches,
		ForcedSwitches:   m.forced,
		SwitchesLastHour: len(pruneWindow(m.state.SwitchWindow, now)),
		TimePerStrategy:  per,
	}
}

// Evaluate runs one tick. Insufficient data and collaborator failures are
// returned as errors and leave the state unchanged. Rejections are not errors:
// they are reported through Decision.Record.RejectReason.
func (m *Manager) Evaluate(ctx context.Context) (Decision, error) {
	m.evalMu.Lock()
	defer m.evalMu.Unlock()

	cfg := m.configSource()
	now := m.now()

	bars, err := engine.CallValue(ctx, cfg.CallTimeout, "fetch_bars", func(ctx context.Context) (market.Series, error) {
		return m.source.FetchBars(ctx, m.settings.Symbol, m.settings.Timeframe, m.settings.Lookback)
	})
	if err != nil {
		return Decision{}, fmt.Errorf("failed to fetch bars: %w", err)
	}
	cond, err := m.analyzer.Analyze(bars)
	if err != nil {
		return Decision{}, err
	}
	m.mu.Lock()
	m.lastCondition = cond
	m.mu.Unlock()

	ranked := m.selector.Rank(cond)
	best := ranked[0]
	state := m.Snapshot()

	d := Decision{
		Condition: cond,
		Ranked:    ranked,
		Record: SwitchRecord{
			Timestamp:    now,
			FromStrategy: state.ActiveStrategy,
			ToStrategy:   best.StrategyID,
			Condition:    cond,
			Score:        best.Score,
			DryRun:       bool(cfg.DryRun),
		},
	}

	if reason := m.policyReject(cfg, state, best, now); reason != "" {
		return m.reject(cfg, d, reason), nil
	}

	hasOpen, err := m.hasOpenPositions(ctx, cfg)
	if err != nil {
		return m.failed(d, err), err
	}
	if hasOpen && !bool(cfg.ClosePositionBeforeSwitch) {
		return m.reject(cfg, d, "open positions and close_position_before_switch disabled"), nil
	}

	window := pruneWindow(state.SwitchWindow, now)
	if cfg.MaxSwitchesPerHour > 0 && len(window)+1 > cfg.MaxSwitchesPerHour {
		fallback := m.selector.Fallback()
		if state.ActiveStrategy == fallback {
			return m.reject(cfg, d, fmt.Sprintf("switch limit reached: %d switches in the last hour", len(window))), nil
		}
		m.logger.Warn("Switch limit reached, forcing fallback strategy",
			zap.Int("switchesLastHour", len(window)),
			zap.String("recommended", best.StrategyID),
			zap.String("fallback", fallback))
		d.Record.ToStrategy = fallback
		d.Record.Score = m.selector.ScoreFor(fallback, cond).Score
		d.Record.Forced = true
	}

	if cfg.DryRun {
		m.logger.Info(fmt.Sprintf("[DryRun] Would switch strategy: %s -> %s", d.Record.FromStrategy, d.Record.ToStrategy),
			zap.Float64("score", d.Record.Score),
			zap.Bool("forced", d.Record.Forced),
			zap.Bool("openPositions", hasOpen),
			zap.Stringer("condition", cond))
		m.journal(d.Record)
		m.publish(d)
		return d, nil
	}

	if err := m.execute(ctx, cfg, d.Record.ToStrategy, hasOpen); err != nil {
		return m.failed(d, err), err
	}
	d = m.commit(d, now, window)
	return d, nil
}

// policyReject applies the time and score gates. It returns the rejecting rule
// or an empty string.
func (m *Manager) policyReject(cfg config.AutoSwitchConfig, state State, best selector.Score, now time.Time) string {
	if best.StrategyID == state.ActiveStrategy {
		return fmt.Sprintf("strategy %s already active", best.StrategyID)
	}
	if elapsed := now.Sub(state.ActivatedAt); elapsed < cfg.MinStrategyDuration {
		return fmt.Sprintf("min strategy duration: %ds remaining", remainingSeconds(cfg.MinStrategyDuration-elapsed))
	}
	if !state.LastSwitchAt.IsZero() {
		if elapsed := now.Sub(state.LastSwitchAt); elapsed < cfg.SwitchCooldown {
			return fmt.Sprintf("cooldown active: %ds remaining", remainingSeconds(cfg.SwitchCooldown-elapsed))
		}
	}
	if best.Score < cfg.ScoreThreshold {
		return fmt.Sprintf("score %.1f below threshold %.1f", best.Score, cfg.ScoreThreshold)
	}
	return ""
}

func remainingSeconds(d time.Duration) int64 {
	return int64(math.Ceil(d.Seconds()))
}

func (m *Manager) hasOpenPositions(ctx context.Context, cfg config.AutoSwitchConfig) (bool, error) {
	return engine.CallValue(ctx, cfg.CallTimeout, "has_open_positions", m.exec.HasOpenPositions)
}

func (m *Manager) execute(ctx context.Context, cfg config.AutoSwitchConfig, to string, hasOpen bool) error {
	if hasOpen {
		if err := engine.Call(ctx, cfg.CallTimeout, "close_all_positions", m.exec.CloseAllPositions); err != nil {
			return err
		}
	}
	return engine.Call(ctx, cfg.CallTimeout, "set_strategy", func(ctx context.Context) error {
		return m.exec.SetStrategy(ctx, to)
	})
}

// commit applies an executed switch to the state.
func (m *Manager) commit(d Decision, now time.Time, window []time.Time) Decision {
	d.Record.Executed = true
	d.Switched = true

	m.mu.Lock()
	m.timeIn[m.state.ActiveStrategy] += now.Sub(m.state.ActivatedAt)
	m.state = State{
		ActiveStrategy: d.Record.ToStrategy,
		ActivatedAt:    now,
		LastSwitchAt:   now,
		SwitchWindow:   append(window, now),
	}
	m.totalSwitches++
	if d.Record.Forced {
		m.forced++
	}
	m.history.Add(d.Record)
	m.mu.Unlock()

	m.logger.Info(fmt.Sprintf("Strategy switched: %s -> %s", d.Record.FromStrategy, d.Record.ToStrategy),
		zap.Float64("score", d.Record.Score),
		zap.Bool("forced", d.Record.Forced),
		zap.Stringer("condition", d.Condition))
	m.persist(d.Record)
	msg := fmt.Sprintf("Strategy switched: %s -> %s (score %.1f, %s)", d.Record.FromStrategy, d.Record.ToStrategy, d.Record.Score, d.Condition)
	if d.Record.Forced {
		msg += " [forced]"
	}
	if err := m.notifier.Send(msg); err != nil {
		m.logger.Warn("Failed to send switch notification", zap.Error(err))
	}
	m.publish(d)
	return d
}

func (m *Manager) reject(cfg config.AutoSwitchConfig, d Decision, reason string) Decision {
	d.Record.RejectReason = reason
	if d.Record.ToStrategy == d.Record.FromStrategy {
		m.logger.Debug("Switch rejected", zap.String("reason", reason))
	} else {
		m.logger.Info("Switch rejected",
			zap.String("from", d.Record.FromStrategy),
			zap.String("to", d.Record.ToStrategy),
			zap.String("reason", reason))
	}
	if bool(cfg.JournalRejections) {
		m.journal(d.Record)
	}
	m.publish(d)
	return d
}

// failed records an attempt that a collaborator call aborted.
func (m *Manager) failed(d Decision, err error) Decision {
	d.Record.RejectReason = err.Error()
	m.logger.Error("Switch attempt failed, keeping current strategy",
		zap.String("active", d.Record.FromStrategy),
		zap.String("target", d.Record.ToStrategy),
		zap.Error(err))
	m.journal(d.Record)
	m.publish(d)
	return d
}

// journal keeps rec in the history and persists it.
func (m *Manager) journal(rec SwitchRecord) {
	m.mu.Lock()
	m.history.Add(rec)
	m.mu.Unlock()
	m.persist(rec)
}

func (m *Manager) persist(rec SwitchRecord) {
	if m.recorder == nil {
		return
	}
	if err := m.recorder.RecordSwitch(rec); err != nil {
		m.logger.Error("Failed to journal switch record", zap.Error(err))
	}
}

func (m *Manager) publish(d Decision) {
	for _, fn := range m.observers {
		fn(d)
	}
}

// ForceSwitch switches to id immediately, bypassing the duration, cooldown,
// score and hourly limits. Open positions are closed first.
func (m *Manager) ForceSwitch(ctx context.Context, id string) (Decision, error) {
	m.evalMu.Lock()
	defer m.evalMu.Unlock()

	cfg := m.configSource()
	now := m.now()
	state := m.Snapshot()
	cond := m.LastCondition()
	if id == state.ActiveStrategy {
		return Decision{}, fmt.Errorf("%w: %s", ErrAlreadyActive, id)
	}

	d := Decision{
		Condition: cond,
		Record: SwitchRecord{
			Timestamp:    now,
			FromStrategy: state.ActiveStrategy,
			ToStrategy:   id,
			Condition:    cond,
			Score:        m.selector.ScoreFor(id, cond).Score,
			Forced:       true,
			DryRun:       bool(cfg.DryRun),
		},
	}
	if cfg.DryRun {
		m.logger.Info(fmt.Sprintf("[DryRun] Would force strategy: %s -> %s", state.ActiveStrategy, id))
		m.journal(d.Record)
		m.publish(d)
		return d, nil
	}

	hasOpen, err := m.hasOpenPositions(ctx, cfg)
	if err != nil {
		return m.failed(d, err), err
	}
	if err := m.execute(ctx, cfg, id, hasOpen); err != nil {
		return m.failed(d, err), err
	}
	return m.commit(d, now, pruneWindow(state.SwitchWindow, now)), nil
}
