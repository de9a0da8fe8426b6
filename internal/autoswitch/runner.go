package autoswitch

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/your-org/regime-switch-bot/internal/config"
	"github.com/your-org/regime-switch-bot/internal/market"
)

const defaultCheckInterval = 5 * time.Minute

// Run evaluates on every check interval until ctx is cancelled. Cancellation is
// observed between ticks; a tick in progress completes. Tick errors are logged
// and retried on the next tick.
func (m *Manager) Run(ctx context.Context) error {
	cfg := m.configSource()
	if !cfg.Enabled {
		m.logger.Info("Auto strategy switching is disabled")
		return nil
	}
	if err := m.Sync(ctx); err != nil {
		m.logger.Warn("Failed to read collaborator strategy, keeping initial", zap.Error(err))
	}

	if cfg.WarmupDelay > 0 {
		m.logger.Info("Waiting before first evaluation", zap.Duration("warmup", cfg.WarmupDelay))
		timer := time.NewTimer(cfg.WarmupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	interval := intervalOf(cfg)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			m.logger.Info("Auto strategy manager stopped")
			return ctx.Err()
		case <-ticker.C:
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.tick(ctx)
			if next := intervalOf(m.configSource()); next != interval {
				interval = next
				ticker.Reset(interval)
				m.logger.Info("Check interval changed", zap.Duration("interval", interval))
			}
		}
	}
}

func intervalOf(cfg config.AutoSwitchConfig) time.Duration {
	if cfg.CheckInterval <= 0 {
		return defaultCheckInterval
	}
	return cfg.CheckInterval
}

func (m *Manager) tick(ctx context.Context) {
	if !m.configSource().Enabled {
		m.logger.Debug("Auto strategy switching paused by configuration")
		return
	}
	d, err := m.Evaluate(ctx)
	switch {
	case err == nil:
		m.logger.Debug("Evaluation tick done",
			zap.Stringer("condition", d.Condition),
			zap.String("top", d.Record.ToStrategy),
			zap.Bool("switched", d.Switched))
	case errors.Is(err, market.ErrInsufficientData):
		m.logger.Info("Skipping tick", zap.Error(err))
	case errors.Is(err, context.Canceled):
	default:
		m.logger.Warn("Evaluation tick failed, retrying next tick", zap.Error(err))
	}
}
