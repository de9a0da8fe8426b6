// Package scheduler runs housekeeping jobs on cron schedules.
package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/your-org/regime-switch-bot/internal/pnl"
)

// Schedules of the built-in jobs, with seconds, evaluated in UTC.
const (
	DailyResetSpec  = "0 0 0 * * *"
	WeeklyResetSpec = "0 0 0 * * MON"
)

// Runner wraps a cron scheduler whose jobs receive a base context.
type Runner struct {
	cron    *cron.Cron
	logger  *zap.Logger
	baseCtx context.Context
}

// New creates a Runner. Jobs are evaluated in UTC.
func New(logger *zap.Logger, baseCtx context.Context) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	return &Runner{
		cron:    cron.New(cron.WithSeconds(), cron.WithLocation(time.UTC), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger))),
		logger:  logger,
		baseCtx: baseCtx,
	}
}

// Add registers job under spec.
func (r *Runner) Add(spec string, job func(context.Context)) (cron.EntryID, error) {
	return r.cron.AddFunc(spec, func() {
		if r.baseCtx.Err() != nil {
			return
		}
		job(r.baseCtx)
	})
}

// Entries returns the number of registered jobs.
func (r *Runner) Entries() int {
	return len(r.cron.Entries())
}

// Start runs the scheduler in the background.
func (r *Runner) Start() {
	r.logger.Info("cron started", zap.Int("jobs", r.Entries()))
	r.cron.Start()
}

// Stop stops the scheduler and waits for running jobs.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info("cron stopped")
}

// AddLossWindowResets schedules the daily and weekly loss-window resets of calc.
func (r *Runner) AddLossWindowResets(calc *pnl.Calculator) error {
	if _, err := r.Add(DailyResetSpec, func(context.Context) {
		daily, _ := calc.Windows()
		calc.ResetDaily()
		r.logger.Info("Daily loss window reset", zap.Float64("previousDailyPnL", daily))
	}); err != nil {
		return err
	}
	_, err := r.Add(WeeklyResetSpec, func(context.Context) {
		_, weekly := calc.Windows()
		calc.ResetWeekly()
		r.logger.Info("Weekly loss window reset", zap.Float64("previousWeeklyPnL", weekly))
	})
	return err
}
