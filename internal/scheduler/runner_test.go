package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/regime-switch-bot/internal/pnl"
)

var cronParser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

func TestRunner_RunsJobs(t *testing.T) {
	r := New(nil, context.Background())
	var calls atomic.Int32
	_, err := r.Add("* * * * * *", func(context.Context) { calls.Add(1) })
	require.NoError(t, err)

	r.Start()
	defer r.Stop()
	assert.Eventually(t, func() bool { return calls.Load() > 0 }, 3*time.Second, 20*time.Millisecond)
}

func TestRunner_InvalidSpec(t *testing.T) {
	r := New(nil, nil)
	_, err := r.Add("every tuesday", func(context.Context) {})
	assert.Error(t, err)
}

func TestRunner_CancelledContextSkipsJobs(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := New(nil, ctx)
	var calls atomic.Int32
	_, err := r.Add("* * * * * *", func(context.Context) { calls.Add(1) })
	require.NoError(t, err)
	r.Start()
	time.Sleep(1200 * time.Millisecond)
	r.Stop()
	assert.Zero(t, calls.Load())
}

func TestAddLossWindowResets(t *testing.T) {
	r := New(nil, context.Background())
	require.NoError(t, r.AddLossWindowResets(pnl.NewCalculator()))
	assert.Equal(t, 2, r.Entries())

	sched, err := cronParser.Parse(WeeklyResetSpec)
	require.NoError(t, err)
	sunday := time.Date(2024, 6, 9, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2024, 6, 10, 0, 0, 0, 0, time.UTC), sched.Next(sunday))
}
