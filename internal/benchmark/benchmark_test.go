package benchmark

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type fakeExecer struct {
	args [][]any
	err  error
}

func (f *fakeExecer) Exec(_ context.Context, _ string, args ...any) (pgconn.CommandTag, error) {
	f.args = append(f.args, args)
	return pgconn.NewCommandTag("INSERT 0 1"), f.err
}

func TestService_Tick_NoPanicWithNilWriter(t *testing.T) {
	service := NewService(zap.NewNop(), nil, 1000)

	assert.NotPanics(t, func() {
		service.Tick(context.Background(), "BTCUSDT", 123.45)
	})
	assert.Equal(t, 1000.0, service.Value("BTCUSDT"))
}

func TestService_Tick_TracksBuyAndHold(t *testing.T) {
	db := &fakeExecer{}
	service := NewService(nil, db, 1000)
	ts := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return ts }

	ctx := context.Background()
	assert.Equal(t, 1000.0, service.Value("BTCUSDT"))

	v := service.Tick(ctx, "BTCUSDT", 100)
	assert.Equal(t, 1000.0, v)

	v = service.Tick(ctx, "BTCUSDT", 110)
	assert.InDelta(t, 1100.0, v, 1e-9)

	v = service.Tick(ctx, "BTCUSDT", 0)
	assert.InDelta(t, 1100.0, v, 1e-9)

	v = service.Tick(ctx, "ETHUSDT", 50)
	assert.Equal(t, 1000.0, v)

	require.Len(t, db.args, 3)
	assert.Equal(t, ts, db.args[1][0])
	assert.Equal(t, "BTCUSDT", db.args[1][1])
	assert.True(t, decimal.NewFromInt(110).Equal(db.args[1][2].(decimal.Decimal)))
	assert.True(t, decimal.NewFromInt(1100).Equal(db.args[1][3].(decimal.Decimal)))
}

func TestService_Tick_DBError(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	service := NewService(zap.New(core), &fakeExecer{err: errors.New("down")}, 500)

	v := service.Tick(context.Background(), "BTCUSDT", 10)
	assert.Equal(t, 500.0, v)
	assert.Equal(t, 500.0, service.Value("BTCUSDT"))

	entries := logs.FilterMessage("Failed to save benchmark value").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "BTCUSDT", entries[0].ContextMap()["symbol"])
	assert.Equal(t, "down", entries[0].ContextMap()["error"])
}
