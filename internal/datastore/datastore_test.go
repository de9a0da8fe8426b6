package datastore

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/regime-switch-bot/internal/market"
)

var t0 = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)

func makeBars(n int) market.Series {
	out := make(market.Series, n)
	for i := range out {
		p := 100 + float64(i)
		out[i] = market.Bar{Time: t0.Add(time.Duration(i) * time.Hour), Open: p, High: p + 1, Low: p - 1, Close: p + 0.5, Volume: 10}
	}
	return out
}

func TestReadBarsCSV(t *testing.T) {
	in := strings.Join([]string{
		"time,open,high,low,close,volume",
		"2024-02-01 00:00:00+00,100,101,99,100.5,10",
		"2024-02-01T01:00:00Z,101,102,100,101.5,11",
		"bad,1,2,3,4,5",
		"1706752800000,102,103,101,102.5,12",
		"2024-02-01 03:00:00+00,103,oops,102,103.5,13",
	}, "\n")

	bars, err := ReadBarsCSV(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, t0, bars[0].Time)
	assert.Equal(t, t0.Add(2*time.Hour), bars[2].Time)
	assert.InDelta(t, 101.5, bars[1].Close, 1e-9)
	assert.InDelta(t, 12, bars[2].Volume, 1e-9)
}

func TestReadBarsCSV_OutOfOrder(t *testing.T) {
	in := "time,open,high,low,close,volume\n" +
		"2024-02-01T01:00:00Z,1,1,1,1,1\n" +
		"2024-02-01T00:00:00Z,1,1,1,1,1\n"
	_, err := ReadBarsCSV(strings.NewReader(in))
	assert.Error(t, err)
}

func TestReadBarsCSV_Empty(t *testing.T) {
	bars, err := ReadBarsCSV(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, bars)
}

func TestWriteThenLoadBarsCSV(t *testing.T) {
	bars := makeBars(5)
	var buf bytes.Buffer
	require.NoError(t, WriteBarsCSV(&buf, bars))

	path := filepath.Join(t.TempDir(), "bars.csv")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	loaded, err := LoadBarsFromCSV(path)
	require.NoError(t, err)
	assert.Equal(t, bars, loaded)

	barCh, errCh := StreamBarsFromCSV(context.Background(), path)
	var streamed market.Series
	for b := range barCh {
		streamed = append(streamed, b)
	}
	assert.NoError(t, <-errCh)
	assert.Equal(t, bars, streamed)

	_, err = LoadBarsFromCSV(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestInMemRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewInMemRepository()

	_, err := repo.FetchBars(ctx, "BTCUSDT", "1h", 10)
	assert.ErrorIs(t, err, ErrNoBars)

	bars := makeBars(10)
	require.NoError(t, repo.SaveBars(ctx, "BTCUSDT", "1h", bars[5:]))
	require.NoError(t, repo.SaveBars(ctx, "BTCUSDT", "1h", bars[:6]))

	got, err := repo.FetchBars(ctx, "BTCUSDT", "1h", 3)
	require.NoError(t, err)
	assert.Equal(t, bars[7:], got)

	all, err := repo.FetchBars(ctx, "BTCUSDT", "1h", 100)
	require.NoError(t, err)
	assert.Equal(t, bars, all)

	rng, err := repo.FetchRange(ctx, "BTCUSDT", "1h", t0.Add(2*time.Hour), t0.Add(4*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, bars[2:4], rng)

	repo.Clear()
	_, err = repo.FetchBars(ctx, "BTCUSDT", "1h", 1)
	assert.ErrorIs(t, err, ErrNoBars)
}

func TestReplaySource(t *testing.T) {
	ctx := context.Background()
	bars := makeBars(4)
	src := NewReplaySource(bars, 0)

	_, err := src.FetchBars(ctx, "", "", 10)
	assert.ErrorIs(t, err, ErrNoBars)

	for src.Advance() {
	}
	assert.Equal(t, 4, src.Visible())

	src = NewReplaySource(bars, 2)
	got, err := src.FetchBars(ctx, "", "", 10)
	require.NoError(t, err)
	assert.Equal(t, bars[:2], got)

	require.True(t, src.Advance())
	got, _ = src.FetchBars(ctx, "", "", 2)
	assert.Equal(t, bars[1:3], got)
}

func TestRetryingSource(t *testing.T) {
	ctx := context.Background()
	transient := errors.New("connection reset")

	calls := 0
	flaky := BarSourceFunc(func(ctx context.Context, symbol, timeframe string, count int) (market.Series, error) {
		calls++
		if calls < 3 {
			return nil, transient
		}
		return makeBars(count), nil
	})

	var delays []time.Duration
	src := NewRetryingSource(flaky, 3, 100*time.Millisecond, nil)
	src.sleep = func(ctx context.Context, d time.Duration) error {
		delays = append(delays, d)
		return nil
	}

	bars, err := src.FetchBars(ctx, "BTCUSDT", "1h", 5)
	require.NoError(t, err)
	assert.Len(t, bars, 5)
	assert.Equal(t, []time.Duration{100 * time.Millisecond, 200 * time.Millisecond}, delays)

	calls, delays = -10, nil
	_, err = src.FetchBars(ctx, "BTCUSDT", "1h", 5)
	assert.ErrorIs(t, err, transient)
	assert.Len(t, delays, 3)

	noBars := BarSourceFunc(func(context.Context, string, string, int) (market.Series, error) {
		return nil, ErrNoBars
	})
	delays = nil
	_, err = NewRetryingSource(noBars, 3, time.Millisecond, nil).FetchBars(ctx, "X", "1h", 1)
	assert.ErrorIs(t, err, ErrNoBars)
}

func TestRetryingSource_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	failing := BarSourceFunc(func(context.Context, string, string, int) (market.Series, error) {
		cancel()
		return nil, errors.New("timeout talking to exchange")
	})
	_, err := NewRetryingSource(failing, 5, time.Hour, nil).FetchBars(ctx, "X", "1h", 1)
	assert.Error(t, err)
}
