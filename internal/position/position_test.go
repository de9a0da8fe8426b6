package position

import (
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func mustNew(t *testing.T, side Side, entry, qty, stop float64) *Position {
	t.Helper()
	p, err := New("BTCUSDT", side, entry, qty, stop, 0, t0)
	require.NoError(t, err)
	return p
}

func TestNew_RejectsInvalidFill(t *testing.T) {
	_, err := New("BTCUSDT", Long, 0, 1, 0, 0, t0)
	assert.ErrorIs(t, err, ErrInvalidFill)
	_, err = New("BTCUSDT", Long, 100, -1, 0, 0, t0)
	assert.ErrorIs(t, err, ErrInvalidFill)
}

func TestPosition_AddAndReduce(t *testing.T) {
	p := mustNew(t, Long, 100, 1, 98)
	require.NoError(t, p.Add(1, 110))

	qty, entry := p.Get()
	assert.InDelta(t, 2.0, qty, 1e-9)
	assert.InDelta(t, 105.0, entry, 1e-9)

	closed, pnl := p.Reduce(0.5, 115)
	assert.InDelta(t, 0.5, closed, 1e-9)
	assert.InDelta(t, 5.0, pnl, 1e-9)

	closed, pnl = p.Reduce(10, 100)
	assert.InDelta(t, 1.5, closed, 1e-9)
	assert.InDelta(t, -7.5, pnl, 1e-9)

	closed, _ = p.Reduce(1, 100)
	assert.Zero(t, closed)
}

func TestPosition_ShortPnL(t *testing.T) {
	p := mustNew(t, Short, 100, 2, 102)
	assert.InDelta(t, 10.0, p.UnrealizedPnL(95), 1e-9)
	_, pnl := p.Reduce(2, 103)
	assert.InDelta(t, -6.0, pnl, 1e-9)
}

func TestTightenStop(t *testing.T) {
	long := mustNew(t, Long, 100, 1, 98)
	assert.False(t, long.TightenStop(97))
	assert.True(t, long.TightenStop(99))
	assert.InDelta(t, 99.0, long.Stop(), 1e-9)

	short := mustNew(t, Short, 100, 1, 102)
	assert.False(t, short.TightenStop(103))
	assert.True(t, short.TightenStop(101))

	none := mustNew(t, Long, 100, 1, 0)
	assert.True(t, none.TightenStop(95))
	assert.False(t, none.TightenStop(0))
}

func TestRatchet_Long(t *testing.T) {
	p := mustNew(t, Long, 100, 1, 98)

	stop, moved := p.Ratchet(100.5, 0.015, 0.01)
	assert.False(t, moved, "below activation")
	assert.InDelta(t, 98.0, stop, 1e-9)

	stop, moved = p.Ratchet(102, 0.015, 0.01)
	assert.True(t, moved)
	assert.InDelta(t, 100.47, stop, 1e-9)
	assert.True(t, p.Snapshot().Trailing.Active)

	stop, moved = p.Ratchet(101, 0.015, 0.01)
	assert.False(t, moved)
	assert.InDelta(t, 100.47, stop, 1e-9)

	stop, _ = p.Ratchet(104, 0.015, 0.01)
	assert.InDelta(t, 102.44, stop, 1e-9)
}

func TestRatchet_Short(t *testing.T) {
	p := mustNew(t, Short, 100, 1, 102)
	stop, moved := p.Ratchet(98, 0.015, 0.01)
	assert.True(t, moved)
	assert.InDelta(t, 99.47, stop, 1e-9)

	_, moved = p.Ratchet(99, 0.015, 0.01)
	assert.False(t, moved)
}

func TestRatchet_ConcurrentUpdatesOnlyTighten(t *testing.T) {
	p := mustNew(t, Long, 100, 1, 95)
	rng := rand.New(rand.NewSource(7))
	prices := make([]float64, 2000)
	for i := range prices {
		prices[i] = 95 + rng.Float64()*20
	}

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen []float64
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := w; i < len(prices); i += 8 {
				stop, _ := p.Ratchet(prices[i], 0.02, 0)
				mu.Lock()
				seen = append(seen, stop)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()

	best := 0.0
	for _, price := range prices {
		best = max(best, price)
	}
	assert.InDelta(t, best*0.98, p.Stop(), 1e-9)
	for _, s := range seen {
		assert.LessOrEqual(t, s, p.Stop())
		assert.GreaterOrEqual(t, s, 95.0)
	}
}
