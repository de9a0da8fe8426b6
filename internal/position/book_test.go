package position

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBook_OnePerSymbol(t *testing.T) {
	b := NewBook(0)
	btc := mustNew(t, Long, 100, 1, 98)
	require.NoError(t, b.Open(btc))

	err := b.Open(mustNew(t, Short, 101, 1, 103))
	assert.ErrorIs(t, err, ErrPositionLimit)

	eth, err := New("ETHUSDT", Short, 10, 3, 11, 8, t0)
	require.NoError(t, err)
	require.NoError(t, b.Open(eth))
	assert.Equal(t, 2, b.Len())

	snaps := b.Snapshots()
	require.Len(t, snaps, 2)
	assert.Equal(t, "BTCUSDT", snaps[0].Symbol)
	assert.Equal(t, "ETHUSDT", snaps[1].Symbol)

	got, ok := b.Get("BTCUSDT")
	require.True(t, ok)
	assert.Same(t, btc, got)

	assert.True(t, b.Remove(btc))
	assert.False(t, b.Remove(btc))
	_, ok = b.Get("BTCUSDT")
	assert.False(t, ok)
	assert.Equal(t, 1, b.Len())
}

func TestBook_MultiplePerSymbol(t *testing.T) {
	b := NewBook(2)
	require.NoError(t, b.Open(mustNew(t, Long, 100, 1, 98)))
	require.NoError(t, b.Open(mustNew(t, Long, 101, 1, 99)))
	assert.ErrorIs(t, b.Open(mustNew(t, Long, 102, 1, 100)), ErrPositionLimit)
	assert.Len(t, b.All(), 2)
}
