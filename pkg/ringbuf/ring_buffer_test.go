package ringbuf

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_PanicsOnNonPositiveSize(t *testing.T) {
	assert.Panics(t, func() { New[int](0) })
}

func TestRingBuffer_AddAndWrap(t *testing.T) {
	rb := New[int](3)
	_, ok := rb.Last()
	assert.False(t, ok)
	assert.Empty(t, rb.Values())

	rb.Add(1)
	rb.Add(2)
	assert.Equal(t, []int{1, 2}, rb.Values())
	assert.Equal(t, 2, rb.Len())

	rb.Add(3)
	rb.Add(4) // overwrites 1
	assert.Equal(t, []int{2, 3, 4}, rb.Values())
	assert.Equal(t, 3, rb.Len())
	assert.Equal(t, 3, rb.Cap())

	last, ok := rb.Last()
	assert.True(t, ok)
	assert.Equal(t, 4, last)
}

func TestRingBuffer_Reset(t *testing.T) {
	rb := New[string](2)
	rb.Add("a")
	rb.Add("b")
	rb.Reset()
	assert.Equal(t, 0, rb.Len())
	rb.Add("c")
	assert.Equal(t, []string{"c"}, rb.Values())
}
