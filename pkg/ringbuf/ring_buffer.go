// Package ringbuf provides a fixed-capacity circular buffer.
package ringbuf

// RingBuffer holds the most recent values in a circular buffer.
// It is not safe for concurrent use; callers guard it themselves.
type RingBuffer[T any] struct {
	items []T
	size  int
	head  int // Points to the next available slot for writing
	count int // Number of elements currently in the buffer
}

// New creates a new RingBuffer with the given capacity.
func New[T any](size int) *RingBuffer[T] {
	if size <= 0 {
		panic("ring buffer size must be positive")
	}
	return &RingBuffer[T]{
		items: make([]T, size),
		size:  size,
	}
}

// Add appends v. If the buffer is full, the oldest value is overwritten.
func (rb *RingBuffer[T]) Add(v T) {
	rb.items[rb.head] = v
	rb.head = (rb.head + 1) % rb.size
	if rb.count < rb.size {
		rb.count++
	}
}

// Len returns the number of stored values.
func (rb *RingBuffer[T]) Len() int { return rb.count }

// Cap returns the buffer capacity.
func (rb *RingBuffer[T]) Cap() int { return rb.size }

// Last returns the newest value.
func (rb *RingBuffer[T]) Last() (T, bool) {
	var zero T
	if rb.count == 0 {
		return zero, false
	}
	return rb.items[(rb.head-1+rb.size)%rb.size], true
}

// Values returns a copy of the stored values, oldest first.
func (rb *RingBuffer[T]) Values() []T {
	result := make([]T, rb.count)
	if rb.count < rb.size {
		copy(result, rb.items[:rb.head])
		return result
	}
	copied := copy(result, rb.items[rb.head:])
	copy(result[copied:], rb.items[:rb.head])
	return result
}

// Reset drops every stored value.
func (rb *RingBuffer[T]) Reset() {
	var zero T
	for i := range rb.items {
		rb.items[i] = zero
	}
	rb.head, rb.count = 0, 0
}
