package evnet

// nextPow2Uint64 returns the smallest power of two >= v with a minimum of 1.
func nextPow2Uint64(v uint64) uint64 {
	if v == 0 {
		return 1
	}
	v--
	v |= v >> 1
	v |= v >> 2
	v |= v >> 4
	v |= v >> 8
	v |= v >> 16
	v |= v >> 32
	return v + 1
}

// ring is an unbounded FIFO backed by a power-of-two circular buffer that
// doubles its capacity when full. It is not safe for concurrent use; callers
// provide their own locking.
type ring[T any] struct {
	buf  []T    // underlying buffer array.
	mask uint64 // mask for index wrapping.
	head uint64 // next position to read from.
	tail uint64 // next position to write to.
}

// newRing creates a ring with initial capacity rounded up to a power of two.
func newRing[T any](size uint64) *ring[T] {
	c := nextPow2Uint64(size)
	return &ring[T]{
		buf:  make([]T, c),
		mask: c - 1,
	}
}

// enqueue appends an item, growing the buffer if it is full.
func (r *ring[T]) enqueue(item T) {
	if r.tail-r.head == uint64(len(r.buf)) {
		r.grow()
	}
	r.buf[r.tail&r.mask] = item
	r.tail++
}

// dequeue removes and returns the oldest item. It returns false if the ring
// is empty.
func (r *ring[T]) dequeue() (T, bool) {
	var zero T
	if r.tail == r.head {
		return zero, false
	}
	item := r.buf[r.head&r.mask]
	r.buf[r.head&r.mask] = zero // drop the reference so it can be collected.
	r.head++
	return item, true
}

// length returns the number of queued items.
func (r *ring[T]) length() int {
	return int(r.tail - r.head)
}

// capacity returns the current size of the underlying buffer.
func (r *ring[T]) capacity() int {
	return len(r.buf)
}

// grow doubles the buffer and repacks items starting at index zero.
func (r *ring[T]) grow() {
	next := make([]T, len(r.buf)*2)
	n := uint64(0)
	for i := r.head; i != r.tail; i++ {
		next[n] = r.buf[i&r.mask]
		n++
	}
	r.buf = next
	r.mask = uint64(len(next)) - 1
	r.head = 0
	r.tail = n
}
