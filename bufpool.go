package evnet

import (
	"sync"
)

const (
	// minBufferSize is the smallest pooled buffer size.
	minBufferSize = 32

	// maxBufferSize is the largest buffer size that will be pooled.
	maxBufferSize = 64 * 1024
)

// bufferPool hands out size-classed byte slices so receive loops can reuse
// their read buffers instead of allocating per connection or datagram.
type bufferPool struct {
	pools []*sync.Pool
}

// Global buffer pool instance.
var globalBufferPool = newBufferPool()

// newBufferPool creates pools for sizes from minBufferSize to maxBufferSize.
func newBufferPool() *bufferPool {
	bp := &bufferPool{}

	for size := minBufferSize; size <= maxBufferSize; size <<= 1 {
		size := size
		bp.pools = append(bp.pools, &sync.Pool{
			New: func() any {
				return make([]byte, size)
			},
		})
	}

	return bp
}

// classFor returns the pool index whose buffer size is >= size, or -1 when
// the size is too large to pool.
func (bp *bufferPool) classFor(size int) int {
	idx := 0
	poolSize := minBufferSize
	for poolSize < size {
		poolSize <<= 1
		idx++
	}
	if poolSize > maxBufferSize {
		return -1
	}
	return idx
}

// getBuffer retrieves a buffer with a length of at least size bytes.
func (bp *bufferPool) getBuffer(size int) []byte {
	idx := bp.classFor(size)
	if idx < 0 {
		return make([]byte, size)
	}
	return bp.pools[idx].Get().([]byte)
}

// putBuffer returns a buffer to its size class. Oversized buffers are
// dropped for the collector.
func (bp *bufferPool) putBuffer(buf []byte) {
	c := cap(buf)
	if c < minBufferSize || c > maxBufferSize || c&(c-1) != 0 {
		return
	}
	idx := bp.classFor(c)
	bp.pools[idx].Put(buf[:c])
}

// GetBuffer retrieves a reusable buffer with a length of at least size
// bytes from the global pool.
func GetBuffer(size int) []byte {
	return globalBufferPool.getBuffer(size)
}

// PutBuffer returns a buffer obtained from GetBuffer to the global pool.
func PutBuffer(buf []byte) {
	globalBufferPool.putBuffer(buf)
}
