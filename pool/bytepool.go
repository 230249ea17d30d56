// File: pool/bytepool.go
// Author: momentics <momentics@gmail.com>

package pool

import "sync"

// DefaultChunkSize is the scratch size used for one non-blocking read.
const DefaultChunkSize = 4096

// BytePool hands out fixed-size scratch slices.
type BytePool struct {
	pool sync.Pool
	size int
}

// NewBytePool creates a pool of size-byte buffers.
func NewBytePool(size int) *BytePool {
	if size <= 0 {
		size = DefaultChunkSize
	}
	p := &BytePool{size: size}
	p.pool.New = func() any {
		b := make([]byte, size)
		return &b
	}
	return p
}

// Size returns the length of every buffer handed out.
func (b *BytePool) Size() int { return b.size }

// GetBuffer returns a buffer from the pool.
func (b *BytePool) GetBuffer() *[]byte {
	return b.pool.Get().(*[]byte)
}

// PutBuffer returns a buffer to the pool. Foreign-sized buffers are dropped.
func (b *BytePool) PutBuffer(buf *[]byte) {
	if buf == nil || len(*buf) != b.size {
		return
	}
	b.pool.Put(buf)
}

var defaultPool = NewBytePool(DefaultChunkSize)

// Default returns the process-wide read scratch pool.
func Default() *BytePool { return defaultPool }
