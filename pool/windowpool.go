// File: pool/windowpool.go
// Author: momentics <momentics@gmail.com>
//
// WindowPool recycles the fixed-capacity byte slices backing each
// Connection's RX/TX windows. Adapted from the buffer-pool
// library's NUMA-segmented BufferPoolManager (pool/bufferpool.go,
// pool/base_bufferpool.go): this reactor is single-threaded and
// outbound-only, so the NUMA-node keying and per-node channel map
// collapse to one pool keyed by window capacity, backed by sync.Pool
// instead of a hand-rolled buffered channel, the same
// pattern that library itself falls back on when there is only one
// allocation class to serve.
package pool

import "sync"

// WindowPool hands out and reclaims fixed-size []byte windows.
type WindowPool struct {
	size int
	pool sync.Pool
}

// NewWindowPool creates a pool that only ever serves slices of length
// size; callers use them at that full length.
func NewWindowPool(size int) *WindowPool {
	wp := &WindowPool{size: size}
	wp.pool.New = func() any {
		return make([]byte, size)
	}
	return wp
}

// Get returns a window of exactly wp.size bytes length.
func (wp *WindowPool) Get() []byte {
	buf := wp.pool.Get().([]byte)
	return buf[:wp.size]
}

// Put returns a window to the pool. The caller must not use buf
// afterwards.
func (wp *WindowPool) Put(buf []byte) {
	if cap(buf) < wp.size {
		return
	}
	wp.pool.Put(buf[:wp.size])
}
