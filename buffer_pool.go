package serialport

import (
	"sync"
	"sync/atomic"
)

const (
	// AbsoluteMaxBufferSize is a hard cap on any single allocation, pooled
	// or not, to keep a runaway write queue from exhausting memory.
	AbsoluteMaxBufferSize = 1024 * 1024

	// readBufferSize is the reader loop's chunk size.
	readBufferSize = 1024
)

// BufferPool manages reusable fixed-size byte buffers.
type BufferPool struct {
	pool sync.Pool
	size int

	gets    atomic.Int64
	puts    atomic.Int64
	creates atomic.Int64
}

// NewBufferPool creates a buffer pool with fixed-size buffers.
func NewBufferPool(bufferSize int) *BufferPool {
	bp := &BufferPool{
		size: bufferSize,
	}
	bp.pool = sync.Pool{
		New: func() interface{} {
			bp.creates.Add(1)
			return make([]byte, bufferSize)
		},
	}
	return bp
}

// Get retrieves a buffer from the pool.
func (bp *BufferPool) Get() []byte {
	bp.gets.Add(1)
	return bp.pool.Get().([]byte)
}

// Put returns a buffer to the pool, clearing it first.
func (bp *BufferPool) Put(buf []byte) {
	if len(buf) != bp.size {
		return // don't pool incorrectly sized buffers
	}
	bp.puts.Add(1)

	clear(buf)
	bp.pool.Put(buf)
}

// Stats returns pool usage statistics.
func (bp *BufferPool) Stats() PoolStats {
	return PoolStats{
		Size:    bp.size,
		Gets:    bp.gets.Load(),
		Puts:    bp.puts.Load(),
		Creates: bp.creates.Load(),
	}
}

// PoolStats contains buffer pool usage statistics.
type PoolStats struct {
	Size    int
	Gets    int64
	Puts    int64
	Creates int64
}

// HitRatio returns the cache hit ratio (0.0 to 1.0).
func (ps PoolStats) HitRatio() float64 {
	if ps.Gets == 0 {
		return 0.0
	}
	return 1.0 - (float64(ps.Creates) / float64(ps.Gets))
}

// BufferPoolManager serves size-classed buffers for one Port: the reader
// loop's chunk buffer and the coalescing scratch space for write batches.
type BufferPoolManager struct {
	smallPool  *BufferPool // 256 bytes
	mediumPool *BufferPool // 1024 bytes
	largePool  *BufferPool // 4096 bytes
	metrics    *Metrics
}

// NewBufferPoolManager creates a pool manager reporting hits and misses to
// the given metrics.
func NewBufferPoolManager(metrics *Metrics) *BufferPoolManager {
	return &BufferPoolManager{
		smallPool:  NewBufferPool(256),
		mediumPool: NewBufferPool(1024),
		largePool:  NewBufferPool(4096),
		metrics:    metrics,
	}
}

// GetPooledBuffer returns a buffer with at least size bytes of capacity and
// a release function. Requests above AbsoluteMaxBufferSize return nil;
// requests above the largest size class are allocated outside the pools.
func (bpm *BufferPoolManager) GetPooledBuffer(size int) ([]byte, func()) {
	if size > AbsoluteMaxBufferSize {
		bpm.recordMiss()
		return nil, func() {}
	}

	var bp *BufferPool
	switch {
	case size <= 256:
		bp = bpm.smallPool
	case size <= 1024:
		bp = bpm.mediumPool
	case size <= 4096:
		bp = bpm.largePool
	default:
		bpm.recordMiss()
		return make([]byte, size), func() {}
	}

	bpm.recordHit()
	buf := bp.Get()
	return buf, func() { bp.Put(buf[:cap(buf)]) }
}

// Stats returns statistics for every pool, smallest first.
func (bpm *BufferPoolManager) Stats() []PoolStats {
	return []PoolStats{
		bpm.smallPool.Stats(),
		bpm.mediumPool.Stats(),
		bpm.largePool.Stats(),
	}
}

func (bpm *BufferPoolManager) recordHit() {
	if bpm.metrics != nil {
		bpm.metrics.BufferPoolHits.Add(1)
	}
}

func (bpm *BufferPoolManager) recordMiss() {
	if bpm.metrics != nil {
		bpm.metrics.BufferPoolMisses.Add(1)
	}
}
