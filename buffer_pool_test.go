package serialport

import "testing"

func TestBufferPoolGetPut(t *testing.T) {
	bp := NewBufferPool(256)

	buf := bp.Get()
	if len(buf) != 256 {
		t.Fatalf("expected 256-byte buffer, got %d", len(buf))
	}

	buf[0] = 0xFF
	bp.Put(buf)

	reused := bp.Get()
	if reused[0] != 0 {
		t.Fatal("returned buffer was not cleared")
	}

	stats := bp.Stats()
	if stats.Gets != 2 || stats.Puts != 1 {
		t.Fatalf("stats gets=%d puts=%d", stats.Gets, stats.Puts)
	}
}

func TestBufferPoolRejectsWrongSize(t *testing.T) {
	bp := NewBufferPool(256)

	bp.Put(make([]byte, 100))
	if stats := bp.Stats(); stats.Puts != 0 {
		t.Fatalf("wrong-sized buffer was pooled: puts=%d", stats.Puts)
	}
}

func TestPoolStatsHitRatio(t *testing.T) {
	if got := (PoolStats{}).HitRatio(); got != 0.0 {
		t.Fatalf("empty pool hit ratio %v, want 0", got)
	}

	ps := PoolStats{Gets: 4, Creates: 1}
	if got := ps.HitRatio(); got != 0.75 {
		t.Fatalf("hit ratio %v, want 0.75", got)
	}
}

func TestGetPooledBufferSizeClasses(t *testing.T) {
	tests := []struct {
		request int
		wantCap int
	}{
		{1, 256},
		{256, 256},
		{257, 1024},
		{1024, 1024},
		{1025, 4096},
		{4096, 4096},
	}

	bpm := NewBufferPoolManager(&Metrics{})
	for _, tt := range tests {
		buf, release := bpm.GetPooledBuffer(tt.request)
		if len(buf) != tt.wantCap {
			t.Fatalf("request %d: got %d-byte buffer, want %d", tt.request, len(buf), tt.wantCap)
		}
		release()
	}
}

func TestGetPooledBufferOversize(t *testing.T) {
	m := &Metrics{}
	bpm := NewBufferPoolManager(m)

	// Above the largest size class but under the hard cap: one-off
	// allocation.
	buf, release := bpm.GetPooledBuffer(8192)
	if buf == nil || len(buf) != 8192 {
		t.Fatalf("expected one-off allocation, got %d bytes", len(buf))
	}
	release()

	// Above the hard cap: refused.
	buf, release = bpm.GetPooledBuffer(AbsoluteMaxBufferSize + 1)
	if buf != nil {
		t.Fatal("expected nil buffer over the absolute cap")
	}
	release()

	if m.BufferPoolMisses.Load() != 2 {
		t.Fatalf("misses=%d, want 2", m.BufferPoolMisses.Load())
	}
}

func TestGetPooledBufferRecordsHits(t *testing.T) {
	m := &Metrics{}
	bpm := NewBufferPoolManager(m)

	buf, release := bpm.GetPooledBuffer(100)
	release()
	if buf == nil {
		t.Fatal("expected pooled buffer")
	}
	if m.BufferPoolHits.Load() != 1 {
		t.Fatalf("hits=%d, want 1", m.BufferPoolHits.Load())
	}

	stats := bpm.Stats()
	if len(stats) != 3 {
		t.Fatalf("expected stats for three pools, got %d", len(stats))
	}
	if stats[0].Gets != 1 {
		t.Fatalf("small pool gets=%d, want 1", stats[0].Gets)
	}
}

func TestBufferPoolManagerNilMetrics(t *testing.T) {
	bpm := NewBufferPoolManager(nil)

	buf, release := bpm.GetPooledBuffer(512)
	if buf == nil {
		t.Fatal("expected buffer")
	}
	release()
}
