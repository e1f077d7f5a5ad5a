package serialport

import (
	"sync/atomic"
	"time"
)

// Metrics tracks lifecycle and I/O statistics for one Port.
type Metrics struct {
	// Connection statistics
	ConnectionAttempts  atomic.Int64
	SuccessfulConnects  atomic.Int64
	ConnectionFailures  atomic.Int64
	Disconnections      atomic.Int64 // orderly closes and forced disconnects
	ForcedDisconnects   atomic.Int64 // unsolicited transport-level disconnects
	LastConnectTime     atomic.Int64 // unix seconds
	LastDisconnectTime  atomic.Int64 // unix seconds
	ConnectionStartTime atomic.Int64 // unix nanos of current session
	TotalUptime         atomic.Int64 // nanos across finished sessions

	// Write path
	WriteRequests   atomic.Int64 // logical Write calls resolved
	CoalescedWrites atomic.Int64 // batches that merged 2+ requests
	BindingWrites   atomic.Int64 // Binding.Write invocations
	WriteErrors     atomic.Int64
	BytesWritten    atomic.Int64
	QueueHighwater  atomic.Int64 // deepest the pending queue has been

	// Read path
	BytesRead atomic.Int64

	// Dispatch
	EventsEmitted atomic.Int64
	StateErrors   atomic.Int64 // operations rejected for bad state

	// Buffer pools
	BufferPoolHits   atomic.Int64
	BufferPoolMisses atomic.Int64
}

// MetricsSnapshot is a point-in-time copy of the counters, plus derived
// rates.
type MetricsSnapshot struct {
	ConnectionAttempts int64
	SuccessfulConnects int64
	ConnectionFailures int64
	Disconnections     int64
	ForcedDisconnects  int64
	LastConnectTime    int64
	LastDisconnectTime int64
	Uptime             time.Duration

	WriteRequests   int64
	CoalescedWrites int64
	BindingWrites   int64
	WriteErrors     int64
	BytesWritten    int64
	QueueHighwater  int64

	BytesRead int64

	EventsEmitted int64
	StateErrors   int64

	BufferPoolHitRatio float64

	ConnectionSuccessRate float64
	IsConnected           bool
}

func (m *Metrics) recordOpened() {
	m.SuccessfulConnects.Add(1)
	now := time.Now()
	m.LastConnectTime.Store(now.Unix())
	m.ConnectionStartTime.Store(now.UnixNano())
}

func (m *Metrics) recordClosed() {
	if start := m.ConnectionStartTime.Swap(0); start > 0 {
		m.TotalUptime.Add(time.Now().UnixNano() - start)
	}
	m.Disconnections.Add(1)
	m.LastDisconnectTime.Store(time.Now().Unix())
}

func (m *Metrics) recordQueueDepth(depth int) {
	for {
		hw := m.QueueHighwater.Load()
		if int64(depth) <= hw {
			return
		}
		if m.QueueHighwater.CompareAndSwap(hw, int64(depth)) {
			return
		}
	}
}

func (m *Metrics) connectionSuccessRate() float64 {
	attempts := m.ConnectionAttempts.Load()
	if attempts == 0 {
		return 100.0
	}
	return float64(m.SuccessfulConnects.Load()) / float64(attempts) * 100
}

func (m *Metrics) bufferPoolHitRatio() float64 {
	total := m.BufferPoolHits.Load() + m.BufferPoolMisses.Load()
	if total == 0 {
		return 100.0
	}
	return float64(m.BufferPoolHits.Load()) / float64(total) * 100
}

// snapshot assembles a MetricsSnapshot; connected reports whether a session
// is currently open, which drives the uptime figure.
func (m *Metrics) snapshot(connected bool) *MetricsSnapshot {
	uptime := m.TotalUptime.Load()
	if connected {
		if start := m.ConnectionStartTime.Load(); start > 0 {
			uptime += time.Now().UnixNano() - start
		}
	}

	return &MetricsSnapshot{
		ConnectionAttempts: m.ConnectionAttempts.Load(),
		SuccessfulConnects: m.SuccessfulConnects.Load(),
		ConnectionFailures: m.ConnectionFailures.Load(),
		Disconnections:     m.Disconnections.Load(),
		ForcedDisconnects:  m.ForcedDisconnects.Load(),
		LastConnectTime:    m.LastConnectTime.Load(),
		LastDisconnectTime: m.LastDisconnectTime.Load(),
		Uptime:             time.Duration(uptime),

		WriteRequests:   m.WriteRequests.Load(),
		CoalescedWrites: m.CoalescedWrites.Load(),
		BindingWrites:   m.BindingWrites.Load(),
		WriteErrors:     m.WriteErrors.Load(),
		BytesWritten:    m.BytesWritten.Load(),
		QueueHighwater:  m.QueueHighwater.Load(),

		BytesRead: m.BytesRead.Load(),

		EventsEmitted: m.EventsEmitted.Load(),
		StateErrors:   m.StateErrors.Load(),

		BufferPoolHitRatio: m.bufferPoolHitRatio(),

		ConnectionSuccessRate: m.connectionSuccessRate(),
		IsConnected:           connected,
	}
}
