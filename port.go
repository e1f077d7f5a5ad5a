package serialport

import (
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.uber.org/atomic"
)

// State is the connection lifecycle state of a Port. Exactly one state is
// active at a time; IsOpen and Opening are derived views, never stored
// separately.
type State int32

const (
	StateClosed State = iota
	StateOpening
	StateOpen
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpening:
		return "opening"
	case StateOpen:
		return "open"
	case StateClosing:
		return "closing"
	}
	return "unknown"
}

// Port owns one Binding instance and drives its lifecycle: it validates
// state transitions, queues and coalesces writes, and reports every
// operation's outcome through exactly one of the supplied callback or an
// emitted event.
//
// Callbacks and event listeners for operations that reach the Binding run
// on the port's dispatch goroutine, one at a time, in operation order.
// State rejections resolve immediately on their own goroutine, so they are
// never held up by an in-flight Binding call. Either way, a callback may
// call back into the Port.
type Port struct {
	binding Binding
	path    string

	mu       sync.Mutex
	settings Settings
	queue    writeQueue
	state    atomic.Int32

	// Reader session; replaced on every successful open.
	readerStop chan struct{}
	readerDone chan struct{}

	// Dispatch queue. A single worker goroutine drains opFns in order and
	// exits when the queue is empty.
	opMu      sync.Mutex
	opFns     []func()
	opRunning bool

	handlers eventHandlers
	metrics  *Metrics
	pool     *BufferPoolManager
	logger   zerolog.Logger
}

// New constructs a Port over the given Binding. A nil settings pointer
// selects DefaultSettings. Validation failures are returned synchronously,
// before any I/O is attempted.
//
// With AutoOpen set (the default), the open sequence starts immediately and
// asynchronously; openCb, if non-nil, receives its outcome. Without
// AutoOpen, openCb is ignored and the caller invokes Open itself.
func New(binding Binding, path string, settings *Settings, openCb Callback) (*Port, error) {
	if binding == nil {
		return nil, ErrNoBinding
	}
	if path == "" {
		return nil, newValidationError("path is required")
	}

	s := DefaultSettings()
	if settings != nil {
		s = *settings
		s.normalize()
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}

	p := &Port{
		binding:  binding,
		path:     path,
		settings: s,
		metrics:  &Metrics{},
		logger:   zerolog.Nop(),
	}
	if s.Logger != nil {
		p.logger = s.Logger.With().Str("port", path).Logger()
	}
	p.pool = NewBufferPoolManager(p.metrics)
	p.state.Store(int32(StateClosed))

	if s.AutoOpen {
		p.Open(openCb)
	}
	return p, nil
}

// Path returns the device path the port was constructed with.
func (p *Port) Path() string {
	return p.path
}

// BaudRate returns the last baud rate accepted by construction or Update.
func (p *Port) BaudRate() BaudRate {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settings.BaudRate
}

// Settings returns a snapshot of the active configuration.
func (p *Port) Settings() Settings {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.settings
}

// State returns the current lifecycle state.
func (p *Port) State() State {
	return State(p.state.Load())
}

// IsOpen reports whether the port is Open.
func (p *Port) IsOpen() bool {
	return p.State() == StateOpen
}

// Opening reports whether an open is in flight.
func (p *Port) Opening() bool {
	return p.State() == StateOpening
}

// Corked reports whether writes are currently being held back by Cork.
func (p *Port) Corked() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.queue.corkDepth > 0
}

// MetricsSnapshot returns a point-in-time copy of the port's counters.
func (p *Port) MetricsSnapshot() *MetricsSnapshot {
	return p.metrics.snapshot(p.IsOpen())
}

// BufferPoolStats returns buffer pool statistics for this Port.
func (p *Port) BufferPoolStats() []PoolStats {
	return p.pool.Stats()
}

func (p *Port) setStateLocked(st State) {
	prev := State(p.state.Swap(int32(st)))
	if prev != st {
		p.logger.Debug().Stringer("from", prev).Stringer("to", st).Msg("state transition")
	}
}

// dispatch appends fn to the operation queue and makes sure a worker is
// draining it. Never blocks.
func (p *Port) dispatch(fn func()) {
	p.opMu.Lock()
	p.opFns = append(p.opFns, fn)
	if !p.opRunning {
		p.opRunning = true
		go p.runOps()
	}
	p.opMu.Unlock()
}

// runOps is the port's single logical thread of control: it executes queued
// operations and event deliveries one at a time, in arrival order.
func (p *Port) runOps() {
	for {
		p.opMu.Lock()
		if len(p.opFns) == 0 {
			p.opRunning = false
			p.opMu.Unlock()
			return
		}
		fn := p.opFns[0]
		p.opFns = p.opFns[1:]
		p.opMu.Unlock()

		fn()
	}
}

// Open starts the open sequence. A second open while one is in flight, or
// while the port is already open, fails immediately without reaching the
// Binding.
func (p *Port) Open(cb Callback) {
	p.metrics.ConnectionAttempts.Add(1)

	p.mu.Lock()
	var serr error
	switch p.State() {
	case StateOpening:
		serr = ErrPortOpening
	case StateOpen:
		serr = ErrPortAlreadyOpen
	case StateClosing:
		serr = ErrPortClosing
	}
	if serr != nil {
		p.mu.Unlock()
		p.metrics.StateErrors.Add(1)
		p.metrics.ConnectionFailures.Add(1)
		p.complete(cb, serr)
		return
	}
	p.setStateLocked(StateOpening)
	p.mu.Unlock()

	p.dispatch(func() { p.doOpen(cb) })
}

func (p *Port) doOpen(cb Callback) {
	p.mu.Lock()
	settings := p.settings
	p.mu.Unlock()

	if err := p.binding.Open(p.path, settings); err != nil {
		p.mu.Lock()
		p.setStateLocked(StateClosed)
		failed := p.queue.takeAll()
		p.mu.Unlock()

		terr := &TransportError{Op: "open", Err: err}
		p.metrics.ConnectionFailures.Add(1)
		p.failBatch(failed, terr)
		p.completeNow(cb, terr)
		return
	}

	p.mu.Lock()
	p.setStateLocked(StateOpen)
	var batch writeBatch
	if p.queue.corkDepth == 0 {
		batch = p.queue.takeAll()
	}
	p.mu.Unlock()

	p.metrics.recordOpened()
	p.startReader()

	// Writes queued while the port was closed go out first, as one
	// coalesced write.
	if !batch.empty() {
		p.sendBatch(batch)
	}
	p.completeNow(cb, nil)
	p.emitOpen()
}

// Close starts the close sequence. It requires an Open port; open and close
// are serialized against each other by the state checks.
func (p *Port) Close(cb Callback) {
	p.mu.Lock()
	if p.State() != StateOpen {
		p.mu.Unlock()
		p.metrics.StateErrors.Add(1)
		p.complete(cb, ErrPortNotOpen)
		return
	}
	p.setStateLocked(StateClosing)
	p.mu.Unlock()

	p.dispatch(func() { p.doClose(cb) })
}

func (p *Port) doClose(cb Callback) {
	if err := p.binding.Close(); err != nil {
		p.mu.Lock()
		p.setStateLocked(StateOpen)
		p.mu.Unlock()
		p.completeNow(cb, &TransportError{Op: "close", Err: err})
		return
	}

	// Closing the handle unblocked the reader; its exit must not read as
	// a disconnect, which the state check in handleDisconnect ensures.
	p.stopReader()

	p.mu.Lock()
	p.setStateLocked(StateClosed)
	failed := p.queue.takeAll()
	p.mu.Unlock()

	p.metrics.recordClosed()
	p.failBatch(failed, ErrPortNotOpen)
	p.completeNow(cb, nil)
	p.emitClose()
}

// Write queues data for transmission. While the port is corked, closed or
// still opening, the write is buffered and sent later as part of one
// coalesced write; the callback resolves when that underlying write does.
// A write during an in-flight close fails with ErrPortNotOpen.
func (p *Port) Write(data []byte, cb Callback) {
	buf := make([]byte, len(data))
	copy(buf, data)

	p.mu.Lock()
	st := p.State()
	if st == StateClosing {
		p.mu.Unlock()
		p.metrics.StateErrors.Add(1)
		p.complete(cb, ErrPortNotOpen)
		return
	}
	if p.queue.corkDepth > 0 || st != StateOpen {
		p.queue.push(buf, cb)
		depth := p.queue.depth()
		p.mu.Unlock()
		p.metrics.recordQueueDepth(depth)
		return
	}
	p.queue.push(buf, cb)
	batch := p.queue.takeAll()
	p.mu.Unlock()

	p.dispatch(func() { p.sendBatch(batch) })
}

// WriteString writes the raw bytes of s.
func (p *Port) WriteString(s string, cb Callback) {
	p.Write([]byte(s), cb)
}

// sendBatch issues one coalesced Binding write for the batch and fans the
// single result out to every queued callback. Dispatch goroutine only.
func (p *Port) sendBatch(batch writeBatch) {
	if batch.empty() {
		return
	}

	p.mu.Lock()
	if p.State() != StateOpen {
		// Raced by a close or disconnect. Requeue; the batch resolves
		// when the port's fate does.
		p.queue.pushFront(batch)
		p.mu.Unlock()
		return
	}
	p.mu.Unlock()

	data, release := batch.coalesce(p.pool)
	if data == nil {
		p.failBatch(batch, newValidationError("write batch exceeds %d bytes", AbsoluteMaxBufferSize))
		return
	}
	if len(batch.writes) > 1 {
		p.metrics.CoalescedWrites.Add(1)
	}

	var werr error
	written := 0
	const maxRetries = 3
	for retries := 0; written < len(data) && retries < maxRetries; retries++ {
		n, err := p.binding.Write(data[written:])
		if err != nil {
			werr = &TransportError{Op: "write", Err: err}
			break
		}
		written += n
		if n == 0 {
			break
		}
	}
	release()

	p.metrics.BindingWrites.Add(1)
	p.metrics.BytesWritten.Add(int64(written))
	if werr == nil && written < len(data) {
		werr = &TransportError{Op: "write", Err: errPartialWrite}
	}

	for _, w := range batch.writes {
		p.metrics.WriteRequests.Add(1)
		if werr != nil {
			p.metrics.WriteErrors.Add(1)
		}
		p.completeNow(w.cb, werr)
	}
}

// failBatch resolves every queued write with err. Dispatch goroutine only.
func (p *Port) failBatch(b writeBatch, err error) {
	for _, w := range b.writes {
		p.metrics.WriteRequests.Add(1)
		p.metrics.WriteErrors.Add(1)
		p.completeNow(w.cb, err)
	}
}

// Cork holds back all writes, regardless of connection state, until a
// matching Uncork. Cork calls nest.
func (p *Port) Cork() {
	p.mu.Lock()
	p.queue.corkDepth++
	p.mu.Unlock()
}

// Uncork releases one level of cork. When the depth reaches zero on an open
// port, everything queued goes out as one coalesced write. Uncork without a
// matching Cork is a no-op.
func (p *Port) Uncork() {
	p.mu.Lock()
	if p.queue.corkDepth == 0 {
		p.mu.Unlock()
		return
	}
	p.queue.corkDepth--
	if p.queue.corkDepth > 0 || p.State() != StateOpen {
		p.mu.Unlock()
		return
	}
	batch := p.queue.takeAll()
	p.mu.Unlock()

	if !batch.empty() {
		p.dispatch(func() { p.sendBatch(batch) })
	}
}

// Update applies a changed line configuration to an open port. Malformed
// options and a missing callback are programmer errors and fail
// synchronously; everything else resolves through cb. On success the
// settings snapshot reflects the new configuration before cb fires.
func (p *Port) Update(opts *UpdateOptions, cb Callback) error {
	if err := validateUpdate(opts); err != nil {
		return err
	}
	if cb == nil {
		return newValidationError("update requires a completion callback")
	}

	if p.State() != StateOpen {
		p.metrics.StateErrors.Add(1)
		p.complete(cb, ErrPortNotOpen)
		return nil
	}

	o := *opts
	p.dispatch(func() { p.doUpdate(o, cb) })
	return nil
}

func (p *Port) doUpdate(opts UpdateOptions, cb Callback) {
	if p.State() != StateOpen {
		p.completeNow(cb, ErrPortNotOpen)
		return
	}

	p.mu.Lock()
	next := p.settings
	p.mu.Unlock()
	next.BaudRate = opts.BaudRate

	if err := p.binding.Update(next); err != nil {
		p.completeNow(cb, &TransportError{Op: "update", Err: err})
		return
	}

	p.mu.Lock()
	p.settings.BaudRate = opts.BaudRate
	p.mu.Unlock()
	p.logger.Debug().Int("baud", opts.BaudRate.Int()).Msg("line configuration updated")
	p.completeNow(cb, nil)
}

// Set drives the output control lines of an open port. Fields omitted from
// flags fall back to the line defaults, not to the previously applied
// values. A nil flags value is a programmer error and fails synchronously.
func (p *Port) Set(flags *SetFlags, cb Callback) error {
	if flags == nil {
		return newValidationError("set requires a flags value")
	}
	resolved := flags.resolve()

	if p.State() != StateOpen {
		p.metrics.StateErrors.Add(1)
		p.complete(cb, ErrPortNotOpen)
		return nil
	}

	p.dispatch(func() {
		if p.State() != StateOpen {
			p.completeNow(cb, ErrPortNotOpen)
			return
		}
		if err := p.binding.Set(resolved); err != nil {
			p.completeNow(cb, &TransportError{Op: "set", Err: err})
			return
		}
		p.completeNow(cb, nil)
	})
	return nil
}

// Get samples the input control lines of an open port.
func (p *Port) Get(cb StatusCallback) error {
	if cb == nil {
		return newValidationError("get requires a completion callback")
	}

	if p.State() != StateOpen {
		p.metrics.StateErrors.Add(1)
		go cb(ModemStatus{}, ErrPortNotOpen)
		return nil
	}

	p.dispatch(func() {
		if p.State() != StateOpen {
			cb(ModemStatus{}, ErrPortNotOpen)
			return
		}
		status, err := p.binding.Get()
		if err != nil {
			cb(ModemStatus{}, &TransportError{Op: "get", Err: err})
			return
		}
		cb(status, nil)
	})
	return nil
}

// Flush discards buffered data on an open port.
func (p *Port) Flush(cb Callback) {
	p.passthrough("flush", p.binding.Flush, cb)
}

// Drain blocks the operation queue until buffered output has left an open
// port.
func (p *Port) Drain(cb Callback) {
	p.passthrough("drain", p.binding.Drain, cb)
}

func (p *Port) passthrough(op string, fn func() error, cb Callback) {
	if p.State() != StateOpen {
		p.metrics.StateErrors.Add(1)
		p.complete(cb, ErrPortNotOpen)
		return
	}

	p.dispatch(func() {
		if p.State() != StateOpen {
			p.completeNow(cb, ErrPortNotOpen)
			return
		}
		if err := fn(); err != nil {
			p.completeNow(cb, &TransportError{Op: op, Err: err})
			return
		}
		p.completeNow(cb, nil)
	})
}

// startReader begins a reader session for the current open session.
func (p *Port) startReader() {
	stop := make(chan struct{})
	done := make(chan struct{})
	p.mu.Lock()
	p.readerStop = stop
	p.readerDone = done
	p.mu.Unlock()

	go p.readerLoop(stop, done)
}

// stopReader signals the current reader session and waits briefly for it to
// drain. The binding handle is already torn down at this point, which is
// what unblocks an in-flight Read.
func (p *Port) stopReader() {
	p.mu.Lock()
	stop, done := p.readerStop, p.readerDone
	p.readerStop, p.readerDone = nil, nil
	p.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	select {
	case <-done:
	case <-time.After(100 * time.Millisecond):
	}
}

// readerLoop pulls incoming bytes from the Binding and emits them as data
// events. A read error while the port is still Open is an unsolicited
// disconnect.
func (p *Port) readerLoop(stop, done chan struct{}) {
	defer close(done)

	buf, release := p.pool.GetPooledBuffer(readBufferSize)
	defer release()

	for {
		select {
		case <-stop:
			return
		default:
		}

		n, err := p.binding.Read(buf)
		if err != nil {
			select {
			case <-stop:
			default:
				p.handleDisconnect(err)
			}
			return
		}
		if n == 0 {
			continue
		}

		chunk := make([]byte, n)
		copy(chunk, buf[:n])
		p.metrics.BytesRead.Add(int64(n))
		p.dispatch(func() { p.emitData(chunk) })
	}
}

// handleDisconnect forces the port Closed and emits disconnect then close,
// exactly once. On a port that is no longer Open it does nothing, so a
// disconnect racing an orderly close cannot double-emit.
func (p *Port) handleDisconnect(cause error) {
	p.dispatch(func() {
		p.mu.Lock()
		if p.State() != StateOpen {
			p.mu.Unlock()
			return
		}
		p.setStateLocked(StateClosed)
		failed := p.queue.takeAll()
		p.readerStop, p.readerDone = nil, nil
		p.mu.Unlock()

		p.logger.Debug().Err(cause).Msg("disconnect")
		_ = p.binding.Close() // release the dead handle, best effort

		p.metrics.ForcedDisconnects.Add(1)
		p.metrics.recordClosed()
		p.failBatch(failed, ErrPortNotOpen)
		p.emitDisconnect()
		p.emitClose()
	})
}
