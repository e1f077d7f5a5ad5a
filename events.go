package serialport

import "sync"

// Callback is the completion callback for port operations. A nil error
// means the operation succeeded.
type Callback func(err error)

// StatusCallback is the completion callback for Get.
type StatusCallback func(status ModemStatus, err error)

// eventHandlers fans port events out to registered listeners. Registration
// can happen from any goroutine; dispatch happens only on the port's
// dispatch goroutine, so listeners observe events in order.
type eventHandlers struct {
	mu         sync.Mutex
	open       []func()
	closed     []func()
	data       []func([]byte)
	disconnect []func()
	err        []func(error)
}

// OnOpen registers a listener for the open event.
func (p *Port) OnOpen(fn func()) {
	p.handlers.mu.Lock()
	defer p.handlers.mu.Unlock()
	p.handlers.open = append(p.handlers.open, fn)
}

// OnClose registers a listener for the close event. It fires after a
// successful Close and after a forced close caused by a disconnect.
func (p *Port) OnClose(fn func()) {
	p.handlers.mu.Lock()
	defer p.handlers.mu.Unlock()
	p.handlers.closed = append(p.handlers.closed, fn)
}

// OnData registers a listener for incoming bytes. The slice is owned by the
// listener set for the duration of the call; copy it to retain it.
func (p *Port) OnData(fn func(chunk []byte)) {
	p.handlers.mu.Lock()
	defer p.handlers.mu.Unlock()
	p.handlers.data = append(p.handlers.data, fn)
}

// OnDisconnect registers a listener for unsolicited disconnects. A
// disconnect is always followed by a close event.
func (p *Port) OnDisconnect(fn func()) {
	p.handlers.mu.Lock()
	defer p.handlers.mu.Unlock()
	p.handlers.disconnect = append(p.handlers.disconnect, fn)
}

// OnError registers a listener for operation failures that had no
// completion callback to report to.
func (p *Port) OnError(fn func(err error)) {
	p.handlers.mu.Lock()
	defer p.handlers.mu.Unlock()
	p.handlers.err = append(p.handlers.err, fn)
}

// The emit helpers below run on the dispatch goroutine only.

func (p *Port) emitOpen() {
	p.handlers.mu.Lock()
	fns := append([]func(){}, p.handlers.open...)
	p.handlers.mu.Unlock()
	p.metrics.EventsEmitted.Add(1)
	for _, fn := range fns {
		fn()
	}
}

func (p *Port) emitClose() {
	p.handlers.mu.Lock()
	fns := append([]func(){}, p.handlers.closed...)
	p.handlers.mu.Unlock()
	p.metrics.EventsEmitted.Add(1)
	for _, fn := range fns {
		fn()
	}
}

func (p *Port) emitData(chunk []byte) {
	p.handlers.mu.Lock()
	fns := append([]func([]byte){}, p.handlers.data...)
	p.handlers.mu.Unlock()
	p.metrics.EventsEmitted.Add(1)
	for _, fn := range fns {
		fn(chunk)
	}
}

func (p *Port) emitDisconnect() {
	p.handlers.mu.Lock()
	fns := append([]func(){}, p.handlers.disconnect...)
	p.handlers.mu.Unlock()
	p.metrics.EventsEmitted.Add(1)
	for _, fn := range fns {
		fn()
	}
}

func (p *Port) emitError(err error) {
	p.handlers.mu.Lock()
	fns := append([]func(error){}, p.handlers.err...)
	p.handlers.mu.Unlock()
	p.metrics.EventsEmitted.Add(1)
	p.logger.Debug().Err(err).Msg("error event")
	for _, fn := range fns {
		fn(err)
	}
}

// completeNow resolves one operation on the dispatch goroutine: the error
// goes to the callback when one was supplied, and escalates to the error
// event only when there is no callback. Exactly one of the two happens for
// a failure; success without a callback reports nowhere. Every failure path
// in this package funnels through here or through complete.
func (p *Port) completeNow(cb Callback, err error) {
	if cb != nil {
		cb(err)
		return
	}
	if err != nil {
		p.emitError(err)
	}
}

// complete is completeNow for callers that are not on the dispatch
// goroutine. The resolution runs on its own goroutine rather than the
// dispatch queue: a state rejection must fire immediately, not wait behind
// a Binding call that may block indefinitely.
func (p *Port) complete(cb Callback, err error) {
	go p.completeNow(cb, err)
}
