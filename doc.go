// Package serialport implements the connection lifecycle and write-queueing
// layer of a serial port client.
//
// A Port owns exactly one Binding, the abstract transport that performs the
// actual device I/O, and drives it through an explicit state machine
// (closed, opening, open, closing). Operations are asynchronous: they are
// validated against the current state, serialized on a per-port dispatch
// goroutine, and report their outcome through exactly one channel: the
// completion callback when one was supplied, the error event otherwise.
//
// Writes issued while the port is not ready, or while it is corked, are
// buffered and later sent as a single coalesced transport write; every
// queued callback receives the result of that one write, and no queued
// callback is ever silently dropped.
//
//	binding := serialport.NewBugstBinding()
//	port, err := serialport.New(binding, "/dev/ttyUSB0", nil, func(err error) {
//		if err != nil {
//			log.Fatal().Err(err).Msg("open failed")
//		}
//	})
//	if err != nil {
//		log.Fatal().Err(err).Msg("bad settings")
//	}
//	port.OnData(func(chunk []byte) {
//		fmt.Printf("%q\n", chunk)
//	})
//	port.WriteString("ID;", nil)
//
// The production Binding is backed by go.bug.st/serial; any implementation
// of the Binding interface, including a test double, can be substituted at
// construction time.
package serialport
