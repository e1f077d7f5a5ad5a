package serialport

import (
	"errors"
	"fmt"
)

// ConfigurationError reports a port that cannot exist at all, such as a
// missing Binding. It is always returned synchronously from construction.
type ConfigurationError struct {
	msg string
}

func (e *ConfigurationError) Error() string { return e.msg }

// ValidationError reports malformed settings or malformed call arguments.
// It is always returned synchronously and never reaches the Binding.
type ValidationError struct {
	msg string
}

func (e *ValidationError) Error() string { return e.msg }

func newValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{msg: fmt.Sprintf(format, args...)}
}

// StateError reports an operation that is invalid for the port's current
// state. It is delivered through the completion callback, or through the
// error event when no callback was supplied.
type StateError struct {
	msg string
}

func (e *StateError) Error() string { return e.msg }

// TransportError wraps a failure from the Binding itself.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("serialport: %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

var (
	// ErrNoBinding is returned when a Port or List call has no Binding to
	// delegate to.
	ErrNoBinding = &ConfigurationError{msg: "serialport: binding is not configured"}

	// ErrPortOpening rejects an open issued while another open is in flight.
	ErrPortOpening = &StateError{msg: "Port is opening"}

	// ErrPortAlreadyOpen rejects an open issued on an open port.
	ErrPortAlreadyOpen = &StateError{msg: "Port is already open"}

	// ErrPortClosing rejects an open issued while a close is in flight.
	ErrPortClosing = &StateError{msg: "Port is closing"}

	// ErrPortNotOpen rejects operations that require an open port.
	ErrPortNotOpen = &StateError{msg: "Port is not open"}
)

// errPartialWrite is wrapped in a TransportError when the Binding accepts
// fewer bytes than requested and makes no progress on retry.
var errPartialWrite = errors.New("partial write: not all bytes written")
