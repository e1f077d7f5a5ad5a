package serialport

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Validate checks the configuration before any I/O is attempted. Failures
// are programmer errors and come back as ValidationError.
func (s *Settings) Validate() error {
	if s.BaudRate <= 0 {
		return newValidationError("invalid baud rate: %d", s.BaudRate)
	}
	if s.DataBits < DataBits5 || s.DataBits > DataBits8 {
		return newValidationError("data bits must be 5-8, got: %d", s.DataBits)
	}
	switch s.StopBits {
	case StopBits1, StopBits1Half, StopBits2:
	default:
		return newValidationError("invalid stop bits value: %d", int(s.StopBits))
	}
	switch s.Parity {
	case ParityNone, ParityOdd, ParityEven, ParityMark, ParitySpace:
	default:
		return newValidationError("invalid parity value: %d", int(s.Parity))
	}
	if s.ReadTimeout < 0 {
		return newValidationError("read timeout cannot be negative: %v", s.ReadTimeout)
	}

	// Struct tags are a backstop for the checks above; a tag failure here
	// means the two went out of sync.
	if err := validate.Struct(s); err != nil {
		return newValidationError("invalid settings: %v", err)
	}
	return nil
}

// validateUpdate checks UpdateOptions at call time, before the port state is
// consulted.
func validateUpdate(opts *UpdateOptions) error {
	if opts == nil {
		return newValidationError("update options are required")
	}
	if opts.BaudRate <= 0 {
		return newValidationError("invalid baud rate: %d", opts.BaudRate)
	}
	if err := validate.Struct(opts); err != nil {
		return newValidationError("invalid update options: %v", err)
	}
	return nil
}
