package serialport

import (
	"time"

	"github.com/rs/zerolog"
)

// Settings holds the full line configuration for a Port. The zero value is
// not usable; start from DefaultSettings and override fields, or pass nil to
// New to get the defaults.
type Settings struct {
	BaudRate BaudRate `validate:"gt=0"`
	DataBits DataBits `validate:"oneof=5 6 7 8"`
	StopBits StopBits `validate:"oneof=0 1 2"`
	Parity   Parity   `validate:"oneof=0 1 2 3 4"`

	// Software and hardware flow control flags. They are handed to the
	// Binding as-is; their hardware semantics are the Binding's business.
	Xon    bool
	Xoff   bool
	Xany   bool
	RtsCts bool

	// HupCl drops DTR when the port closes.
	HupCl bool

	// AutoOpen starts the open sequence from New. The open outcome is
	// reported through the callback given to New, or the error event.
	AutoOpen bool

	// ReadTimeout is applied to the Binding's blocking reads. Zero keeps
	// the Binding's default.
	ReadTimeout time.Duration `validate:"gte=0"`

	// Logger, when non-nil, receives debug-level lifecycle logging.
	Logger *zerolog.Logger `validate:"-"`
}

// DefaultSettings returns the stock configuration: 9600 8N1, no flow
// control, HupCl on, AutoOpen on.
func DefaultSettings() Settings {
	return Settings{
		BaudRate: Baud9600,
		DataBits: DataBits8,
		StopBits: StopBits1,
		Parity:   ParityNone,
		HupCl:    true,
		AutoOpen: true,
	}
}

// normalize fills zero-valued numeric fields with their defaults so that a
// partially populated Settings literal stays usable. Boolean fields keep
// their zero values.
func (s *Settings) normalize() {
	if s.BaudRate == 0 {
		s.BaudRate = Baud9600
	}
	if s.DataBits == 0 {
		s.DataBits = DataBits8
	}
}

// UpdateOptions carries the subset of Settings that Update can change on an
// open port.
type UpdateOptions struct {
	BaudRate BaudRate `validate:"gt=0"`
}
