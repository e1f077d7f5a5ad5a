package serialport

// Binding is the transport a Port drives. It owns the actual device handle;
// the Port owns the lifecycle around it. A Binding instance belongs to
// exactly one Port and is handed over at construction, never swapped
// mid-lifecycle.
//
// All methods are blocking; the Port serializes calls on its dispatch
// goroutine, so implementations never see concurrent calls except for Read,
// which runs on the Port's reader goroutine while the port is open and must
// return an error once Close tears the handle down.
type Binding interface {
	// Open acquires the device. Called at most once per open session.
	Open(path string, settings Settings) error

	// Read blocks for incoming bytes. An error ends the reader loop; if
	// the port was still open at that point it is treated as a
	// disconnect.
	Read(p []byte) (int, error)

	// Write sends bytes, returning how many were accepted.
	Write(p []byte) (int, error)

	// Close releases the device handle.
	Close() error

	// Update applies a changed line configuration to an open device.
	Update(settings Settings) error

	// Set drives the output control lines.
	Set(flags LineFlags) error

	// Get samples the input control lines.
	Get() (ModemStatus, error)

	// Flush discards buffered data in both directions.
	Flush() error

	// Drain blocks until buffered output has been transmitted.
	Drain() error

	// List enumerates device paths visible to this transport.
	List() ([]string, error)
}

// LineFlags is a fully resolved set of output control line states, as
// delivered to the Binding.
type LineFlags struct {
	Brk bool
	Cts bool
	Dtr bool
	Dts bool
	Rts bool
}

// SetFlags selects output line states for Port.Set. A nil field falls back
// to the fixed line default (DTR and RTS high, everything else low), never
// to the previously applied value; Set with the zero SetFlags therefore
// resets all lines to defaults.
type SetFlags struct {
	Brk *bool
	Cts *bool
	Dtr *bool
	Dts *bool
	Rts *bool
}

// resolve fills omitted fields with the line defaults.
func (f *SetFlags) resolve() LineFlags {
	out := LineFlags{Dtr: true, Rts: true}
	if f.Brk != nil {
		out.Brk = *f.Brk
	}
	if f.Cts != nil {
		out.Cts = *f.Cts
	}
	if f.Dtr != nil {
		out.Dtr = *f.Dtr
	}
	if f.Dts != nil {
		out.Dts = *f.Dts
	}
	if f.Rts != nil {
		out.Rts = *f.Rts
	}
	return out
}

// ModemStatus is a snapshot of the input control lines.
type ModemStatus struct {
	CTS bool
	DSR bool
	DCD bool
}

// Bool returns a pointer to v, for populating SetFlags fields.
func Bool(v bool) *bool {
	return &v
}
