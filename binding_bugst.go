package serialport

import (
	"sync"
	"time"

	gobug "go.bug.st/serial"
)

// allow tests to override external dependencies
var (
	openPort     = func(name string, mode *gobug.Mode) (portHandle, error) { return gobug.Open(name, mode) }
	getPortsList = gobug.GetPortsList
)

// portHandle abstracts the subset of go.bug.st/serial.Port used by
// BugstBinding.
type portHandle interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	SetMode(mode *gobug.Mode) error
	SetReadTimeout(t time.Duration) error
	SetDTR(dtr bool) error
	SetRTS(rts bool) error
	Break(d time.Duration) error
	GetModemStatusBits() (*gobug.ModemStatusBits, error)
	ResetInputBuffer() error
	ResetOutputBuffer() error
	Drain() error
}

// breakPulseDuration is the length of the break condition driven by
// Set with Brk high.
const breakPulseDuration = 250 * time.Millisecond

// BugstBinding is the production Binding, backed by go.bug.st/serial.
//
// The software flow control flags (Xon, Xoff, Xany) have no equivalent in
// this transport and are ignored, as are the CTS and DTS output flags in
// Set; BRK, DTR and RTS map to hardware.
type BugstBinding struct {
	mu     sync.Mutex
	handle portHandle
	hupcl  bool
}

var _ Binding = (*BugstBinding)(nil)

// NewBugstBinding returns an unopened binding.
func NewBugstBinding() *BugstBinding {
	return &BugstBinding{}
}

func (b *BugstBinding) Open(path string, settings Settings) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.handle != nil {
		return ErrPortAlreadyOpen
	}

	if ok, err := isPortAvailable(path); err != nil {
		return err
	} else if !ok {
		return newValidationError("no such port: %s", path)
	}

	h, err := openPort(path, modeFor(settings))
	if err != nil {
		return err
	}

	if settings.ReadTimeout > 0 {
		if err := h.SetReadTimeout(settings.ReadTimeout); err != nil {
			_ = h.Close()
			return err
		}
	}

	b.handle = h
	b.hupcl = settings.HupCl
	return nil
}

func modeFor(settings Settings) *gobug.Mode {
	return &gobug.Mode{
		BaudRate: settings.BaudRate.Int(),
		DataBits: settings.DataBits.Int(),
		Parity:   settings.Parity.Get(),
		StopBits: settings.StopBits.Get(),
		InitialStatusBits: &gobug.ModemOutputBits{
			RTS: true,
			DTR: true,
		},
	}
}

func (b *BugstBinding) Close() error {
	b.mu.Lock()
	h := b.handle
	hupcl := b.hupcl
	b.handle = nil
	b.mu.Unlock()

	if h == nil {
		return nil
	}
	if hupcl {
		// Hang up: drop DTR before releasing the handle.
		_ = h.SetDTR(false)
	}
	return h.Close()
}

func (b *BugstBinding) Read(p []byte) (int, error) {
	h, err := b.current()
	if err != nil {
		return 0, err
	}
	return h.Read(p)
}

func (b *BugstBinding) Write(p []byte) (int, error) {
	h, err := b.current()
	if err != nil {
		return 0, err
	}
	return h.Write(p)
}

func (b *BugstBinding) Update(settings Settings) error {
	h, err := b.current()
	if err != nil {
		return err
	}
	mode := modeFor(settings)
	mode.InitialStatusBits = nil // leave the lines where they are
	return h.SetMode(mode)
}

func (b *BugstBinding) Set(flags LineFlags) error {
	h, err := b.current()
	if err != nil {
		return err
	}
	if err := h.SetDTR(flags.Dtr); err != nil {
		return err
	}
	if err := h.SetRTS(flags.Rts); err != nil {
		return err
	}
	if flags.Brk {
		return h.Break(breakPulseDuration)
	}
	return nil
}

func (b *BugstBinding) Get() (ModemStatus, error) {
	h, err := b.current()
	if err != nil {
		return ModemStatus{}, err
	}
	bits, err := h.GetModemStatusBits()
	if err != nil {
		return ModemStatus{}, err
	}
	return ModemStatus{CTS: bits.CTS, DSR: bits.DSR, DCD: bits.DCD}, nil
}

func (b *BugstBinding) Flush() error {
	h, err := b.current()
	if err != nil {
		return err
	}
	if err := h.ResetInputBuffer(); err != nil {
		return err
	}
	return h.ResetOutputBuffer()
}

func (b *BugstBinding) Drain() error {
	h, err := b.current()
	if err != nil {
		return err
	}
	return h.Drain()
}

func (b *BugstBinding) List() ([]string, error) {
	return AvailablePorts()
}

func (b *BugstBinding) current() (portHandle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handle == nil {
		return nil, ErrPortNotOpen
	}
	return b.handle, nil
}
