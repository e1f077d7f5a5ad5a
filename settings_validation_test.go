package serialport

import (
	"errors"
	"strings"
	"testing"
	"time"
)

func TestValidateDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	if err := s.Validate(); err != nil {
		t.Fatalf("expected valid defaults, got error: %v", err)
	}
	if s.BaudRate != Baud9600 || s.DataBits != DataBits8 || s.StopBits != StopBits1 || s.Parity != ParityNone {
		t.Fatalf("unexpected defaults %+v", s)
	}
	if !s.HupCl || !s.AutoOpen {
		t.Fatal("expected HupCl and AutoOpen on by default")
	}
}

func TestValidateBaudRate(t *testing.T) {
	tests := []struct {
		baudRate BaudRate
		wantErr  bool
	}{
		{Baud1200, false},
		{Baud9600, false},
		{Baud115200, false},
		{BaudRate(12345), false}, // unusual but positive rates are the binding's problem
		{0, true},
		{-9600, true},
	}

	for _, tt := range tests {
		s := DefaultSettings()
		s.BaudRate = tt.baudRate
		err := s.Validate()
		if (err != nil) != tt.wantErr {
			t.Fatalf("baud %d: got err=%v want error=%v", tt.baudRate, err, tt.wantErr)
		}
	}
}

func TestValidateDataBits(t *testing.T) {
	for _, bits := range []DataBits{DataBits5, DataBits6, DataBits7, DataBits8} {
		s := DefaultSettings()
		s.DataBits = bits
		if err := s.Validate(); err != nil {
			t.Fatalf("data bits %d: unexpected error %v", bits, err)
		}
	}

	for _, bits := range []DataBits{4, 9, -1} {
		s := DefaultSettings()
		s.DataBits = bits
		err := s.Validate()
		if err == nil {
			t.Fatalf("data bits %d: expected error", bits)
		}
		if !strings.Contains(err.Error(), "data bits") {
			t.Fatalf("data bits %d: unexpected message %q", bits, err.Error())
		}
	}
}

func TestValidateStopBits(t *testing.T) {
	for _, sb := range []StopBits{StopBits1, StopBits1Half, StopBits2} {
		s := DefaultSettings()
		s.StopBits = sb
		if err := s.Validate(); err != nil {
			t.Fatalf("stop bits %v: unexpected error %v", sb, err)
		}
	}

	s := DefaultSettings()
	s.StopBits = 9
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for invalid stop bits")
	}
}

func TestValidateParity(t *testing.T) {
	for _, pa := range []Parity{ParityNone, ParityOdd, ParityEven, ParityMark, ParitySpace} {
		s := DefaultSettings()
		s.Parity = pa
		if err := s.Validate(); err != nil {
			t.Fatalf("parity %v: unexpected error %v", pa, err)
		}
	}

	s := DefaultSettings()
	s.Parity = 42
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for invalid parity")
	}
}

func TestValidateReadTimeout(t *testing.T) {
	s := DefaultSettings()
	s.ReadTimeout = -time.Second
	if err := s.Validate(); err == nil {
		t.Fatal("expected error for negative read timeout")
	}

	s = DefaultSettings()
	s.ReadTimeout = 100 * time.Millisecond
	if err := s.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidationErrorsAreValidationErrors(t *testing.T) {
	s := DefaultSettings()
	s.DataBits = 12
	err := s.Validate()

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %T", err)
	}
}

func TestNormalizeFillsZeroValues(t *testing.T) {
	s := Settings{}
	s.normalize()

	if s.BaudRate != Baud9600 {
		t.Fatalf("expected baud 9600 after normalize, got %d", s.BaudRate)
	}
	if s.DataBits != DataBits8 {
		t.Fatalf("expected 8 data bits after normalize, got %d", s.DataBits)
	}
	// Zero values of StopBits and Parity already mean 1 stop bit and no
	// parity.
	if err := s.Validate(); err != nil {
		t.Fatalf("normalized zero settings should validate, got %v", err)
	}
}

func TestValidateUpdateOptions(t *testing.T) {
	if err := validateUpdate(nil); err == nil {
		t.Fatal("expected error for nil options")
	}
	if err := validateUpdate(&UpdateOptions{}); err == nil {
		t.Fatal("expected error for zero baud rate")
	}
	if err := validateUpdate(&UpdateOptions{BaudRate: -1}); err == nil {
		t.Fatal("expected error for negative baud rate")
	}
	if err := validateUpdate(&UpdateOptions{BaudRate: Baud14400}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
