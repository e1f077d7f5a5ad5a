package serialport

import (
	gobug "go.bug.st/serial"
)

// Parity is the parity checking mode for a character frame.
type Parity gobug.Parity

func (pa Parity) Get() gobug.Parity {
	return gobug.Parity(pa)
}

func (pa Parity) String() string {
	switch pa {
	case ParityNone:
		return "none"
	case ParityOdd:
		return "odd"
	case ParityEven:
		return "even"
	case ParityMark:
		return "mark"
	case ParitySpace:
		return "space"
	}
	return "invalid"
}

const (
	// ParityNone represents no parity bit
	ParityNone = Parity(gobug.NoParity)
	// ParityOdd represents odd parity bit
	ParityOdd = Parity(gobug.OddParity)
	// ParityEven represents even parity bit
	ParityEven = Parity(gobug.EvenParity)
	// ParityMark represents mark parity bit (always 1)
	ParityMark = Parity(gobug.MarkParity)
	// ParitySpace represents space parity bit (always 0)
	ParitySpace = Parity(gobug.SpaceParity)
)
