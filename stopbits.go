package serialport

import gobug "go.bug.st/serial"

// StopBits is the number of stop bits per character frame.
type StopBits gobug.StopBits

func (sb StopBits) Get() gobug.StopBits {
	return gobug.StopBits(sb)
}

func (sb StopBits) String() string {
	switch sb {
	case StopBits1:
		return "1"
	case StopBits1Half:
		return "1.5"
	case StopBits2:
		return "2"
	}
	return "invalid"
}

const (
	// StopBits1 represents 1 stop bit
	StopBits1 = StopBits(gobug.OneStopBit)
	// StopBits1Half represents 1.5 stop bits
	StopBits1Half = StopBits(gobug.OnePointFiveStopBits)
	// StopBits2 represents 2 stop bits
	StopBits2 = StopBits(gobug.TwoStopBits)
)
