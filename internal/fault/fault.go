// internal/fault/fault.go
// Package fault defines the decoder's recoverable fault codes and the
// report-once, auto-clear policy used to surface them.
package fault

import "fmt"

// Code identifies a decode fault. Codes implement error so they can be
// compared with errors.Is and wrapped like any other error value.
type Code uint16

// None is sent to a presenter when a displayed fault has been cleared.
const None Code = 0

const (
	// ErrBufferOverflow: the PSK double-buffer handshake was violated
	// (second half needed before the consumer released the first).
	ErrBufferOverflow Code = 0x1000
	// ErrAcquisitionOverrun: a completed RTTY window was not consumed in time.
	ErrAcquisitionOverrun Code = 0x1001
	// ErrPSKOverrun: a completed PSK window pair was not consumed in time.
	ErrPSKOverrun Code = 0x1002
	// ErrDecodeNoLock: no symbol edges were observed for too long.
	ErrDecodeNoLock Code = 0x1010
	// ErrInvalidVaricode: a received word matched no Varicode entry.
	ErrInvalidVaricode Code = 0x1011
	// ErrBadThreshold: a derived threshold was out of bounds and was clamped.
	ErrBadThreshold Code = 0x1012
)

var names = map[Code]string{
	None:                  "none",
	ErrBufferOverflow:     "PSK buffer overflow",
	ErrAcquisitionOverrun: "RTTY data overrun",
	ErrPSKOverrun:         "PSK data overrun",
	ErrDecodeNoLock:       "decode lost lock",
	ErrInvalidVaricode:    "invalid varicode",
	ErrBadThreshold:       "bad threshold",
}

// Short display tags, as shown on a two-line LCD.
var tags = map[Code]string{
	None:                  "",
	ErrBufferOverflow:     "PBUF",
	ErrAcquisitionOverrun: "RBUF",
	ErrPSKOverrun:         "PND",
	ErrDecodeNoLock:       "NLCK",
	ErrInvalidVaricode:    "VARI",
	ErrBadThreshold:       "THR",
}

func (c Code) Error() string {
	if n, ok := names[c]; ok {
		return n
	}
	return fmt.Sprintf("fault 0x%04x", uint16(c))
}

// String returns the same text as Error.
func (c Code) String() string {
	return c.Error()
}

// Tag returns the short display tag for the code.
func (c Code) Tag() string {
	if t, ok := tags[c]; ok {
		return t
	}
	return fmt.Sprintf("%04X", uint16(c))
}
