// internal/decode/presenter.go
package decode

import (
	"errors"
	"strings"

	"github.com/ColonelBlimp/pskrtty/internal/dsp"
	"github.com/ColonelBlimp/pskrtty/internal/fault"
)

// ErrUnknownMode indicates a mode name that is not idle, rtty or psk
var ErrUnknownMode = errors.New("mode must be idle, rtty or psk")

// Mode is the decode mode.
type Mode int

const (
	// Idle acquires nothing.
	Idle Mode = iota
	// RTTY decodes 45.45 baud Baudot.
	RTTY
	// PSK decodes PSK31 Varicode.
	PSK
)

func (m Mode) String() string {
	switch m {
	case Idle:
		return "idle"
	case RTTY:
		return "rtty"
	case PSK:
		return "psk"
	default:
		return "unknown"
	}
}

// ParseMode parses a mode name, ignoring case.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "idle", "":
		return Idle, nil
	case "rtty":
		return RTTY, nil
	case "psk", "psk31":
		return PSK, nil
	default:
		return Idle, ErrUnknownMode
	}
}

// Presenter receives decoder output. Calls come from the decode goroutine
// and must return quickly.
type Presenter interface {
	// OnCharacterDecoded receives each character decoded while locked.
	OnCharacterDecoded(r rune, mode Mode)
	// OnSignalLevel receives a level report once per reporting interval.
	OnSignalLevel(level dsp.SignalLevel, mode Mode)
	// OnError receives a newly displayed fault, or fault.None when the
	// displayed fault was cleared.
	OnError(code fault.Code)
}

// MultiPresenter fans every call out to each presenter in order.
type MultiPresenter []Presenter

// OnCharacterDecoded implements Presenter.
func (m MultiPresenter) OnCharacterDecoded(r rune, mode Mode) {
	for _, p := range m {
		p.OnCharacterDecoded(r, mode)
	}
}

// OnSignalLevel implements Presenter.
func (m MultiPresenter) OnSignalLevel(level dsp.SignalLevel, mode Mode) {
	for _, p := range m {
		p.OnSignalLevel(level, mode)
	}
}

// OnError implements Presenter.
func (m MultiPresenter) OnError(code fault.Code) {
	for _, p := range m {
		p.OnError(code)
	}
}
