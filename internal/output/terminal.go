// internal/output/terminal.go
// Package output renders decoder output for a terminal.
package output

import (
	"io"
	"math"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/ColonelBlimp/pskrtty/internal/decode"
	"github.com/ColonelBlimp/pskrtty/internal/dsp"
	"github.com/ColonelBlimp/pskrtty/internal/fault"
)

// Terminal writes decoded characters to a text stream and reports levels
// and faults through a structured logger.
type Terminal struct {
	mu     sync.Mutex
	w      io.Writer
	logger *log.Logger
	err    error
}

// NewTerminal creates a presenter writing text to w. A nil logger discards
// level and fault reports.
func NewTerminal(w io.Writer, logger *log.Logger) *Terminal {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Terminal{w: w, logger: logger}
}

// OnCharacterDecoded implements decode.Presenter. CR is dropped and LF
// starts a new line, as on a teleprinter.
func (t *Terminal) OnCharacterDecoded(r rune, _ decode.Mode) {
	if r == '\r' {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err != nil {
		return
	}
	if _, err := io.WriteString(t.w, string(r)); err != nil {
		t.err = err
		t.logger.Error("write decoded text", "err", err)
	}
}

// OnSignalLevel implements decode.Presenter.
func (t *Terminal) OnSignalLevel(level dsp.SignalLevel, mode decode.Mode) {
	t.logger.Debug("level",
		"mode", mode,
		"corr", level.Display,
		"digital", level.Digital,
		"threshold", level.Threshold,
		"dBm", DBm(level.Peak),
	)
}

// OnError implements decode.Presenter.
func (t *Terminal) OnError(code fault.Code) {
	if code == fault.None {
		t.logger.Info("fault cleared")
		return
	}
	t.logger.Warn("fault", "tag", code.Tag(), "err", code)
}

// Err returns the first write error, if any. Text output stops after it.
func (t *Terminal) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// DBm converts a peak sample magnitude to the receiver's dBm-like display
// value, 10·log10(5·peak). A silent input reads 0.
func DBm(peak int64) int {
	if peak <= 0 {
		return 0
	}
	return int(math.Round(10 * math.Log10(5*float64(peak))))
}
