// internal/psk/framer.go
package psk

import (
	"errors"
	"math"

	"github.com/ColonelBlimp/pskrtty/internal/dsp"
)

var (
	// ErrInvalidSpacing indicates the start spacing or its tolerance is invalid
	ErrInvalidSpacing = errors.New("start spacing must be positive and larger than its tolerance")
	// ErrInvalidNoLock indicates the no-lock run does not exceed the start spacing
	ErrInvalidNoLock = errors.New("no-lock windows must exceed the start spacing")
	// ErrInvalidSteady indicates the steady window count is not positive
	ErrInvalidSteady = errors.New("steady windows must be positive")
	// ErrTooFewWindows indicates a symbol spans too few correlation windows
	// to tell a start spacing from its neighbours
	ErrTooFewWindows = errors.New("a PSK symbol must span at least 4 correlation windows")
)

// MinWindowsPerSymbol is the shortest symbol, in correlation windows, the
// framer can resolve.
const MinWindowsPerSymbol = 4

// State is the framer state.
type State int

const (
	// Init waits for the first start spacing.
	Init State = iota
	// Start closes the pending word and opens a new one.
	Start
	// Data loads one bit per symbol tick.
	Data
)

func (s State) String() string {
	switch s {
	case Init:
		return "init"
	case Start:
		return "start"
	case Data:
		return "data"
	default:
		return "unknown"
	}
}

// Config holds PSK framing parameters, counted in correlation windows.
type Config struct {
	// StartSpacing is the edge spacing of two consecutive reversals,
	// which only occurs in the zero-zero word separator
	StartSpacing int
	// StartTolerance is the accepted deviation from StartSpacing
	StartTolerance int
	// NoLockWindows is the run without an edge after which lock is lost
	NoLockWindows int
	// SteadyWindows is the run of in-phase windows that re-arms the
	// phase detector after a reversal
	SteadyWindows int
}

// DefaultConfig returns the parameters for 31.25 baud with 26-sample
// windows at 9615 Hz, about 11.8 windows per symbol.
func DefaultConfig() Config {
	return Config{
		StartSpacing:   11,
		StartTolerance: 1,
		NoLockWindows:  60,
		SteadyWindows:  3,
	}
}

// WindowsPerSymbol returns the number of windowLen-sample windows in one
// symbol at sampleRate and milliBaud.
func WindowsPerSymbol(sampleRate, milliBaud, windowLen int) float64 {
	if milliBaud <= 0 || windowLen <= 0 {
		return 0
	}
	return float64(sampleRate) * 1000 / float64(milliBaud) / float64(windowLen)
}

// GeometryConfig returns framing parameters for windows of windowLen
// samples. A reversal pair lands floor or ceil of the symbol length apart,
// so the start spacing is the floor with one window of tolerance. Lock is
// lost after five symbols without an edge, and the phase latch needs a
// quarter symbol of steady windows. For 26-sample windows at 9615 Hz and
// 31.25 baud this equals DefaultConfig.
func GeometryConfig(sampleRate, milliBaud, windowLen int) (Config, error) {
	wps := WindowsPerSymbol(sampleRate, milliBaud, windowLen)
	if wps < MinWindowsPerSymbol {
		return Config{}, ErrTooFewWindows
	}
	return Config{
		StartSpacing:   int(math.Floor(wps)),
		StartTolerance: 1,
		NoLockWindows:  int(math.Ceil(5 * wps)),
		SteadyWindows:  max(1, int(math.Ceil(wps/4))),
	}, nil
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.StartSpacing <= 0 || c.StartTolerance < 0 || c.StartTolerance >= c.StartSpacing {
		return ErrInvalidSpacing
	}
	if c.NoLockWindows <= c.StartSpacing+c.StartTolerance {
		return ErrInvalidNoLock
	}
	if c.SteadyWindows <= 0 {
		return ErrInvalidSteady
	}
	return nil
}

// Output is the result of one Step.
type Output struct {
	Char rune
	// Ok is true when Char holds a decoded character
	Ok bool
	// RestartClock asks for the bit clock to start a new symbol period
	RestartClock bool
	// Invalid is true when a closed word matched no Varicode entry
	Invalid bool
	// LostLock is true when an established lock was dropped
	LostLock bool
}

// Framer turns phase decisions into Varicode characters.
type Framer struct {
	config Config

	state   State
	word    uint16
	bit     int
	spill   bool // a one fell beyond the word register
	last    dsp.Decision
	changed bool // a reversal was seen since the last loaded bit
	spacing int  // windows since the last reversal
	locked  bool
}

// NewFramer creates a framer in the Init state.
func NewFramer(cfg Config) (*Framer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	f := &Framer{config: cfg}
	f.Reset()
	return f, nil
}

// Reset returns the framer to Init with every register cleared.
func (f *Framer) Reset() {
	*f = Framer{config: f.config, last: InitialPhase}
}

// Step advances the framer by one window. phase is the detector output for
// the window and tick reports a bit clock tick since the previous Step.
func (f *Framer) Step(phase dsp.Decision, tick bool) Output {
	var out Output

	if phase != f.last {
		f.changed = true
		if abs(f.spacing-f.config.StartSpacing) <= f.config.StartTolerance {
			f.state = Start
		}
		f.spacing = 0
	}
	f.last = phase

	// The counter saturates so a long run of ones cannot later pass for
	// a start spacing.
	if f.spacing <= f.config.NoLockWindows {
		f.spacing++
	}
	if f.spacing > f.config.NoLockWindows && f.locked {
		f.locked = false
		out.LostLock = true
	}

	switch f.state {
	case Start:
		if f.word != 0 || f.spill {
			c, ok := ConvertVaricode(f.word)
			if ok && !f.spill {
				f.locked = true
				if c != 0 {
					out.Char, out.Ok = rune(c), true
				}
			} else {
				out.Invalid = true
				out.LostLock = out.LostLock || f.locked
				f.locked = false
			}
		}
		f.word, f.bit, f.spill = 0, 0, false
		f.changed = false
		f.state = Data
		out.RestartClock = true

	case Data:
		if tick {
			if !f.changed {
				if f.bit < 16 {
					f.word |= 1 << f.bit
				} else {
					f.spill = true
				}
			} else {
				f.changed = false
			}
			f.bit++
		}
	}
	return out
}

// State returns the current state.
func (f *Framer) State() State {
	return f.state
}

// Locked reports whether the last closed word was valid and edges are
// still arriving.
func (f *Framer) Locked() bool {
	return f.locked
}

// Pending returns the word being assembled and its bit count.
func (f *Framer) Pending() (uint16, int) {
	return f.word, f.bit
}

// Config returns the framer configuration.
func (f *Framer) Config() Config {
	return f.config
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
