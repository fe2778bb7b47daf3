// internal/rtty/framer.go
package rtty

import (
	"errors"
	"math"

	"github.com/ColonelBlimp/pskrtty/internal/dsp"
)

var (
	// ErrInvalidThreshold indicates a run threshold is negative
	ErrInvalidThreshold = errors.New("run thresholds must be non-negative")
	// ErrInvalidGuards indicates the recovery guards would fire before normal framing
	ErrInvalidGuards = errors.New("idle threshold must exceed the letters threshold")
	// ErrTooFewWindows indicates a bit spans too few realtime windows to
	// find the start bit
	ErrTooFewWindows = errors.New("an RTTY bit must span at least 3 correlation windows")
)

// MinWindowsPerBit is the shortest bit, in realtime windows, the framer can
// resolve.
const MinWindowsPerBit = 3

// referenceWindowsPerBit is the bit length DefaultConfig is tuned for:
// 40-sample windows at 9615 Hz and 45.45 baud.
const referenceWindowsPerBit = 9615.0 * 1000 / 45450 / 40

// State is the framer state.
type State int

const (
	// Init waits for a run of marks (idle carrier or LTRS codes).
	Init State = iota
	// Start waits for the start bit.
	Start
	// Data loads the five data bits.
	Data
	// Stop waits for the stop bits and decodes the character.
	Stop
)

func (s State) String() string {
	switch s {
	case Init:
		return "init"
	case Start:
		return "start"
	case Data:
		return "data"
	case Stop:
		return "stop"
	default:
		return "unknown"
	}
}

// ClockAction tells the caller how the sampling discipline must change.
type ClockAction int

const (
	// ClockKeep leaves sampling unchanged.
	ClockKeep ClockAction = iota
	// ClockGate switches to one decision per data bit.
	ClockGate
	// ClockRealtime switches back to free-running windows.
	ClockRealtime
)

// Config holds framer run thresholds. A transition fires when a run of
// consecutive symbols grows past its threshold.
type Config struct {
	// LettersThreshold: marks that establish idle carrier in Init
	LettersThreshold int
	// StartThreshold: spaces that make a start bit
	StartThreshold int
	// StopThreshold: marks that make the stop bits
	StopThreshold int
	// NullThreshold: unknown decisions before a forced return to Init
	NullThreshold int
	// IdleThreshold: marks before a forced return to Start
	IdleThreshold int
}

// DefaultConfig returns thresholds for ~5 realtime windows per bit.
func DefaultConfig() Config {
	return Config{
		LettersThreshold: 31,
		StartThreshold:   1,
		StopThreshold:    1,
		NullThreshold:    5,
		IdleThreshold:    35,
	}
}

// GeometryConfig scales the DefaultConfig run thresholds to windows of
// window samples at sampleRate and milliBaud. Every run keeps its length in
// bits, so the default geometry returns DefaultConfig unchanged.
func GeometryConfig(sampleRate, milliBaud, window int) (Config, error) {
	if milliBaud <= 0 || window <= 0 {
		return Config{}, ErrTooFewWindows
	}
	wpb := float64(sampleRate) * 1000 / float64(milliBaud) / float64(window)
	if wpb < MinWindowsPerBit {
		return Config{}, ErrTooFewWindows
	}

	scale := func(n int) int {
		return max(1, int(math.Round(float64(n)*wpb/referenceWindowsPerBit)))
	}
	def := DefaultConfig()
	c := Config{
		LettersThreshold: scale(def.LettersThreshold),
		StartThreshold:   scale(def.StartThreshold),
		StopThreshold:    scale(def.StopThreshold),
		NullThreshold:    scale(def.NullThreshold),
		IdleThreshold:    scale(def.IdleThreshold),
	}
	c.IdleThreshold = max(c.IdleThreshold, c.LettersThreshold+1)
	return c, nil
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.LettersThreshold < 0 || c.StartThreshold < 0 || c.StopThreshold < 0 ||
		c.NullThreshold < 0 || c.IdleThreshold < 0 {
		return ErrInvalidThreshold
	}
	if c.IdleThreshold <= c.LettersThreshold {
		return ErrInvalidGuards
	}
	return nil
}

// Output is the result of one Step.
type Output struct {
	Char rune
	// Ok is true when Char holds a decoded character
	Ok bool
	// Clock asks for a change of sampling discipline
	Clock ClockAction
	// LostLock is true when a recovery guard dropped an established lock
	LostLock bool
}

// Framer turns mark/space decisions into characters.
type Framer struct {
	config Config

	state   State
	code    byte
	bit     int
	figures bool
	locked  bool

	marks  int // consecutive marks within the current state
	spaces int // consecutive spaces within the current state
	nulls  int // consecutive unknown decisions
	idle   int // consecutive marks across states
}

// NewFramer creates a framer in the Init state.
func NewFramer(cfg Config) (*Framer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Framer{config: cfg}, nil
}

// Reset returns the framer to Init with every register cleared.
func (f *Framer) Reset() {
	*f = Framer{config: f.config}
}

// Step advances the framer by one decision.
func (f *Framer) Step(d dsp.Decision) Output {
	var out Output
	wasData := f.state == Data

	switch f.state {
	case Init:
		if f.runOf(d, dsp.Mark, &f.marks) > f.config.LettersThreshold {
			f.clearRegisters()
			f.locked = false
			f.figures = false
			f.state = Start
		}

	case Start:
		if f.runOf(d, dsp.Space, &f.spaces) > f.config.StartThreshold {
			f.clearRegisters()
			f.state = Data
		}

	case Data:
		if d != dsp.Unknown {
			if d == dsp.Mark {
				f.code |= 1 << f.bit
			}
			f.bit++
			if f.bit >= Bits {
				f.marks, f.spaces = 0, 0
				f.state = Stop
			}
		}

	case Stop:
		if f.runOf(d, dsp.Mark, &f.marks) > f.config.StopThreshold {
			out.Char, out.Ok = f.decode()
			f.locked = true
			f.clearRegisters()
			f.state = Start
		}
	}

	out.LostLock = f.guard(d)

	switch {
	case !wasData && f.state == Data:
		out.Clock = ClockGate
	case wasData && f.state != Data:
		out.Clock = ClockRealtime
	}
	return out
}

// runOf extends the run counted by ctr when d is want and ends it otherwise.
func (f *Framer) runOf(d, want dsp.Decision, ctr *int) int {
	if d != want {
		*ctr = 0
		return 0
	}
	*ctr++
	return *ctr
}

// guard applies the noise recoveries. It reports whether a lock was lost.
func (f *Framer) guard(d dsp.Decision) bool {
	wasLocked := f.locked

	switch d {
	case dsp.Unknown:
		f.idle = 0
		f.nulls++
		if f.nulls > f.config.NullThreshold {
			f.locked = false
			f.figures = false
			f.clearRegisters()
			f.nulls = 0
			f.state = Init
		}
	case dsp.Mark:
		f.nulls = 0
		f.idle++
		if f.idle > f.config.IdleThreshold {
			f.locked = false
			f.figures = false
			f.clearRegisters()
			f.idle = 0
			f.state = Start
		}
	default:
		f.nulls = 0
		f.idle = 0
	}
	return wasLocked && !f.locked
}

func (f *Framer) clearRegisters() {
	f.code = 0
	f.bit = 0
	f.marks = 0
	f.spaces = 0
}

// decode applies shift codes and looks up the assembled code.
func (f *Framer) decode() (rune, bool) {
	switch f.code {
	case FiguresShift:
		f.figures = true
		return 0, false
	case LettersShift:
		f.figures = false
		return 0, false
	}
	return Decode(f.code, f.figures)
}

// State returns the current state.
func (f *Framer) State() State {
	return f.state
}

// Locked reports whether a complete character frame has been seen since
// the last recovery.
func (f *Framer) Locked() bool {
	return f.locked
}

// Figures reports whether the figures table is selected.
func (f *Framer) Figures() bool {
	return f.figures
}

// Config returns the framer configuration.
func (f *Framer) Config() Config {
	return f.config
}
