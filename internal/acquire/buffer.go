// internal/acquire/buffer.go
package acquire

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/ColonelBlimp/pskrtty/internal/dsp"
)

var (
	ErrInvalidWindow     = errors.New("window length must be positive")
	ErrInvalidSampleRate = errors.New("sample rate must be positive")
	ErrInvalidPeakReset  = errors.New("peak reset count must be positive")
)

// Mode selects how samples are gathered into windows.
type Mode int

const (
	// Idle keeps clip and peak detection running but fills no window.
	Idle Mode = iota
	// Single fills one window at a time (RTTY autocorrelation).
	Single
	// Double fills two contiguous half windows (PSK cross-correlation).
	Double
)

func (m Mode) String() string {
	switch m {
	case Single:
		return "single"
	case Double:
		return "double"
	default:
		return "idle"
	}
}

// Sampling selects free-running or symbol-gated acquisition.
type Sampling int

const (
	// Realtime fills windows back to back.
	Realtime Sampling = iota
	// Gated fills one window per symbol clock tick.
	Gated
)

// ClockMode selects what a symbol clock tick does.
type ClockMode int

const (
	// ClockOff disables the symbol clock.
	ClockOff ClockMode = iota
	// ClockGate arms one acquisition per tick while sampling is Gated.
	ClockGate
	// ClockTick raises a flag drained by TakeTick.
	ClockTick
)

// Fault is a bit set of handshake violations.
type Fault uint32

const (
	// FaultOverrun: a new sample arrived while a completed window was
	// still waiting for the consumer.
	FaultOverrun Fault = 1 << iota
	// FaultOverflow: a half window had to be handed off while the consumer
	// was still processing the previous pair.
	FaultOverflow
)

// Has reports whether f contains flag.
func (f Fault) Has(flag Fault) bool {
	return f&flag != 0
}

// Config holds acquisition buffer configuration
type Config struct {
	Window         int // single-buffer window length
	HalfWindow     int // length of each half in double-buffer mode
	SampleRate     int // samples per second, used by the symbol clock
	PeakResetCount int // samples between peak level resets
	Clip           dsp.ClipConfig
}

// DefaultConfig returns the window sizes used at 9615 samples per second.
func DefaultConfig() Config {
	return Config{
		Window:         40,
		HalfWindow:     13,
		SampleRate:     9615,
		PeakResetCount: 3000,
		Clip:           dsp.DefaultClipConfig(),
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.Window <= 0 || c.HalfWindow <= 0 {
		return ErrInvalidWindow
	}
	if c.SampleRate <= 0 {
		return ErrInvalidSampleRate
	}
	if c.PeakResetCount <= 0 {
		return ErrInvalidPeakReset
	}
	return c.Clip.Validate()
}

// Setup describes one acquisition mode.
type Setup struct {
	Mode Mode
	// SymbolRate is the symbol clock rate in millibaud; 0 disables the clock
	SymbolRate int
	Clock      ClockMode
	// TickDelay is the percentage of a symbol added before the first
	// tick after RestartClock
	TickDelay int
}

// Window is a completed acquisition. Single holds the window in single-buffer
// mode; First and Second hold the halves in double-buffer mode. The slices
// are owned by the buffer and valid until Release.
type Window struct {
	Single        []int16
	First, Second []int16
}

// Buffer gathers samples from the producer context into fixed windows and
// hands them to a single consumer.
//
// OnSample never blocks. Mode changes take mu; a sample arriving while a mode
// change holds it is dropped. Ownership of completed windows moves through
// two flags: ready (set by the producer) and processingDone (set by the
// consumer). No allocation happens after New.
type Buffer struct {
	config Config
	mu     sync.Mutex

	// producer state, guarded by mu
	mode          Mode
	sampling      Sampling
	clockMode     ClockMode
	clock         SymbolClock
	armed         bool
	fill          []int16
	pos           int
	firstCopied   bool
	overrunActive bool
	overflowSeen  bool
	clip          *dsp.ClipDetector
	peak          int32
	peakCtr       int

	// hand-off slots
	single []int16
	first  []int16
	second []int16

	current        atomic.Int32 // mode, readable without mu
	ready          atomic.Bool
	processingDone atomic.Bool
	faults         atomic.Uint32
	clipping       atomic.Bool
	peakLevel      atomic.Int32
	symbolTick     atomic.Bool
	samples        atomic.Uint64
	dropped        atomic.Uint64

	notify chan struct{}
}

// New creates an idle buffer with every window preallocated.
func New(cfg Config) (*Buffer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	clip, err := dsp.NewClipDetector(cfg.Clip)
	if err != nil {
		return nil, err
	}
	b := &Buffer{
		config: cfg,
		clip:   clip,
		fill:   make([]int16, max(cfg.Window, 2*cfg.HalfWindow)),
		single: make([]int16, cfg.Window),
		first:  make([]int16, cfg.HalfWindow),
		second: make([]int16, cfg.HalfWindow),
		notify: make(chan struct{}, 1),
	}
	b.processingDone.Store(true)
	return b, nil
}

// Config returns the buffer configuration.
func (b *Buffer) Config() Config {
	return b.config
}

// Configure stops the symbol clock, clears every window, flag and detector
// and switches to s. Sampling restarts in Realtime. It runs entirely under
// the mode lock, so the producer sees either the old mode or the new one.
// The consumer must not hold a window across Configure.
func (b *Buffer) Configure(s Setup) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.mode = s.Mode
	b.current.Store(int32(s.Mode))
	b.sampling = Realtime
	b.clockMode = s.Clock
	b.clock = NewSymbolClock(b.config.SampleRate, s.SymbolRate)
	b.clock.SetDelay(s.TickDelay)
	b.armed = false
	clear(b.fill)
	b.pos = 0
	b.firstCopied = false
	b.overrunActive = false
	b.overflowSeen = false
	b.clip.Reset()
	b.peak = 0
	b.peakCtr = 0

	clear(b.single)
	clear(b.first)
	clear(b.second)

	b.ready.Store(false)
	b.processingDone.Store(true)
	b.faults.Store(0)
	b.clipping.Store(false)
	b.peakLevel.Store(0)
	b.symbolTick.Store(false)

	select {
	case <-b.notify:
	default:
	}
}

// Mode returns the current acquisition mode.
func (b *Buffer) Mode() Mode {
	return Mode(b.current.Load())
}

// SetSampling switches between free-running and gated acquisition. Any
// partial window is discarded and the symbol clock restarts.
func (b *Buffer) SetSampling(s Sampling) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.sampling = s
	b.pos = 0
	b.armed = false
	b.clock.Restart()
}

// Sampling returns the current sampling discipline.
func (b *Buffer) Sampling() Sampling {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.sampling
}

// RestartClock begins a new symbol period and drops any pending tick.
func (b *Buffer) RestartClock() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.clock.Restart()
	b.symbolTick.Store(false)
}

// TakeTick reports whether a symbol tick occurred since the last call.
func (b *Buffer) TakeTick() bool {
	return b.symbolTick.Swap(false)
}

// OnSample is the producer entry point, called once per sampling tick.
func (b *Buffer) OnSample(s int16) {
	if !b.mu.TryLock() {
		b.dropped.Add(1)
		return
	}
	defer b.mu.Unlock()

	b.samples.Add(1)
	b.clipping.Store(b.clip.Update(s))
	b.trackPeak(s)

	if b.clockMode != ClockOff && b.clock.Advance() {
		switch b.clockMode {
		case ClockGate:
			if b.sampling == Gated {
				b.armed = true
				b.pos = 0
			}
		case ClockTick:
			b.symbolTick.Store(true)
		}
	}

	switch b.mode {
	case Single:
		if b.sampling == Gated && !b.armed {
			return
		}
		b.sampleSingle(s)
	case Double:
		b.sampleDouble(s)
	}
}

func (b *Buffer) trackPeak(s int16) {
	v := int32(s)
	if v < 0 {
		v = -v
	}
	if v > b.peak {
		b.peak = v
		b.peakLevel.Store(v)
	}
	b.peakCtr++
	if b.peakCtr >= b.config.PeakResetCount {
		b.peakCtr = 0
		b.peak = 0
	}
}

func (b *Buffer) sampleSingle(s int16) {
	n := b.config.Window
	if b.pos == n {
		// A full window is waiting for the consumer.
		if b.ready.Load() {
			b.raise(FaultOverrun, &b.overrunActive)
			return
		}
		b.handOffSingle()
	}

	b.fill[b.pos] = s
	b.pos++
	if b.pos < n {
		return
	}
	if b.ready.Load() {
		b.raise(FaultOverrun, &b.overrunActive)
		return
	}
	b.handOffSingle()
}

func (b *Buffer) handOffSingle() {
	copy(b.single, b.fill[:b.config.Window])
	b.pos = 0
	b.overrunActive = false
	if b.sampling == Gated {
		b.armed = false
	}
	b.ready.Store(true)
	b.wake()
}

func (b *Buffer) sampleDouble(s int16) {
	h := b.config.HalfWindow

	// The consumer has not picked up the last pair yet.
	if b.ready.Load() {
		b.raise(FaultOverrun, &b.overrunActive)
		return
	}
	b.overrunActive = false

	if b.pos == 2*h {
		if !b.processingDone.Load() {
			return
		}
		b.handOffDouble()
	}

	if b.pos == h && !b.firstCopied {
		if b.processingDone.Load() {
			copy(b.first, b.fill[:h])
			b.firstCopied = true
		} else if !b.overflowSeen {
			b.overflowSeen = true
			b.faults.Or(uint32(FaultOverflow))
		}
	}

	b.fill[b.pos] = s
	b.pos++
	if b.pos < 2*h {
		return
	}
	if !b.processingDone.Load() {
		if !b.overflowSeen {
			b.overflowSeen = true
			b.faults.Or(uint32(FaultOverflow))
		}
		return
	}
	b.handOffDouble()
}

func (b *Buffer) handOffDouble() {
	h := b.config.HalfWindow
	if !b.firstCopied {
		copy(b.first, b.fill[:h])
	}
	copy(b.second, b.fill[h:2*h])
	b.pos = 0
	b.firstCopied = false
	b.overflowSeen = false
	b.ready.Store(true)
	b.wake()
}

// raise latches flag once per continuous violation tracked by active.
func (b *Buffer) raise(flag Fault, active *bool) {
	if *active {
		return
	}
	*active = true
	b.faults.Or(uint32(flag))
}

func (b *Buffer) wake() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Notify returns a channel that receives a value when a window completes.
// Wake-ups coalesce; always drain with Acquire.
func (b *Buffer) Notify() <-chan struct{} {
	return b.notify
}

// Ready reports whether a completed window is waiting.
func (b *Buffer) Ready() bool {
	return b.ready.Load()
}

// Acquire returns the completed window, if any. In single-buffer mode the
// window stays reserved until Release. In double-buffer mode Acquire marks
// the pair as being processed, which lets the producer start filling the
// next pair; Release signals processingDone.
func (b *Buffer) Acquire() (Window, bool) {
	if !b.ready.Load() {
		return Window{}, false
	}
	if b.Mode() == Double {
		b.processingDone.Store(false)
		b.ready.Store(false)
		return Window{First: b.first, Second: b.second}, true
	}
	return Window{Single: b.single}, true
}

// Busy reports whether the consumer holds or has yet to collect a window.
func (b *Buffer) Busy() bool {
	return b.ready.Load() || !b.processingDone.Load()
}

// Release hands the window returned by Acquire back to the producer.
func (b *Buffer) Release() {
	b.ready.Store(false)
	b.processingDone.Store(true)
}

// TakeFaults returns and clears the latched handshake violations.
func (b *Buffer) TakeFaults() Fault {
	return Fault(b.faults.Swap(0))
}

// Clipping returns the clip detector state.
func (b *Buffer) Clipping() bool {
	return b.clipping.Load()
}

// PeakLevel returns the largest sample magnitude in the current peak interval.
func (b *Buffer) PeakLevel() int32 {
	return b.peakLevel.Load()
}

// Samples returns the number of samples accepted since New.
func (b *Buffer) Samples() uint64 {
	return b.samples.Load()
}

// Dropped returns the number of samples dropped during mode changes.
func (b *Buffer) Dropped() uint64 {
	return b.dropped.Load()
}
