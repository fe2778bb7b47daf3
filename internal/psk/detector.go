// internal/psk/detector.go
package psk

import "github.com/ColonelBlimp/pskrtty/internal/dsp"

// InitialPhase is the phase reported by a fresh PhaseDetector.
const InitialPhase = dsp.Space

// PhaseDetector turns the zero-lag cross-correlation of two half windows
// into a running carrier phase.
//
// A steady carrier gives a zero-lag sum below the (negative) threshold. A
// reversal inside the window, or the amplitude dip that shapes it, lifts the
// sum above the threshold. The first such window toggles the phase and
// latches; the latch releases after SteadyWindows consecutive windows back
// below the threshold, so one reversal toggles the phase exactly once.
type PhaseDetector struct {
	steady int

	phase   dsp.Decision
	latched bool
	run     int
}

// NewPhaseDetector creates a detector using cfg.SteadyWindows.
func NewPhaseDetector(cfg Config) (*PhaseDetector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &PhaseDetector{steady: cfg.SteadyWindows, phase: InitialPhase}, nil
}

// Reset restores the initial phase and releases the latch.
func (p *PhaseDetector) Reset() {
	*p = PhaseDetector{steady: p.steady, phase: InitialPhase}
}

// Detect returns the phase after the window described by res.
func (p *PhaseDetector) Detect(res dsp.PeakResult, threshold int64) dsp.Decision {
	switch {
	case res.Zero > threshold:
		p.run = 0
		if !p.latched {
			p.latched = true
			p.phase = p.phase.Opposite()
		}
	case p.latched && res.Zero < threshold:
		p.run++
		if p.run >= p.steady {
			p.latched = false
			p.run = 0
		}
	}
	return p.phase
}

// Phase returns the current phase.
func (p *PhaseDetector) Phase() dsp.Decision {
	return p.phase
}

// Latched reports whether a reversal is being held.
func (p *PhaseDetector) Latched() bool {
	return p.latched
}
