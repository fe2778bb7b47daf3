// internal/dsp/decision.go
package dsp

// Decision is a tri-state symbol decision. RTTY uses Mark and Space for the
// two tones; PSK uses them for the two carrier phases.
type Decision int

const (
	Unknown Decision = iota
	Space
	Mark
)

// String returns a short name for the decision.
func (d Decision) String() string {
	switch d {
	case Mark:
		return "mark"
	case Space:
		return "space"
	default:
		return "unknown"
	}
}

// Opposite returns the other binary symbol. Unknown stays Unknown.
func (d Decision) Opposite() Decision {
	switch d {
	case Mark:
		return Space
	case Space:
		return Mark
	default:
		return Unknown
	}
}
