// internal/dsp/level.go
package dsp

import "errors"

var (
	// ErrInvalidSmoothing indicates the filter weights are out of range
	ErrInvalidSmoothing = errors.New("smoothing weight must be in (0, weight]")
	// ErrInvalidReportInterval indicates the reporting interval must be positive
	ErrInvalidReportInterval = errors.New("report interval must be positive")
)

// Default exponential filter weights: level = (192·raw + 64·level) / 256.
const (
	DefaultAlpha  = 192
	DefaultWeight = 256
)

// EMA is an integer exponential moving average. The first sample seeds it.
type EMA struct {
	Alpha, Weight int64

	value  int64
	seeded bool
}

// Update feeds raw and returns the new smoothed value.
func (e *EMA) Update(raw int64) int64 {
	if !e.seeded {
		e.value = raw
		e.seeded = true
		return raw
	}
	e.value = (e.Alpha*raw + (e.Weight-e.Alpha)*e.value) / e.Weight
	return e.value
}

// Value returns the current smoothed value.
func (e *EMA) Value() int64 {
	return e.value
}

// Reset discards the smoothed value.
func (e *EMA) Reset() {
	e.value = 0
	e.seeded = false
}

// RoundUp rounds n away from zero to a multiple of base.
func RoundUp(n, base int64) int64 {
	if base <= 0 || n == 0 {
		return n
	}
	sign := int64(1)
	if n < 0 {
		sign = -1
		n = -n
	}
	return sign * ((n + base - 1) / base * base)
}

// displayStep picks the rounding step for a correlation level of magnitude m.
func displayStep(m int64) int64 {
	switch {
	case m < 1000:
		return 100
	case m < 2000:
		return 200
	default:
		return 500
	}
}

// LevelConfig holds configuration for a LevelMeter.
type LevelConfig struct {
	// Alpha and Weight are the exponential filter weights
	Alpha, Weight int64
	// ReportEvery is the number of updates per reporting interval
	ReportEvery int
	// Negative tracks the most negative level instead of the largest (PSK)
	Negative bool
}

// Validate checks the configuration.
func (c LevelConfig) Validate() error {
	if c.Weight <= 0 || c.Alpha <= 0 || c.Alpha > c.Weight {
		return ErrInvalidSmoothing
	}
	if c.ReportEvery <= 0 {
		return ErrInvalidReportInterval
	}
	return nil
}

// SignalLevel is one level report.
type SignalLevel struct {
	// Correlation is the smoothed zero-lag correlation level
	Correlation int64
	// Display is the interval extreme rounded to 100, 200 or 500
	Display int64
	// Digital is the smoothed distance from the threshold on a ±10 scale
	Digital int64
	// Peak is the smoothed peak sample magnitude
	Peak int64
	// PeakMax is the largest smoothed peak since reset
	PeakMax int64
	// Threshold is the decision threshold at the time of the report
	Threshold int64
}

// LevelMeter smooths correlation and sample levels for presentation.
type LevelMeter struct {
	config LevelConfig

	corr    EMA
	digital EMA
	peak    EMA

	extreme int64
	peakMax int64
	count   int
}

// NewLevelMeter creates a level meter.
func NewLevelMeter(cfg LevelConfig) (*LevelMeter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &LevelMeter{config: cfg}
	m.corr = EMA{Alpha: cfg.Alpha, Weight: cfg.Weight}
	m.digital = EMA{Alpha: cfg.Alpha, Weight: cfg.Weight}
	m.peak = EMA{Alpha: cfg.Alpha, Weight: cfg.Weight}
	return m, nil
}

// Reset clears all smoothed values.
func (m *LevelMeter) Reset() {
	m.corr.Reset()
	m.digital.Reset()
	m.peak.Reset()
	m.extreme = 0
	m.peakMax = 0
	m.count = 0
}

// Update records one cycle. raw is the zero-lag correlation sum, threshold
// the current decision threshold and peak the largest sample magnitude seen
// by the acquisition side. The returned bool is true once per interval.
func (m *LevelMeter) Update(raw, threshold, peak int64) (SignalLevel, bool) {
	smoothed := m.corr.Update(raw)
	if m.count == 0 || m.beyond(smoothed) {
		m.extreme = smoothed
	}

	digital := m.digital.Update(DigitalLevel(raw, threshold, m.config.Negative))

	p := m.peak.Update(peak)
	if p > m.peakMax {
		m.peakMax = p
	}

	mag := m.extreme
	if mag < 0 {
		mag = -mag
	}
	lvl := SignalLevel{
		Correlation: smoothed,
		Display:     RoundUp(m.extreme, displayStep(mag)),
		Digital:     digital,
		Peak:        p,
		PeakMax:     m.peakMax,
		Threshold:   threshold,
	}

	m.count++
	if m.count < m.config.ReportEvery {
		return lvl, false
	}
	m.count = 0
	return lvl, true
}

func (m *LevelMeter) beyond(v int64) bool {
	if m.config.Negative {
		return v < m.extreme
	}
	return v > m.extreme
}

// DigitalLevel returns how far raw sits from threshold on a ±10 scale.
// Positive values mean the signal is past the threshold. For a negative
// polarity the threshold and level are both negative.
func DigitalLevel(raw, threshold int64, negative bool) int64 {
	if !negative {
		if raw >= threshold {
			if raw == 0 {
				return 0
			}
			return 10 * (raw - threshold) / raw
		}
		if threshold == 0 {
			return 0
		}
		return 10 * (raw - threshold) / threshold
	}

	// Mirror the negative case onto magnitudes.
	return DigitalLevel(-raw, -threshold, false)
}
