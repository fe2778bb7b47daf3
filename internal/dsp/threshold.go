// internal/dsp/threshold.go
package dsp

import "errors"

var (
	// ErrInvalidAverageCycles indicates the averaging window must be positive
	ErrInvalidAverageCycles = errors.New("average cycles must be positive")
	// ErrInvalidDividerRange indicates the divider sweep range is invalid
	ErrInvalidDividerRange = errors.New("threshold divider range is invalid")
	// ErrInvalidDefaultThreshold indicates the default threshold has the wrong sign
	ErrInvalidDefaultThreshold = errors.New("default threshold must be non-zero and match the polarity")
)

// ThresholdRule selects how a threshold is derived from the zero-lag average.
type ThresholdRule int

const (
	// DividerSweep divides the average by a divider that advances through
	// [DividerMin, DividerMax] on every derivation, wrapping around.
	DividerSweep ThresholdRule = iota
	// Halving takes half of the average.
	Halving
)

// ThresholdConfig holds configuration for a protocol's threshold tracker.
type ThresholdConfig struct {
	// Rule selects the derivation rule
	Rule ThresholdRule
	// Negative is true when the tracked zero-lag level is negative for a
	// good signal (PSK cross-correlation of out-of-phase halves). All
	// checks then apply to the magnitude.
	Negative bool
	// Default is the safe threshold used after reset or a bad derivation
	Default int64
	// Bound caps the threshold magnitude; 0 disables the cap
	Bound int64
	// AverageCycles is the number of cycles in one rolling average
	AverageCycles int
	// DividerMin, DividerMax and DividerDefault define the divider sweep
	DividerMin, DividerMax, DividerDefault int
	// Auto derives a new threshold after every completed average. When
	// false a derivation only happens after RequestMeasurement.
	Auto bool
	// BinOffset is subtracted from the largest peak delay seen over an
	// average to form the bin threshold (0 disables bin tracking)
	BinOffset Decilag
	// DefaultBinThreshold is the bin threshold after reset
	DefaultBinThreshold Decilag
}

// Validate checks the configuration.
func (c ThresholdConfig) Validate() error {
	if c.AverageCycles <= 0 {
		return ErrInvalidAverageCycles
	}
	if c.Rule == DividerSweep {
		if c.DividerMin <= 0 || c.DividerMax < c.DividerMin ||
			c.DividerDefault < c.DividerMin || c.DividerDefault > c.DividerMax {
			return ErrInvalidDividerRange
		}
	}
	if c.Default == 0 || (c.Default < 0) != c.Negative {
		return ErrInvalidDefaultThreshold
	}
	return nil
}

// ThresholdUpdate describes what one Observe call changed.
type ThresholdUpdate struct {
	// Averaged is true when a rolling average completed this cycle
	Averaged bool
	// Derived is true when a new threshold was computed
	Derived bool
	// Clamped is true when the derivation was rejected and the default used
	Clamped bool
	// Threshold is the threshold in effect after the update
	Threshold int64
}

// ThresholdTracker keeps a protocol's decision threshold following the
// zero-lag correlation level.
type ThresholdTracker struct {
	config ThresholdConfig

	threshold int64
	divider   int

	total   int64
	count   int
	average int64

	zeroMin, zeroMax int64
	binMin, binMax   Decilag
	binThreshold     Decilag

	measure bool
}

// NewThresholdTracker creates a tracker set to its defaults.
func NewThresholdTracker(cfg ThresholdConfig) (*ThresholdTracker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	t := &ThresholdTracker{config: cfg}
	t.Reset()
	return t, nil
}

// Reset restores the protocol defaults and clears every accumulator.
func (t *ThresholdTracker) Reset() {
	t.threshold = t.config.Default
	t.divider = t.config.DividerDefault
	t.total = 0
	t.count = 0
	t.average = 0
	t.resetExtremes()
	t.binMin = 0
	t.binThreshold = t.config.DefaultBinThreshold
	t.measure = false
}

func (t *ThresholdTracker) resetExtremes() {
	t.zeroMin = 0
	t.zeroMax = 0
	t.binMax = 0
}

// RequestMeasurement asks for a derivation at the end of the current average
// even when Auto is off.
func (t *ThresholdTracker) RequestMeasurement() {
	t.measure = true
}

// Observe records one correlation result.
func (t *ThresholdTracker) Observe(res PeakResult) ThresholdUpdate {
	zero := res.Zero

	if t.config.BinOffset > 0 && zero > t.threshold {
		if res.Delay > t.binMax {
			t.binMax = res.Delay
		}
		if res.Delay != 0 && (t.binMin == 0 || res.Delay < t.binMin) {
			t.binMin = res.Delay
		}
	}
	if t.count == 0 || zero < t.zeroMin {
		t.zeroMin = zero
	}
	if t.count == 0 || zero > t.zeroMax {
		t.zeroMax = zero
	}

	t.total += zero
	t.count++

	up := ThresholdUpdate{Threshold: t.threshold}
	if t.count < t.config.AverageCycles {
		return up
	}

	t.average = t.total / int64(t.config.AverageCycles)
	binMax := t.binMax
	t.total = 0
	t.count = 0
	t.resetExtremes()
	up.Averaged = true

	if !t.config.Auto && !t.measure {
		return up
	}
	t.measure = false

	up.Derived = true
	up.Clamped = !t.derive(t.average)
	if t.config.BinOffset > 0 && binMax > t.config.BinOffset {
		t.binThreshold = binMax - t.config.BinOffset
	}
	up.Threshold = t.threshold
	return up
}

// derive sets the threshold from avg. It returns false when the result was
// rejected and the default was used instead.
func (t *ThresholdTracker) derive(avg int64) bool {
	mag := avg
	if t.config.Negative {
		mag = -avg
	}

	var th int64
	switch t.config.Rule {
	case Halving:
		th = mag / 2
	default:
		th = mag / int64(t.divider)
		t.divider++
		if t.divider > t.config.DividerMax {
			t.divider = t.config.DividerMin
		}
	}

	if mag <= 0 || th <= 0 || (t.config.Bound > 0 && th > t.config.Bound) {
		t.threshold = t.config.Default
		return false
	}
	if t.config.Negative {
		th = -th
	}
	t.threshold = th
	return true
}

// Threshold returns the current decision threshold.
func (t *ThresholdTracker) Threshold() int64 {
	return t.threshold
}

// Average returns the last completed zero-lag average.
func (t *ThresholdTracker) Average() int64 {
	return t.average
}

// Divider returns the divider the next sweep derivation will use.
func (t *ThresholdTracker) Divider() int {
	return t.divider
}

// BinThreshold returns the current peak-delay threshold.
func (t *ThresholdTracker) BinThreshold() Decilag {
	return t.binThreshold
}

// BinRange returns the smallest peak delay seen since reset and the largest
// seen in the current average.
func (t *ThresholdTracker) BinRange() (lo, hi Decilag) {
	return t.binMin, t.binMax
}

// ZeroRange returns the zero-lag extremes of the current average.
func (t *ThresholdTracker) ZeroRange() (lo, hi int64) {
	return t.zeroMin, t.zeroMax
}

// Config returns the configuration.
func (t *ThresholdTracker) Config() ThresholdConfig {
	return t.config
}
