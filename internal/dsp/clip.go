// internal/dsp/clip.go
package dsp

import "errors"

var (
	// ErrInvalidClipLevel indicates the saturation magnitude must be positive
	ErrInvalidClipLevel = errors.New("clip saturation level must be positive")
	// ErrInvalidClipCounts indicates the debounce counts must be non-negative
	ErrInvalidClipCounts = errors.New("clip debounce counts must be non-negative")
)

// ClipConfig holds configuration for the clip detector.
type ClipConfig struct {
	// Saturation is the magnitude both samples must exceed (same sign)
	Saturation int16
	// MinDelta: samples whose XOR is below this are considered flat
	MinDelta int16
	// SetCount is the number of consecutive flat samples tolerated before clipping is asserted
	SetCount int
	// ClearCount is the number of non-flat samples tolerated before clipping clears
	ClearCount int
}

// DefaultClipConfig returns the values used with a 10-bit converter centred on 0.
func DefaultClipConfig() ClipConfig {
	return ClipConfig{
		Saturation: 200,
		MinDelta:   3,
		SetCount:   2,
		ClearCount: 500,
	}
}

// Validate checks the configuration.
func (c ClipConfig) Validate() error {
	if c.Saturation <= 0 {
		return ErrInvalidClipLevel
	}
	if c.SetCount < 0 || c.ClearCount < 0 || c.MinDelta < 0 {
		return ErrInvalidClipCounts
	}
	return nil
}

// ClipDetector flags flat-topped input: successive samples beyond the
// saturation magnitude that barely differ.
type ClipDetector struct {
	config ClipConfig

	last     int16
	setCtr   int
	clearCtr int
	clipping bool
}

// NewClipDetector creates a clip detector.
func NewClipDetector(cfg ClipConfig) (*ClipDetector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &ClipDetector{config: cfg}, nil
}

// Update feeds one sample and returns the clipping state.
func (c *ClipDetector) Update(s int16) bool {
	sat := c.config.Saturation
	if (s > sat && c.last > sat) || (s < -sat && c.last < -sat) {
		if s^c.last < c.config.MinDelta {
			c.setCtr++
			if c.setCtr > c.config.SetCount {
				c.clipping = true
				c.setCtr = 0
				c.clearCtr = 0
			}
		} else if !c.clipping {
			c.setCtr = 0
		}
	} else {
		if !c.clipping {
			c.setCtr = 0
		} else {
			c.clearCtr++
			if c.clearCtr > c.config.ClearCount {
				c.clipping = false
				c.setCtr = 0
				c.clearCtr = 0
			}
		}
	}
	c.last = s
	return c.clipping
}

// Clipping returns the current state.
func (c *ClipDetector) Clipping() bool {
	return c.clipping
}

// Reset clears all state.
func (c *ClipDetector) Reset() {
	c.last = 0
	c.setCtr = 0
	c.clearCtr = 0
	c.clipping = false
}
