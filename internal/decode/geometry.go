// internal/decode/geometry.go
package decode

import (
	"errors"
	"fmt"
	"math"

	"github.com/ColonelBlimp/pskrtty/internal/acquire"
	"github.com/ColonelBlimp/pskrtty/internal/dsp"
	"github.com/ColonelBlimp/pskrtty/internal/psk"
	"github.com/ColonelBlimp/pskrtty/internal/rtty"
)

// referenceSampleRate is the rate the PSK bin offset is tuned at.
const referenceSampleRate = 9615

// maxCarrierCos bounds the cosine of the carrier phase advance over one
// half window. A steady carrier must cross-correlate clearly negative
// between the two halves so a reversal can lift the sum above threshold.
const maxCarrierCos = -0.5

var (
	// ErrCarrierPhase indicates the half window does not advance the PSK
	// carrier by roughly half a cycle
	ErrCarrierPhase = errors.New("half window must advance the PSK carrier between 120 and 240 degrees")
	// ErrHalfWindowShort indicates a half window holds less than one carrier cycle
	ErrHalfWindowShort = errors.New("half window is shorter than one PSK carrier cycle")
	// ErrWindowShort indicates an RTTY window cannot hold twice the longest tone lag
	ErrWindowShort = errors.New("RTTY window must hold at least twice the longest tone lag")
)

// WithGeometry returns c with every window-counted parameter derived for
// RTTY windows of window samples and PSK half windows of halfWindow
// samples at c.SampleRate. The framer run lengths follow the symbol length
// in windows, the PSK peak search spans one carrier cycle and the bin
// offset scales with the sample rate. The default geometry returns
// DefaultConfig unchanged.
func (c Config) WithGeometry(window, halfWindow int) (Config, error) {
	rf, err := rtty.GeometryConfig(c.SampleRate, c.RTTY.MilliBaud, window)
	if err != nil {
		return c, fmt.Errorf("rtty: %w", err)
	}
	pf, err := psk.GeometryConfig(c.SampleRate, c.PSK.MilliBaud, 2*halfWindow)
	if err != nil {
		return c, fmt.Errorf("psk: %w", err)
	}
	if c.PSK.CarrierHz <= 0 {
		return c, ErrInvalidCarrier
	}

	c.RTTY.Framer = rf
	c.PSK.Framer = pf
	c.PSK.Search.LastLag = max(c.SampleRate/c.PSK.CarrierHz-1, c.PSK.Search.FirstLag)
	c.PSK.Threshold.BinOffset = dsp.Decilag(math.Round(17 * float64(c.SampleRate) / referenceSampleRate))
	return c, nil
}

// CheckRTTYGeometry reports whether RTTY windows of window samples can
// resolve the configured tones and symbol rate.
func (c Config) CheckRTTYGeometry(window int) error {
	cl, err := rtty.NewClassifier(c.SampleRate, c.RTTY.MarkHz, c.RTTY.SpaceHz)
	if err != nil {
		return err
	}
	var errs []error
	if window < 2*cl.Search().LastLag {
		errs = append(errs, ErrWindowShort)
	}
	if _, err := rtty.GeometryConfig(c.SampleRate, c.RTTY.MilliBaud, window); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// CheckPSKGeometry reports whether PSK half windows of halfWindow samples
// can detect carrier reversals at the configured rate.
func (c Config) CheckPSKGeometry(halfWindow int) error {
	if c.PSK.CarrierHz <= 0 {
		return ErrInvalidCarrier
	}
	var errs []error
	if c.PSK.Search.LastLag >= halfWindow {
		errs = append(errs, ErrHalfWindowShort)
	}
	advance := 2 * math.Pi * float64(c.PSK.CarrierHz) * float64(halfWindow) / float64(c.SampleRate)
	if math.Cos(advance) > maxCarrierCos {
		errs = append(errs, ErrCarrierPhase)
	}
	if _, err := psk.GeometryConfig(c.SampleRate, c.PSK.MilliBaud, 2*halfWindow); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// CheckGeometry checks both modes against the buffer's window lengths.
func (c Config) CheckGeometry(acq acquire.Config) error {
	return errors.Join(c.CheckRTTYGeometry(acq.Window), c.CheckPSKGeometry(acq.HalfWindow))
}
