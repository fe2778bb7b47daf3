// internal/decode/config.go
package decode

import (
	"errors"

	"github.com/ColonelBlimp/pskrtty/internal/dsp"
	"github.com/ColonelBlimp/pskrtty/internal/fault"
	"github.com/ColonelBlimp/pskrtty/internal/psk"
	"github.com/ColonelBlimp/pskrtty/internal/rtty"
)

var (
	// ErrInvalidSymbolRate indicates a symbol rate must be positive
	ErrInvalidSymbolRate = errors.New("symbol rate must be positive")
	// ErrInvalidCarrier indicates the PSK carrier is not between 0 and Nyquist
	ErrInvalidCarrier = errors.New("PSK carrier must be positive and below half the sample rate")
)

// RTTYConfig holds the RTTY decode chain settings.
type RTTYConfig struct {
	// MarkHz and SpaceHz are the audio tone frequencies
	MarkHz, SpaceHz int
	// MilliBaud is the symbol rate of the gated data-bit clock
	MilliBaud int
	// DCLimit rejects windows dominated by one sign (0 disables)
	DCLimit int
	// Threshold tracks the zero-lag autocorrelation level
	Threshold dsp.ThresholdConfig
	// Framer holds the Baudot framing run thresholds
	Framer rtty.Config
}

// PSKConfig holds the PSK31 decode chain settings.
type PSKConfig struct {
	// CarrierHz is the audio carrier frequency
	CarrierHz int
	// MilliBaud is the symbol rate of the bit clock
	MilliBaud int
	// TickDelay postpones the first bit tick after a start by this
	// percentage of a symbol
	TickDelay int
	// Search is the cross-correlation peak search
	Search dsp.PeakSearch
	// Threshold tracks the zero-lag cross-correlation level
	Threshold dsp.ThresholdConfig
	// Framer holds the Varicode framing parameters
	Framer psk.Config
}

// Config holds the decode scheduler configuration.
type Config struct {
	// SampleRate is the acquisition sample rate in Hz
	SampleRate int
	RTTY       RTTYConfig
	PSK        PSKConfig
	// Level smooths correlation levels for presentation; Negative is
	// set per mode
	Level dsp.LevelConfig
	// ErrorClearCycles is the number of cycles a fault stays displayed
	// after it was last raised
	ErrorClearCycles int
}

// DefaultConfig returns the settings for 9615 Hz sampling, 1000/830 Hz
// RTTY tones and PSK31 on the same carrier.
func DefaultConfig() Config {
	return Config{
		SampleRate: 9615,
		RTTY: RTTYConfig{
			MarkHz:    1000,
			SpaceHz:   830,
			MilliBaud: 45450,
			DCLimit:   30,
			Threshold: dsp.ThresholdConfig{
				Rule:           dsp.DividerSweep,
				Default:        5000,
				AverageCycles:  90,
				DividerMin:     7,
				DividerMax:     11,
				DividerDefault: 8,
				Auto:           true,
			},
			Framer: rtty.DefaultConfig(),
		},
		PSK: PSKConfig{
			CarrierHz: 1000,
			MilliBaud: 31250,
			TickDelay: 50,
			Search: dsp.PeakSearch{
				FirstLag:    0,
				LastLag:     8,
				SkipBelow:   -1,
				FractionNum: 1,
				FractionDen: 1,
			},
			Threshold: dsp.ThresholdConfig{
				Rule:                dsp.Halving,
				Negative:            true,
				Default:             -600,
				AverageCycles:       90,
				Auto:                true,
				BinOffset:           17,
				DefaultBinThreshold: 56,
			},
			Framer: psk.DefaultConfig(),
		},
		Level: dsp.LevelConfig{
			Alpha:       dsp.DefaultAlpha,
			Weight:      dsp.DefaultWeight,
			ReportEvery: 100,
		},
		ErrorClearCycles: 10000,
	}
}

// Validate checks every part of the configuration and reports all problems.
func (c Config) Validate() error {
	var errs []error
	if c.RTTY.MilliBaud <= 0 || c.PSK.MilliBaud <= 0 {
		errs = append(errs, ErrInvalidSymbolRate)
	}
	if c.PSK.CarrierHz <= 0 || 2*c.PSK.CarrierHz >= c.SampleRate {
		errs = append(errs, ErrInvalidCarrier)
	}
	if _, err := rtty.NewClassifier(c.SampleRate, c.RTTY.MarkHz, c.RTTY.SpaceHz); err != nil {
		errs = append(errs, err)
	}
	if err := c.RTTY.Threshold.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.RTTY.Framer.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.PSK.Search.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.PSK.Threshold.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.PSK.Framer.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Level.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.ErrorClearCycles <= 0 {
		errs = append(errs, fault.ErrInvalidClearCycles)
	}
	return errors.Join(errs...)
}
