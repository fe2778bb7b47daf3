// internal/rtty/classifier.go
package rtty

import (
	"errors"

	"github.com/ColonelBlimp/pskrtty/internal/dsp"
)

var (
	// ErrInvalidFrequency indicates a tone frequency is out of range
	ErrInvalidFrequency = errors.New("tone frequency must be positive and below half the sample rate")
	// ErrTonesTooClose indicates mark and space map to the same lag bin
	ErrTonesTooClose = errors.New("mark and space frequencies fall in the same lag bin")
)

// Classifier maps an autocorrelation peak to a mark or space decision. A
// tone of frequency f has its first autocorrelation peak at a lag of
// sampleRate/f samples; the whole-sample part of that lag is the tone's bin.
type Classifier struct {
	MarkBin   dsp.Decilag
	SpaceBin  dsp.Decilag
	Tolerance dsp.Decilag
}

// NewClassifier derives the mark and space bins. Delays within one whole
// lag of a bin are accepted.
func NewClassifier(sampleRate, markHz, spaceHz int) (Classifier, error) {
	for _, f := range []int{markHz, spaceHz} {
		if f <= 0 || 2*f >= sampleRate {
			return Classifier{}, ErrInvalidFrequency
		}
	}
	c := Classifier{
		MarkBin:   dsp.LagToDecilag(sampleRate / markHz),
		SpaceBin:  dsp.LagToDecilag(sampleRate / spaceHz),
		Tolerance: dsp.DecilagScale,
	}
	if c.MarkBin == c.SpaceBin {
		return Classifier{}, ErrTonesTooClose
	}
	return c, nil
}

// Search returns the peak search covering both bins with two lags of margin.
func (c Classifier) Search() dsp.PeakSearch {
	lo, hi := c.MarkBin.Lag(), c.SpaceBin.Lag()
	if lo > hi {
		lo, hi = hi, lo
	}
	return dsp.PeakSearch{
		FirstLag:    max(lo-2, 0),
		LastLag:     hi + 2,
		SkipBelow:   2,
		FractionNum: 4,
		FractionDen: 10,
	}
}

// Classify returns Space or Mark when res holds a peak near the respective
// bin and its zero-lag level reaches threshold. Space is checked first.
func (c Classifier) Classify(res dsp.PeakResult, threshold int64) dsp.Decision {
	if !res.Found || res.Zero < threshold {
		return dsp.Unknown
	}
	switch {
	case abs(res.Delay-c.SpaceBin) <= c.Tolerance:
		return dsp.Space
	case abs(res.Delay-c.MarkBin) <= c.Tolerance:
		return dsp.Mark
	default:
		return dsp.Unknown
	}
}

func abs(d dsp.Decilag) dsp.Decilag {
	if d < 0 {
		return -d
	}
	return d
}
