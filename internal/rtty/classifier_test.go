// internal/rtty/classifier_test.go
package rtty

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ColonelBlimp/pskrtty/internal/dsp"
)

const (
	testSampleRate = 9615
	testMarkHz     = 1000
	testSpaceHz    = 830
)

func tone(frequency float64, n int, amplitude, phase float64) []int16 {
	w := make([]int16, n)
	for i := range w {
		w[i] = int16(amplitude * math.Sin(2*math.Pi*frequency*float64(i)/testSampleRate+phase))
	}
	return w
}

func TestNewClassifier(t *testing.T) {
	c, err := NewClassifier(testSampleRate, testMarkHz, testSpaceHz)
	require.NoError(t, err)
	assert.Equal(t, dsp.Decilag(90), c.MarkBin)
	assert.Equal(t, dsp.Decilag(110), c.SpaceBin)

	s := c.Search()
	assert.Equal(t, 7, s.FirstLag)
	assert.Equal(t, 13, s.LastLag)
	assert.Equal(t, 2, s.SkipBelow)
	assert.NoError(t, s.Validate())
}

func TestNewClassifier_Invalid(t *testing.T) {
	testCases := []struct {
		name        string
		mark, space int
		want        error
	}{
		{"zero mark", 0, 830, ErrInvalidFrequency},
		{"space above nyquist", 1000, 5000, ErrInvalidFrequency},
		{"same bin", 1000, 990, ErrTonesTooClose},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewClassifier(testSampleRate, tc.mark, tc.space)
			assert.Equal(t, tc.want, err)
		})
	}
}

func TestClassifier_Classify(t *testing.T) {
	c, err := NewClassifier(testSampleRate, testMarkHz, testSpaceHz)
	require.NoError(t, err)

	testCases := []struct {
		name      string
		res       dsp.PeakResult
		threshold int64
		want      dsp.Decision
	}{
		{"mark", dsp.PeakResult{Zero: 9000, Delay: 96, Found: true}, 5000, dsp.Mark},
		{"space", dsp.PeakResult{Zero: 9000, Delay: 114, Found: true}, 5000, dsp.Space},
		{"between bins favours space", dsp.PeakResult{Zero: 9000, Delay: 100, Found: true}, 5000, dsp.Space},
		{"far from both", dsp.PeakResult{Zero: 9000, Delay: 130, Found: true}, 5000, dsp.Unknown},
		{"below threshold", dsp.PeakResult{Zero: 4000, Delay: 96, Found: true}, 5000, dsp.Unknown},
		{"no peak", dsp.PeakResult{Zero: 9000}, 5000, dsp.Unknown},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, c.Classify(tc.res, tc.threshold))
		})
	}
}

func TestClassifier_Tones(t *testing.T) {
	c, err := NewClassifier(testSampleRate, testMarkHz, testSpaceHz)
	require.NoError(t, err)

	for _, phase := range []float64{0, 0.4, 1.1, 2.5, 4.2} {
		mark := dsp.FindPeak(dsp.WindowAutocorrelation(tone(testMarkHz, 40, 200, phase), 30), c.Search())
		assert.Equal(t, dsp.Mark, c.Classify(mark, 5000), "mark tone, phase %.1f: %+v", phase, mark)

		space := dsp.FindPeak(dsp.WindowAutocorrelation(tone(testSpaceHz, 40, 200, phase), 30), c.Search())
		assert.Equal(t, dsp.Space, c.Classify(space, 5000), "space tone, phase %.1f: %+v", phase, space)
	}

	silence := dsp.FindPeak(dsp.WindowAutocorrelation(make([]int16, 40), 30), c.Search())
	assert.Equal(t, dsp.Unknown, c.Classify(silence, 5000))
}
