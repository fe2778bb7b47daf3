// internal/dsp/level_test.go
package dsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestEMA_StaysWithinRawBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw := rapid.SliceOfN(rapid.Int64Range(0, 1<<40), 1, 200).Draw(t, "raw")
		e := EMA{Alpha: DefaultAlpha, Weight: DefaultWeight}

		lo, hi := raw[0], raw[0]
		for _, r := range raw {
			lo = min(lo, r)
			hi = max(hi, r)
			v := e.Update(r)
			assert.GreaterOrEqual(t, v, lo)
			assert.LessOrEqual(t, v, hi)
		}
	})
}

func TestEMA_SeedsFromFirstSample(t *testing.T) {
	e := EMA{Alpha: DefaultAlpha, Weight: DefaultWeight}
	assert.Equal(t, int64(1000), e.Update(1000))
	// (192*2000 + 64*1000) / 256
	assert.Equal(t, int64(1750), e.Update(2000))

	e.Reset()
	assert.Equal(t, int64(7), e.Update(7))
}

func TestRoundUp(t *testing.T) {
	testCases := []struct {
		n, base, want int64
	}{
		{0, 100, 0},
		{1, 100, 100},
		{100, 100, 100},
		{101, 100, 200},
		{-101, 100, -200},
		{1234, 200, 1400},
		{2001, 500, 2500},
		{55, 0, 55},
	}
	for _, tc := range testCases {
		if got := RoundUp(tc.n, tc.base); got != tc.want {
			t.Errorf("RoundUp(%d, %d) = %d, want %d", tc.n, tc.base, got, tc.want)
		}
	}
}

func TestDigitalLevel(t *testing.T) {
	testCases := []struct {
		name           string
		raw, threshold int64
		negative       bool
		want           int64
	}{
		{"rtty at threshold", 5000, 5000, false, 0},
		{"rtty twice threshold", 10000, 5000, false, 5},
		{"rtty below threshold", 2500, 5000, false, -5},
		{"rtty silence", 0, 5000, false, -10},
		{"psk past threshold", -1200, -600, true, 5},
		{"psk weak", -300, -600, true, -5},
		{"psk zero threshold", 0, 0, true, 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, DigitalLevel(tc.raw, tc.threshold, tc.negative))
		})
	}
}

func TestLevelMeter_ReportInterval(t *testing.T) {
	m, err := NewLevelMeter(LevelConfig{Alpha: DefaultAlpha, Weight: DefaultWeight, ReportEvery: 11})
	require.NoError(t, err)

	reports := 0
	for i := 0; i < 33; i++ {
		if _, ok := m.Update(1500, 5000, 100); ok {
			reports++
		}
	}
	assert.Equal(t, 3, reports)
}

func TestLevelMeter_DisplayRounding(t *testing.T) {
	testCases := []struct {
		name     string
		negative bool
		raw      int64
		want     int64
	}{
		{"small", false, 450, 500},
		{"medium", false, 1450, 1600},
		{"large", false, 23100, 23500},
		{"negative", true, -1450, -1600},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			m, err := NewLevelMeter(LevelConfig{Alpha: DefaultAlpha, Weight: DefaultWeight, ReportEvery: 11, Negative: tc.negative})
			require.NoError(t, err)
			lvl, _ := m.Update(tc.raw, 100, 0)
			assert.Equal(t, tc.raw, lvl.Correlation)
			assert.Equal(t, tc.want, lvl.Display)
		})
	}
}

func TestLevelMeter_TracksExtremeOverInterval(t *testing.T) {
	m, err := NewLevelMeter(LevelConfig{Alpha: DefaultAlpha, Weight: DefaultWeight, ReportEvery: 100})
	require.NoError(t, err)

	m.Update(900, 100, 0)
	lvl, _ := m.Update(100, 100, 0)
	// Smoothed level dropped but the display holds the interval maximum.
	assert.Less(t, lvl.Correlation, int64(900))
	assert.Equal(t, int64(900), lvl.Display)
}

func TestLevelMeter_PeakMax(t *testing.T) {
	m, err := NewLevelMeter(LevelConfig{Alpha: DefaultAlpha, Weight: DefaultWeight, ReportEvery: 11})
	require.NoError(t, err)

	m.Update(0, 100, 400)
	lvl, _ := m.Update(0, 100, 0)
	assert.Equal(t, int64(100), lvl.Peak)
	assert.Equal(t, int64(400), lvl.PeakMax)

	m.Reset()
	lvl, _ = m.Update(0, 100, 20)
	assert.Equal(t, int64(20), lvl.PeakMax)
}

func TestLevelConfig_Validate(t *testing.T) {
	testCases := []struct {
		name string
		cfg  LevelConfig
		want error
	}{
		{"valid", LevelConfig{Alpha: 192, Weight: 256, ReportEvery: 1}, nil},
		{"alpha above weight", LevelConfig{Alpha: 300, Weight: 256, ReportEvery: 1}, ErrInvalidSmoothing},
		{"zero alpha", LevelConfig{Alpha: 0, Weight: 256, ReportEvery: 1}, ErrInvalidSmoothing},
		{"zero interval", LevelConfig{Alpha: 192, Weight: 256}, ErrInvalidReportInterval},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.cfg.Validate())
		})
	}
}
