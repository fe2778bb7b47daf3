// internal/rtty/framer_test.go
package rtty

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/ColonelBlimp/pskrtty/internal/dsp"
)

func newTestFramer(t testing.TB) *Framer {
	t.Helper()
	f, err := NewFramer(DefaultConfig())
	if err != nil {
		t.Fatalf("NewFramer() error = %v", err)
	}
	return f
}

func repeat(d dsp.Decision, n int) []dsp.Decision {
	out := make([]dsp.Decision, n)
	for i := range out {
		out[i] = d
	}
	return out
}

// idle is the mark run that takes a fresh framer out of Init
func idle() []dsp.Decision {
	return repeat(dsp.Mark, DefaultConfig().LettersThreshold+1)
}

// frame returns start bit, five data bits LSB first and stop bits for code
func frame(code byte) []dsp.Decision {
	cfg := DefaultConfig()
	out := repeat(dsp.Space, cfg.StartThreshold+1)
	for i := 0; i < Bits; i++ {
		if code&(1<<i) != 0 {
			out = append(out, dsp.Mark)
		} else {
			out = append(out, dsp.Space)
		}
	}
	return append(out, repeat(dsp.Mark, cfg.StopThreshold+1)...)
}

// run feeds decisions and collects decoded characters
func run(f *Framer, decisions []dsp.Decision) (string, []Output) {
	var sb strings.Builder
	var outs []Output
	for _, d := range decisions {
		out := f.Step(d)
		outs = append(outs, out)
		if out.Ok {
			sb.WriteRune(out.Char)
		}
	}
	return sb.String(), outs
}

func encodeFrames(s string) []dsp.Decision {
	var ds []dsp.Decision
	for _, code := range EncodeString(s) {
		ds = append(ds, frame(code)...)
	}
	return ds
}

func TestConfig_Validate(t *testing.T) {
	testCases := []struct {
		name string
		mod  func(*Config)
		want error
	}{
		{"default", func(*Config) {}, nil},
		{"negative start", func(c *Config) { c.StartThreshold = -1 }, ErrInvalidThreshold},
		{"negative null", func(c *Config) { c.NullThreshold = -1 }, ErrInvalidThreshold},
		{"idle below letters", func(c *Config) { c.IdleThreshold = 20 }, ErrInvalidGuards},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mod(&cfg)
			if err := cfg.Validate(); err != tc.want {
				t.Errorf("Validate() = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestGeometryConfig(t *testing.T) {
	cfg, err := GeometryConfig(9615, 45450, 40)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)

	cfg, err = GeometryConfig(9615, 45450, 32)
	require.NoError(t, err)
	assert.Equal(t, Config{
		LettersThreshold: 39,
		StartThreshold:   1,
		StopThreshold:    1,
		NullThreshold:    6,
		IdleThreshold:    44,
	}, cfg)

	_, err = GeometryConfig(9615, 45450, 100)
	assert.ErrorIs(t, err, ErrTooFewWindows)
	_, err = GeometryConfig(9615, 0, 40)
	assert.ErrorIs(t, err, ErrTooFewWindows)
}

func TestGeometryConfig_AlwaysValid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		rate := rapid.IntRange(4000, 48000).Draw(t, "rate")
		window := rapid.IntRange(8, 1024).Draw(t, "window")
		cfg, err := GeometryConfig(rate, 45450, window)
		if err != nil {
			return
		}
		if err := cfg.Validate(); err != nil {
			t.Fatalf("GeometryConfig(%d, 45450, %d) = %+v: %v", rate, window, cfg, err)
		}
	})
}

func TestFramer_LeavesInitOnMarkRun(t *testing.T) {
	f := newTestFramer(t)
	run(f, repeat(dsp.Mark, DefaultConfig().LettersThreshold))
	assert.Equal(t, Init, f.State())

	f.Step(dsp.Mark)
	assert.Equal(t, Start, f.State())
}

func TestFramer_InterruptedMarkRunStaysInInit(t *testing.T) {
	f := newTestFramer(t)
	for i := 0; i < 10; i++ {
		run(f, repeat(dsp.Mark, 20))
		f.Step(dsp.Space)
	}
	assert.Equal(t, Init, f.State())
}

func TestFramer_RoundTripLetter(t *testing.T) {
	code, figs, ok := Encode('A')
	require.True(t, ok)
	require.False(t, figs)

	f := newTestFramer(t)
	run(f, idle())
	got, outs := run(f, frame(code))

	assert.Equal(t, "A", got)
	assert.True(t, f.Locked())
	assert.Equal(t, Start, f.State())

	// Gated sampling for the data bits only.
	var clocks []ClockAction
	for _, o := range outs {
		if o.Clock != ClockKeep {
			clocks = append(clocks, o.Clock)
		}
	}
	assert.Equal(t, []ClockAction{ClockGate, ClockRealtime}, clocks)
}

func TestFramer_RoundTripText(t *testing.T) {
	testCases := []struct {
		in, want string
	}{
		{"RYRYRY", "RYRYRY"},
		{"cq de ve3ooi", "CQ DE VE3OOI"},
		{"73 599 k", "73 599 K"},
		{"a/b-c?", "A/B-C?"},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			f := newTestFramer(t)
			run(f, idle())
			got, _ := run(f, encodeFrames(tc.in))
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestFramer_RoundTripProperty(t *testing.T) {
	alphabet := []rune("ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789 -?/.,:()")
	rapid.Check(t, func(t *rapid.T) {
		text := rapid.StringOf(rapid.SampledFrom(alphabet)).Draw(t, "text")

		f, err := NewFramer(DefaultConfig())
		require.NoError(t, err)
		run(f, idle())
		got, _ := run(f, encodeFrames(text))
		assert.Equal(t, text, got)
	})
}

func TestFramer_MissingStopBits(t *testing.T) {
	f := newTestFramer(t)
	run(f, idle())

	ds := frame(0x03) // 'A'
	ds = ds[:len(ds)-DefaultConfig().StopThreshold-1]
	ds = append(ds, repeat(dsp.Space, 10)...)
	ds = append(ds, repeat(dsp.Unknown, 10)...)

	got, _ := run(f, ds)
	assert.Empty(t, got)
	assert.False(t, f.Locked())
	assert.Equal(t, Init, f.State())
}

func TestFramer_GarbageDoesNotPanic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ds := rapid.SliceOf(rapid.SampledFrom([]dsp.Decision{dsp.Unknown, dsp.Space, dsp.Mark})).Draw(t, "decisions")
		f, err := NewFramer(DefaultConfig())
		require.NoError(t, err)
		for _, d := range ds {
			f.Step(d)
			assert.Contains(t, []State{Init, Start, Data, Stop}, f.State())
		}
	})
}

func TestFramer_NullGuard(t *testing.T) {
	f := newTestFramer(t)
	run(f, idle())
	run(f, frame(0x03))
	require.True(t, f.Locked())

	cfg := DefaultConfig()
	_, outs := run(f, repeat(dsp.Unknown, cfg.NullThreshold))
	for _, o := range outs {
		assert.False(t, o.LostLock)
	}
	require.True(t, f.Locked())

	out := f.Step(dsp.Unknown)
	assert.True(t, out.LostLock)
	assert.False(t, f.Locked())
	assert.Equal(t, Init, f.State())
}

func TestFramer_NullGuardLeavesGatedSampling(t *testing.T) {
	f := newTestFramer(t)
	run(f, idle())
	run(f, repeat(dsp.Space, DefaultConfig().StartThreshold+1))
	require.Equal(t, Data, f.State())

	_, outs := run(f, repeat(dsp.Unknown, DefaultConfig().NullThreshold+1))
	assert.Equal(t, Init, f.State())
	assert.Equal(t, ClockRealtime, outs[len(outs)-1].Clock)
}

func TestFramer_IdleGuard(t *testing.T) {
	f := newTestFramer(t)
	run(f, idle())
	run(f, frame(0x03))
	require.True(t, f.Locked())

	_, outs := run(f, repeat(dsp.Mark, DefaultConfig().IdleThreshold+1))
	lost := 0
	for _, o := range outs {
		if o.LostLock {
			lost++
		}
	}
	assert.Equal(t, 1, lost)
	assert.False(t, f.Locked())
	assert.Equal(t, Start, f.State())

	// Decoding resumes straight from Start.
	got, _ := run(f, frame(0x01))
	assert.Equal(t, "E", got)
}

func TestFramer_FiguresShift(t *testing.T) {
	f := newTestFramer(t)
	run(f, idle())
	run(f, frame(FiguresShift))
	assert.True(t, f.Figures())

	got, _ := run(f, frame(0x01))
	assert.Equal(t, "3", got)

	run(f, frame(LettersShift))
	assert.False(t, f.Figures())
	got, _ = run(f, frame(0x01))
	assert.Equal(t, "E", got)
}

func TestFramer_ResetIdempotent(t *testing.T) {
	f := newTestFramer(t)
	fresh := *f

	run(f, idle())
	run(f, encodeFrames("73 DE"))
	run(f, repeat(dsp.Space, 1))
	f.Reset()
	once := *f
	f.Reset()

	assert.Equal(t, fresh, once)
	assert.Equal(t, once, *f)
}
