// internal/decode/presenter_test.go
package decode

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ColonelBlimp/pskrtty/internal/dsp"
	"github.com/ColonelBlimp/pskrtty/internal/fault"
)

func TestParseMode(t *testing.T) {
	testCases := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"", Idle, false},
		{"idle", Idle, false},
		{"RTTY", RTTY, false},
		{" rtty ", RTTY, false},
		{"psk", PSK, false},
		{"PSK31", PSK, false},
		{"cw", Idle, true},
	}
	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseMode(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrUnknownMode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestMode_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "rtty", RTTY.String())
	assert.Equal(t, "psk", PSK.String())
	assert.Equal(t, "unknown", Mode(9).String())

	for _, m := range []Mode{Idle, RTTY, PSK} {
		got, err := ParseMode(m.String())
		require.NoError(t, err)
		assert.Equal(t, m, got)
	}
}

func TestMultiPresenter(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	p := MultiPresenter{a, b}

	p.OnCharacterDecoded('K', PSK)
	p.OnSignalLevel(dsp.SignalLevel{Correlation: 42}, PSK)
	p.OnError(fault.ErrDecodeNoLock)

	for _, r := range []*recorder{a, b} {
		assert.Equal(t, "K", r.Text())
		assert.Equal(t, []Mode{PSK}, r.modes)
		assert.Equal(t, []dsp.SignalLevel{{Correlation: 42}}, r.levels)
		assert.Equal(t, []fault.Code{fault.ErrDecodeNoLock}, r.faults)
	}

	assert.NotPanics(t, func() {
		MultiPresenter(nil).OnCharacterDecoded('x', RTTY)
	})
}
