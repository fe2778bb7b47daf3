// internal/rtty/baudot_test.go
package rtty

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeDecode_RoundTrip(t *testing.T) {
	for _, figs := range []bool{false, true} {
		for code := byte(0); code < 32; code++ {
			r, ok := Decode(code, figs)
			if !ok {
				continue
			}
			gotCode, gotFigs, ok := Encode(r)
			if !ok {
				t.Errorf("Encode(%q) failed", r)
				continue
			}
			// Space, CR and LF sit in both tables and encode as letters.
			if back, _ := Decode(gotCode, gotFigs); back != r {
				t.Errorf("Encode(%q) = (%d, %v), decodes to %q", r, gotCode, gotFigs, back)
			}
		}
	}
}

func TestDecode_ShiftCodesDoNotPrint(t *testing.T) {
	for _, code := range []byte{0, FiguresShift, LettersShift, 32, 200} {
		for _, figs := range []bool{false, true} {
			if r, ok := Decode(code, figs); ok {
				t.Errorf("Decode(%d, %v) = %q, want nothing", code, figs, r)
			}
		}
	}
}

func TestEncode_KnownCodes(t *testing.T) {
	testCases := []struct {
		r    rune
		code byte
		figs bool
	}{
		{'E', 1, false},
		{'e', 1, false},
		{'A', 3, false},
		{' ', 4, false},
		{'3', 1, true},
		{'?', 25, true},
		{'V', 30, false},
	}
	for _, tc := range testCases {
		code, figs, ok := Encode(tc.r)
		assert.True(t, ok, "Encode(%q)", tc.r)
		assert.Equal(t, tc.code, code, "Encode(%q) code", tc.r)
		assert.Equal(t, tc.figs, figs, "Encode(%q) figures", tc.r)
	}

	_, _, ok := Encode('@')
	assert.False(t, ok)
}

func TestEncodeString_InsertsShifts(t *testing.T) {
	got := EncodeString("A1 B")
	want := []byte{3, FiguresShift, 23, 4, LettersShift, 25}
	assert.Equal(t, want, got)

	assert.Empty(t, EncodeString("@@"))
}
