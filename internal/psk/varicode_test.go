// internal/psk/varicode_test.go
package psk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVaricode_TableInvariants(t *testing.T) {
	seen := make(map[uint16]int)
	for c, code := range varicode {
		bits := strings.TrimLeft(formatBits(code), "0")
		if strings.Contains(bits, "00") {
			t.Errorf("varicode[%d] = %s holds two consecutive zeros", c, bits)
		}
		if code&1 == 0 {
			t.Errorf("varicode[%d] = %s does not start with a one", c, bits)
		}
		if n := BitLength(code); n < 1 || n > MaxCodeBits {
			t.Errorf("BitLength(varicode[%d]) = %d", c, n)
		}
		if prev, dup := seen[code]; dup {
			t.Errorf("varicode[%d] duplicates varicode[%d]", c, prev)
		}
		seen[code] = c

		back, ok := ConvertVaricode(code)
		if !ok || int(back) != c {
			t.Errorf("ConvertVaricode(%#04x) = %d, %v, want %d", code, back, ok, c)
		}
	}
}

func formatBits(code uint16) string {
	var sb strings.Builder
	for i := 15; i >= 0; i-- {
		if code&(1<<i) != 0 {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

func TestLookupVaricode(t *testing.T) {
	testCases := []struct {
		c    byte
		want uint16
	}{
		{'A', 0x005f},
		{'e', 0x0003},
		{' ', 0x0001},
		{'\r', 0x001f},
		{'\n', 0x0017},
		{0, 0x0355},
	}
	for _, tc := range testCases {
		got, ok := LookupVaricode(tc.c)
		assert.True(t, ok, "LookupVaricode(%q)", tc.c)
		assert.Equal(t, tc.want, got, "LookupVaricode(%q)", tc.c)
	}

	_, ok := LookupVaricode(0x80)
	assert.False(t, ok)
}

func TestConvertVaricode_Unknown(t *testing.T) {
	for _, code := range []uint16{0, 0x0002, 0x07ff, 0xffff} {
		_, ok := ConvertVaricode(code)
		assert.False(t, ok, "ConvertVaricode(%#04x)", code)
	}
}

func TestEncodeBits(t *testing.T) {
	assert.Equal(t, []byte{1, 1, 0, 0, 1, 0, 0}, EncodeBits("e "))
	assert.Equal(t, []byte{1, 1, 1, 1, 1, 0, 1, 0, 0}, EncodeBits("A\xff"))
	assert.Empty(t, EncodeBits(""))
}
