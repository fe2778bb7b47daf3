// internal/psk/varicode.go
// Package psk implements PSK31 receive framing: phase reversal detection on
// the cross-correlation of two half windows, and Varicode character framing.
package psk

import "math/bits"

// MaxCodeBits is the length of the longest Varicode word.
const MaxCodeBits = 10

// varicode holds the Varicode word for every 7-bit ASCII value. Words are
// stored bit reversed: bit 0 is the first bit on air. Every word starts and
// ends with a one and holds no two consecutive zeros.
var varicode = [128]uint16{
	0x0355, 0x036d, 0x02dd, 0x03bb, 0x035d, 0x03eb, 0x03dd, 0x02fd, // NUL..0x07
	0x03fd, 0x00f7, 0x0017, 0x03db, 0x02ed, 0x001f, 0x02bb, 0x0357, // BS..0x0f
	0x03bd, 0x02bd, 0x02d7, 0x03d7, 0x036b, 0x035b, 0x02db, 0x03ab, // 0x10..0x17
	0x037b, 0x02fb, 0x03b7, 0x02ab, 0x02eb, 0x0377, 0x037d, 0x03fb, // 0x18..0x1f
	0x0001, 0x01ff, 0x01f5, 0x015f, 0x01b7, 0x02ad, 0x0375, 0x01fd, // space..'
	0x00df, 0x00ef, 0x01ed, 0x01f7, 0x0057, 0x002b, 0x0075, 0x01eb, // (../
	0x00ed, 0x00bd, 0x00b7, 0x00ff, 0x01dd, 0x01b5, 0x01ad, 0x016b, // 0..7
	0x01ab, 0x01db, 0x00af, 0x017b, 0x016f, 0x0055, 0x01d7, 0x03d5, // 8..?
	0x02f5, 0x005f, 0x00d7, 0x00b5, 0x00ad, 0x0077, 0x00db, 0x00bf, // @..G
	0x0155, 0x007f, 0x017f, 0x017d, 0x00eb, 0x00dd, 0x00bb, 0x00d5, // H..O
	0x00ab, 0x0177, 0x00f5, 0x007b, 0x005b, 0x01d5, 0x015b, 0x0175, // P..W
	0x015d, 0x01bd, 0x02d5, 0x01df, 0x01ef, 0x01bf, 0x03f5, 0x016d, // X.._
	0x03ed, 0x000d, 0x007d, 0x003d, 0x002d, 0x0003, 0x002f, 0x006d, // `..g
	0x0035, 0x000b, 0x01af, 0x00fd, 0x001b, 0x0037, 0x000f, 0x0007, // h..o
	0x003f, 0x01fb, 0x0015, 0x001d, 0x0005, 0x003b, 0x006f, 0x006b, // p..w
	0x00fb, 0x005d, 0x0157, 0x03b5, 0x01bb, 0x02b5, 0x03ad, 0x02b7, // x..DEL
}

var reverse = func() map[uint16]byte {
	m := make(map[uint16]byte, len(varicode))
	for i, code := range varicode {
		m[code] = byte(i)
	}
	return m
}()

// LookupVaricode returns the Varicode word for c. It fails for c >= 128.
func LookupVaricode(c byte) (uint16, bool) {
	if int(c) >= len(varicode) {
		return 0, false
	}
	return varicode[c], true
}

// ConvertVaricode returns the character whose Varicode word is code.
func ConvertVaricode(code uint16) (byte, bool) {
	c, ok := reverse[code]
	return c, ok
}

// BitLength returns the number of bits on air for code, separator excluded.
func BitLength(code uint16) int {
	return bits.Len16(code)
}

// EncodeBits returns the bit stream for s, each word followed by the two
// zero separator bits. Characters outside 7-bit ASCII are skipped.
func EncodeBits(s string) []byte {
	var out []byte
	for i := 0; i < len(s); i++ {
		code, ok := LookupVaricode(s[i])
		if !ok {
			continue
		}
		for n := BitLength(code); n > 0; n-- {
			out = append(out, byte(code&1))
			code >>= 1
		}
		out = append(out, 0, 0)
	}
	return out
}
