// internal/rtty/baudot.go
// Package rtty implements 45.45 baud ITA2 (Baudot) RTTY decoding from
// mark/space symbol decisions.
package rtty

import "unicode"

// ITA2 shift codes. They switch tables and never print.
const (
	FiguresShift byte = 27 // 11011
	LettersShift byte = 31 // 11111
)

// Bits is the number of data bits in a Baudot code.
const Bits = 5

const (
	nul = 0x00
	bel = 0x07
	lf  = 0x0A
	cr  = 0x0D
)

// letters and figures are indexed by Baudot code.
var letters = [32]rune{
	nul, 'E', lf, 'A', ' ', 'S', 'I', 'U',
	cr, 'D', 'R', 'J', 'N', 'F', 'C', 'K',
	'T', 'Z', 'L', 'W', 'H', 'Y', 'P', 'Q',
	'O', 'B', 'G', nul, 'M', 'X', 'V', nul,
}

var figures = [32]rune{
	nul, '3', lf, '-', ' ', bel, '8', '7',
	cr, '$', '4', '\'', ',', '!', ':', '(',
	'5', '"', ')', '2', '#', '6', '0', '1',
	'9', '?', '&', nul, '.', '/', ';', nul,
}

// Decode returns the character for a 5-bit code in the selected table.
// Shift codes, NUL and out-of-range codes return false.
func Decode(code byte, figs bool) (rune, bool) {
	if code >= 32 || code == FiguresShift || code == LettersShift {
		return 0, false
	}
	r := letters[code]
	if figs {
		r = figures[code]
	}
	return r, r != nul
}

// Encode returns the Baudot code for r and whether it lives in the figures
// table. Letters are case-insensitive. Characters present in both tables
// (space, CR, LF) report the letters table.
func Encode(r rune) (code byte, figs bool, ok bool) {
	r = unicode.ToUpper(r)
	if r == nul {
		return 0, false, false
	}
	for i, c := range letters {
		if c == r {
			return byte(i), false, true
		}
	}
	for i, c := range figures {
		if c == r {
			return byte(i), true, true
		}
	}
	return 0, false, false
}

// EncodeString converts s to a sequence of Baudot codes, starting in the
// letters table and inserting shift codes where the table changes.
// Characters with no Baudot code are skipped.
func EncodeString(s string) []byte {
	out := make([]byte, 0, len(s)+2)
	figs := false
	for _, r := range s {
		code, f, ok := Encode(r)
		if !ok {
			continue
		}
		both := r == ' ' || r == '\r' || r == '\n'
		if f != figs && !both {
			if f {
				out = append(out, FiguresShift)
			} else {
				out = append(out, LettersShift)
			}
			figs = f
		}
		out = append(out, code)
	}
	return out
}
