// internal/decode/signal_test.go
package decode

import (
	"math"

	"github.com/ColonelBlimp/pskrtty/internal/psk"
	"github.com/ColonelBlimp/pskrtty/internal/rtty"
)

const (
	testRate      = 9615
	testMarkHz    = 1000
	testSpaceHz   = 830
	testAmplitude = 200
)

// fsk returns continuous-phase 45.45 baud RTTY for text: idle marks, then
// start bit, five data bits and 1.5 stop bits per code, then more marks.
func fsk(text string, idleBits, tailBits float64) []int16 {
	type run struct {
		mark   bool
		length float64
	}
	runs := []run{{true, idleBits}}
	for _, code := range rtty.EncodeString(text) {
		runs = append(runs, run{false, 1})
		for i := 0; i < rtty.Bits; i++ {
			runs = append(runs, run{code&(1<<i) != 0, 1})
		}
		runs = append(runs, run{true, 1.5})
	}
	runs = append(runs, run{true, tailBits})

	sps := testRate / 45.45
	var out []int16
	var phase, edge float64
	for _, r := range runs {
		edge += r.length * sps
		f := float64(testSpaceHz)
		if r.mark {
			f = testMarkHz
		}
		for float64(len(out)) < edge {
			out = append(out, int16(testAmplitude*math.Sin(phase)))
			phase += 2 * math.Pi * f / testRate
		}
	}
	return out
}

// bpsk returns PSK31 on a 1000 Hz carrier for text, preceded and followed
// by runs of reversals. Each reversal is shaped by a sine envelope that
// falls to zero on the symbol boundary.
func bpsk(text string, preamble, postamble int) []int16 {
	bits := make([]byte, preamble)
	bits = append(bits, psk.EncodeBits(text)...)
	bits = append(bits, make([]byte, postamble)...)

	sign := make([]float64, len(bits))
	s := 1.0
	for k, b := range bits {
		if b == 0 {
			s = -s
		}
		sign[k] = s
	}

	sps := testRate * 1000 / 31250.0
	n := int(float64(len(bits)) * sps)
	out := make([]int16, n)
	for i := range out {
		t := float64(i)
		k := int(t / sps)
		if k >= len(bits) {
			break
		}
		env := 1.0
		kb := int(math.Round(t / sps))
		if kb > 0 && kb < len(bits) && bits[kb] == 0 {
			if d := t - float64(kb)*sps; math.Abs(d) < sps/2 {
				env = math.Abs(math.Sin(math.Pi * d / sps))
			}
		}
		out[i] = int16(testAmplitude * env * sign[k] * math.Sin(2*math.Pi*testMarkHz*t/testRate+0.3))
	}
	return out
}
