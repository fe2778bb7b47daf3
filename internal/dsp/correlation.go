// internal/dsp/correlation.go
package dsp

import "errors"

var (
	// ErrInvalidLagRange indicates the peak search range is empty or negative
	ErrInvalidLagRange = errors.New("peak search lag range is invalid")
	// ErrInvalidPeakFraction indicates the zero-lag fraction must be positive
	ErrInvalidPeakFraction = errors.New("peak fraction must have a positive numerator and denominator")
)

// Decilag is a correlation lag in fixed point with one decimal digit:
// a Decilag of 96 is a lag of 9.6 samples. Integer arithmetic keeps peak
// estimates bit-for-bit reproducible across platforms.
type Decilag int

// DecilagScale is the number of Decilag units per whole sample of lag.
const DecilagScale = 10

// Lag returns the whole-sample part of d.
func (d Decilag) Lag() int {
	return int(d) / DecilagScale
}

// LagToDecilag converts a whole-sample lag to Decilag.
func LagToDecilag(lag int) Decilag {
	return Decilag(lag * DecilagScale)
}

// Autocorrelate returns Σ w[i]·w[i+lag] for i in [0, len(w)-lag).
//
// A window holding dcLimit or more strictly positive samples, or dcLimit or
// more strictly negative ones, is dominated by a DC level rather than a
// periodic signal and yields 0 at every lag. A dcLimit of 0 or less disables
// the check.
func Autocorrelate(w []int16, lag, dcLimit int) int64 {
	if lag < 0 || lag >= len(w) {
		return 0
	}
	if dcLimit > 0 && DCDominated(w, dcLimit) {
		return 0
	}
	var total int64
	for i := 0; i < len(w)-lag; i++ {
		total += int64(w[i]) * int64(w[i+lag])
	}
	return total
}

// DCDominated reports whether w holds at least limit strictly positive or
// limit strictly negative samples.
func DCDominated(w []int16, limit int) bool {
	var plus, minus int
	for _, s := range w {
		if s > 0 {
			plus++
		} else if s < 0 {
			minus++
		}
		if plus >= limit || minus >= limit {
			return true
		}
	}
	return false
}

// Crosscorrelate returns Σ a[lag+j]·b[j] for every j with lag+j < size.
// Both slices must hold at least size samples.
func Crosscorrelate(a, b []int16, size, lag int) int64 {
	if lag < 0 {
		return 0
	}
	var total int64
	for j := 0; lag+j < size; j++ {
		total += int64(a[lag+j]) * int64(b[j])
	}
	return total
}

// CorrelationFunc evaluates a correlation sum at the given lag.
type CorrelationFunc func(lag int) int64

// PeakSearch configures FindPeak.
type PeakSearch struct {
	// FirstLag and LastLag bound the scan (inclusive).
	FirstLag, LastLag int
	// SkipBelow skips lags <= SkipBelow, so the zero-lag maximum of an
	// autocorrelation can never be taken for a peak. Use -1 to scan from 0.
	SkipBelow int
	// FractionNum/FractionDen is the minimum candidate value as a fraction
	// of the zero-lag sum (4/10 for RTTY autocorrelation, 1/1 for PSK).
	FractionNum, FractionDen int64
}

// Validate checks the search parameters.
func (s PeakSearch) Validate() error {
	if s.FirstLag < 0 || s.LastLag < s.FirstLag {
		return ErrInvalidLagRange
	}
	if s.FractionNum <= 0 || s.FractionDen <= 0 {
		return ErrInvalidPeakFraction
	}
	return nil
}

// PeakResult is the outcome of one FindPeak scan.
type PeakResult struct {
	// Zero is the correlation sum at lag 0.
	Zero int64
	// Lag is the whole-sample lag of the accepted peak (0 when not found).
	Lag int
	// Delay is the interpolated peak position (0 when not found).
	Delay Decilag
	// Max is the correlation sum at Lag.
	Max int64
	// Found reports whether a peak was accepted.
	Found bool
}

// FindPeak scans corr over the configured lags looking for a single peak.
//
// A lag becomes the candidate when its value is at least the zero-lag
// fraction, greater than the value at the previous lag and greater than every
// earlier candidate. The value right after the candidate decides it: lower
// means the candidate is accepted as a peak, not lower means the candidate is
// discarded and scanning resumes with no candidate at all. The discard can
// skip a legitimate secondary peak; thresholds downstream were tuned against
// this behaviour so it is kept.
//
// A candidate is only accepted once a lag inside the range confirms it, so a
// maximum on LastLag is never a peak. A later, larger candidate replaces an
// accepted peak and must be confirmed in turn.
//
// The accepted peak is refined by fitting a parabola through the peak and its
// neighbours k1, k2, k3: offset = (k3-k1) / (2·(2·k2-k1-k3)), returned in
// Decilag units.
func FindPeak(corr CorrelationFunc, s PeakSearch) PeakResult {
	res := PeakResult{Zero: corr(0)}
	minimum := res.Zero * s.FractionNum / s.FractionDen

	start := max(s.FirstLag, s.SkipBelow+1)
	prev := res.Zero
	if start > 0 {
		prev = corr(start - 1)
	}

	var k1, k2, k3, best int64
	cand := 0
	accepted := false

	for i := start; i <= s.LastLag; i++ {
		old := prev
		cur := corr(i)
		prev = cur

		if cur >= minimum && cur > old && cur > best {
			best = cur
			cand = i
			k1, k2, k3 = old, cur, 0
			accepted = false
		}

		if cand != 0 && cand == i-1 {
			if cur < k2 {
				k3 = cur
				accepted = true
			} else if k1 != 0 {
				best, cand, k1, k2, k3 = 0, 0, 0, 0, 0
				accepted = false
			}
		}
	}

	if !accepted || best == 0 || cand == 0 || k1 >= k2 || k3 >= k2 {
		return PeakResult{Zero: res.Zero}
	}

	frac := (k3 - k1) * (DecilagScale / 2) / (2*k2 - k1 - k3)
	res.Lag = cand
	res.Delay = LagToDecilag(cand) + Decilag(frac)
	res.Max = best
	res.Found = true
	return res
}

// WindowAutocorrelation adapts a window to a CorrelationFunc using Autocorrelate.
// The DC check runs once for the whole window.
func WindowAutocorrelation(w []int16, dcLimit int) CorrelationFunc {
	if dcLimit > 0 && DCDominated(w, dcLimit) {
		return func(int) int64 { return 0 }
	}
	return func(lag int) int64 {
		return Autocorrelate(w, lag, 0)
	}
}

// WindowCrosscorrelation adapts two half windows to a CorrelationFunc.
func WindowCrosscorrelation(a, b []int16, size int) CorrelationFunc {
	return func(lag int) int64 {
		return Crosscorrelate(a, b, size, lag)
	}
}
