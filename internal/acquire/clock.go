// internal/acquire/clock.go
package acquire

// SymbolClock divides the sample stream into symbol periods. It counts in
// millibaud so rates like 45.45 baud stay exact: over any run of samples the
// number of ticks never drifts more than one from samples·baud/rate.
type SymbolClock struct {
	period int64 // sample rate in millisamples per second
	step   int64 // symbol rate in millibaud
	delay  int64 // added before the first tick after Restart
	acc    int64
}

// NewSymbolClock creates a clock ticking milliBaud/1000 times per second of
// samples at sampleRate. A zero milliBaud gives a clock that never ticks.
func NewSymbolClock(sampleRate, milliBaud int) SymbolClock {
	return SymbolClock{
		period: int64(sampleRate) * 1000,
		step:   int64(milliBaud),
	}
}

// Advance accounts for one sample and reports whether a symbol boundary
// was crossed.
func (c *SymbolClock) Advance() bool {
	if c.step <= 0 || c.period <= 0 {
		return false
	}
	c.acc += c.step
	if c.acc >= c.period {
		c.acc -= c.period
		return true
	}
	return false
}

// Restart begins a new symbol period at the current sample.
func (c *SymbolClock) Restart() {
	c.acc = -c.delay
}

// SetDelay postpones the first tick after every Restart by percent of a
// symbol, so ticks fall between symbol boundaries rather than on them.
func (c *SymbolClock) SetDelay(percent int) {
	c.delay = c.period * int64(percent) / 100
}

// SamplesPerSymbol returns the nominal symbol length in whole samples.
func (c SymbolClock) SamplesPerSymbol() int {
	if c.step <= 0 {
		return 0
	}
	return int(c.period / c.step)
}
