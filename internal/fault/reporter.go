// internal/fault/reporter.go
package fault

import "errors"

// ErrInvalidClearCycles indicates the auto-clear delay must be positive
var ErrInvalidClearCycles = errors.New("error clear cycles must be positive")

// Notifier receives fault transitions. It is fire-and-forget.
type Notifier func(code Code)

// Reporter surfaces faults once and clears them when they go stale.
//
// Raising the code that is already displayed only refreshes its age. A
// displayed code that is not raised again for clearAfter ticks is cleared
// and None is sent. Raising a different code replaces the current one.
// Reporter is not safe for concurrent use; the decode scheduler owns it.
type Reporter struct {
	clearAfter int
	notify     Notifier

	current Code
	age     int

	raised map[Code]uint64
}

// NewReporter creates a reporter that clears a stale fault after clearAfter ticks.
func NewReporter(clearAfter int, notify Notifier) (*Reporter, error) {
	if clearAfter <= 0 {
		return nil, ErrInvalidClearCycles
	}
	return &Reporter{
		clearAfter: clearAfter,
		notify:     notify,
		raised:     make(map[Code]uint64),
	}, nil
}

// Raise reports code. It returns true when the presenter was notified.
func (r *Reporter) Raise(code Code) bool {
	if code == None {
		return false
	}
	r.raised[code]++
	r.age = 0
	if code == r.current {
		return false
	}
	r.current = code
	r.emit(code)
	return true
}

// Tick ages the displayed fault by one decode cycle.
func (r *Reporter) Tick() {
	if r.current == None {
		return
	}
	r.age++
	if r.age > r.clearAfter {
		r.current = None
		r.age = 0
		r.emit(None)
	}
}

// Current returns the displayed fault, or None.
func (r *Reporter) Current() Code {
	return r.current
}

// Count returns how many times code has been raised since the last Reset.
func (r *Reporter) Count(code Code) uint64 {
	return r.raised[code]
}

// Reset forgets the displayed fault and the counters without notifying.
func (r *Reporter) Reset() {
	r.current = None
	r.age = 0
	clear(r.raised)
}

func (r *Reporter) emit(code Code) {
	if r.notify != nil {
		r.notify(code)
	}
}
