// internal/acquire/feed.go
package acquire

import (
	"context"
	"runtime"
	"time"
)

// Feeder replays blocks of samples into a Buffer one at a time.
//
// Audio backends deliver samples in periods of hundreds of frames, while the
// buffer expects one sample per sampling tick. After each sample the feeder
// gives a busy consumer up to Slack to collect or release its window, which
// is the time the consumer would have had between ticks on real hardware. A
// consumer that stays busy longer trips the buffer's overrun handling.
type Feeder struct {
	buf   *Buffer
	slack time.Duration
}

// NewFeeder creates a feeder. A zero slack gives the consumer the length of
// one half window at the configured sample rate.
func NewFeeder(buf *Buffer, slack time.Duration) *Feeder {
	if slack <= 0 {
		slack = HalfWindowPeriod(buf.Config())
	}
	return &Feeder{buf: buf, slack: slack}
}

// HalfWindowPeriod returns the time cfg.HalfWindow samples take to arrive.
func HalfWindowPeriod(cfg Config) time.Duration {
	return time.Duration(cfg.HalfWindow) * time.Second / time.Duration(cfg.SampleRate)
}

// Feed pushes samples through the buffer. It returns the context error as
// soon as ctx is done, including while waiting on a busy consumer.
func (f *Feeder) Feed(ctx context.Context, samples []int16) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, s := range samples {
		f.buf.OnSample(s)
		if f.buf.Busy() {
			if err := f.wait(ctx); err != nil {
				return err
			}
		}
	}
	return nil
}

// Push hands samples to the buffer without waiting. Sources paced by a
// device clock use it from their callback; a consumer that falls behind
// trips an overrun exactly as it would between hardware ticks.
func (f *Feeder) Push(samples []int16) {
	for _, s := range samples {
		f.buf.OnSample(s)
	}
}

func (f *Feeder) wait(ctx context.Context) error {
	deadline := time.Now().Add(f.slack)
	for f.buf.Busy() && time.Now().Before(deadline) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		runtime.Gosched()
	}
	return nil
}

// Slack returns the time a busy consumer is given after each sample.
func (f *Feeder) Slack() time.Duration {
	return f.slack
}
