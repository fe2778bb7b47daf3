// internal/audio/source.go
package audio

import (
	"context"
	"errors"

	"github.com/ColonelBlimp/pskrtty/internal/acquire"
)

// Source delivers blocks of signed samples at the decoder's sample rate.
// Stream returns when the source ends, fn fails or ctx is done.
type Source interface {
	Stream(ctx context.Context, fn func([]int16) error) error
}

var (
	_ Source = (*Capture)(nil)
	_ Source = (*WAVPlayer)(nil)
)

// Feed streams src into the acquisition buffer through f. A capture device
// keeps its own clock, so its blocks are pushed from the audio thread
// without waiting; a decoder that falls behind raises an overrun. Other
// sources wait on a busy decoder for up to the feeder's slack.
func Feed(ctx context.Context, src Source, f *acquire.Feeder) error {
	push := func(block []int16) error {
		return f.Feed(ctx, block)
	}
	if _, live := src.(*Capture); live {
		push = func(block []int16) error {
			f.Push(block)
			return nil
		}
	}
	err := src.Stream(ctx, push)
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	return err
}
