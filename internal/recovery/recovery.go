// internal/recovery/recovery.go
package recovery

import (
	"errors"
	"fmt"
	"os"
	"runtime/debug"
)

// ErrPanic is wrapped by errors returned from a guarded function that panicked.
var ErrPanic = errors.New("panic")

// HandlePanic should be deferred at the top of main().
// It logs panic details and exits with code 1.
func HandlePanic() {
	if r := recover(); r != nil {
		_, _ = fmt.Fprintf(os.Stderr, "FATAL: %v\n\nStack trace:\n%s\n", r, debug.Stack())
		os.Exit(1)
	}
}

// HandlePanicFunc logs panic details, calls cleanup and exits with code 1.
// Defer it in goroutines that hold resources which must be released even
// when the process dies, such as an open audio device.
func HandlePanicFunc(cleanup func()) {
	if r := recover(); r != nil {
		_, _ = fmt.Fprintf(os.Stderr, "FATAL: %v\n\nStack trace:\n%s\n", r, debug.Stack())
		if cleanup != nil {
			cleanup()
		}
		os.Exit(1)
	}
}

// Guard wraps fn for errgroup.Group.Go. A panic in fn is returned as an
// error wrapping ErrPanic with the stack attached, so the group cancels its
// siblings and the caller can shut down in order.
func Guard(fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("%w: %v\n\nStack trace:\n%s", ErrPanic, r, debug.Stack())
			}
		}()
		return fn()
	}
}
