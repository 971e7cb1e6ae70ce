// internal/recovery/recovery.go
package recovery

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime/debug"
)

// ErrPanic wraps a panic recovered by Run.
var ErrPanic = errors.New("panic")

// exit is replaced in tests.
var exit = os.Exit

// HandlePanic should be deferred at the top of main() or goroutines.
// It reports the panic with a stack trace, runs the cleanups in reverse
// order and exits with code 1.
func HandlePanic(cleanups ...func()) {
	if r := recover(); r != nil {
		report(os.Stderr, r)
		for i := len(cleanups) - 1; i >= 0; i-- {
			if cleanups[i] != nil {
				cleanups[i]()
			}
		}
		exit(1)
	}
}

// Run calls fn and turns a panic into an error wrapping ErrPanic, so a
// background reader can hand the failure to its consumer instead of taking
// the process down.
func Run(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v\n%s", ErrPanic, r, debug.Stack())
		}
	}()
	fn()
	return nil
}

func report(w io.Writer, r any) {
	_, _ = fmt.Fprintf(w, "FATAL: %v\n\nStack trace:\n%s\n", r, debug.Stack())
}
