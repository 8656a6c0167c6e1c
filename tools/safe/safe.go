package safe

import (
	"PNotify/tools/errs"

	"go.uber.org/zap"
)

// Go starts f in a new goroutine that recovers from panic,
// so one broken connection never takes the process down.
func Go(log *zap.Logger, name string, f func()) {
	go Run(log, name, f)
}

// Run calls f and converts a panic into a logged error. It reports whether f panicked.
func Run(log *zap.Logger, name string, f func()) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			if log != nil {
				log.Error("panic recovered", zap.String("goroutine", name), zap.Error(errs.ErrPanic(r)))
			}
		}
	}()
	f()
	return false
}
