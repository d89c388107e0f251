package recovery

import (
	"net/http"
	"runtime/debug"

	"github.com/pion/logging"
)

// Middleware recovers from panics in HTTP handlers and logs them. Peer
// input must never take the process down.
func Middleware(logger logging.LeveledLogger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logger.Errorf("PANIC: %v\nStack trace:\n%s", err, debug.Stack())

				if !headerWritten(w) {
					http.Error(w, "Internal server error", http.StatusInternalServerError)
				}
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// headerWritten checks if response headers have been sent
func headerWritten(w http.ResponseWriter) bool {
	return w.Header().Get("Content-Type") != "" || w.Header().Get("Content-Length") != ""
}

// SafeClose wraps a close operation so a panicking Close cannot take down
// the surrounding teardown.
func SafeClose(logger logging.LeveledLogger, fn func() error, name string) {
	defer func() {
		if err := recover(); err != nil {
			logger.Errorf("PANIC during %s close: %v", name, err)
		}
	}()

	if err := fn(); err != nil {
		logger.Errorf("Error closing %s: %v", name, err)
	}
}
