package compositor

import (
	"log/slog"

	"github.com/gogpu/compositor/internal/logging"
)

// SetLogger configures the logger for the compositor and all its
// sub-packages. By default nothing is logged. Pass nil to restore the
// silent default. SetLogger is safe for concurrent use.
//
// Log levels used:
//   - [slog.LevelDebug]: per-frame diagnostics (frames, quads, schedule delay)
//   - [slog.LevelInfo]: lifecycle events (engine initialized, paused, resumed, destroyed)
//   - [slog.LevelWarn]: layers skipped for a frame, rejected updates
//   - [slog.LevelError]: fatal errors that disable compositing
//
// Example:
//
//	compositor.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	logging.Set(l)
}

// Logger returns the current logger. Safe for concurrent use.
func Logger() *slog.Logger {
	return logging.Logger()
}
