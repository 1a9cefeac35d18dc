// Package log provides a structured logging interface for the
// neural-fingerprinting library.
//
// The package defines a minimal, slog-compatible Logger interface so that
// the training and detection components can emit structured records (epoch,
// step, loss values, accuracy) without binding to a concrete backend. The
// default implementation wraps Go's log/slog; tests use the in-memory
// TestLogger from this package.
package log

// Logger defines a structured logging interface compatible with log/slog.
//
// Fields are alternating key/value pairs, as in slog. With returns a child
// logger carrying pre-populated fields.
type Logger interface {
	// Debug logs a debug-level message with optional structured fields.
	Debug(msg string, fields ...any)

	// Info logs an info-level message with optional structured fields.
	Info(msg string, fields ...any)

	// Warn logs a warn-level message with optional structured fields.
	Warn(msg string, fields ...any)

	// Error logs an error-level message with optional structured fields.
	Error(msg string, fields ...any)

	// With returns a child logger with the given fields attached to every
	// subsequent record.
	With(fields ...any) Logger
}

// Level is the minimum severity a logger will emit.
type Level int

// Log levels in increasing severity order.
const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

// String returns the textual name of the level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	default:
		return "error"
	}
}

// ParseLevel converts a textual level name to a Level. Unknown names map to
// LevelInfo.
func ParseLevel(s string) Level {
	switch s {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}
