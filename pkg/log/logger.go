package log

import (
	"log/slog"
	"os"
	"sync"
)

const (
	// ErrAttrKey is the attribute key used for error values.
	ErrAttrKey = "error"
)

// ErrAttr wraps an error for structured logging.
func ErrAttr(err error) slog.Attr {
	return slog.Any(ErrAttrKey, err)
}

// slogLogger adapts *slog.Logger to the Logger interface.
type slogLogger struct {
	l *slog.Logger
}

func (s *slogLogger) Debug(msg string, fields ...any) { s.l.Debug(msg, fields...) }
func (s *slogLogger) Info(msg string, fields ...any)  { s.l.Info(msg, fields...) }
func (s *slogLogger) Warn(msg string, fields ...any)  { s.l.Warn(msg, fields...) }
func (s *slogLogger) Error(msg string, fields ...any) { s.l.Error(msg, fields...) }

func (s *slogLogger) With(fields ...any) Logger {
	return &slogLogger{l: s.l.With(fields...)}
}

var (
	defaultMu     sync.RWMutex
	defaultLogger Logger = &slogLogger{l: slog.Default()}
)

// SetupLogger installs a JSON slog handler at the given level as the
// package default. Level names follow ParseLevel.
func SetupLogger(level string) {
	var slogLevel slog.Level
	switch ParseLevel(level) {
	case LevelDebug:
		slogLevel = slog.LevelDebug
	case LevelWarn:
		slogLevel = slog.LevelWarn
	case LevelError:
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	handler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slogLevel})
	SetLogger(&slogLogger{l: slog.New(handler)})
}

// SetLogger replaces the package default logger. Intended for tests and for
// applications that bring their own backend.
func SetLogger(l Logger) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultLogger = l
}

// GetLogger returns the package default logger.
func GetLogger() Logger {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultLogger
}

// GetLoggerWithName returns the default logger with a component name field
// attached, e.g. "nfp.trainer".
func GetLoggerWithName(name string) Logger {
	return GetLogger().With(ComponentKey, name)
}
