package log

import (
	"fmt"
	"sync"
)

// Record is a single captured log entry.
type Record struct {
	Level   Level
	Message string
	Fields  map[string]any
}

// TestLogger captures log records in memory for inspection in tests.
type TestLogger struct {
	mu      sync.Mutex
	level   Level
	base    []any
	records *[]Record
}

// NewTestLogger creates a TestLogger capturing records at or above level.
func NewTestLogger(level Level) *TestLogger {
	records := make([]Record, 0)
	return &TestLogger{level: level, records: &records}
}

// Records returns a copy of the captured records.
func (t *TestLogger) Records() []Record {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Record, len(*t.records))
	copy(out, *t.records)
	return out
}

// Contains reports whether any captured record's message contains msg.
func (t *TestLogger) Contains(msg string) bool {
	for _, r := range t.Records() {
		if r.Message == msg {
			return true
		}
	}
	return false
}

func (t *TestLogger) capture(level Level, msg string, fields ...any) {
	if level < t.level {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	all := make([]any, 0, len(t.base)+len(fields))
	all = append(all, t.base...)
	all = append(all, fields...)

	m := make(map[string]any, len(all)/2)
	for i := 0; i+1 < len(all); i += 2 {
		key, ok := all[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", all[i])
		}
		m[key] = all[i+1]
	}
	*t.records = append(*t.records, Record{Level: level, Message: msg, Fields: m})
}

// Debug implements Logger.
func (t *TestLogger) Debug(msg string, fields ...any) { t.capture(LevelDebug, msg, fields...) }

// Info implements Logger.
func (t *TestLogger) Info(msg string, fields ...any) { t.capture(LevelInfo, msg, fields...) }

// Warn implements Logger.
func (t *TestLogger) Warn(msg string, fields ...any) { t.capture(LevelWarn, msg, fields...) }

// Error implements Logger.
func (t *TestLogger) Error(msg string, fields ...any) { t.capture(LevelError, msg, fields...) }

// With implements Logger. The child shares the parent's record store.
func (t *TestLogger) With(fields ...any) Logger {
	child := &TestLogger{level: t.level, records: t.records}
	child.base = append(append([]any{}, t.base...), fields...)
	return child
}
