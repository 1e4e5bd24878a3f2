package testutil

import (
	"sync"

	"github.com/roach88/datastack/internal/stack"
)

// LoggedError is one error captured by a RecordingLogger.
type LoggedError struct {
	Err      error
	Location stack.Location
}

// RecordingLogger is a stack.ErrorLogger that keeps every error it receives.
//
// Thread-safety: safe for concurrent use.
type RecordingLogger struct {
	mu      sync.Mutex
	entries []LoggedError
}

// NewRecordingLogger creates an empty recording logger.
func NewRecordingLogger() *RecordingLogger {
	return &RecordingLogger{}
}

// LogError implements stack.ErrorLogger.
func (l *RecordingLogger) LogError(err error, loc stack.Location) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, LoggedError{Err: err, Location: loc})
}

// Entries returns a copy of the captured errors in arrival order.
func (l *RecordingLogger) Entries() []LoggedError {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]LoggedError, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of captured errors.
func (l *RecordingLogger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Reset discards captured errors.
func (l *RecordingLogger) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = nil
}
