package stack

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Location is the place inside the stack where an error was caught.
type Location struct {
	File     string
	Function string
	Line     int
}

// ErrorLogger receives errors the stack swallows (fetch helper failures,
// delete-all skips, fault loads). It is called from whichever goroutine
// caught the error and must be safe for concurrent use.
type ErrorLogger interface {
	LogError(err error, loc Location)
}

// ConsoleLogger writes one log line per error.
type ConsoleLogger struct {
	logger *slog.Logger
}

// NewConsoleLogger creates a ConsoleLogger writing slog text records to w.
func NewConsoleLogger(w io.Writer) *ConsoleLogger {
	return &ConsoleLogger{logger: slog.New(slog.NewTextHandler(w, nil))}
}

// DefaultErrorLogger writes to stderr.
func DefaultErrorLogger() *ConsoleLogger {
	return NewConsoleLogger(os.Stderr)
}

// LogError implements ErrorLogger.
func (l *ConsoleLogger) LogError(err error, loc Location) {
	l.logger.Error("datastack error",
		"function", loc.Function,
		"line", loc.Line,
		"file", loc.File,
		"error", err)
}

// callerLocation returns the location skip frames above its caller.
func callerLocation(skip int) Location {
	pc, file, line, ok := runtime.Caller(skip + 1)
	if !ok {
		return Location{Function: "unknown"}
	}
	loc := Location{File: filepath.Base(file), Line: line, Function: "unknown"}
	if fn := runtime.FuncForPC(pc); fn != nil {
		name := fn.Name()
		// Trim the import path: "stack.(*Stack).FetchMany".
		if i := strings.LastIndex(name, "/"); i >= 0 {
			name = name[i+1:]
		}
		loc.Function = name
	}
	return loc
}

// logError reports err with the location of logError's caller.
func (s *Stack) logError(err error) {
	if s.errorLogger == nil || err == nil {
		return
	}
	s.errorLogger.LogError(err, callerLocation(1))
}
