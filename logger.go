package zarr

import (
	"log"
	"os"
)

// Logger is the minimal logging surface the chunk engine calls into: debug
// traces for concurrency decisions, warnings for conditions an operation
// recovers from rather than fails on. The teacher has no structured logger
// of its own and gocloud.dev/gomlx only pull in otel transitively, so this
// stays a small interface satisfied by the standard library's log.Logger
// rather than adopting a logging dependency the rest of the corpus never
// reaches for directly.
type Logger interface {
	Debugf(format string, args ...any)
	Warnf(format string, args ...any)
}

// stdLogger adapts *log.Logger to Logger.
type stdLogger struct{ l *log.Logger }

func (s stdLogger) Debugf(format string, args ...any) { s.l.Printf("DEBUG: "+format, args...) }
func (s stdLogger) Warnf(format string, args ...any)  { s.l.Printf("WARN: "+format, args...) }

// NewStdLogger wraps a standard library logger as a Logger.
func NewStdLogger(l *log.Logger) Logger { return stdLogger{l: l} }

// DefaultLogger is the Logger used by an Array constructed without one
// explicitly set: a standard library logger writing to stderr.
var DefaultLogger Logger = NewStdLogger(log.New(os.Stderr, "", log.LstdFlags))

// noopLogger discards everything; used only if a caller explicitly sets
// Array.Logger to nil after construction.
type noopLogger struct{}

func (noopLogger) Debugf(string, ...any) {}
func (noopLogger) Warnf(string, ...any)  {}
