// Package logger defines the structured logging contract used by the API client
// and its collaborators, with a zerolog-backed implementation.
package logger

import "time"

// Logger is the structured logger handed to every component.
// Implementations must be safe for concurrent use.
type Logger interface {
	Info() LogEvent
	Warn() LogEvent
	Error() LogEvent
	Debug() LogEvent
	// WithFields returns a child logger that attaches fields to every entry.
	WithFields(fields map[string]any) Logger
}

// LogEvent is a single log entry under construction. Nothing is written
// until Msg or Msgf is called.
type LogEvent interface {
	Msg(msg string)
	Msgf(format string, args ...any)
	Err(err error) LogEvent
	Str(key, value string) LogEvent
	Int(key string, value int) LogEvent
	Int64(key string, value int64) LogEvent
	Bool(key string, value bool) LogEvent
	Dur(key string, d time.Duration) LogEvent
	Time(key string, t time.Time) LogEvent
	Interface(key string, i any) LogEvent
}
