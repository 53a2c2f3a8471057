package testutil

import (
	"maps"
	"sync"
	"time"

	"github.com/gaborage/dashclient/logger"
)

// LoggedEvent is one captured log entry
type LoggedEvent struct {
	Level   string
	Fields  map[string]any
	Message string
}

// FakeLogger records log events in memory for assertions
type FakeLogger struct {
	mu     sync.Mutex
	events []LoggedEvent
	fields map[string]any
	parent *FakeLogger
}

var _ logger.Logger = (*FakeLogger)(nil)

// NewFakeLogger creates an empty FakeLogger
func NewFakeLogger() *FakeLogger { return &FakeLogger{} }

func (l *FakeLogger) Info() logger.LogEvent  { return l.newEvent("info") }
func (l *FakeLogger) Warn() logger.LogEvent  { return l.newEvent("warn") }
func (l *FakeLogger) Error() logger.LogEvent { return l.newEvent("error") }
func (l *FakeLogger) Debug() logger.LogEvent { return l.newEvent("debug") }

// WithFields returns a child that records into the same event list
func (l *FakeLogger) WithFields(fields map[string]any) logger.Logger {
	merged := maps.Clone(l.fields)
	if merged == nil {
		merged = make(map[string]any, len(fields))
	}
	maps.Copy(merged, fields)
	return &FakeLogger{fields: merged, parent: l.root()}
}

// Events returns a copy of every captured event
func (l *FakeLogger) Events() []LoggedEvent {
	r := l.root()
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]LoggedEvent(nil), r.events...)
}

// EventsByLevel filters captured events by level
func (l *FakeLogger) EventsByLevel(level string) []LoggedEvent {
	var out []LoggedEvent
	for _, e := range l.Events() {
		if e.Level == level {
			out = append(out, e)
		}
	}
	return out
}

// EventsByMessage filters captured events by message
func (l *FakeLogger) EventsByMessage(msg string) []LoggedEvent {
	var out []LoggedEvent
	for _, e := range l.Events() {
		if e.Message == msg {
			out = append(out, e)
		}
	}
	return out
}

func (l *FakeLogger) root() *FakeLogger {
	if l.parent != nil {
		return l.parent
	}
	return l
}

func (l *FakeLogger) newEvent(level string) logger.LogEvent {
	fields := maps.Clone(l.fields)
	if fields == nil {
		fields = make(map[string]any)
	}
	return &fakeEvent{logger: l.root(), level: level, fields: fields}
}

func (l *FakeLogger) record(e LoggedEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

type fakeEvent struct {
	logger *FakeLogger
	level  string
	fields map[string]any
}

func (e *fakeEvent) Msg(msg string) {
	e.logger.record(LoggedEvent{Level: e.level, Fields: maps.Clone(e.fields), Message: msg})
}

// Msgf captures the format string as the message
func (e *fakeEvent) Msgf(format string, _ ...any) { e.Msg(format) }

func (e *fakeEvent) Err(err error) logger.LogEvent { return e.set("error", err) }
func (e *fakeEvent) Str(key, value string) logger.LogEvent {
	return e.set(key, value)
}
func (e *fakeEvent) Int(key string, value int) logger.LogEvent     { return e.set(key, value) }
func (e *fakeEvent) Int64(key string, value int64) logger.LogEvent { return e.set(key, value) }
func (e *fakeEvent) Bool(key string, value bool) logger.LogEvent   { return e.set(key, value) }
func (e *fakeEvent) Dur(key string, d time.Duration) logger.LogEvent {
	return e.set(key, d)
}
func (e *fakeEvent) Time(key string, t time.Time) logger.LogEvent { return e.set(key, t) }
func (e *fakeEvent) Interface(key string, i any) logger.LogEvent  { return e.set(key, i) }

func (e *fakeEvent) set(key string, v any) logger.LogEvent {
	e.fields[key] = v
	return e
}
