// Package trace generates per-request correlation ids and carries them
// through context so log entries and outbound headers agree.
package trace

import (
	"context"

	"github.com/google/uuid"
)

// HeaderXRequestID is the header stamped on every outbound request
const HeaderXRequestID = "X-Request-ID"

type contextKey string

const requestIDKey contextKey = "request_id"

// Generator produces correlation ids
type Generator func() string

// NewRequestID returns a random UUIDv4 correlation id
func NewRequestID() string {
	return uuid.NewString()
}

// WithRequestID stores id in ctx
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromContext returns the correlation id stored in ctx, if any
func RequestIDFromContext(ctx context.Context) (string, bool) {
	if id, ok := ctx.Value(requestIDKey).(string); ok && id != "" {
		return id, true
	}
	return "", false
}

// Stamp generates a fresh id with gen (NewRequestID when nil) and returns it
// together with a context carrying it.
func Stamp(ctx context.Context, gen Generator) (context.Context, string) {
	if gen == nil {
		gen = NewRequestID
	}
	id := gen()
	return WithRequestID(ctx, id), id
}
