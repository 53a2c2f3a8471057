package trace

import (
	"context"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var uuidPattern = regexp.MustCompile(`^[a-f0-9]{8}-[a-f0-9]{4}-4[a-f0-9]{3}-[a-f0-9]{4}-[a-f0-9]{12}$`)

func TestNewRequestIDFormat(t *testing.T) {
	id := NewRequestID()
	assert.Regexp(t, uuidPattern, id)
	assert.NotEqual(t, id, NewRequestID())
}

func TestRequestIDContextRoundTrip(t *testing.T) {
	_, ok := RequestIDFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithRequestID(context.Background(), "req-1")
	got, ok := RequestIDFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "req-1", got)
}

func TestEmptyRequestIDIsAbsent(t *testing.T) {
	_, ok := RequestIDFromContext(WithRequestID(context.Background(), ""))
	assert.False(t, ok)
}

func TestStamp(t *testing.T) {
	t.Run("custom generator", func(t *testing.T) {
		ctx, id := Stamp(context.Background(), func() string { return "fixed" })
		assert.Equal(t, "fixed", id)
		got, _ := RequestIDFromContext(ctx)
		assert.Equal(t, "fixed", got)
	})

	t.Run("default generator", func(t *testing.T) {
		_, id := Stamp(context.Background(), nil)
		assert.Regexp(t, uuidPattern, id)
	})

	t.Run("fresh id replaces parent id", func(t *testing.T) {
		parent := WithRequestID(context.Background(), "parent")
		ctx, id := Stamp(parent, nil)
		got, _ := RequestIDFromContext(ctx)
		assert.Equal(t, id, got)
		assert.NotEqual(t, "parent", id)
	})
}
