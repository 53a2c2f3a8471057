package apiclient

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

var _ net.Error = timeoutErr{}

func TestParseServerError(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantMsg  string
		wantCode string
	}{
		{"structured error", `{"success":false,"error":{"code":"E1","message":"Bad input"}}`, "Bad input", "E1"},
		{"string error", `{"success":false,"error":"Something broke"}`, "Something broke", ""},
		{"top level message", `{"message":"Rate limited"}`, "Rate limited", ""},
		{"error wins over message", `{"error":{"message":"inner"},"message":"outer"}`, "inner", ""},
		{"structured without message falls back", `{"error":{"code":"E2"},"message":"outer"}`, "outer", ""},
		{"empty body", ``, "", ""},
		{"not json", `<html>502</html>`, "", ""},
		{"no message anywhere", `{"success":false}`, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			detail, msg := parseServerError([]byte(tt.body))
			assert.Equal(t, tt.wantMsg, msg)
			if tt.wantMsg == "" {
				assert.Nil(t, detail)
				return
			}
			require.NotNil(t, detail)
			assert.Equal(t, tt.wantCode, detail.Code)
		})
	}
}

func TestMapResponseError(t *testing.T) {
	err := mapResponseError(&rawResponse{StatusCode: 422, Body: []byte(`{"error":{"message":"Email taken"}}`)})
	assert.Equal(t, KindServer, err.Kind)
	assert.Equal(t, "Email taken", err.Message)
	assert.Equal(t, 422, err.StatusCode)

	err = mapResponseError(&rawResponse{StatusCode: 502, Body: []byte(`bad gateway`)})
	assert.Equal(t, KindUnexpected, err.Kind)
	assert.Equal(t, "An unexpected error occurred", err.Message)
	assert.Equal(t, 502, err.StatusCode)
	assert.Nil(t, err.Detail)
}

func TestMapTransportError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
		msg  string
	}{
		{"deadline", context.DeadlineExceeded, KindTimeout, "Request timeout. Please try again."},
		{"wrapped deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), KindTimeout, MsgTimeout},
		{"net timeout", timeoutErr{}, KindTimeout, MsgTimeout},
		{"refused", errors.New("dial tcp: connection refused"), KindNetwork, "Network error. Please check your connection."},
		{"canceled", context.Canceled, KindNetwork, MsgNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := mapTransportError(tt.err)
			assert.Equal(t, tt.want, got.Kind)
			assert.Equal(t, tt.msg, got.Message)
			assert.Zero(t, got.StatusCode)
			assert.ErrorIs(t, got, tt.err)
		})
	}

	t.Run("client error passes through", func(t *testing.T) {
		in := &Error{Kind: KindValidation, Message: "invalid"}
		assert.Same(t, in, mapTransportError(fmt.Errorf("wrap: %w", in)))
	})
}

func TestIsCSRFRejection(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   bool
	}{
		{"invalid token", 403, `{"error":{"message":"Invalid CSRF token"}}`, true},
		{"lowercase", 403, `{"message":"csrf token missing"}`, true},
		{"other forbidden", 403, `{"error":{"message":"Forbidden"}}`, false},
		{"csrf on other status", 400, `{"error":{"message":"Invalid CSRF token"}}`, false},
		{"empty 403", 403, ``, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isCSRFRejection(&rawResponse{StatusCode: tt.status, Body: []byte(tt.body)}))
		})
	}
}

func TestDecodeEnvelope(t *testing.T) {
	t.Run("success envelope", func(t *testing.T) {
		env, err := decodeEnvelope([]byte(`{"success":true,"data":[1,2]}`))
		require.NoError(t, err)
		assert.True(t, env.Success)
		assert.JSONEq(t, `[1,2]`, string(env.Data))
		assert.Nil(t, env.Error)
	})

	t.Run("failure envelope with string error", func(t *testing.T) {
		env, err := decodeEnvelope([]byte(`{"success":false,"error":"nope"}`))
		require.NoError(t, err)
		assert.False(t, env.Success)
		require.NotNil(t, env.Error)
		assert.Equal(t, "nope", env.Error.Message)
	})

	t.Run("bare object becomes data", func(t *testing.T) {
		env, err := decodeEnvelope([]byte(`{"id":7}`))
		require.NoError(t, err)
		assert.True(t, env.Success)
		assert.JSONEq(t, `{"id":7}`, string(env.Data))
	})

	t.Run("array becomes data", func(t *testing.T) {
		env, err := decodeEnvelope([]byte(` [1] `))
		require.NoError(t, err)
		assert.Equal(t, `[1]`, string(env.Data))
	})

	t.Run("empty body", func(t *testing.T) {
		env, err := decodeEnvelope(nil)
		require.NoError(t, err)
		assert.True(t, env.Success)
		assert.Empty(t, env.Data)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := decodeEnvelope([]byte(`ok`))
		assert.Error(t, err)
	})
}

func TestDecodeDataWithoutData(t *testing.T) {
	_, err := DecodeData[map[string]any](&Envelope{Success: true})
	assert.ErrorIs(t, err, ErrNoData)

	_, err = DecodeData[map[string]any](nil)
	assert.ErrorIs(t, err, ErrNoData)

	_, err = DecodeData[int](&Envelope{Data: []byte(`"x"`)})
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoData)
}

func TestErrorHelpers(t *testing.T) {
	err := fmt.Errorf("outer: %w", &Error{Kind: KindOffline, Message: MsgOffline})
	assert.True(t, IsOffline(err))
	assert.False(t, IsErrorKind(err, KindServer))
	assert.False(t, IsOffline(errors.New("plain")))
	assert.Zero(t, StatusCode(errors.New("plain")))

	assert.True(t, IsSuccessStatus(204))
	assert.False(t, IsSuccessStatus(301))
	assert.True(t, isRetryableStatus(500))
	assert.False(t, isRetryableStatus(499))
}

func TestDefaultShouldRetry(t *testing.T) {
	assert.True(t, DefaultShouldRetry(0, errors.New("reset")))
	assert.True(t, DefaultShouldRetry(503, nil))
	assert.False(t, DefaultShouldRetry(404, nil))
	assert.False(t, DefaultShouldRetry(200, nil))
}

func TestRetryPolicyNormalized(t *testing.T) {
	p := RetryPolicy{MaxRetries: -2}.normalized()
	assert.Equal(t, 0, p.MaxRetries)
	assert.Equal(t, DefaultRetryDelay, p.BaseDelay)
	assert.Equal(t, float64(DefaultMultiplier), p.Multiplier)
	assert.Equal(t, DefaultMaxDelay, p.MaxDelay)
	assert.NotNil(t, p.ShouldRetry)
}
