package apiclient

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Envelope is the normalized {success, data, error} response body
type Envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   *APIError       `json:"error,omitempty"`
	// StatusCode is the HTTP status the envelope arrived with
	StatusCode int `json:"-"`
}

// APIError is the structured error a server puts in its envelope
type APIError struct {
	Code      string          `json:"code,omitempty"`
	Message   string          `json:"message"`
	Details   json.RawMessage `json:"details,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
	RequestID string          `json:"requestId,omitempty"`
}

// ErrNoData is returned by DecodeData for an envelope without data
var ErrNoData = errors.New("envelope has no data")

// DecodeData unmarshals the envelope's data into T
func DecodeData[T any](env *Envelope) (T, error) {
	var out T
	if env == nil || len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return out, ErrNoData
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return out, fmt.Errorf("failed to decode envelope data: %w", err)
	}
	return out, nil
}

// decodeEnvelope turns a 2xx body into an Envelope. A body that is not an
// envelope becomes the data of a successful one; an empty body is a bare
// success.
func decodeEnvelope(body []byte) (*Envelope, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return &Envelope{Success: true}, nil
	}
	if !json.Valid(trimmed) {
		return nil, errors.New("response body is not valid JSON")
	}

	var probe struct {
		Success *bool           `json:"success"`
		Data    json.RawMessage `json:"data"`
		Error   json.RawMessage `json:"error"`
	}
	if trimmed[0] != '{' || json.Unmarshal(trimmed, &probe) != nil || probe.Success == nil {
		return &Envelope{Success: true, Data: json.RawMessage(trimmed)}, nil
	}

	env := &Envelope{Success: *probe.Success, Data: probe.Data}
	if len(probe.Error) > 0 && !bytes.Equal(probe.Error, []byte("null")) {
		var detail APIError
		var msg string
		switch {
		case json.Unmarshal(probe.Error, &detail) == nil:
			env.Error = &detail
		case json.Unmarshal(probe.Error, &msg) == nil:
			env.Error = &APIError{Message: msg}
		}
	}
	return env, nil
}
