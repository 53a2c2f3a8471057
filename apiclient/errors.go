package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"strings"
)

// Messages shown to users for each failure class
const (
	MsgTimeout    = "Request timeout. Please try again."
	MsgNetwork    = "Network error. Please check your connection."
	MsgUnexpected = "An unexpected error occurred"
	MsgOffline    = "You are offline. Request has been queued."
)

// ErrorKind defines the category of client error
type ErrorKind string

const (
	// KindServer carries a message taken from the server's error envelope
	KindServer     ErrorKind = "server"
	KindTimeout    ErrorKind = "timeout"
	KindNetwork    ErrorKind = "network"
	KindUnexpected ErrorKind = "unexpected"
	KindOffline    ErrorKind = "offline"
	// KindAuth means the session could not be refreshed and was cleared
	KindAuth ErrorKind = "auth"
	// KindValidation means the request could not be built
	KindValidation ErrorKind = "validation"
)

// Error is the single error shape returned by the client
type Error struct {
	Kind       ErrorKind
	Message    string
	StatusCode int
	// Detail is the decoded error envelope when the server sent one
	Detail *APIError
	cause  error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.cause
}

// IsErrorKind checks if err is an *Error of the given kind
func IsErrorKind(err error, kind ErrorKind) bool {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Kind == kind
	}
	return false
}

// IsOffline reports whether err is the queued-while-offline rejection
func IsOffline(err error) bool {
	return IsErrorKind(err, KindOffline)
}

// StatusCode returns the HTTP status carried by err, or 0
func StatusCode(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isRetryableStatus(code int) bool {
	return code >= 500
}

// IsSuccessStatus checks if a status code represents success (2xx)
func IsSuccessStatus(statusCode int) bool {
	return statusCode >= 200 && statusCode < 300
}

// errorBody accepts {"error":{...}}, {"error":"..."} and {"message":"..."}
type errorBody struct {
	Success *bool           `json:"success"`
	Error   json.RawMessage `json:"error"`
	Message string          `json:"message"`
}

// parseServerError extracts the structured error and its message from body
func parseServerError(body []byte) (*APIError, string) {
	var eb errorBody
	if len(body) == 0 || json.Unmarshal(body, &eb) != nil {
		return nil, ""
	}

	if len(eb.Error) > 0 {
		var detail APIError
		if json.Unmarshal(eb.Error, &detail) == nil && detail.Message != "" {
			return &detail, detail.Message
		}
		var msg string
		if json.Unmarshal(eb.Error, &msg) == nil && msg != "" {
			return &APIError{Message: msg}, msg
		}
	}
	if eb.Message != "" {
		return &APIError{Message: eb.Message}, eb.Message
	}
	return nil, ""
}

// mapTransportError normalizes a failure where no response was received
func mapTransportError(err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	if isTimeout(err) {
		return &Error{Kind: KindTimeout, Message: MsgTimeout, cause: err}
	}
	return &Error{Kind: KindNetwork, Message: MsgNetwork, cause: err}
}

// mapResponseError normalizes a non-2xx response
func mapResponseError(resp *rawResponse) *Error {
	detail, msg := parseServerError(resp.Body)
	if msg != "" {
		return &Error{Kind: KindServer, Message: msg, StatusCode: resp.StatusCode, Detail: detail}
	}
	return &Error{Kind: KindUnexpected, Message: MsgUnexpected, StatusCode: resp.StatusCode}
}

// isCSRFRejection matches a 403 whose error message mentions CSRF
func isCSRFRejection(resp *rawResponse) bool {
	if resp.StatusCode != 403 {
		return false
	}
	_, msg := parseServerError(resp.Body)
	return strings.Contains(strings.ToLower(msg), "csrf")
}
