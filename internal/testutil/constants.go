// Package testutil provides shared constants and helpers for the client's tests.
package testutil

const (
	// TestAccessToken is a bearer token used by request-level tests
	TestAccessToken = "access-abc"
	// TestRefreshToken is a refresh token used by refresh-flow tests
	TestRefreshToken = "refresh-xyz"
	// TestCSRFToken is a CSRF token returned by fake CSRF endpoints
	TestCSRFToken = "csrf-123"
	// TestConnectionRefused is the common network error text
	TestConnectionRefused = "connection refused"
	// TestHTTPSOrigin is an https origin used where Secure cookies must be readable
	TestHTTPSOrigin = "https://api.example.com"
)
