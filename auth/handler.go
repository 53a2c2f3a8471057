package auth

import (
	"context"

	"github.com/gaborage/dashclient/logger"
)

// ErrorHandler purges local credentials after a fatal authentication failure.
// It never redirects; OnAuthError lets the UI layer decide what happens next.
type ErrorHandler struct {
	tokens      *TokenStore
	cookies     CookieSink
	log         logger.Logger
	onAuthError func(error)
}

// NewErrorHandler creates a handler. onAuthError may be nil.
func NewErrorHandler(tokens *TokenStore, cookies CookieSink, log logger.Logger, onAuthError func(error)) *ErrorHandler {
	if cookies == nil {
		cookies = NopCookieSink{}
	}
	return &ErrorHandler{tokens: tokens, cookies: cookies, log: log, onAuthError: onAuthError}
}

// Handle clears the access token, refresh token, user data and auth cookie,
// then notifies the hook with cause.
func (h *ErrorHandler) Handle(ctx context.Context, cause error) {
	if err := h.tokens.Purge(ctx); err != nil {
		h.log.Error().Err(err).Msg("failed to purge credentials after auth error")
	}
	h.cookies.ExpireAuthCookie()
	h.log.Warn().Err(cause).Msg("session credentials cleared")

	if h.onAuthError != nil {
		h.onAuthError(cause)
	}
}
