package apiclient

import (
	"context"
	"net/http"

	"github.com/gaborage/dashclient/csrf"
	"github.com/gaborage/dashclient/trace"
)

// needsCSRF reports whether method changes server state
func needsCSRF(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

// buildRequest constructs the *http.Request for one attempt and injects
// credentials. A missing access token or CSRF token is not an error.
func (c *client) buildRequest(ctx context.Context, req Request) (*http.Request, string, error) {
	ctx, requestID := trace.Stamp(ctx, c.requestIDs)

	body, getBody := newBody(req)
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.resolveURL(req), body)
	if err != nil {
		return nil, requestID, &Error{Kind: KindValidation, Message: "invalid request", cause: err}
	}
	if body != nil {
		httpReq.ContentLength = int64(len(req.Body))
		httpReq.GetBody = getBody
	}

	contentType := req.ContentType
	if contentType == "" {
		contentType = contentTypeJSON
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", contentTypeJSON)
	httpReq.Header.Set(trace.HeaderXRequestID, requestID)

	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to read access token, sending unauthenticated")
	}
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}

	if needsCSRF(req.Method) {
		if csrfToken, ok := c.csrf.Token(ctx); ok {
			httpReq.Header.Set(csrf.HeaderName, csrfToken)
		}
	}
	return httpReq, requestID, nil
}
