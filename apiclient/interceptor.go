package apiclient

import (
	"context"
	"errors"
	"net/http"

	"github.com/gaborage/dashclient/auth"
	"github.com/gaborage/dashclient/internal/tracking"
)

// recovery records which one-shot resubmissions a request has used. It is
// passed by value down the dispatch chain and never mutated.
type recovery struct {
	csrfRetried bool
	authRetried bool
}

func (r recovery) afterCSRF() recovery {
	r.csrfRetried = true
	return r
}

func (r recovery) afterAuth() recovery {
	r.authRetried = true
	return r
}

// dispatch sends req through the retry engine and handles CSRF and auth
// rejections, each at most once per logical request.
func (c *client) dispatch(ctx context.Context, req Request, rec recovery) (*Envelope, error) {
	resp, err := c.send(ctx, req)
	if err != nil {
		return nil, mapTransportError(err)
	}

	if IsSuccessStatus(resp.StatusCode) {
		env, err := decodeEnvelope(resp.Body)
		if err != nil {
			return nil, &Error{Kind: KindUnexpected, Message: MsgUnexpected, StatusCode: resp.StatusCode, cause: err}
		}
		env.StatusCode = resp.StatusCode
		return env, nil
	}

	switch {
	case !rec.csrfRetried && isCSRFRejection(resp):
		c.logger.Warn().
			Str("method", req.Method).
			Str("path", req.Path).
			Str("request_id", resp.RequestID).
			Msg("CSRF token rejected, fetching a new one")
		// the resubmission fetches the replacement token in buildRequest
		c.csrf.Clear()
		return c.dispatch(ctx, req, rec.afterCSRF())

	case !rec.authRetried && resp.StatusCode == http.StatusUnauthorized:
		if _, err := c.refresher.Refresh(ctx); err != nil {
			tracking.RecordRefresh(ctx, false)
			c.authErrors.Handle(ctx, err)
			return nil, authError(err)
		}
		tracking.RecordRefresh(ctx, true)
		return c.dispatch(ctx, req, rec.afterAuth())
	}

	return nil, mapResponseError(resp)
}

func authError(err error) *Error {
	msg := auth.ErrRefreshFailed.Error()
	if errors.Is(err, auth.ErrNoRefreshToken) {
		msg = auth.ErrNoRefreshToken.Error()
	}
	return &Error{Kind: KindAuth, Message: msg, StatusCode: http.StatusUnauthorized, cause: err}
}
