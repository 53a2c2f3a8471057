package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	oteltrace "go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/gaborage/dashclient/auth"
	"github.com/gaborage/dashclient/csrf"
	"github.com/gaborage/dashclient/internal/tracking"
	"github.com/gaborage/dashclient/logger"
	"github.com/gaborage/dashclient/offline"
	"github.com/gaborage/dashclient/trace"
)

const tracerName = "dashclient/apiclient"

const contentTypeJSON = "application/json"

// client implements the Client interface
type client struct {
	baseURL    string
	httpClient *http.Client
	logger     logger.Logger

	tokens     *auth.TokenStore
	csrf       *csrf.Manager
	refresher  *auth.Refresher
	authErrors *auth.ErrorHandler
	cookies    auth.CookieSink

	monitor     *offline.Monitor
	queue       *offline.Queue[Request]
	onDropped   DroppedFunc
	unsubscribe func()
	flushes     sync.WaitGroup
	closeMu     sync.Mutex
	closed      bool

	policy     atomic.Pointer[RetryPolicy]
	limiter    *rate.Limiter
	requestIDs trace.Generator
	newTimer   func() backoff.Timer
	callCount  atomic.Int64
}

// rawResponse is one received HTTP response with its body read
type rawResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	RequestID  string
	Elapsed    time.Duration
}

// Get performs a GET request
func (c *client) Get(ctx context.Context, path string, query url.Values) (*Envelope, error) {
	return c.Do(ctx, Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post performs a POST request with body encoded as JSON
func (c *client) Post(ctx context.Context, path string, body any) (*Envelope, error) {
	return c.doJSON(ctx, http.MethodPost, path, body)
}

// Put performs a PUT request with body encoded as JSON
func (c *client) Put(ctx context.Context, path string, body any) (*Envelope, error) {
	return c.doJSON(ctx, http.MethodPut, path, body)
}

// Patch performs a PATCH request with body encoded as JSON
func (c *client) Patch(ctx context.Context, path string, body any) (*Envelope, error) {
	return c.doJSON(ctx, http.MethodPatch, path, body)
}

// Delete performs a DELETE request
func (c *client) Delete(ctx context.Context, path string) (*Envelope, error) {
	return c.Do(ctx, Request{Method: http.MethodDelete, Path: path})
}

func (c *client) doJSON(ctx context.Context, method, path string, body any) (*Envelope, error) {
	encoded, err := encodeBody(body)
	if err != nil {
		return nil, &Error{Kind: KindValidation, Message: "invalid request body", cause: err}
	}
	return c.Do(ctx, Request{Method: method, Path: path, Body: encoded})
}

func encodeBody(body any) ([]byte, error) {
	switch b := body.(type) {
	case nil:
		return nil, nil
	case []byte:
		return b, nil
	case json.RawMessage:
		return b, nil
	default:
		return json.Marshal(body)
	}
}

// Do issues req through the full stack. While offline it queues req and fails
// with a KindOffline error.
func (c *client) Do(ctx context.Context, req Request) (*Envelope, error) {
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	req.Method = strings.ToUpper(req.Method)

	if !c.monitor.Online() {
		c.enqueue(ctx, req)
		return nil, &Error{Kind: KindOffline, Message: MsgOffline}
	}
	return c.execute(ctx, req)
}

// execute runs req online, wrapped in a span and a duration metric
func (c *client) execute(ctx context.Context, req Request) (*Envelope, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "apiclient."+req.Method,
		oteltrace.WithSpanKind(oteltrace.SpanKindClient),
		oteltrace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.Path),
		),
	)
	defer span.End()

	start := time.Now()
	env, err := c.dispatch(ctx, req, recovery{})

	var status int
	var errKind string
	if err != nil {
		status = StatusCode(err)
		var apiErr *Error
		if errors.As(err, &apiErr) {
			errKind = string(apiErr.Kind)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		status = env.StatusCode
	}
	if status > 0 {
		span.SetAttributes(attribute.Int("http.response.status_code", status))
	}
	tracking.RecordRequest(ctx, req.Method, status, time.Since(start), errKind)
	return env, err
}

// attempt sends req once and reads the response
func (c *client) attempt(ctx context.Context, req Request, n int) (*rawResponse, error) {
	httpReq, requestID, err := c.buildRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	callCount := c.callCount.Add(1)
	c.logRequest(req, httpReq, requestID, n)

	start := time.Now()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Warn().
			Err(err).
			Str("method", req.Method).
			Str("request_id", requestID).
			Msg("API client request failed")
		return nil, err
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	resp := &rawResponse{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       body,
		RequestID:  requestID,
		Elapsed:    time.Since(start),
	}
	c.logResponse(resp, callCount)
	return resp, nil
}

func (c *client) resolveURL(req Request) string {
	u := c.baseURL + "/" + strings.TrimLeft(req.Path, "/")
	if len(req.Query) > 0 {
		sep := "?"
		if strings.Contains(u, "?") {
			sep = "&"
		}
		u += sep + req.Query.Encode()
	}
	return u
}

func newBody(req Request) (io.Reader, func() (io.ReadCloser, error)) {
	if req.Body == nil {
		return nil, nil
	}
	open := func() io.Reader {
		var r io.Reader = bytes.NewReader(req.Body)
		if req.Progress != nil {
			r = &progressReader{r: r, total: int64(len(req.Body)), fn: req.Progress}
		}
		return r
	}
	return open(), func() (io.ReadCloser, error) { return io.NopCloser(open()), nil }
}

// SetAuthToken stores token as the session access token
func (c *client) SetAuthToken(ctx context.Context, token string) error {
	if err := c.tokens.SetAccessToken(ctx, token); err != nil {
		return err
	}
	c.cookies.SetAuthCookie(token)
	return nil
}

// AuthToken returns the stored access token
func (c *client) AuthToken(ctx context.Context) (string, error) {
	return c.tokens.AccessToken(ctx)
}

// ClearAuthToken removes the access token so later requests are unauthenticated
func (c *client) ClearAuthToken(ctx context.Context) error {
	if err := c.tokens.ClearAccessToken(ctx); err != nil {
		return err
	}
	c.cookies.ExpireAuthCookie()
	return nil
}

// SetRetryPolicy replaces the policy for requests started afterwards
func (c *client) SetRetryPolicy(policy RetryPolicy) {
	p := policy.normalized()
	c.policy.Store(&p)
}

// RetryPolicy returns the active retry policy
func (c *client) RetryPolicy() RetryPolicy {
	return *c.policy.Load()
}

// QueueLen reports how many requests wait for connectivity
func (c *client) QueueLen() int {
	return c.queue.Len()
}

// Close stops reacting to connectivity changes and waits for running replays
func (c *client) Close() error {
	c.closeMu.Lock()
	if c.closed {
		c.closeMu.Unlock()
		return nil
	}
	c.closed = true
	c.closeMu.Unlock()

	c.unsubscribe()
	c.flushes.Wait()
	c.httpClient.CloseIdleConnections()
	return nil
}

// logRequest logs the outgoing request
func (c *client) logRequest(req Request, httpReq *http.Request, requestID string, attempt int) {
	logEvent := c.logger.Info().
		Str("direction", "outbound").
		Str("method", req.Method).
		Str("url", httpReq.URL.String()).
		Str("request_id", requestID).
		Int("attempt", attempt)

	if len(req.Body) > 0 {
		logEvent.Int("body_bytes", len(req.Body))
	}

	logEvent.Msg("API client request")
}

// logResponse logs the incoming response
func (c *client) logResponse(resp *rawResponse, callCount int64) {
	c.logger.Info().
		Str("direction", "inbound").
		Int("status", resp.StatusCode).
		Dur("elapsed", resp.Elapsed).
		Int64("call_count", callCount).
		Str("request_id", resp.RequestID).
		Msg("API client response")
}
