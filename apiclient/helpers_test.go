package apiclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/dashclient/auth"
	"github.com/gaborage/dashclient/internal/testutil"
	"github.com/gaborage/dashclient/storage"
)

const (
	testCSRFHeader   = "X-Csrf-Token"
	testAuthHeader   = "Authorization"
	testRequestIDHdr = "X-Request-Id"
	testCSRFMessage  = `{"success":false,"error":{"code":"CSRF_INVALID","message":"Invalid CSRF token"}}`
	testUnauthorized = `{"success":false,"error":{"code":"UNAUTHORIZED","message":"Unauthorized"}}`
	testOK           = `{"success":true,"data":{"ok":true}}`
)

// capturedRequest is what the fake API saw for one request
type capturedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   string
}

// fakeAPI serves the CSRF and refresh endpoints and forwards everything
// under /api/ to handler
type fakeAPI struct {
	URL string

	mu       sync.Mutex
	requests []capturedRequest

	csrfCalls    atomic.Int32
	refreshCalls atomic.Int32
	apiCalls     atomic.Int32

	handler http.HandlerFunc
	refresh http.HandlerFunc
}

func newFakeAPI(t *testing.T, handler http.HandlerFunc) *fakeAPI {
	t.Helper()
	api := &fakeAPI{handler: handler}
	api.refresh = func(w http.ResponseWriter, _ *http.Request) {
		testutil.WriteJSON(w, http.StatusOK, `{"success":true,"data":{"accessToken":"refreshed-access","refreshToken":"refreshed-refresh"}}`)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/csrf-token", func(w http.ResponseWriter, _ *http.Request) {
		n := api.csrfCalls.Add(1)
		testutil.WriteJSON(w, http.StatusOK, fmt.Sprintf(`{"success":true,"data":{"csrfToken":"csrf-%d"}}`, n))
	})
	mux.HandleFunc("/api/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
		api.refreshCalls.Add(1)
		api.refresh(w, r)
	})
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		api.apiCalls.Add(1)
		var body []byte
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
			body, _ = io.ReadAll(r.Body)
		}
		api.mu.Lock()
		api.requests = append(api.requests, capturedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Header: r.Header.Clone(),
			Body:   string(body),
		})
		api.mu.Unlock()
		api.handler(w, r)
	})

	server := testutil.NewIPv4Server(t, mux)
	api.URL = server.URL
	return api
}

func (a *fakeAPI) BaseURL() string { return a.URL + "/api" }

func (a *fakeAPI) Requests() []capturedRequest {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]capturedRequest(nil), a.requests...)
}

// fakeTimer fires immediately and records every requested delay
type fakeTimer struct {
	mu     sync.Mutex
	delays []time.Duration
	c      chan time.Time
}

func newFakeTimer() *fakeTimer {
	return &fakeTimer{c: make(chan time.Time, 1)}
}

func (f *fakeTimer) Start(d time.Duration) {
	f.mu.Lock()
	f.delays = append(f.delays, d)
	f.mu.Unlock()
	f.c <- time.Now()
}

func (f *fakeTimer) Stop() {}

func (f *fakeTimer) C() <-chan time.Time { return f.c }

func (f *fakeTimer) Delays() []time.Duration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Duration(nil), f.delays...)
}

type testEnv struct {
	client Client
	store  storage.Store
	tokens *auth.TokenStore
	log    *testutil.FakeLogger
	timer  *fakeTimer
}

// newTestEnv builds a client against baseURL that never sleeps between retries
func newTestEnv(t *testing.T, baseURL string, configure ...func(*Builder)) *testEnv {
	t.Helper()
	env := &testEnv{
		store: storage.NewMemory(),
		log:   testutil.NewFakeLogger(),
	}
	env.tokens = auth.NewTokenStore(env.store)

	b := NewBuilder(baseURL, env.log).
		WithStore(env.store).
		WithBackoffTimer(func() backoff.Timer { return env.timer })
	env.timer = newFakeTimer()
	for _, fn := range configure {
		fn(b)
	}

	c, err := b.Build()
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	env.client = c
	return env
}

func (e *testEnv) login(t *testing.T) {
	t.Helper()
	require.NoError(t, e.tokens.SetCredentials(context.Background(), auth.Credentials{
		AccessToken:  testutil.TestAccessToken,
		RefreshToken: testutil.TestRefreshToken,
	}))
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
