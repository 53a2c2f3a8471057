// Package csrf manages the rotating CSRF token attached to mutating requests.
//
// The manager is a two-state machine. NoToken moves to Valid by fetching
// GET {origin}/csrf-token; Valid moves back to NoToken on Clear or once its
// expiry has passed. A failed fetch leaves the manager in NoToken and reports
// "no token available" instead of an error, so callers proceed without the
// header and let the server decide.
package csrf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/gaborage/dashclient/logger"
)

const (
	// HeaderName carries the token on POST/PUT/PATCH/DELETE
	HeaderName = "X-CSRF-Token"
	// TokenPath is served from the API origin, outside the /api prefix
	TokenPath = "/csrf-token"
	// DefaultTTL is how long an issued token is trusted
	DefaultTTL = 30 * time.Minute

	maxTokenBody = 64 << 10
)

// State is either NoToken or Valid
type State interface {
	isState()
}

// NoToken means no usable token is held
type NoToken struct{}

// Valid holds a token trusted until ExpiresAt
type Valid struct {
	Token     string
	ExpiresAt time.Time
}

func (NoToken) isState() {}
func (Valid) isState()   {}

// Clock returns the current time
type Clock func() time.Time

type tokenResponse struct {
	Success bool `json:"success"`
	Data    struct {
		CSRFToken string `json:"csrfToken"`
	} `json:"data"`
}

// Manager holds the CSRF state for one client instance
type Manager struct {
	httpClient *http.Client
	tokenURL   string
	ttl        time.Duration
	now        Clock
	log        logger.Logger

	mu    sync.Mutex
	state State
	sfg   singleflight.Group

	// onFetch runs after every fetch attempt with its outcome
	onFetch func(ctx context.Context, ok bool)
}

// Option configures a Manager
type Option func(*Manager)

// WithTTL overrides DefaultTTL
func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) {
		if ttl > 0 {
			m.ttl = ttl
		}
	}
}

// WithClock injects the time source used for expiry
func WithClock(now Clock) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithFetchHook registers fn to observe every fetch attempt
func WithFetchHook(fn func(ctx context.Context, ok bool)) Option {
	return func(m *Manager) { m.onFetch = fn }
}

// NewManager creates a manager fetching from origin + TokenPath. httpClient
// should share the cookie jar of the API client so the fetch carries credentials.
func NewManager(httpClient *http.Client, origin string, log logger.Logger, opts ...Option) *Manager {
	m := &Manager{
		httpClient: httpClient,
		tokenURL:   strings.TrimRight(origin, "/") + TokenPath,
		ttl:        DefaultTTL,
		now:        time.Now,
		log:        log,
		state:      NoToken{},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// OriginFromBaseURL strips a trailing /api from the API base URL
func OriginFromBaseURL(baseURL string) string {
	trimmed := strings.TrimRight(baseURL, "/")
	return strings.TrimSuffix(trimmed, "/api")
}

// State returns the current state after applying expiry
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current()
}

// Token returns a valid token, fetching one when none is held. ok is false
// when the fetch failed; the error is logged, never returned.
func (m *Manager) Token(ctx context.Context) (token string, ok bool) {
	m.mu.Lock()
	if v, valid := m.current().(Valid); valid {
		m.mu.Unlock()
		return v.Token, true
	}
	m.mu.Unlock()

	res, err, _ := m.sfg.Do("fetch", func() (any, error) {
		return m.fetch(ctx)
	})
	if m.onFetch != nil {
		m.onFetch(ctx, err == nil)
	}
	if err != nil {
		m.log.Warn().Err(err).Str("url", m.tokenURL).Msg("csrf token unavailable")
		return "", false
	}
	return res.(Valid).Token, true
}

// Clear drops the held token so the next Token call fetches a new one
func (m *Manager) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state = NoToken{}
}

// current must be called with mu held
func (m *Manager) current() State {
	if v, ok := m.state.(Valid); ok && !m.now().Before(v.ExpiresAt) {
		m.state = NoToken{}
	}
	return m.state
}

func (m *Manager) fetch(ctx context.Context) (Valid, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.tokenURL, http.NoBody)
	if err != nil {
		return Valid{}, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return Valid{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return Valid{}, fmt.Errorf("csrf endpoint returned status %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenBody))
	if err != nil {
		return Valid{}, err
	}
	var decoded tokenResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Valid{}, fmt.Errorf("malformed csrf response: %w", err)
	}
	if !decoded.Success || decoded.Data.CSRFToken == "" {
		return Valid{}, errors.New("csrf endpoint returned no token")
	}

	v := Valid{Token: decoded.Data.CSRFToken, ExpiresAt: m.now().Add(m.ttl)}
	m.mu.Lock()
	m.state = v
	m.mu.Unlock()
	m.log.Debug().Time("expires_at", v.ExpiresAt).Msg("csrf token issued")
	return v, nil
}
