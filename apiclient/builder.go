package apiclient

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/gaborage/dashclient/auth"
	"github.com/gaborage/dashclient/csrf"
	"github.com/gaborage/dashclient/internal/tracking"
	"github.com/gaborage/dashclient/logger"
	"github.com/gaborage/dashclient/offline"
	"github.com/gaborage/dashclient/storage"
	"github.com/gaborage/dashclient/trace"
)

const (
	// DefaultBaseURL is the production API
	DefaultBaseURL = "https://api.dashboard.example.com/api"
	// DefaultTimeout is the default transport timeout
	DefaultTimeout = 30 * time.Second
)

// Builder provides a fluent interface for configuring the API client
type Builder struct {
	baseURL      string
	logger       logger.Logger
	timeout      time.Duration
	transport    http.RoundTripper
	jar          http.CookieJar
	store        storage.Store
	lookups      []auth.Lookup
	policy       RetryPolicy
	csrfTTL      time.Duration
	cookieMaxAge time.Duration
	clock        func() time.Time
	monitor      *offline.Monitor
	capacity     int
	maxReplays   int
	rps          float64
	burst        int
	onDropped    DroppedFunc
	onAuthError  func(error)
	requestIDs   trace.Generator
	newTimer     func() backoff.Timer
}

// NewBuilder creates a builder for the API rooted at baseURL. An empty
// baseURL selects DefaultBaseURL.
func NewBuilder(baseURL string, log logger.Logger) *Builder {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Builder{
		baseURL:      strings.TrimRight(baseURL, "/"),
		logger:       log,
		timeout:      DefaultTimeout,
		policy:       DefaultRetryPolicy(),
		csrfTTL:      csrf.DefaultTTL,
		cookieMaxAge: auth.DefaultCookieMaxAge,
		clock:        time.Now,
		capacity:     offline.DefaultCapacity,
		maxReplays:   offline.DefaultMaxReplays,
	}
}

// WithTimeout sets the transport timeout
func (b *Builder) WithTimeout(timeout time.Duration) *Builder {
	b.timeout = timeout
	return b
}

// WithTransport replaces the HTTP round tripper
func (b *Builder) WithTransport(rt http.RoundTripper) *Builder {
	b.transport = rt
	return b
}

// WithCookieJar shares jar with the client; by default a new jar is created
func (b *Builder) WithCookieJar(jar http.CookieJar) *Builder {
	b.jar = jar
	return b
}

// WithStore sets the credential store; by default an in-memory store is used
func (b *Builder) WithStore(s storage.Store) *Builder {
	b.store = s
	return b
}

// WithLookups replaces the ordered credential lookup strategies
func (b *Builder) WithLookups(lookups ...auth.Lookup) *Builder {
	b.lookups = lookups
	return b
}

// WithRetryPolicy sets the initial retry policy
func (b *Builder) WithRetryPolicy(policy RetryPolicy) *Builder {
	b.policy = policy
	return b
}

// WithRetries sets the retry count and base delay, keeping the other policy fields
func (b *Builder) WithRetries(maxRetries int, baseDelay time.Duration) *Builder {
	b.policy.MaxRetries = maxRetries
	b.policy.BaseDelay = baseDelay
	return b
}

// WithCSRFTTL overrides how long a CSRF token is trusted
func (b *Builder) WithCSRFTTL(ttl time.Duration) *Builder {
	b.csrfTTL = ttl
	return b
}

// WithCookieMaxAge overrides the auth cookie lifetime
func (b *Builder) WithCookieMaxAge(maxAge time.Duration) *Builder {
	b.cookieMaxAge = maxAge
	return b
}

// WithClock injects the time source used for CSRF expiry
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.clock = now
	return b
}

// WithMonitor shares a connectivity monitor; by default the client starts Online
func (b *Builder) WithMonitor(m *offline.Monitor) *Builder {
	b.monitor = m
	return b
}

// WithQueue sets the offline queue capacity and replay cap
func (b *Builder) WithQueue(capacity, maxReplays int) *Builder {
	b.capacity = capacity
	b.maxReplays = maxReplays
	return b
}

// WithRateLimit limits attempts to rps per second with the given burst.
// rps <= 0 disables limiting.
func (b *Builder) WithRateLimit(rps float64, burst int) *Builder {
	b.rps = rps
	b.burst = burst
	return b
}

// WithOnDropped observes queued requests evicted or out of replays
func (b *Builder) WithOnDropped(fn DroppedFunc) *Builder {
	b.onDropped = fn
	return b
}

// WithOnAuthError observes fatal authentication failures after the session is purged
func (b *Builder) WithOnAuthError(fn func(error)) *Builder {
	b.onAuthError = fn
	return b
}

// WithRequestIDGenerator replaces the X-Request-ID generator
func (b *Builder) WithRequestIDGenerator(gen trace.Generator) *Builder {
	b.requestIDs = gen
	return b
}

// WithBackoffTimer replaces the timer the retry engine waits on
func (b *Builder) WithBackoffTimer(newTimer func() backoff.Timer) *Builder {
	b.newTimer = newTimer
	return b
}

// Build creates the API client with the configured options
func (b *Builder) Build() (Client, error) {
	if _, err := url.ParseRequestURI(b.baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", b.baseURL, err)
	}

	jar := b.jar
	if jar == nil {
		var err error
		if jar, err = auth.NewCookieJar(); err != nil {
			return nil, err
		}
	}
	store := b.store
	if store == nil {
		store = storage.NewMemory()
	}
	monitor := b.monitor
	if monitor == nil {
		monitor = offline.NewMonitor(offline.Online)
	}

	httpClient := &http.Client{
		Timeout:   b.timeout,
		Transport: b.transport,
		Jar:       jar,
	}

	origin := csrf.OriginFromBaseURL(b.baseURL)
	cookies, err := auth.NewJarCookieSink(jar, origin, b.cookieMaxAge)
	if err != nil {
		return nil, err
	}
	tokens := auth.NewTokenStore(store, b.lookups...)

	c := &client{
		baseURL:    b.baseURL,
		httpClient: httpClient,
		logger:     b.logger,
		tokens:     tokens,
		csrf: csrf.NewManager(httpClient, origin, b.logger,
			csrf.WithTTL(b.csrfTTL),
			csrf.WithClock(b.clock),
			csrf.WithFetchHook(tracking.RecordCSRFFetch),
		),
		refresher:  auth.NewRefresher(httpClient, b.baseURL, tokens, cookies, b.logger),
		authErrors: auth.NewErrorHandler(tokens, cookies, b.logger, b.onAuthError),
		cookies:    cookies,
		monitor:    monitor,
		queue:      offline.NewQueue[Request](b.capacity, b.maxReplays),
		onDropped:  b.onDropped,
		requestIDs: b.requestIDs,
		newTimer:   b.newTimer,
	}
	c.SetRetryPolicy(b.policy)
	if b.rps > 0 {
		burst := b.burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(b.rps), burst)
	}
	c.unsubscribe = monitor.Subscribe(c.onConnectivity)
	return c, nil
}
