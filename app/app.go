// Package app wires configuration, storage, connectivity detection and the
// API client into a single runnable unit for the dashctl CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gaborage/dashclient/apiclient"
	"github.com/gaborage/dashclient/auth"
	"github.com/gaborage/dashclient/config"
	"github.com/gaborage/dashclient/csrf"
	"github.com/gaborage/dashclient/logger"
	"github.com/gaborage/dashclient/observability"
	"github.com/gaborage/dashclient/offline"
	"github.com/gaborage/dashclient/storage"
)

// App represents the wired client and the resources it owns.
type App struct {
	Client  apiclient.Client
	Monitor *offline.Monitor

	cfg       *config.Config
	logger    logger.Logger
	store     storage.Store
	prober    *offline.Prober
	telemetry observability.Provider

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option customizes New
type Option func(*options)

type options struct {
	transport http.RoundTripper
	onDropped apiclient.DroppedFunc
	telemetry io.Writer
}

// WithTransport replaces the HTTP transport used by the client and the prober
func WithTransport(rt http.RoundTripper) Option {
	return func(o *options) { o.transport = rt }
}

// WithOnDropped observes queued requests that are discarded
func WithOnDropped(fn apiclient.DroppedFunc) Option {
	return func(o *options) { o.onDropped = fn }
}

// WithTelemetryWriter directs stdout trace and metric exporters to w
func WithTelemetryWriter(w io.Writer) Option {
	return func(o *options) { o.telemetry = w }
}

// New creates an application from cfg. When probing is enabled the initial
// connectivity status comes from one synchronous probe.
func New(ctx context.Context, cfg *config.Config, log logger.Logger, opts ...Option) (*App, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	if log == nil {
		log = logger.NewNop()
	}

	log.Info().
		Str("app", cfg.App.Name).
		Str("env", cfg.App.Env).
		Str("version", cfg.App.Version).
		Str("base_url", cfg.API.BaseURL).
		Msg("Starting dashboard client")

	telemetry, err := newTelemetry(cfg, o.telemetry)
	if err != nil {
		return nil, err
	}

	store, err := openStore(ctx, cfg.Storage)
	if err != nil {
		return nil, errors.Join(err, observability.Shutdown(telemetry, time.Second))
	}

	monitor := offline.NewMonitor(offline.Online)
	var prober *offline.Prober
	if cfg.Connectivity.Probe.Enabled {
		probeClient := &http.Client{Transport: o.transport, Timeout: cfg.Connectivity.Probe.Timeout}
		prober = offline.NewProber(probeClient, csrf.OriginFromBaseURL(cfg.API.BaseURL), monitor,
			cfg.Connectivity.Probe.Interval, cfg.Connectivity.Probe.Timeout, log)
		monitor.Set(prober.Check(ctx))
	}

	b := apiclient.NewBuilder(cfg.API.BaseURL, log).
		WithTimeout(cfg.API.Timeout).
		WithStore(store).
		WithMonitor(monitor).
		WithRetryPolicy(apiclient.RetryPolicy{
			MaxRetries: cfg.API.Retry.Max,
			BaseDelay:  cfg.API.Retry.Delay,
			MaxDelay:   cfg.API.Retry.MaxDelay,
		}).
		WithCSRFTTL(cfg.API.CSRF.TTL).
		WithCookieMaxAge(cfg.API.Auth.CookieMaxAge).
		WithQueue(cfg.Queue.Capacity, cfg.Queue.MaxReplays).
		WithRateLimit(cfg.API.RateLimit.RPS, cfg.API.RateLimit.Burst)
	if o.transport != nil {
		b.WithTransport(o.transport)
	}
	if o.onDropped != nil {
		b.WithOnDropped(o.onDropped)
	}

	client, err := b.Build()
	if err != nil {
		_ = store.Close()
		_ = observability.Shutdown(telemetry, time.Second)
		return nil, fmt.Errorf("failed to build api client: %w", err)
	}

	return &App{
		Client:    client,
		Monitor:   monitor,
		cfg:       cfg,
		logger:    log,
		store:     store,
		prober:    prober,
		telemetry: telemetry,
	}, nil
}

// newTelemetry fills the service identity from the app section when unset
func newTelemetry(cfg *config.Config, w io.Writer) (observability.Provider, error) {
	obs := cfg.Observability
	if obs.Service.Name == "" {
		obs.Service.Name = cfg.App.Name
	}
	if obs.Service.Version == "" {
		obs.Service.Version = cfg.App.Version
	}
	if obs.Environment == "" {
		obs.Environment = cfg.App.Env
	}
	if w != nil {
		obs.Writer = w
	}

	p, err := observability.NewProvider(&obs)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	return p, nil
}

func openStore(ctx context.Context, cfg config.StorageConfig) (storage.Store, error) {
	switch cfg.Driver {
	case config.StorageSQLite:
		s, err := storage.OpenSQLite(ctx, cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open credential store: %w", err)
		}
		return s, nil
	case config.StorageMemory, "":
		return storage.NewMemory(), nil
	default:
		return nil, config.NewInvalidFieldError("storage.driver", fmt.Sprintf("invalid value %q", cfg.Driver),
			[]string{config.StorageMemory, config.StorageSQLite})
	}
}

// Start runs the connectivity probe loop in the background until Shutdown
func (a *App) Start(ctx context.Context) {
	if a.prober == nil || a.cancel != nil {
		return
	}
	ctx, a.cancel = context.WithCancel(ctx)
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		a.prober.Run(ctx)
	}()
	a.logger.Debug().Dur("interval", a.cfg.Connectivity.Probe.Interval).Msg("Connectivity probe started")
}

// Shutdown stops the probe, closes the client and the credential store, then
// flushes telemetry.
// Returns an aggregated error if any component fails to close.
func (a *App) Shutdown(ctx context.Context) error {
	start := time.Now()
	if a.cancel != nil {
		a.cancel()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("connectivity probe did not stop: %w", ctx.Err())
	}

	var errs []error
	if err := a.Client.Close(); err != nil {
		errs = append(errs, fmt.Errorf("client: %w", err))
		a.logger.Error().Err(err).Msg("Failed to close api client")
	}
	if err := a.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store: %w", err))
		a.logger.Error().Err(err).Msg("Failed to close credential store")
	}
	if err := a.telemetry.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
		a.logger.Error().Err(err).Msg("Failed to flush telemetry")
	}

	a.logger.Info().Dur("duration", time.Since(start)).Msg("Dashboard client shutdown complete")
	return errors.Join(errs...)
}

// Tokens returns a token store over the same storage the client reads
func (a *App) Tokens() *auth.TokenStore {
	return auth.NewTokenStore(a.store)
}

// Probe checks connectivity once and updates Monitor. Without a prober it
// reports the current status.
func (a *App) Probe(ctx context.Context) offline.Status {
	if a.prober == nil {
		return a.Monitor.Status()
	}
	return a.prober.Probe(ctx)
}
