package offline

import (
	"context"
	"net/http"
	"time"

	"github.com/gaborage/dashclient/logger"
)

const (
	DefaultProbeInterval = 15 * time.Second
	DefaultProbeTimeout  = 5 * time.Second
)

// Prober checks whether the API origin answers and feeds the result into a
// Monitor. Any HTTP response counts as reachable; only transport failures
// mark the client offline.
type Prober struct {
	httpClient *http.Client
	target     string
	monitor    *Monitor
	interval   time.Duration
	timeout    time.Duration
	log        logger.Logger
}

// NewProber creates a prober for target. Non-positive durations select the defaults.
func NewProber(httpClient *http.Client, target string, monitor *Monitor, interval, timeout time.Duration, log logger.Logger) *Prober {
	if interval <= 0 {
		interval = DefaultProbeInterval
	}
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	return &Prober{
		httpClient: httpClient,
		target:     target,
		monitor:    monitor,
		interval:   interval,
		timeout:    timeout,
		log:        log,
	}
}

// Check probes once and returns the observed status without updating the monitor
func (p *Prober) Check(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.target, http.NoBody)
	if err != nil {
		return Offline
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		p.log.Debug().Err(err).Str("target", p.target).Msg("connectivity probe failed")
		return Offline
	}
	resp.Body.Close()
	return Online
}

// Probe checks once and records the result on the monitor
func (p *Prober) Probe(ctx context.Context) Status {
	s := p.Check(ctx)
	if p.monitor.Set(s) {
		p.log.Info().Str("status", s.String()).Msg("connectivity changed")
	}
	return s
}

// Run probes every interval until ctx is done
func (p *Prober) Run(ctx context.Context) {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Probe(ctx)
		}
	}
}
