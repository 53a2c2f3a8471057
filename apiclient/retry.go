package apiclient

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/gaborage/dashclient/internal/tracking"
)

const (
	DefaultMaxRetries = 3
	DefaultRetryDelay = 1 * time.Second
	DefaultMultiplier = 2.0
	DefaultMaxDelay   = 30 * time.Second
)

// RetryPredicate decides whether an attempt is retried. statusCode is 0 when
// no response was received.
type RetryPredicate func(statusCode int, err error) bool

// RetryPolicy controls the retry engine under every request
type RetryPolicy struct {
	MaxRetries int
	BaseDelay  time.Duration
	Multiplier float64
	MaxDelay   time.Duration
	// ShouldRetry defaults to DefaultShouldRetry
	ShouldRetry RetryPredicate
}

// DefaultRetryPolicy retries 3 times after 1s, 2s and 4s
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:  DefaultMaxRetries,
		BaseDelay:   DefaultRetryDelay,
		Multiplier:  DefaultMultiplier,
		MaxDelay:    DefaultMaxDelay,
		ShouldRetry: DefaultShouldRetry,
	}
}

// DefaultShouldRetry retries when there was no response, on timeouts and on 5xx
func DefaultShouldRetry(statusCode int, err error) bool {
	if err != nil {
		return true
	}
	return isRetryableStatus(statusCode)
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultRetryDelay
	}
	if p.Multiplier < 1 {
		p.Multiplier = DefaultMultiplier
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = DefaultMaxDelay
		if p.MaxDelay < p.BaseDelay {
			p.MaxDelay = p.BaseDelay
		}
	}
	if p.ShouldRetry == nil {
		p.ShouldRetry = DefaultShouldRetry
	}
	return p
}

// backOff builds the deterministic schedule BaseDelay * Multiplier^(n-1)
func (p RetryPolicy) backOff(ctx context.Context) backoff.BackOff {
	exp := &backoff.ExponentialBackOff{
		InitialInterval:     p.BaseDelay,
		RandomizationFactor: 0,
		Multiplier:          p.Multiplier,
		MaxInterval:         p.MaxDelay,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	exp.Reset()
	return backoff.WithContext(backoff.WithMaxRetries(exp, uint64(p.MaxRetries)), ctx)
}

var errRetryableStatus = errors.New("retryable status")

// send performs req through the retry engine. It returns the last response
// received, or the last transport error when no attempt got a response.
func (c *client) send(ctx context.Context, req Request) (*rawResponse, error) {
	policy := c.RetryPolicy().normalized()

	var (
		last    *rawResponse
		lastErr error
		attempt int
	)
	operation := func() error {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return backoff.Permanent(fmt.Errorf("rate limiter: %w", err))
			}
		}
		attempt++

		resp, err := c.attempt(ctx, req, attempt)
		last, lastErr = resp, err

		var buildErr *Error
		if errors.As(err, &buildErr) {
			return backoff.Permanent(err)
		}

		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		if !policy.ShouldRetry(status, err) {
			if err != nil {
				return backoff.Permanent(err)
			}
			return nil
		}
		if err != nil {
			return err
		}
		return errRetryableStatus
	}

	notify := func(err error, delay time.Duration) {
		tracking.RecordRetry(ctx, req.Method)
		c.logger.Warn().
			Err(err).
			Str("method", req.Method).
			Str("path", req.Path).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("retrying API request")
	}

	var timer backoff.Timer
	if c.newTimer != nil {
		timer = c.newTimer()
	}
	retryErr := backoff.RetryNotifyWithTimer(operation, policy.backOff(ctx), notify, timer)

	switch {
	case lastErr != nil:
		return nil, lastErr
	case last != nil:
		return last, nil
	default:
		return nil, retryErr
	}
}
