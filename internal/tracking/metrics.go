// Package tracking records OpenTelemetry metrics for the API client.
// Instruments are created lazily from the global meter provider, so callers
// that never install a provider pay only for no-op instruments.
package tracking

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	meterName = "dashclient/apiclient"

	metricRequestDuration = "apiclient.request.duration" // Histogram in seconds
	metricRetries         = "apiclient.retries"
	metricCSRFRefetches   = "apiclient.csrf.refetches"
	metricAuthRefreshes   = "apiclient.auth.refreshes"
	metricQueueEnqueued   = "apiclient.queue.enqueued"
	metricQueueDropped    = "apiclient.queue.dropped"

	attrMethod     = "http.request.method"
	attrStatusCode = "http.response.status_code"
	attrErrorType  = "error.type"
	attrResult     = "result"
	attrReason     = "reason"
)

// Refresh and fetch outcomes
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

var (
	meter       metric.Meter
	meterOnce   sync.Once
	meterInitMu sync.Mutex

	requestDuration metric.Float64Histogram
	retryCounter    metric.Int64Counter
	csrfCounter     metric.Int64Counter
	refreshCounter  metric.Int64Counter
	enqueueCounter  metric.Int64Counter
	dropCounter     metric.Int64Counter
)

func logMetricError(metricName string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "WARNING: Failed to initialize apiclient metric %s: %v\n", metricName, err)
	}
}

func initMeter() {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()

	if meter != nil {
		return
	}
	meter = otel.Meter(meterName)

	var err error
	requestDuration, err = meter.Float64Histogram(
		metricRequestDuration,
		metric.WithDescription("Duration of logical API client requests including retries"),
		metric.WithUnit("s"),
	)
	logMetricError(metricRequestDuration, err)

	retryCounter, err = meter.Int64Counter(
		metricRetries,
		metric.WithDescription("Number of transport retries"),
		metric.WithUnit("{retry}"),
	)
	logMetricError(metricRetries, err)

	csrfCounter, err = meter.Int64Counter(
		metricCSRFRefetches,
		metric.WithDescription("Number of CSRF token fetches"),
		metric.WithUnit("{fetch}"),
	)
	logMetricError(metricCSRFRefetches, err)

	refreshCounter, err = meter.Int64Counter(
		metricAuthRefreshes,
		metric.WithDescription("Number of access token refresh attempts"),
		metric.WithUnit("{refresh}"),
	)
	logMetricError(metricAuthRefreshes, err)

	enqueueCounter, err = meter.Int64Counter(
		metricQueueEnqueued,
		metric.WithDescription("Number of requests queued while offline"),
		metric.WithUnit("{request}"),
	)
	logMetricError(metricQueueEnqueued, err)

	dropCounter, err = meter.Int64Counter(
		metricQueueDropped,
		metric.WithDescription("Number of queued requests dropped without success"),
		metric.WithUnit("{request}"),
	)
	logMetricError(metricQueueDropped, err)
}

func ensureInitialized() {
	meterOnce.Do(initMeter)
}

// RecordRequest records the duration of one logical request. statusCode is 0
// when no response was received; errorType is empty on success.
func RecordRequest(ctx context.Context, method string, statusCode int, duration time.Duration, errorType string) {
	ensureInitialized()
	if requestDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{attribute.String(attrMethod, method)}
	if statusCode > 0 {
		attrs = append(attrs, attribute.String(attrStatusCode, strconv.Itoa(statusCode)))
	}
	if errorType != "" {
		attrs = append(attrs, attribute.String(attrErrorType, errorType))
	}
	requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordRetry counts one transport retry
func RecordRetry(ctx context.Context, method string) {
	ensureInitialized()
	if retryCounter != nil {
		retryCounter.Add(ctx, 1, metric.WithAttributes(attribute.String(attrMethod, method)))
	}
}

// RecordCSRFFetch counts one CSRF token fetch
func RecordCSRFFetch(ctx context.Context, ok bool) {
	ensureInitialized()
	if csrfCounter != nil {
		csrfCounter.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result(ok))))
	}
}

// RecordRefresh counts one token refresh attempt
func RecordRefresh(ctx context.Context, ok bool) {
	ensureInitialized()
	if refreshCounter != nil {
		refreshCounter.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result(ok))))
	}
}

// RecordEnqueued counts one request queued while offline
func RecordEnqueued(ctx context.Context, method string) {
	ensureInitialized()
	if enqueueCounter != nil {
		enqueueCounter.Add(ctx, 1, metric.WithAttributes(attribute.String(attrMethod, method)))
	}
}

// RecordDropped counts one queued request dropped for reason
func RecordDropped(ctx context.Context, reason string) {
	ensureInitialized()
	if dropCounter != nil {
		dropCounter.Add(ctx, 1, metric.WithAttributes(attribute.String(attrReason, reason)))
	}
}

func result(ok bool) string {
	if ok {
		return ResultSuccess
	}
	return ResultFailure
}

// ResetForTesting drops the instruments so the next call binds to the current
// global meter provider. Tests only.
func ResetForTesting() {
	meterInitMu.Lock()
	defer meterInitMu.Unlock()

	meter = nil
	requestDuration = nil
	retryCounter = nil
	csrfCounter = nil
	refreshCounter = nil
	enqueueCounter = nil
	dropCounter = nil
	meterOnce = sync.Once{}
}
