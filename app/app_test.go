package app

import (
	"bytes"
	"context"
	"net/http"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/gaborage/dashclient/apiclient"
	"github.com/gaborage/dashclient/config"
	"github.com/gaborage/dashclient/internal/testutil"
	"github.com/gaborage/dashclient/offline"
)

func loadConfig(t *testing.T, vars ...string) *config.Config {
	t.Helper()
	cfg, err := config.Load(config.WithDir(t.TempDir()), config.WithEnviron(func() []string { return vars }))
	require.NoError(t, err)
	return cfg
}

func newDashboardServer(t *testing.T) (url string, hits *atomic.Int32) {
	t.Helper()
	hits = &atomic.Int32{}
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/api/me", func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		testutil.WriteJSON(w, http.StatusOK, `{"success":true,"data":{"id":1}}`)
	})
	server := testutil.NewIPv4Server(t, mux)
	return server.URL, hits
}

func TestNewOnline(t *testing.T) {
	url, hits := newDashboardServer(t)
	cfg := loadConfig(t, "DASHCLIENT_API_BASEURL="+url+"/api")

	a, err := New(context.Background(), cfg, testutil.NewFakeLogger())
	require.NoError(t, err)

	assert.Equal(t, offline.Online, a.Monitor.Status())
	res, err := a.Client.Get(context.Background(), "/me", nil)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, int32(1), hits.Load())

	a.Start(context.Background())
	require.NoError(t, a.Shutdown(context.Background()))
}

func TestNewOfflineQueuesRequests(t *testing.T) {
	transport := testutil.RoundTripperFunc(func(*http.Request) (*http.Response, error) {
		return nil, &testNetError{}
	})
	cfg := loadConfig(t, "DASHCLIENT_API_BASEURL=http://unreachable.test/api")

	var dropped atomic.Int32
	a, err := New(context.Background(), cfg, nil,
		WithTransport(transport),
		WithOnDropped(func(apiclient.QueuedRequest, offline.DropReason) { dropped.Add(1) }),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Shutdown(context.Background()) })

	assert.Equal(t, offline.Offline, a.Monitor.Status())
	_, err = a.Client.Get(context.Background(), "/me", nil)
	assert.True(t, apiclient.IsOffline(err))
	assert.Equal(t, 1, a.Client.QueueLen())
	assert.Zero(t, dropped.Load())
}

func TestProbeDisabledStartsOnline(t *testing.T) {
	cfg := loadConfig(t,
		"DASHCLIENT_API_BASEURL=http://unreachable.test/api",
		"DASHCLIENT_CONNECTIVITY_PROBE_ENABLED=false",
	)

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, offline.Online, a.Monitor.Status())

	a.Start(context.Background())
	require.NoError(t, a.Shutdown(context.Background()))
}

func TestSQLiteStoreKeepsCredentials(t *testing.T) {
	url, _ := newDashboardServer(t)
	dsn := "file:" + filepath.Join(t.TempDir(), "creds.db")
	cfg := loadConfig(t,
		"DASHCLIENT_API_BASEURL="+url+"/api",
		"DASHCLIENT_STORAGE_DRIVER=sqlite",
		"DASHCLIENT_STORAGE_DSN="+dsn,
	)
	ctx := context.Background()

	first, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	require.NoError(t, first.Client.SetAuthToken(ctx, testutil.TestAccessToken))
	require.NoError(t, first.Shutdown(ctx))

	second, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = second.Shutdown(ctx) })

	token, err := second.Client.AuthToken(ctx)
	require.NoError(t, err)
	assert.Equal(t, testutil.TestAccessToken, token)
}

func TestShutdownHonorsContext(t *testing.T) {
	url, _ := newDashboardServer(t)
	cfg := loadConfig(t, "DASHCLIENT_API_BASEURL="+url+"/api", "DASHCLIENT_CONNECTIVITY_PROBE_INTERVAL=10ms", "DASHCLIENT_CONNECTIVITY_PROBE_TIMEOUT=5ms")

	a, err := New(context.Background(), cfg, nil)
	require.NoError(t, err)
	a.Start(context.Background())
	time.Sleep(30 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, a.Shutdown(ctx))
}

type testNetError struct{}

func (*testNetError) Error() string { return testutil.TestConnectionRefused }

func TestTelemetryExportsRequestSpans(t *testing.T) {
	tp, mp := otel.GetTracerProvider(), otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(tp)
		otel.SetMeterProvider(mp)
	})

	url, _ := newDashboardServer(t)
	cfg := loadConfig(t,
		"DASHCLIENT_API_BASEURL="+url+"/api",
		"DASHCLIENT_OBSERVABILITY_ENABLED=true",
		"DASHCLIENT_OBSERVABILITY_METRICS_ENABLED=false",
	)

	var buf bytes.Buffer
	a, err := New(context.Background(), cfg, testutil.NewFakeLogger(), WithTelemetryWriter(&buf))
	require.NoError(t, err)

	_, err = a.Client.Get(context.Background(), "/me", nil)
	require.NoError(t, err)
	require.NoError(t, a.Shutdown(context.Background()))

	assert.Contains(t, buf.String(), "apiclient.GET")
	assert.Contains(t, buf.String(), "dashctl")
}

func TestInvalidTelemetryConfig(t *testing.T) {
	cfg := loadConfig(t,
		"DASHCLIENT_OBSERVABILITY_ENABLED=true",
		"DASHCLIENT_OBSERVABILITY_TRACE_PROTOCOL=udp",
		"DASHCLIENT_CONNECTIVITY_PROBE_ENABLED=false",
	)

	_, err := New(context.Background(), cfg, testutil.NewFakeLogger())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to initialize telemetry")
}
