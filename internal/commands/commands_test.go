package commands

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gaborage/dashclient/auth"
	"github.com/gaborage/dashclient/internal/testutil"
)

type seenRequest struct {
	Method string
	URI    string
	Header http.Header
	Body   string
}

type dashboard struct {
	URL  string
	mu   sync.Mutex
	seen []seenRequest
}

func (d *dashboard) requests() []seenRequest {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]seenRequest(nil), d.seen...)
}

func newDashboard(t *testing.T) *dashboard {
	t.Helper()
	d := &dashboard{}
	mux := http.NewServeMux()
	mux.HandleFunc("/csrf-token", func(w http.ResponseWriter, _ *http.Request) {
		testutil.WriteJSON(w, http.StatusOK, `{"success":true,"data":{"csrfToken":"`+testutil.TestCSRFToken+`"}}`)
	})
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		var body []byte
		if !strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/") {
			body, _ = io.ReadAll(r.Body)
		}
		d.mu.Lock()
		d.seen = append(d.seen, seenRequest{Method: r.Method, URI: r.URL.RequestURI(), Header: r.Header.Clone(), Body: string(body)})
		d.mu.Unlock()

		switch r.URL.Path {
		case "/api/missing":
			testutil.WriteJSON(w, http.StatusNotFound, `{"success":false,"error":{"code":"NOT_FOUND","message":"Order not found"}}`)
		case "/api/uploads":
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			_, header, err := r.FormFile("doc")
			if err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			testutil.WriteJSON(w, http.StatusCreated, fmt.Sprintf(`{"success":true,"data":{"name":%q,"folder":%q}}`, header.Filename, r.FormValue("folder")))
		default:
			testutil.WriteJSON(w, http.StatusOK, `{"success":true,"data":{"path":"`+r.URL.Path+`"}}`)
		}
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	d.URL = testutil.NewIPv4Server(t, mux).URL
	return d
}

func inlineConfig(baseURL string, extra ...string) string {
	lines := append([]string{
		"api:",
		"  baseurl: " + baseURL + "/api",
		"log:",
		"  level: error",
	}, extra...)
	return strings.Join(lines, "\n") + "\n"
}

func execute(t *testing.T, inline string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := NewRootCommand("1.2.3", nil)
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config-dir", t.TempDir(), "--config-inline", inline}, args...))
	err := root.Execute()
	return out.String(), err
}

func decode(t *testing.T, out string) map[string]any {
	t.Helper()
	var v map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &v), out)
	return v
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "", "version")
	require.NoError(t, err)
	assert.Contains(t, out, "dashctl version 1.2.3")
	assert.Contains(t, out, "Built with go")
}

func TestGetCommand(t *testing.T) {
	d := newDashboard(t)

	out, err := execute(t, inlineConfig(d.URL), "get", "/wallet/balance", "-q", "currency=USD", "-q", "limit=5")
	require.NoError(t, err)

	res := decode(t, out)
	assert.Equal(t, true, res["success"])
	assert.Equal(t, map[string]any{"path": "/api/wallet/balance"}, res["data"])

	reqs := d.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodGet, reqs[0].Method)
	assert.Equal(t, "/api/wallet/balance?currency=USD&limit=5", reqs[0].URI)
}

func TestBodyCommands(t *testing.T) {
	for _, method := range []string{"post", "put", "patch"} {
		t.Run(method, func(t *testing.T) {
			d := newDashboard(t)

			_, err := execute(t, inlineConfig(d.URL), method, "/orders", "--data", `{"qty":2}`)
			require.NoError(t, err)

			reqs := d.requests()
			require.Len(t, reqs, 1)
			assert.Equal(t, strings.ToUpper(method), reqs[0].Method)
			assert.JSONEq(t, `{"qty":2}`, reqs[0].Body)
			assert.Equal(t, testutil.TestCSRFToken, reqs[0].Header.Get("X-CSRF-Token"))
		})
	}
}

func TestDataFromFile(t *testing.T) {
	d := newDashboard(t)
	path := filepath.Join(t.TempDir(), "order.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"qty":9}`), 0o600))

	_, err := execute(t, inlineConfig(d.URL), "post", "/orders", "--data", "@"+path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"qty":9}`, d.requests()[0].Body)
}

func TestDeleteCommand(t *testing.T) {
	d := newDashboard(t)

	_, err := execute(t, inlineConfig(d.URL), "delete", "/orders/1")
	require.NoError(t, err)

	reqs := d.requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodDelete, reqs[0].Method)
	assert.Equal(t, testutil.TestCSRFToken, reqs[0].Header.Get("X-CSRF-Token"))
}

func TestInvalidInput(t *testing.T) {
	d := newDashboard(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"bad json", []string{"post", "/orders", "--data", "{qty"}, "request body is not valid JSON"},
		{"bad query", []string{"get", "/orders", "-q", "novalue"}, "invalid query parameter"},
		{"missing file", []string{"post", "/orders", "--data", "@/does/not/exist.json"}, "failed to read request body"},
		{"missing path", []string{"get"}, "accepts 1 arg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, inlineConfig(d.URL), tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
	assert.Empty(t, d.requests())
}

func TestServerErrorPrintsEnvelope(t *testing.T) {
	d := newDashboard(t)

	out, err := execute(t, inlineConfig(d.URL), "get", "/missing")
	require.Error(t, err)
	assert.Equal(t, "Order not found", err.Error())

	res := decode(t, out)
	assert.Equal(t, false, res["success"])
	assert.Equal(t, "NOT_FOUND", res["error"].(map[string]any)["code"])
}

func TestInvalidConfig(t *testing.T) {
	_, err := execute(t, "api:\n  baseurl: not-a-url\n", "get", "/x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api.baseurl")
}

func TestUploadCommand(t *testing.T) {
	d := newDashboard(t)
	path := filepath.Join(t.TempDir(), "report.pdf")
	require.NoError(t, os.WriteFile(path, []byte("%PDF-1.4 test"), 0o600))

	out, err := execute(t, inlineConfig(d.URL), "upload", "/uploads", path, "--field", "doc", "--form", "folder=reports", "--progress")
	require.NoError(t, err)

	res := decode(t, out)
	assert.Equal(t, map[string]any{"name": "report.pdf", "folder": "reports"}, res["data"])
}

func TestTokenLifecycle(t *testing.T) {
	d := newDashboard(t)
	dsn := "file:" + filepath.Join(t.TempDir(), "creds.db")
	cfg := inlineConfig(d.URL, "storage:", "  driver: sqlite", "  dsn: "+dsn)

	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"exp": exp.Unix()}).SignedString([]byte("k"))
	require.NoError(t, err)

	_, err = execute(t, cfg, "token", "set", access, "--refresh", testutil.TestRefreshToken)
	require.NoError(t, err)

	out, err := execute(t, cfg, "token", "show")
	require.NoError(t, err)
	status := decode(t, out)
	assert.Equal(t, true, status["authenticated"])
	assert.Equal(t, true, status["hasRefreshToken"])
	assert.NotEqual(t, true, status["expired"])
	assert.NotEqual(t, access, status["accessToken"])
	assert.Contains(t, status, "expiresAt")

	out, err = execute(t, cfg, "token", "show", "--reveal")
	require.NoError(t, err)
	assert.Equal(t, access, decode(t, out)["accessToken"])

	_, err = execute(t, cfg, "get", "/me")
	require.NoError(t, err)
	assert.Equal(t, "Bearer "+access, d.requests()[0].Header.Get("Authorization"))

	_, err = execute(t, cfg, "token", "clear")
	require.NoError(t, err)

	out, err = execute(t, cfg, "token", "show")
	require.NoError(t, err)
	status = decode(t, out)
	assert.Equal(t, false, status["authenticated"])
	assert.Equal(t, false, status["hasRefreshToken"])
}

func TestQueueCommand(t *testing.T) {
	d := newDashboard(t)

	out, err := execute(t, inlineConfig(d.URL), "queue")
	require.NoError(t, err)

	status := decode(t, out)
	assert.Equal(t, "online", status["connectivity"])
	assert.Equal(t, true, status["flushed"])
	assert.Equal(t, float64(0), status["queued"])
}

func TestQueueCommandOffline(t *testing.T) {
	out, err := execute(t, inlineConfig("http://127.0.0.1:1", "connectivity:", "  probe:", "    timeout: 200ms"), "queue")
	require.NoError(t, err)

	status := decode(t, out)
	assert.Equal(t, "offline", status["connectivity"])
	assert.Equal(t, false, status["flushed"])
}

func TestTokenStatus(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, TokenStatus{}, tokenStatus(auth.Credentials{}, false, now))
	assert.Equal(t, TokenStatus{HasRefreshToken: true}, tokenStatus(auth.Credentials{RefreshToken: "r"}, false, now))

	s := tokenStatus(auth.Credentials{AccessToken: "opaque-token-value"}, false, now)
	assert.True(t, s.Authenticated)
	assert.Equal(t, "opaq****alue", s.AccessToken)
	assert.Nil(t, s.ExpiresAt)

	assert.Equal(t, "****", maskToken("short"))
}
