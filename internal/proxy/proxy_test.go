package proxy

import (
	"bytes"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvacare/gaitsession/internal/apperrors"
	"github.com/cvacare/gaitsession/internal/httputil"
	"github.com/cvacare/gaitsession/internal/monitoring"
)

func newTestServer(t *testing.T, client *httputil.MockHTTPClient) *Server {
	t.Helper()
	t.Cleanup(monitoring.Mute())
	return NewServer(Options{
		Client:    client,
		Upstream:  "http://analytics.local/",
		AdminRole: "admin",
	})
}

func get(t *testing.T, h http.Handler, path string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthorize(t *testing.T) {
	tests := []struct {
		name  string
		id    Identity
		owner string
		admin string
		ok    bool
	}{
		{name: "owner", id: Identity{UserID: "u1"}, owner: "u1", admin: "admin", ok: true},
		{name: "admin", id: Identity{UserID: "u2", Role: "Admin"}, owner: "u1", admin: "admin", ok: true},
		{name: "other patient", id: Identity{UserID: "u2", Role: "patient"}, owner: "u1", admin: "admin"},
		{name: "no admin role configured", id: Identity{UserID: "u2", Role: ""}, owner: "u1", admin: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Authorize(tt.id, tt.owner, tt.admin)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
			}
		})
	}
}

func TestHeaderAuthenticator(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	_, err := HeaderAuthenticator{}.Authenticate(req)
	assert.ErrorIs(t, err, ErrNoIdentity)

	req.Header.Set(HeaderUserID, " u1 ")
	req.Header.Set(HeaderRole, "therapist")
	id, err := HeaderAuthenticator{}.Authenticate(req)
	require.NoError(t, err)
	assert.Equal(t, Identity{UserID: "u1", Role: "therapist"}, id)
}

func TestServer_OwnerIsForwarded(t *testing.T) {
	client := httputil.NewMockHTTPClient()
	client.AddResponse(http.StatusOK, `{"success":true,"exercises":["heel raises"]}`)
	s := newTestServer(t, client)

	rec := get(t, s.Handler(), "/api/prescriptive/u1?days=7", map[string]string{HeaderUserID: "u1"})

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"success":true,"exercises":["heel raises"]}`, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	require.Equal(t, 1, client.RequestCount())
	up := client.GetRequest(0)
	assert.Equal(t, http.MethodGet, up.Method)
	assert.Equal(t, "http://analytics.local/api/prescriptive/u1?days=7", up.URL.String())
	assert.Equal(t, Stats{Forwarded: 1}, s.Stats())
}

func TestServer_AdminMayReadOthers(t *testing.T) {
	client := httputil.NewMockHTTPClient()
	client.AddResponse(http.StatusOK, `{"priorities":[]}`)
	s := newTestServer(t, client)

	rec := get(t, s.Router(), "/api/priority/u1", map[string]string{HeaderUserID: "t9", HeaderRole: "admin"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "http://analytics.local/api/priority/u1", client.GetRequest(0).URL.String())
}

func TestServer_NonOwnerDeniedBeforeUpstream(t *testing.T) {
	client := httputil.NewMockHTTPClient()
	s := newTestServer(t, client)

	for _, path := range []string{"/api/prescriptive/u1", "/api/priority/u1"} {
		rec := get(t, s.Router(), path, map[string]string{HeaderUserID: "u2", HeaderRole: "patient"})
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
		assert.Contains(t, rec.Body.String(), "not allowed")
	}
	assert.Zero(t, client.RequestCount(), "no upstream call for a denied caller")
	assert.Equal(t, int64(2), s.Stats().Denied)
}

func TestServer_MissingIdentity(t *testing.T) {
	client := httputil.NewMockHTTPClient()
	s := newTestServer(t, client)

	rec := get(t, s.Router(), "/api/priority/u1", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Zero(t, client.RequestCount())
}

func TestServer_UpstreamFailures(t *testing.T) {
	tests := []struct {
		name     string
		upstream int
		body     string
		sendErr  error
		status   int
		msg      string
	}{
		{
			name:    "connection refused",
			sendErr: syscall.ECONNREFUSED,
			status:  http.StatusBadGateway,
			msg:     "service is down",
		},
		{
			name:     "upstream 500",
			upstream: http.StatusInternalServerError,
			body:     `{"error":"boom"}`,
			status:   http.StatusBadGateway,
			msg:      "service is down",
		},
		{
			name:     "upstream 404",
			upstream: http.StatusNotFound,
			body:     `{"error":"no such user"}`,
			status:   http.StatusNotFound,
			msg:      "does not exist",
		},
		{
			name:    "generic transport failure",
			sendErr: errors.New("tls handshake failure"),
			status:  http.StatusBadGateway,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := httputil.NewMockHTTPClient()
			if tt.sendErr != nil {
				client.AddErrorResponse(tt.sendErr)
			} else {
				client.AddResponse(tt.upstream, tt.body)
			}
			s := newTestServer(t, client)

			rec := get(t, s.Router(), "/api/prescriptive/u1", map[string]string{HeaderUserID: "u1"})
			assert.Equal(t, tt.status, rec.Code)
			if tt.msg != "" {
				assert.Contains(t, rec.Body.String(), tt.msg)
			}
			assert.Equal(t, int64(1), s.Stats().Failed)
		})
	}
}

func TestServer_MethodAndRoute(t *testing.T) {
	client := httputil.NewMockHTTPClient()
	s := newTestServer(t, client)

	req := httptest.NewRequest(http.MethodPost, "/api/priority/u1", strings.NewReader("{}"))
	req.Header.Set(HeaderUserID, "u1")
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = get(t, s.Router(), "/api/unknown/u1", map[string]string{HeaderUserID: "u1"})
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = get(t, s.Router(), "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
	assert.Zero(t, client.RequestCount())
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf, "", 0)
	prev := monitoring.Logf
	monitoring.SetLogger(logger.Printf)
	t.Cleanup(func() { monitoring.SetLogger(prev) })

	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/priority/u1?x=1", nil))

	assert.Equal(t, http.StatusTeapot, rec.Code)
	out := buf.String()
	assert.Contains(t, out, "418")
	assert.Contains(t, out, "GET")
	assert.Contains(t, out, "/api/priority/u1?x=1")
}

func TestStatusCodeColor(t *testing.T) {
	assert.Equal(t, colorBoldGreen+"200"+colorReset, statusCodeColor(200))
	assert.Equal(t, colorYellow+"302"+colorReset, statusCodeColor(302))
	assert.Equal(t, colorBoldRed+"503"+colorReset, statusCodeColor(503))
	assert.Equal(t, "100", statusCodeColor(100))
}
