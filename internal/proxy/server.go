// Package proxy serves the read-only prescriptive and priority endpoints.
// Each request is checked for ownership before it is forwarded to the
// upstream analytics service.
package proxy

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"

	"github.com/cvacare/gaitsession/internal/apperrors"
	"github.com/cvacare/gaitsession/internal/httputil"
	"github.com/cvacare/gaitsession/internal/monitoring"
)

// Server forwards authorized requests to the upstream service.
type Server struct {
	auth      Authenticator
	client    httputil.HTTPClient
	upstream  string
	adminRole string
	timeout   time.Duration

	forwarded atomic.Int64
	denied    atomic.Int64
	failed    atomic.Int64
}

// Options configures a Server.
type Options struct {
	Auth      Authenticator // default HeaderAuthenticator
	Client    httputil.HTTPClient
	Upstream  string
	AdminRole string
	Timeout   time.Duration
}

// NewServer returns a Server.
func NewServer(opts Options) *Server {
	if opts.Auth == nil {
		opts.Auth = HeaderAuthenticator{}
	}
	if opts.Client == nil {
		opts.Client = httputil.NewStandardClient(0)
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Server{
		auth:      opts.Auth,
		client:    opts.Client,
		upstream:  opts.Upstream,
		adminRole: opts.AdminRole,
		timeout:   opts.Timeout,
	}
}

// Stats are request counters since start.
type Stats struct {
	Forwarded int64 `json:"forwarded"`
	Denied    int64 `json:"denied"`
	Failed    int64 `json:"failed"`
}

func (s *Server) Stats() Stats {
	return Stats{
		Forwarded: s.forwarded.Load(),
		Denied:    s.denied.Load(),
		Failed:    s.failed.Load(),
	}
}

// Router returns the proxy routes.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/api/prescriptive/{userId}", s.forward("prescriptive")).Methods(http.MethodGet)
	r.HandleFunc("/api/priority/{userId}", s.forward("priority")).Methods(http.MethodGet)
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.MethodNotAllowed(w)
	})
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.NotFound(w, "no such endpoint")
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSONOK(w, map[string]any{"status": "ok", "stats": s.Stats()})
}

func (s *Server) forward(resource string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := mux.Vars(r)["userId"]

		id, err := s.auth.Authenticate(r)
		if err != nil {
			s.denied.Add(1)
			httputil.Unauthorized(w, "missing caller identity")
			return
		}
		if err := Authorize(id, userID, s.adminRole); err != nil {
			s.denied.Add(1)
			monitoring.Logf("proxy: denied %s for %s: %v", resource, id.UserID, err)
			httputil.Forbidden(w, apperrors.UserMessage(err))
			return
		}

		status, body, err := s.fetch(r.Context(), resource, userID, r.URL.RawQuery)
		if err != nil {
			s.failed.Add(1)
			monitoring.Logf("proxy: %s for %s: %v", resource, userID, err)
			httputil.WriteJSONError(w, httputil.StatusFor(err), apperrors.UserMessage(err))
			return
		}
		s.forwarded.Add(1)
		httputil.WriteRawJSON(w, status, body)
	}
}

// fetch performs the upstream GET. Upstream error statuses are classified
// so the caller sees the same taxonomy as the other service clients.
func (s *Server) fetch(ctx context.Context, resource, userID, rawQuery string) (int, []byte, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	target := httputil.JoinURL(s.upstream, "/api/"+resource+"/"+url.PathEscape(userID))
	if rawQuery != "" {
		target += "?" + rawQuery
	}
	req, err := httputil.NewJSONRequest(ctx, http.MethodGet, target, nil)
	if err != nil {
		return 0, nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, nil, httputil.ClassifyError(err)
	}
	body, err := httputil.ReadBody(resp)
	if err != nil {
		return 0, nil, httputil.ClassifyError(err)
	}
	if err := httputil.ClassifyStatus(resp.StatusCode, body); err != nil {
		return 0, nil, err
	}
	return resp.StatusCode, body, nil
}

// ANSI escape codes for request logs.
const (
	colorCyan      = "\033[36m"
	colorReset     = "\033[0m"
	colorYellow    = "\033[33m"
	colorBoldGreen = "\033[1;32m"
	colorBoldRed   = "\033[1;31m"
)

type loggingResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (lrw *loggingResponseWriter) WriteHeader(code int) {
	lrw.statusCode = code
	lrw.ResponseWriter.WriteHeader(code)
}

func (lrw *loggingResponseWriter) Flush() {
	if flusher, ok := lrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func statusCodeColor(statusCode int) string {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return colorBoldGreen + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 300 && statusCode < 400:
		return colorYellow + strconv.Itoa(statusCode) + colorReset
	case statusCode >= 400:
		return colorBoldRed + strconv.Itoa(statusCode) + colorReset
	default:
		return strconv.Itoa(statusCode)
	}
}

// LoggingMiddleware logs status, method, path, and duration.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		lrw := &loggingResponseWriter{w, http.StatusOK}
		next.ServeHTTP(lrw, r)
		monitoring.Logf(
			"[%s] %s %s%s%s %vms",
			statusCodeColor(lrw.statusCode), r.Method,
			colorCyan, r.RequestURI, colorReset,
			float64(time.Since(start).Nanoseconds())/1e6,
		)
	})
}

// Handler is the router wrapped in the request logger.
func (s *Server) Handler() http.Handler {
	return LoggingMiddleware(s.Router())
}
