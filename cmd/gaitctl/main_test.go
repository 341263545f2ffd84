package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"tailscale.com/tsweb"

	"github.com/cvacare/gaitsession/internal/apperrors"
	"github.com/cvacare/gaitsession/internal/monitoring"
	"github.com/cvacare/gaitsession/internal/serialmux"
	"github.com/cvacare/gaitsession/internal/version"
)

func writeConfig(t *testing.T, cfg map[string]any) string {
	t.Helper()
	data, err := json.Marshal(cfg)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "gaitctl.json")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Cleanup(monitoring.Mute())
	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, version.String()+"\n", out)
}

// planServer is a minimal plan service holding one plan.
type planServer struct {
	mu       sync.Mutex
	done     map[string]bool
	requests []string
}

func (s *planServer) log() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

func (s *planServer) isDone(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done[id]
}

func (s *planServer) handler() http.Handler {
	mux := http.NewServeMux()
	planJSON := func() string {
		s.mu.Lock()
		defer s.mu.Unlock()
		return fmt.Sprintf(`{"success":true,"plan":{"id":"p1","date":"2026-10-17","exercises":[
			{"id":"e1","name":"Heel raises","completed":%t},
			{"id":"e2","name":"Tandem walk","completed":%t}],
			"detected_problems":[
			{"problem":"Reduced Stride Length","severity":"mild","category":"Gait Pattern","description":"short steps"},
			{"problem":"Slow Walking Speed","severity":"severe","category":"Speed & Rhythm","description":"slow"}]}}`,
			s.done["e1"], s.done["e2"])
	}
	record := func(r *http.Request) {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path+" "+r.Header.Get("X-User-ID"))
	}
	mux.HandleFunc("GET /api/plans/today", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		io.WriteString(w, planJSON())
	})
	mux.HandleFunc("GET /api/plans/{id}", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		if r.PathValue("id") != "p1" {
			w.WriteHeader(http.StatusNotFound)
			io.WriteString(w, `{"success":false,"error":"plan not found"}`)
			return
		}
		io.WriteString(w, planJSON())
	})
	mux.HandleFunc("POST /api/plans/p1/exercises/{ex}/complete", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		s.mu.Lock()
		s.done[r.PathValue("ex")] = true
		s.mu.Unlock()
		io.WriteString(w, `{"success":true}`)
	})
	mux.HandleFunc("POST /api/plans/p1/complete-all", func(w http.ResponseWriter, r *http.Request) {
		record(r)
		s.mu.Lock()
		s.done["e1"], s.done["e2"] = true, true
		s.mu.Unlock()
		io.WriteString(w, `{"success":true}`)
	})
	return mux
}

func newPlanFixture(t *testing.T) (*planServer, string) {
	t.Helper()
	ps := &planServer{done: map[string]bool{}}
	srv := httptest.NewServer(ps.handler())
	t.Cleanup(srv.Close)
	return ps, writeConfig(t, map[string]any{"plan_url": srv.URL, "request_timeout": "5s"})
}

func TestPlanToday(t *testing.T) {
	ps, cfg := newPlanFixture(t)

	out, err := run(t, "--config", cfg, "--user", "u1", "plan", "today")
	require.NoError(t, err)
	assert.Contains(t, out, "plan p1 (2026-10-17)")
	assert.Contains(t, out, "Heel raises")
	assert.Contains(t, out, "0/2 done (0%)")
	assert.NotContains(t, out, "retest unlocked")
	assert.Equal(t, []string{"GET /api/plans/today u1"}, ps.log())
}

func TestPlanComplete(t *testing.T) {
	ps, cfg := newPlanFixture(t)

	out, err := run(t, "--config", cfg, "--user", "u1", "plan", "complete", "e1", "--plan", "p1", "--rating", "4")
	require.NoError(t, err)
	assert.Contains(t, out, "1/2 done (50%)")
	assert.True(t, ps.isDone("e1"))

	out, err = run(t, "--config", cfg, "--user", "u1", "plan", "complete-all", "--plan", "p1")
	require.NoError(t, err)
	assert.Contains(t, out, "2/2 done (100%)")
	assert.Contains(t, out, "gait retest unlocked")
}

func TestPlanErrors(t *testing.T) {
	_, cfg := newPlanFixture(t)

	_, err := run(t, "--config", cfg, "plan", "today")
	assert.ErrorIs(t, err, apperrors.ErrBadInput, "user is required")

	_, err = run(t, "--config", cfg, "--user", "u1", "plan", "show", "p404")
	assert.ErrorIs(t, err, apperrors.ErrPlanNotFound)

	_, err = run(t, "--config", cfg, "--user", "u1", "plan", "complete", "e9", "--plan", "p1")
	assert.ErrorIs(t, err, apperrors.ErrExerciseNotFound)

	_, err = run(t, "--config", cfg, "--user", "u1", "plan", "complete", "e1", "--plan", "p1", "--rating", "9")
	assert.ErrorIs(t, err, apperrors.ErrBadInput)
}

func TestPlanProblems(t *testing.T) {
	_, cfg := newPlanFixture(t)

	out, err := run(t, "--config", cfg, "--user", "u1", "plan", "problems")
	require.NoError(t, err)
	assert.Contains(t, out, "1. Slow Walking Speed (severe, Speed & Rhythm)")
	assert.Contains(t, out, "2. Reduced Stride Length (mild, Gait Pattern)")
}

func newAnalysisServer(t *testing.T, calls *int) string {
	t.Helper()
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			io.WriteString(w, `{"status":"healthy"}`)
		case "/api/gait/analyze":
			var req struct {
				Accelerometer []json.RawMessage `json:"accelerometer"`
				SessionID     string            `json:"session_id"`
			}
			if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Accelerometer) == 0 {
				w.WriteHeader(http.StatusBadRequest)
				io.WriteString(w, `{"success":false,"error":"Invalid data","details":["no samples"]}`)
				return
			}
			mu.Lock()
			*calls++
			mu.Unlock()
			fmt.Fprintf(w, `{"success":true,"data":{"session_id":%q,"metrics":{"step_count":12,"cadence":104,"velocity":1.3,"gait_symmetry":0.95},"data_quality":"good"}}`, req.SessionID)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func TestRecordSyntheticAccepted(t *testing.T) {
	calls := 0
	cfg := writeConfig(t, map[string]any{
		"analysis_url":    newAnalysisServer(t, &calls),
		"sample_interval": "5ms",
		"min_seconds":     0,
	})

	out, err := run(t, "--config", cfg, "--user", "u1", "record", "--duration", "300ms")
	require.NoError(t, err, out)
	assert.Contains(t, out, "complete")
	assert.Contains(t, out, "verdict: accepted")
	assert.Contains(t, out, "Your cadence is fast")
	assert.Equal(t, 1, calls)
}

func TestRecordTooShort(t *testing.T) {
	calls := 0
	analysisURL := newAnalysisServer(t, &calls)
	cfg := writeConfig(t, map[string]any{
		"analysis_url":    analysisURL,
		"sample_interval": "5ms",
		"min_seconds":     60,
	})

	out, err := run(t, "--config", cfg, "record", "--duration", "200ms")
	assert.ErrorIs(t, err, apperrors.ErrTooShort)
	assert.Contains(t, out, "verdict: soft_warning")
	assert.Zero(t, calls)

	out, err = run(t, "--config", cfg, "record", "--duration", "200ms", "--analyze-anyway", "--json")
	require.NoError(t, err)
	assert.Contains(t, out, "analyzing anyway")
	assert.Contains(t, out, `"state": "complete"`)
	assert.Equal(t, 1, calls)
}

func TestRecordBadSource(t *testing.T) {
	_, err := run(t, "record", "--source", "bluetooth")
	assert.ErrorIs(t, err, apperrors.ErrBadInput)
}

func TestRecordDebugListenNeedsSerial(t *testing.T) {
	_, err := run(t, "record", "--debug-listen", "127.0.0.1:0")
	assert.ErrorIs(t, err, apperrors.ErrBadInput)
}

func TestServeDebug_SerialRoutes(t *testing.T) {
	t.Cleanup(monitoring.Mute())
	mux, port := serialmux.NewMockSerialMux()
	defer mux.Close()

	addr, stop, err := serveDebug("127.0.0.1:0", func(debug *tsweb.DebugHandler, m *http.ServeMux) {
		debug.KV("Serial port", "/dev/ttyTEST")
		mux.AttachAdminRoutes(m)
	})
	require.NoError(t, err)
	base := "http://" + addr

	resp, err := http.Get(base + "/debug/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "/dev/ttyTEST")
	assert.Contains(t, string(body), "imu-tail")

	resp, err = http.PostForm(base+"/debug/imu-command", url.Values{"command": {"STREAM OFF"}})
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "STREAM OFF\n", port.Written())

	stop()
	_, err = http.Get(base + "/debug/")
	assert.Error(t, err)
}

func TestHealthCommand(t *testing.T) {
	calls := 0
	cfg := writeConfig(t, map[string]any{"analysis_url": newAnalysisServer(t, &calls), "velocity_unit": "mph"})

	out, err := run(t, "--config", cfg, "health")
	require.NoError(t, err)
	assert.Contains(t, out, "is up (speeds in mph)")
}
