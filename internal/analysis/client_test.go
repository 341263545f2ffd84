package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cvacare/gaitsession/internal/apperrors"
	"github.com/cvacare/gaitsession/internal/httputil"
	"github.com/cvacare/gaitsession/internal/monitoring"
	"github.com/cvacare/gaitsession/internal/sensor"
)

const okBody = `{
  "success": true,
  "data": {
    "session_id": "s-1",
    "user_id": "u-7",
    "timestamp": "2026-10-17T09:30:00",
    "metrics": {
      "step_count": 22, "cadence": 98.5, "stride_length": 1.1, "velocity": 0.95,
      "gait_symmetry": 0.91, "stability_score": 0.72, "step_regularity": 0.66,
      "vertical_oscillation": 0.04
    },
    "gait_phases": [{"step_number": 1, "start_index": 3, "end_index": 9, "duration": 6, "phase": "stance"}],
    "analysis_duration": 14.2,
    "data_quality": "good"
  },
  "timestamp": "2026-10-17T09:30:00"
}`

func testRequest() Request {
	return Request{
		Accelerometer: []sensor.Sample{{X: 0.1, Y: 0.2, Z: 9.8, Timestamp: 1000}},
		Gyroscope:     []sensor.Sample{{X: 0.01, Y: 0.02, Z: 0.03, Timestamp: 1000}},
		UserID:        "u-7",
		SessionID:     "s-1",
	}
}

func TestClient_Analyze(t *testing.T) {
	t.Cleanup(monitoring.Mute())

	var got Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/gait/analyze", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(okBody))
	}))
	defer server.Close()

	client := NewClient(server.URL, nil, time.Second)
	result, err := client.Analyze(context.Background(), testRequest())
	require.NoError(t, err)

	if diff := cmp.Diff(testRequest(), got); diff != "" {
		t.Errorf("uploaded request mismatch (-want +got):\n%s", diff)
	}

	want := Metrics{
		StepCount: 22, Cadence: 98.5, StrideLength: 1.1, Velocity: 0.95,
		GaitSymmetry: 0.91, StabilityScore: 0.72, StepRegularity: 0.66, VerticalOscillation: 0.04,
	}
	if diff := cmp.Diff(want, result.Metrics); diff != "" {
		t.Errorf("metrics mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, "good", result.DataQuality)
	assert.Equal(t, 14.2, result.AnalysisDuration)
	require.Len(t, result.GaitPhases, 1)
	assert.Equal(t, "stance", result.GaitPhases[0].Phase)
}

func TestClient_AnalyzeWireFormat(t *testing.T) {
	t.Cleanup(monitoring.Mute())
	mock := httputil.NewMockHTTPClient().AddResponse(http.StatusOK, okBody)
	client := NewClient("http://gait.local/", mock, time.Second)

	_, err := client.Analyze(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, "http://gait.local/api/gait/analyze", mock.GetRequest(0).URL.String())
	assert.JSONEq(t, `{
		"accelerometer": [{"x": 0.1, "y": 0.2, "z": 9.8, "timestamp": 1000}],
		"gyroscope": [{"x": 0.01, "y": 0.02, "z": 0.03, "timestamp": 1000}],
		"user_id": "u-7",
		"session_id": "s-1"
	}`, mock.RequestBody(0))
}

func TestClient_AnalyzeFailures(t *testing.T) {
	t.Cleanup(monitoring.Mute())

	tests := []struct {
		name    string
		status  int
		body    string
		sendErr error
		wantErr error
	}{
		{
			name:    "bad input",
			status:  400,
			body:    `{"success":false,"error":"Invalid data","details":["gyroscope array is empty"]}`,
			wantErr: apperrors.ErrBadInput,
		},
		{
			name:    "server error",
			status:  500,
			body:    `{"success":false,"error":"Internal server error"}`,
			wantErr: apperrors.ErrServiceUnavailable,
		},
		{
			name:    "success false with 200",
			status:  200,
			body:    `{"success":false,"error":"busy"}`,
			wantErr: apperrors.ErrServiceUnavailable,
		},
		{
			name:    "garbage body",
			status:  200,
			body:    `<html>`,
			wantErr: apperrors.ErrServiceUnavailable,
		},
		{
			name:    "timeout",
			sendErr: context.DeadlineExceeded,
			wantErr: apperrors.ErrRequestTimeout,
		},
		{
			name:    "network",
			sendErr: errors.New("no route to host"),
			wantErr: apperrors.ErrNetwork,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := httputil.NewMockHTTPClient()
			if tt.sendErr != nil {
				mock.AddErrorResponse(tt.sendErr)
			} else {
				mock.AddResponse(tt.status, tt.body)
			}
			_, err := NewClient("http://gait.local", mock, time.Second).Analyze(context.Background(), testRequest())
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestClient_ServiceDown(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	_, err := NewClient(url, nil, time.Second).Analyze(context.Background(), testRequest())
	assert.ErrorIs(t, err, apperrors.ErrServiceUnavailable)
}

func TestClient_Health(t *testing.T) {
	mock := httputil.NewMockHTTPClient().
		AddResponse(http.StatusOK, `{"status":"healthy","service":"Gait Analysis API"}`).
		AddResponse(http.StatusServiceUnavailable, "")
	client := NewClient("http://gait.local", mock, 0)

	assert.NoError(t, client.Health(context.Background()))
	assert.ErrorIs(t, client.Health(context.Background()), apperrors.ErrServiceUnavailable)
	assert.Equal(t, "/health", mock.GetRequest(0).URL.Path)
}
