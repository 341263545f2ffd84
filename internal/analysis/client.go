package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cvacare/gaitsession/internal/apperrors"
	"github.com/cvacare/gaitsession/internal/httputil"
	"github.com/cvacare/gaitsession/internal/monitoring"
)

// DefaultTimeout bounds one analysis request.
const DefaultTimeout = 30 * time.Second

// Client calls the gait analysis service.
type Client struct {
	baseURL string
	http    httputil.HTTPClient
	timeout time.Duration
}

// NewClient returns a client for the service at baseURL. A nil httpClient
// uses a StandardClient; a non-positive timeout uses DefaultTimeout.
func NewClient(baseURL string, httpClient httputil.HTTPClient, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if httpClient == nil {
		httpClient = httputil.NewStandardClient(0)
	}
	return &Client{baseURL: baseURL, http: httpClient, timeout: timeout}
}

// Analyze uploads one recording and returns the service's analysis. Errors
// wrap one of apperrors.ErrServiceUnavailable, ErrRequestTimeout, ErrNetwork
// or ErrBadInput.
func (c *Client) Analyze(ctx context.Context, req Request) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := httputil.NewJSONRequest(ctx, http.MethodPost, httputil.JoinURL(c.baseURL, "/api/gait/analyze"), req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrBadInput, err)
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("analyze session %s: %w", req.SessionID, httputil.ClassifyError(err))
	}
	body, err := httputil.ReadBody(resp)
	if err != nil {
		return nil, fmt.Errorf("analyze session %s: %w", req.SessionID, httputil.ClassifyError(err))
	}
	if err := httputil.ClassifyStatus(resp.StatusCode, body); err != nil {
		return nil, fmt.Errorf("analyze session %s: %w", req.SessionID, err)
	}

	var env response
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("analyze session %s: %w: malformed response: %w", req.SessionID, apperrors.ErrServiceUnavailable, err)
	}
	if !env.Success || env.Data == nil {
		msg := env.Error
		if msg == "" {
			msg = "no analysis data returned"
		}
		return nil, fmt.Errorf("analyze session %s: %w: %s", req.SessionID, apperrors.ErrServiceUnavailable, msg)
	}

	monitoring.Logf("analysis of session %s: %d accel + %d gyro samples in %s, quality %s",
		req.SessionID, len(req.Accelerometer), len(req.Gyroscope), time.Since(start).Round(time.Millisecond), env.Data.DataQuality)
	return env.Data, nil
}

// Health probes the service's /health endpoint.
func (c *Client) Health(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := httputil.NewJSONRequest(ctx, http.MethodGet, httputil.JoinURL(c.baseURL, "/health"), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return httputil.ClassifyError(err)
	}
	body, err := httputil.ReadBody(resp)
	if err != nil {
		return httputil.ClassifyError(err)
	}
	return httputil.ClassifyStatus(resp.StatusCode, body)
}
