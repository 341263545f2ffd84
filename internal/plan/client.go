package plan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/cvacare/gaitsession/internal/apperrors"
	"github.com/cvacare/gaitsession/internal/httputil"
)

// Client is the HTTP implementation of Service.
type Client struct {
	baseURL string
	http    httputil.HTTPClient
	timeout time.Duration
	userID  string
}

var _ Service = (*Client)(nil)

// NewClient returns a client for the plan service at baseURL acting on
// behalf of userID. A nil httpClient uses a StandardClient.
func NewClient(baseURL, userID string, httpClient httputil.HTTPClient, timeout time.Duration) *Client {
	if httpClient == nil {
		httpClient = httputil.NewStandardClient(0)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{baseURL: baseURL, http: httpClient, timeout: timeout, userID: userID}
}

type envelope struct {
	Success bool   `json:"success"`
	Plan    *Plan  `json:"plan"`
	Error   string `json:"error"`
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*Plan, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := httputil.NewJSONRequest(ctx, method, httputil.JoinURL(c.baseURL, path), body)
	if err != nil {
		return nil, err
	}
	if c.userID != "" {
		req.Header.Set("X-User-ID", c.userID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, httputil.ClassifyError(err)
	}
	data, err := httputil.ReadBody(resp)
	if err != nil {
		return nil, httputil.ClassifyError(err)
	}
	if err := httputil.ClassifyStatus(resp.StatusCode, data); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", apperrors.ErrPlanNotFound, err)
		}
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: malformed plan response: %w", apperrors.ErrServiceUnavailable, err)
	}
	if !env.Success {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrServiceUnavailable, env.Error)
	}
	return env.Plan, nil
}

func (c *Client) fetch(ctx context.Context, path string) (*Plan, error) {
	p, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, apperrors.ErrPlanNotFound
	}
	return p, nil
}

// Today returns the caller's plan for today.
func (c *Client) Today(ctx context.Context) (*Plan, error) {
	return c.fetch(ctx, "/api/plans/today")
}

// Get returns the plan with the given id.
func (c *Client) Get(ctx context.Context, planID string) (*Plan, error) {
	return c.fetch(ctx, "/api/plans/"+url.PathEscape(planID))
}

func (c *Client) CompleteExercise(ctx context.Context, planID, exerciseID string, rating *int, notes string) error {
	body := struct {
		Rating *int   `json:"rating,omitempty"`
		Notes  string `json:"notes,omitempty"`
	}{rating, notes}
	_, err := c.do(ctx, http.MethodPost, exercisePath(planID, exerciseID, "complete"), body)
	return err
}

func (c *Client) UndoExercise(ctx context.Context, planID, exerciseID string) error {
	_, err := c.do(ctx, http.MethodPost, exercisePath(planID, exerciseID, "undo"), nil)
	return err
}

func (c *Client) CompleteAll(ctx context.Context, planID string) error {
	_, err := c.do(ctx, http.MethodPost, "/api/plans/"+url.PathEscape(planID)+"/complete-all", nil)
	return err
}

func exercisePath(planID, exerciseID, action string) string {
	return fmt.Sprintf("/api/plans/%s/exercises/%s/%s", url.PathEscape(planID), url.PathEscape(exerciseID), action)
}
