package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"syscall"

	"github.com/cvacare/gaitsession/internal/apperrors"
)

// ClassifyError maps a transport error from HTTPClient.Do onto the
// apperrors taxonomy, wrapping the original error.
func ClassifyError(err error) error {
	if err == nil {
		return nil
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return fmt.Errorf("%w: %w", apperrors.ErrRequestTimeout, err)
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("%w: %w", apperrors.ErrServiceUnavailable, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %w", apperrors.ErrRequestTimeout, err)
	}

	return fmt.Errorf("%w: %w", apperrors.ErrNetwork, err)
}

// ClassifyStatus maps a non-2xx status onto the apperrors taxonomy. The
// service's error message is extracted from body when it is a JSON
// {"error": ...} document. 2xx statuses return nil.
func ClassifyStatus(status int, body []byte) error {
	if status >= 200 && status < 300 {
		return nil
	}

	msg := serviceMessage(body)
	if msg == "" {
		msg = http.StatusText(status)
	}

	var kind error
	switch {
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		kind = apperrors.ErrBadInput
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		kind = apperrors.ErrUnauthorized
	case status == http.StatusNotFound:
		kind = apperrors.ErrNotFound
	case status == http.StatusRequestTimeout, status == http.StatusGatewayTimeout:
		kind = apperrors.ErrRequestTimeout
	case status >= 500:
		kind = apperrors.ErrServiceUnavailable
	default:
		kind = apperrors.ErrNetwork
	}
	return fmt.Errorf("%w: status %d: %s", kind, status, msg)
}

// serviceMessage extracts a readable message from a service error body of
// the form {"error": ..., "details": ..., "message": ...}. details may be a
// string or a list of strings.
func serviceMessage(body []byte) string {
	var payload struct {
		Error   string          `json:"error"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	}
	if len(body) == 0 || json.Unmarshal(body, &payload) != nil || payload.Error == "" {
		return ""
	}

	parts := []string{payload.Error}
	var one string
	var many []string
	switch {
	case json.Unmarshal(payload.Details, &one) == nil && one != "":
		parts = append(parts, one)
	case json.Unmarshal(payload.Details, &many) == nil && len(many) > 0:
		parts = append(parts, strings.Join(many, "; "))
	case payload.Message != "":
		parts = append(parts, payload.Message)
	}
	return strings.Join(parts, ": ")
}

// StatusFor picks the HTTP status a handler should answer with for err.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrBadInput):
		return http.StatusBadRequest
	case errors.Is(err, apperrors.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, apperrors.ErrNotFound), errors.Is(err, apperrors.ErrPlanNotFound), errors.Is(err, apperrors.ErrExerciseNotFound):
		return http.StatusNotFound
	case errors.Is(err, apperrors.ErrRequestTimeout):
		return http.StatusGatewayTimeout
	case errors.Is(err, apperrors.ErrServiceUnavailable), errors.Is(err, apperrors.ErrNetwork):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
