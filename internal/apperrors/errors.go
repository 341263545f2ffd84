// Package apperrors holds the error taxonomy shared by the recording
// session engine, the analysis and plan clients, and the proxy.
package apperrors

import "errors"

var (
	// Sensor access was denied or the hardware is missing.
	ErrSensorUnavailable = errors.New("sensor unavailable")
	// A recording session is already active on this device.
	ErrSessionAlreadyActive = errors.New("recording session already active")

	// Data quality gate outcomes. Both are recoverable by recording again.
	ErrInsufficientSamples = errors.New("insufficient sensor samples")
	ErrTooShort            = errors.New("recording too short")

	ErrServiceUnavailable = errors.New("service unavailable")
	ErrRequestTimeout     = errors.New("request timed out")
	ErrNetwork            = errors.New("network error")
	ErrBadInput           = errors.New("invalid input")
	ErrNotFound           = errors.New("not found")

	ErrExerciseNotFound = errors.New("exercise not found")
	ErrPlanNotFound     = errors.New("plan not found")
	ErrUnauthorized     = errors.New("unauthorized")

	ErrInvalidTransition  = errors.New("invalid session state transition")
	ErrAnalysisInProgress = errors.New("analysis already in progress")
)

// UserMessage maps an error onto the message shown to the user. Service
// outages, bad input and network trouble each get their own wording so the
// user knows whether retrying makes sense.
func UserMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSensorUnavailable):
		return "Motion sensors are not available. Check sensor permissions and try again."
	case errors.Is(err, ErrSessionAlreadyActive):
		return "A recording is already in progress."
	case errors.Is(err, ErrInsufficientSamples):
		return "Not enough sensor data was captured. Please record again."
	case errors.Is(err, ErrTooShort):
		return "The recording is shorter than recommended. Record again or analyze anyway."
	case errors.Is(err, ErrServiceUnavailable):
		return "The service is down. Nothing was lost, please retry later."
	case errors.Is(err, ErrRequestTimeout):
		return "The request timed out. Nothing was lost, please retry."
	case errors.Is(err, ErrNetwork):
		return "Network issue while contacting the service. Check your connection and retry."
	case errors.Is(err, ErrBadInput):
		return "The service rejected the recorded data. Please record again."
	case errors.Is(err, ErrPlanNotFound):
		return "No exercise plan was found."
	case errors.Is(err, ErrExerciseNotFound):
		return "That exercise is not part of today's plan."
	case errors.Is(err, ErrNotFound):
		return "The requested record does not exist."
	case errors.Is(err, ErrUnauthorized):
		return "You are not allowed to view this information."
	case errors.Is(err, ErrAnalysisInProgress):
		return "Analysis is already running."
	default:
		return "Something went wrong. Please try again."
	}
}
