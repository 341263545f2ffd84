// Package analysis talks to the gait analysis service and turns its metrics
// into user-facing bands.
package analysis

import "github.com/cvacare/gaitsession/internal/sensor"

// Metrics are the gait metrics computed by the analysis service. A metric the
// service did not report decodes as 0, which Interpret treats as no data.
type Metrics struct {
	StepCount           int     `json:"step_count"`
	Cadence             float64 `json:"cadence"`
	Velocity            float64 `json:"velocity"`
	GaitSymmetry        float64 `json:"gait_symmetry"`
	StabilityScore      float64 `json:"stability_score"`
	StrideLength        float64 `json:"stride_length"`
	StepRegularity      float64 `json:"step_regularity"`
	VerticalOscillation float64 `json:"vertical_oscillation"`
}

// Phase is one detected stance or swing segment, indexed into the uploaded
// accelerometer samples.
type Phase struct {
	StepNumber int    `json:"step_number"`
	StartIndex int    `json:"start_index"`
	EndIndex   int    `json:"end_index"`
	Duration   int    `json:"duration"`
	Phase      string `json:"phase"`
}

// Request is the upload for one recording.
type Request struct {
	Accelerometer []sensor.Sample `json:"accelerometer"`
	Gyroscope     []sensor.Sample `json:"gyroscope"`
	UserID        string          `json:"user_id,omitempty"`
	SessionID     string          `json:"session_id,omitempty"`
}

// Result is the analysis of one recording.
type Result struct {
	SessionID        string  `json:"session_id"`
	UserID           string  `json:"user_id,omitempty"`
	Timestamp        string  `json:"timestamp"`
	Metrics          Metrics `json:"metrics"`
	GaitPhases       []Phase `json:"gait_phases,omitempty"`
	AnalysisDuration float64 `json:"analysis_duration"`
	DataQuality      string  `json:"data_quality"`
}

// response is the service envelope.
type response struct {
	Success bool    `json:"success"`
	Data    *Result `json:"data"`
	Error   string  `json:"error"`
}
