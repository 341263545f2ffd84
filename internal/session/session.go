// Package session runs a single gait recording from sensor capture through
// the data quality gate to analysis. A Controller allows exactly one active
// recording at a time.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cvacare/gaitsession/internal/analysis"
	"github.com/cvacare/gaitsession/internal/apperrors"
	"github.com/cvacare/gaitsession/internal/monitoring"
	"github.com/cvacare/gaitsession/internal/quality"
	"github.com/cvacare/gaitsession/internal/sensor"
	"github.com/cvacare/gaitsession/internal/timeutil"
)

// Recorder fills session buffers from the motion sensors.
// *sensor.Capture implements it.
type Recorder interface {
	Start(interval time.Duration, bufs sensor.Buffers) error
	Stop() error
}

// Analyzer computes gait metrics for a recording. *analysis.Client
// implements it.
type Analyzer interface {
	Analyze(ctx context.Context, req analysis.Request) (*analysis.Result, error)
}

// Options configures a Controller. Zero values pick the defaults.
type Options struct {
	Clock     timeutil.Clock
	Policy    quality.Policy
	Interval  time.Duration // sensor sampling interval, default 100ms
	UserID    string
	SpeedUnit string // display unit for the interpretation
	NewID     func() string
}

// Snapshot is a read-only view of the current session.
type Snapshot struct {
	ID             string            `json:"id,omitempty"`
	State          State             `json:"state"`
	StartedAt      time.Time         `json:"started_at,omitzero"`
	ElapsedSeconds int               `json:"elapsed_seconds"`
	AccelCount     int               `json:"accel_count"`
	GyroCount      int               `json:"gyro_count"`
	Decision       *quality.Decision `json:"decision,omitempty"`
}

// Report is the outcome of the latest Stop or Analyze.
type Report struct {
	SessionID      string                   `json:"session_id"`
	State          State                    `json:"state"`
	ElapsedSeconds int                      `json:"elapsed_seconds"`
	Decision       quality.Decision         `json:"decision"`
	Grade          quality.Grade            `json:"grade"`
	AccelStats     sensor.Stats             `json:"accel_stats"`
	GyroStats      sensor.Stats             `json:"gyro_stats"`
	Result         *analysis.Result         `json:"result,omitempty"`
	Interpretation *analysis.Interpretation `json:"interpretation,omitempty"`
}

// Controller owns the recording session. All transitions are serialized by
// mu; the lock is released while the analysis request is in flight, during
// which the Analyzing state rejects re-entry.
type Controller struct {
	recorder Recorder
	analyzer Analyzer
	opts     Options

	mu        sync.Mutex
	state     State
	id        string
	startedAt time.Time
	elapsed   int
	bufs      sensor.Buffers
	decision  *quality.Decision
	failed    bool // last analysis attempt failed
	result    *analysis.Result
	interp    *analysis.Interpretation

	// generation increments on every Start and Reset; work started under an
	// older generation is discarded.
	generation     uint64
	ticker         timeutil.Ticker
	tickCancel     context.CancelFunc
	analysisCancel context.CancelFunc
}

// New returns an idle Controller.
func New(recorder Recorder, analyzer Analyzer, opts Options) *Controller {
	if opts.Clock == nil {
		opts.Clock = timeutil.RealClock{}
	}
	if opts.Policy == (quality.Policy{}) {
		opts.Policy = quality.DefaultPolicy()
	}
	if opts.Interval <= 0 {
		opts.Interval = 100 * time.Millisecond
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	return &Controller{
		recorder: recorder,
		analyzer: analyzer,
		opts:     opts,
		bufs:     sensor.NewBuffers(),
	}
}

func (c *Controller) setState(to State) error {
	if err := checkTransition(c.state, to); err != nil {
		return err
	}
	monitoring.Logf("session %s: %s -> %s", c.id, c.state, to)
	c.state = to
	return nil
}

// mustSetState is setState for transitions the caller has already checked.
func (c *Controller) mustSetState(to State) {
	if err := c.setState(to); err != nil {
		panic(fmt.Sprintf("session %s: %v", c.id, err))
	}
}

// Start begins a new recording. It fails with ErrSessionAlreadyActive unless
// the controller is idle, and with an error wrapping ErrSensorUnavailable if
// the sensors cannot be subscribed, in which case the controller stays idle.
func (c *Controller) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != Idle {
		return fmt.Errorf("%w: session %s is %s", apperrors.ErrSessionAlreadyActive, c.id, c.state)
	}

	c.bufs.Reset()
	c.elapsed = 0
	c.decision = nil
	c.failed = false
	c.result = nil
	c.interp = nil
	c.generation++

	if err := c.recorder.Start(c.opts.Interval, c.bufs); err != nil {
		if !errors.Is(err, apperrors.ErrSensorUnavailable) {
			err = fmt.Errorf("%w: %w", apperrors.ErrSensorUnavailable, err)
		}
		monitoring.Logf("session start failed: %v", err)
		return err
	}

	c.id = c.opts.NewID()
	c.startedAt = c.opts.Clock.Now()
	if err := c.setState(Recording); err != nil {
		return err
	}
	c.startTick()
	return nil
}

// startTick counts whole seconds of recording on a session-owned goroutine.
func (c *Controller) startTick() {
	ctx, cancel := context.WithCancel(context.Background())
	ticker := c.opts.Clock.NewTicker(time.Second)
	c.ticker = ticker
	c.tickCancel = cancel
	gen := c.generation

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C():
				c.mu.Lock()
				if c.generation == gen && c.state == Recording {
					c.elapsed++
				}
				c.mu.Unlock()
			}
		}
	}()
}

func (c *Controller) stopTick() {
	if c.ticker != nil {
		c.ticker.Stop()
		c.ticker = nil
	}
	if c.tickCancel != nil {
		c.tickCancel()
		c.tickCancel = nil
	}
}

// Stop ends the recording and runs the quality gate.
//
// A rejected recording returns an error wrapping ErrInsufficientSamples and
// never reaches the analyzer. A short recording returns ErrTooShort and waits
// in Validating for Analyze or Reset. An accepted recording is analyzed
// before Stop returns.
func (c *Controller) Stop(ctx context.Context) (Report, error) {
	c.mu.Lock()

	switch c.state {
	case Recording:
	case Analyzing:
		c.mu.Unlock()
		return Report{}, apperrors.ErrAnalysisInProgress
	default:
		err := fmt.Errorf("%w: cannot stop while %s", apperrors.ErrInvalidTransition, c.state)
		c.mu.Unlock()
		return Report{}, err
	}

	if err := c.recorder.Stop(); err != nil {
		monitoring.Logf("session %s: stopping capture: %v", c.id, err)
	}
	c.stopTick()
	if err := c.setState(Validating); err != nil {
		c.mu.Unlock()
		return Report{}, err
	}

	d := quality.Evaluate(c.opts.Policy, c.bufs.Accel.Len(), c.bufs.Gyro.Len(), c.elapsed)
	c.decision = &d
	monitoring.Logf("session %s: %d accel, %d gyro samples over %ds: %s",
		c.id, c.bufs.Accel.Len(), c.bufs.Gyro.Len(), c.elapsed, d.Verdict)

	switch d.Verdict {
	case quality.Rejected:
		c.mustSetState(Rejected)
		report := c.reportLocked()
		c.mu.Unlock()
		return report, fmt.Errorf("session %s: %w", report.SessionID, d.Reason)
	case quality.SoftWarning:
		report := c.reportLocked()
		c.mu.Unlock()
		return report, fmt.Errorf("session %s: %w", report.SessionID, d.Reason)
	default:
		return c.analyzeLocked(ctx)
	}
}

// Analyze sends the captured recording for analysis. It is valid in
// Validating after a short-recording warning ("analyze anyway") or after a
// failed analysis attempt (retry). The buffers are used as captured.
func (c *Controller) Analyze(ctx context.Context) (Report, error) {
	c.mu.Lock()

	if c.state == Analyzing {
		c.mu.Unlock()
		return Report{}, apperrors.ErrAnalysisInProgress
	}
	if c.state != Validating || c.decision == nil || (c.decision.Verdict != quality.SoftWarning && !c.failed) {
		err := fmt.Errorf("%w: nothing to analyze while %s", apperrors.ErrInvalidTransition, c.state)
		c.mu.Unlock()
		return Report{}, err
	}
	return c.analyzeLocked(ctx)
}

// analyzeLocked is entered with mu held and returns with it released.
func (c *Controller) analyzeLocked(ctx context.Context) (Report, error) {
	if err := c.setState(Analyzing); err != nil {
		c.mu.Unlock()
		return Report{}, err
	}

	gen := c.generation
	actx, cancel := context.WithCancel(ctx)
	c.analysisCancel = cancel
	req := analysis.Request{
		Accelerometer: c.bufs.Accel.Samples(),
		Gyroscope:     c.bufs.Gyro.Samples(),
		UserID:        c.opts.UserID,
		SessionID:     c.id,
	}
	c.mu.Unlock()

	res, err := c.analyzer.Analyze(actx, req)
	cancel()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.generation != gen {
		monitoring.Logf("session %s: discarding analysis result after reset", req.SessionID)
		return Report{}, fmt.Errorf("session %s was reset during analysis: %w", req.SessionID, context.Canceled)
	}
	c.analysisCancel = nil

	if err != nil {
		c.failed = true
		c.mustSetState(Validating)
		monitoring.Logf("session %s: analysis failed: %v", c.id, err)
		return c.reportLocked(), err
	}

	c.failed = false
	c.result = res
	interp := analysis.Interpret(res.Metrics, c.opts.SpeedUnit)
	c.interp = &interp
	c.mustSetState(Complete)
	return c.reportLocked(), nil
}

// Reset abandons the current session, whatever its state, and returns to
// Idle. Sensors are unsubscribed, the tick and any in-flight analysis are
// cancelled, and buffers and results are dropped.
func (c *Controller) Reset() {
	c.teardown()
}

// Close releases everything the controller holds. It is Reset for callers
// leaving the recording flow and reports a capture shutdown error, if any.
func (c *Controller) Close() error {
	return c.teardown()
}

func (c *Controller) teardown() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	err := c.recorder.Stop()
	c.stopTick()
	if c.analysisCancel != nil {
		c.analysisCancel()
		c.analysisCancel = nil
	}
	c.generation++

	if c.state != Idle {
		monitoring.Logf("session %s: %s -> idle (reset)", c.id, c.state)
	}
	c.state = Idle
	c.id = ""
	c.startedAt = time.Time{}
	c.elapsed = 0
	c.bufs.Reset()
	c.decision = nil
	c.failed = false
	c.result = nil
	c.interp = nil
	return err
}

// Snapshot returns the current session view.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Snapshot{
		ID:             c.id,
		State:          c.state,
		StartedAt:      c.startedAt,
		ElapsedSeconds: c.elapsed,
		AccelCount:     c.bufs.Accel.Len(),
		GyroCount:      c.bufs.Gyro.Len(),
	}
	if c.decision != nil {
		d := *c.decision
		s.Decision = &d
	}
	return s
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Report returns the outcome of the latest Stop or Analyze.
func (c *Controller) Report() Report {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.reportLocked()
}

func (c *Controller) reportLocked() Report {
	accel, gyro := c.bufs.Accel.Samples(), c.bufs.Gyro.Samples()
	r := Report{
		SessionID:      c.id,
		State:          c.state,
		ElapsedSeconds: c.elapsed,
		Grade:          quality.GradeOf(len(accel), len(gyro)),
		AccelStats:     sensor.ComputeStats(accel),
		GyroStats:      sensor.ComputeStats(gyro),
		Result:         c.result,
		Interpretation: c.interp,
	}
	if c.decision != nil {
		r.Decision = *c.decision
	}
	return r
}
