package sensor

import (
	"fmt"
	"sync"
	"time"

	"github.com/cvacare/gaitsession/internal/apperrors"
	"github.com/cvacare/gaitsession/internal/monitoring"
	"github.com/cvacare/gaitsession/internal/timeutil"
)

// Capture subscribes an accelerometer and a gyroscope source and feeds their
// readings into session buffers. Each sensor gets its own Stream and drain
// goroutine, so samples land in a buffer in the order they arrived.
type Capture struct {
	accel Source
	gyro  Source
	clock timeutil.Clock

	mu      sync.Mutex
	running bool
	streams []*stream
}

type stream struct {
	queue       *Stream
	unsubscribe func()
	drained     chan struct{}
}

// NewCapture returns a Capture reading from accel and gyro. Sample timestamps
// come from clock; nil means the real clock.
func NewCapture(accel, gyro Source, clock timeutil.Clock) *Capture {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &Capture{accel: accel, gyro: gyro, clock: clock}
}

// Running reports whether the capture holds live subscriptions.
func (c *Capture) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Start subscribes both sources at the given interval and appends their
// samples to bufs. If either subscription fails, any subscription already
// made is removed and the returned error wraps apperrors.ErrSensorUnavailable.
func (c *Capture) Start(interval time.Duration, bufs Buffers) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.running {
		return apperrors.ErrSessionAlreadyActive
	}
	if c.accel == nil || c.gyro == nil {
		return fmt.Errorf("%w: capture needs both an accelerometer and a gyroscope", apperrors.ErrSensorUnavailable)
	}

	var started []*stream
	for _, pair := range []struct {
		src Source
		buf *Buffer
	}{{c.accel, bufs.Accel}, {c.gyro, bufs.Gyro}} {
		src := pair.src
		st, err := c.subscribe(src, interval, pair.buf)
		if err != nil {
			for _, s := range started {
				s.stop()
			}
			return fmt.Errorf("%w: %s: %w", apperrors.ErrSensorUnavailable, src.Kind(), err)
		}
		started = append(started, st)
	}

	c.streams = started
	c.running = true
	monitoring.Logf("sensor capture started at %s", interval)
	return nil
}

func (c *Capture) subscribe(src Source, interval time.Duration, buf *Buffer) (*stream, error) {
	st := &stream{
		queue:   NewStream(),
		drained: make(chan struct{}),
	}

	go func() {
		defer close(st.drained)
		st.queue.Drain(buf.Append)
	}()

	unsubscribe, err := src.Subscribe(interval, func(r Reading) {
		st.queue.Push(Sample{X: r.X, Y: r.Y, Z: r.Z, Timestamp: c.clock.Now().UnixMilli()})
	})
	if err != nil {
		st.queue.Close()
		<-st.drained
		return nil, err
	}
	st.unsubscribe = unsubscribe
	return st, nil
}

// stop removes the listener, then closes the queue and waits for the drain to
// flush everything that arrived before the listener was removed.
func (s *stream) stop() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
	s.queue.Close()
	<-s.drained
}

// Stop removes both subscriptions and waits until every received sample is
// in its buffer. Stopping a stopped capture is a no-op.
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.running {
		return nil
	}
	for _, st := range c.streams {
		st.stop()
	}
	c.streams = nil
	c.running = false
	monitoring.Logf("sensor capture stopped")
	return nil
}
