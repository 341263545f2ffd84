package imu

import (
	"sync"
	"time"

	"github.com/cvacare/gaitsession/internal/monitoring"
	"github.com/cvacare/gaitsession/internal/sensor"
	"github.com/cvacare/gaitsession/internal/serialmux"
)

// LineMux is the part of serialmux.SerialMuxInterface a SerialSource needs.
type LineMux interface {
	Subscribe() (string, <-chan string)
	Unsubscribe(string)
	Configure(interval time.Duration) error
}

var _ LineMux = (serialmux.SerialMuxInterface)(nil)

// SerialSource reads one sensor kind from a bench IMU behind a serial mux.
// The accelerometer and gyroscope sources share the mux; each subscriber sees
// every line and keeps the frames for its own kind. The caller runs the mux's
// Monitor loop.
type SerialSource struct {
	mux  LineMux
	kind sensor.Kind
}

// NewSerialSources returns the accelerometer and gyroscope sources for mux.
func NewSerialSources(mux LineMux) (accel, gyro *SerialSource) {
	return &SerialSource{mux: mux, kind: sensor.Accelerometer},
		&SerialSource{mux: mux, kind: sensor.Gyroscope}
}

func (s *SerialSource) Kind() sensor.Kind { return s.kind }

// Subscribe configures the device rate and starts forwarding frames to emit.
// The returned function blocks until the forwarding goroutine has exited, so
// emit is never called after it returns.
func (s *SerialSource) Subscribe(interval time.Duration, emit func(sensor.Reading)) (func(), error) {
	if err := s.mux.Configure(interval); err != nil {
		return nil, err
	}

	id, lines := s.mux.Subscribe()
	done := make(chan struct{})
	go func() {
		defer close(done)
		for line := range lines {
			if serialmux.ClassifyLine(line) != serialmux.EventTypeFrame {
				continue
			}
			f, r, err := ParseFrame([]byte(line))
			if err != nil {
				monitoring.Logf("imu serial: dropping line %q: %v", line, err)
				continue
			}
			kind, err := ParseKind(f.Sensor)
			if err != nil {
				monitoring.Logf("imu serial: %v", err)
				continue
			}
			if kind == s.kind {
				emit(r)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mux.Unsubscribe(id)
			<-done
		})
	}, nil
}
