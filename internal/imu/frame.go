// Package imu adapts hardware inertial measurement units to sensor.Source:
// a bench IMU streaming JSON lines over a serial port, and IMU samples
// published on MQTT topics.
package imu

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cvacare/gaitsession/internal/sensor"
)

var ErrBadFrame = errors.New("malformed imu frame")

// Frame is one reading on the wire:
//
//	{"sensor":"accel","x":0.12,"y":-0.03,"z":9.79}
//
// MQTT payloads may omit "sensor" since the topic already names it.
type Frame struct {
	Sensor string   `json:"sensor,omitempty"`
	X      *float64 `json:"x"`
	Y      *float64 `json:"y"`
	Z      *float64 `json:"z"`
}

// ParseKind maps a frame's sensor name to a Kind.
func ParseKind(name string) (sensor.Kind, error) {
	switch name {
	case "accel", "accelerometer":
		return sensor.Accelerometer, nil
	case "gyro", "gyroscope":
		return sensor.Gyroscope, nil
	default:
		return 0, fmt.Errorf("%w: unknown sensor %q", ErrBadFrame, name)
	}
}

// ParseFrame decodes a frame. All three axes must be present.
func ParseFrame(data []byte) (Frame, sensor.Reading, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, sensor.Reading{}, fmt.Errorf("%w: %w", ErrBadFrame, err)
	}
	if f.X == nil || f.Y == nil || f.Z == nil {
		return Frame{}, sensor.Reading{}, fmt.Errorf("%w: missing axis", ErrBadFrame)
	}
	return f, sensor.Reading{X: *f.X, Y: *f.Y, Z: *f.Z}, nil
}
