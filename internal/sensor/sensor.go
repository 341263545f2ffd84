// Package sensor captures accelerometer and gyroscope readings into
// per-session buffers.
package sensor

import "fmt"

// Kind identifies a motion sensor.
type Kind int

const (
	Accelerometer Kind = iota
	Gyroscope
)

func (k Kind) String() string {
	switch k {
	case Accelerometer:
		return "accelerometer"
	case Gyroscope:
		return "gyroscope"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Reading is a raw three-axis event as delivered by a Source.
type Reading struct {
	X, Y, Z float64
}

// Sample is a Reading stamped with the wall-clock time it was received, in
// Unix milliseconds. The JSON form is the analysis service wire format.
type Sample struct {
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Z         float64 `json:"z"`
	Timestamp int64   `json:"timestamp"`
}
