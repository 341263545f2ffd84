package serialmux

import "io"

// SerialPorter is the minimal port surface the mux needs. Tests substitute an
// in-memory port for real hardware.
type SerialPorter interface {
	io.ReadWriter
	io.Closer
}
