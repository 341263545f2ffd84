package serialmux

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

// MockPort is an in-memory SerialPorter. Lines passed to Feed become readable
// by Monitor; commands written by the mux are captured for inspection.
type MockPort struct {
	r *io.PipeReader
	w *io.PipeWriter

	mu       sync.Mutex
	written  bytes.Buffer
	writeErr error
	closed   bool
}

// NewMockPort returns an open MockPort.
func NewMockPort() *MockPort {
	r, w := io.Pipe()
	return &MockPort{r: r, w: w}
}

// NewMockSerialMux returns a SerialMux backed by a fresh MockPort.
func NewMockSerialMux() (*SerialMux[*MockPort], *MockPort) {
	port := NewMockPort()
	return NewSerialMux(port), port
}

func (m *MockPort) Read(p []byte) (int, error) {
	return m.r.Read(p)
}

func (m *MockPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return 0, errors.New("serial port closed")
	}
	if m.writeErr != nil {
		return 0, m.writeErr
	}
	return m.written.Write(p)
}

// Close ends the read side with io.EOF.
func (m *MockPort) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return m.w.Close()
}

// Feed makes line readable by the mux. It blocks until the reader takes it.
func (m *MockPort) Feed(line string) error {
	if len(line) == 0 || line[len(line)-1] != '\n' {
		line += "\n"
	}
	_, err := io.WriteString(m.w, line)
	return err
}

// FailWrites makes subsequent writes return err.
func (m *MockPort) FailWrites(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writeErr = err
}

// Written returns everything the mux has written to the port.
func (m *MockPort) Written() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.written.String()
}

// Closed reports whether Close was called.
func (m *MockPort) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
