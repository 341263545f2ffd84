package sensor

import "sync"

// Buffer is an append-only, arrival-ordered sample store for one sensor of
// one session. It is safe for concurrent use; readers get copies.
type Buffer struct {
	mu      sync.Mutex
	samples []Sample
}

// NewBuffer returns an empty buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

func (b *Buffer) Append(s Sample) {
	b.mu.Lock()
	b.samples = append(b.samples, s)
	b.mu.Unlock()
}

func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.samples)
}

// Samples returns a copy of the buffered samples.
func (b *Buffer) Samples() []Sample {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]Sample, len(b.samples))
	copy(out, b.samples)
	return out
}

// Reset discards all samples.
func (b *Buffer) Reset() {
	b.mu.Lock()
	b.samples = nil
	b.mu.Unlock()
}

// Buffers pairs the two buffers of a recording session.
type Buffers struct {
	Accel *Buffer
	Gyro  *Buffer
}

// NewBuffers returns a pair of empty buffers.
func NewBuffers() Buffers {
	return Buffers{Accel: NewBuffer(), Gyro: NewBuffer()}
}

// Reset clears both buffers.
func (b Buffers) Reset() {
	b.Accel.Reset()
	b.Gyro.Reset()
}
