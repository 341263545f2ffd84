package sensor

import "sync"

// Stream is an unbounded FIFO between a sensor callback and its drain
// goroutine. Push never blocks, so a slow consumer cannot stall the sensor
// callback, and nothing pushed before Close is lost.
type Stream struct {
	mu     sync.Mutex
	queue  []Sample
	closed bool
	signal chan struct{}
}

// NewStream returns an open stream.
func NewStream() *Stream {
	return &Stream{signal: make(chan struct{}, 1)}
}

// Push enqueues s. It reports false when the stream is already closed.
func (s *Stream) Push(sample Sample) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return false
	}
	s.queue = append(s.queue, sample)
	s.mu.Unlock()
	s.notify()
	return true
}

// Close stops accepting samples. Samples already queued are still drained.
func (s *Stream) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.notify()
}

// Pending reports the number of queued samples not yet drained.
func (s *Stream) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *Stream) notify() {
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// Drain delivers every sample to sink in push order and returns once the
// stream is closed and empty. Only one goroutine may drain a stream.
func (s *Stream) Drain(sink func(Sample)) {
	for {
		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		closed := s.closed
		s.mu.Unlock()

		for _, sample := range batch {
			sink(sample)
		}
		if closed && len(batch) == 0 {
			return
		}
		if len(batch) == 0 {
			<-s.signal
		}
	}
}
