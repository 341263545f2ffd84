package sensor

import (
	"errors"
	"math"
	"sync"
	"time"

	"github.com/cvacare/gaitsession/internal/timeutil"
)

// Source is a push-style sensor. Subscribe registers emit to be called for
// every reading at roughly the requested interval and returns the function
// that removes the registration.
type Source interface {
	Kind() Kind
	Subscribe(interval time.Duration, emit func(Reading)) (func(), error)
}

// MockSource is a manually driven Source. It counts registrations so tests
// can assert that every listener added was later removed.
type MockSource struct {
	kind Kind

	mu           sync.Mutex
	listeners    map[int]func(Reading)
	nextID       int
	subscribed   int
	unsubscribed int
	failErr      error
	lastInterval time.Duration
}

// NewMockSource returns a MockSource of the given kind.
func NewMockSource(kind Kind) *MockSource {
	return &MockSource{kind: kind, listeners: make(map[int]func(Reading))}
}

func (m *MockSource) Kind() Kind { return m.kind }

func (m *MockSource) Subscribe(interval time.Duration, emit func(Reading)) (func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return nil, m.failErr
	}

	id := m.nextID
	m.nextID++
	m.listeners[id] = emit
	m.subscribed++
	m.lastInterval = interval

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.listeners, id)
			m.unsubscribed++
		})
	}, nil
}

// Emit delivers r synchronously to every registered listener.
func (m *MockSource) Emit(r Reading) {
	m.mu.Lock()
	listeners := make([]func(Reading), 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()

	for _, l := range listeners {
		l(r)
	}
}

// EmitN emits n readings whose X component counts up from 0.
func (m *MockSource) EmitN(n int) {
	for i := 0; i < n; i++ {
		m.Emit(Reading{X: float64(i), Y: 0, Z: 9.81})
	}
}

// FailWith makes subsequent Subscribe calls fail with err. nil clears it.
func (m *MockSource) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failErr = err
}

// Subscriptions returns the number of successful Subscribe calls.
func (m *MockSource) Subscriptions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscribed
}

// Unsubscriptions returns the number of registrations removed.
func (m *MockSource) Unsubscriptions() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unsubscribed
}

// Active returns the number of live registrations.
func (m *MockSource) Active() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}

// LastInterval returns the interval passed to the latest Subscribe.
func (m *MockSource) LastInterval() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastInterval
}

// SyntheticSource emits a walking-like waveform on a clock ticker. It stands
// in for real hardware during development and demos.
type SyntheticSource struct {
	kind  Kind
	clock timeutil.Clock
	// StepHz is the simulated step frequency.
	StepHz float64
}

// NewSyntheticSource returns a SyntheticSource stepping at 1.8 Hz (about 108
// steps per minute).
func NewSyntheticSource(kind Kind, clock timeutil.Clock) *SyntheticSource {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &SyntheticSource{kind: kind, clock: clock, StepHz: 1.8}
}

func (s *SyntheticSource) Kind() Kind { return s.kind }

func (s *SyntheticSource) Subscribe(interval time.Duration, emit func(Reading)) (func(), error) {
	if interval <= 0 {
		return nil, errors.New("synthetic source: interval must be positive")
	}

	ticker := s.clock.NewTicker(interval)
	start := s.clock.Now()
	done := make(chan struct{})
	exited := make(chan struct{})

	go func() {
		defer close(exited)
		for {
			select {
			case <-done:
				return
			case now := <-ticker.C():
				emit(s.reading(now.Sub(start).Seconds()))
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
			<-exited
		})
	}, nil
}

func (s *SyntheticSource) reading(t float64) Reading {
	phase := 2 * math.Pi * s.StepHz * t
	if s.kind == Gyroscope {
		return Reading{
			X: 0.4 * math.Sin(phase/2),
			Y: 0.15 * math.Cos(phase),
			Z: 0.05 * math.Sin(phase),
		}
	}
	return Reading{
		X: 0.6 * math.Sin(phase/2),
		Y: 0.3 * math.Cos(phase),
		Z: 9.81 + 2.0*math.Sin(phase),
	}
}
