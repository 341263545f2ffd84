// Package serialmux multiplexes the line stream of a single serial IMU to any
// number of subscribers and serializes commands written back to the device.
package serialmux

import (
	"bufio"
	"context"
	crand "crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"tailscale.com/tsweb"
)

var (
	ErrWriteFailed = errors.New("failed to write to serial port")
	ErrClosed      = errors.New("serial mux closed")
)

// subscriberBuffer absorbs short stalls in a subscriber before Monitor blocks.
const subscriberBuffer = 64

// subscriber owns its channel. mu is held by Monitor while it hands over a
// line and by Unsubscribe before it closes ch, so a send never hits a closed
// channel. done is closed first so a blocked send gives up the lock.
type subscriber struct {
	ch    chan string
	done  chan struct{}
	lossy bool

	mu       sync.Mutex
	closed   bool
	doneOnce sync.Once
}

func (sub *subscriber) stop() {
	sub.doneOnce.Do(func() { close(sub.done) })
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if !sub.closed {
		sub.closed = true
		close(sub.ch)
	}
}

// SerialMux fans out lines read from a serial port to subscribers. Unlike a
// lossy broadcaster, delivery blocks until each live subscriber takes the
// line, so a recording never silently loses samples. Tail subscribers are
// the exception: they drop lines they are too slow for.
type SerialMux[T SerialPorter] struct {
	port T

	subscriberMu sync.Mutex
	subscribers  map[string]*subscriber

	commandMu sync.Mutex

	closeOnce sync.Once
	closed    chan struct{}
}

// SerialMuxInterface is the surface consumers depend on.
type SerialMuxInterface interface {
	// Subscribe returns an id and a channel of lines. The channel is closed
	// by Unsubscribe or Close.
	Subscribe() (string, <-chan string)
	Unsubscribe(string)
	SendCommand(string) error
	// Configure asks the device to stream frames every interval.
	Configure(interval time.Duration) error
	Monitor(context.Context) error
	Close() error
	// AttachAdminRoutes registers debug endpoints on the /debug/ page.
	AttachAdminRoutes(*http.ServeMux)
}

var _ SerialMuxInterface = (*SerialMux[SerialPorter])(nil)

// NewSerialMux wraps port.
func NewSerialMux[T SerialPorter](port T) *SerialMux[T] {
	return &SerialMux[T]{
		port:        port,
		subscribers: make(map[string]*subscriber),
		closed:      make(chan struct{}),
	}
}

// randomID generates a random subscriber id (8 random bytes, hex encoded).
func randomID() string {
	b := make([]byte, 8)
	crand.Read(b)
	return hex.EncodeToString(b)
}

func (s *SerialMux[T]) Subscribe() (string, <-chan string) {
	return s.subscribe(false)
}

// SubscribeTail is Subscribe for observers such as the debug tail: lines the
// subscriber is not ready for are dropped instead of holding up Monitor.
func (s *SerialMux[T]) SubscribeTail() (string, <-chan string) {
	return s.subscribe(true)
}

func (s *SerialMux[T]) subscribe(lossy bool) (string, <-chan string) {
	id := randomID()
	sub := &subscriber{
		ch:    make(chan string, subscriberBuffer),
		done:  make(chan struct{}),
		lossy: lossy,
	}

	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	select {
	case <-s.closed:
		sub.stop()
	default:
		s.subscribers[id] = sub
	}
	return id, sub.ch
}

// Unsubscribe removes a subscriber and closes its channel. Unknown ids are
// ignored. It never waits on other subscribers.
func (s *SerialMux[T]) Unsubscribe(id string) {
	s.subscriberMu.Lock()
	sub, ok := s.subscribers[id]
	delete(s.subscribers, id)
	s.subscriberMu.Unlock()
	if ok {
		sub.stop()
	}
}

// SubscriberCount reports the number of live subscribers.
func (s *SerialMux[T]) SubscriberCount() int {
	s.subscriberMu.Lock()
	defer s.subscriberMu.Unlock()
	return len(s.subscribers)
}

// Configure sets the device output rate and starts streaming.
func (s *SerialMux[T]) Configure(interval time.Duration) error {
	if interval < time.Millisecond {
		return fmt.Errorf("sample interval %s is below 1ms", interval)
	}
	for _, command := range []string{
		"FMT JSON", // one JSON frame per line
		fmt.Sprintf("RATE %d", interval.Milliseconds()),
		"STREAM ON",
	} {
		if err := s.SendCommand(command); err != nil {
			return fmt.Errorf("failed to send command %q: %w", command, err)
		}
	}
	return nil
}

// SendCommand writes a newline-terminated command to the device.
func (s *SerialMux[T]) SendCommand(command string) error {
	select {
	case <-s.closed:
		return ErrClosed
	default:
	}

	s.commandMu.Lock()
	defer s.commandMu.Unlock()
	if !strings.HasSuffix(command, "\n") {
		command += "\n"
	}
	n, err := s.port.Write([]byte(command))
	if err != nil {
		return err
	}
	if n != len(command) {
		return ErrWriteFailed
	}
	return nil
}

// Monitor reads lines until the port is exhausted, ctx is cancelled, or the
// mux is closed, delivering each line to every subscriber in order.
func (s *SerialMux[T]) Monitor(ctx context.Context) error {
	scan := bufio.NewScanner(s.port)

	lineChan := make(chan string)
	scanErrChan := make(chan error, 1)

	// The blocking Scan runs on its own goroutine so the loop below can
	// still react to cancellation.
	go func() {
		defer close(lineChan)
		for scan.Scan() {
			select {
			case lineChan <- scan.Text():
			case <-ctx.Done():
				return
			case <-s.closed:
				return
			}
		}
		if err := scan.Err(); err != nil {
			scanErrChan <- err
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-s.closed:
			return nil

		case line, ok := <-lineChan:
			if !ok {
				select {
				case <-s.closed:
					return nil
				case err := <-scanErrChan:
					return err
				default:
					return nil
				}
			}
			if err := s.deliver(ctx, line); err != nil {
				return err
			}
		}
	}
}

func (s *SerialMux[T]) deliver(ctx context.Context, line string) error {
	s.subscriberMu.Lock()
	subs := make([]*subscriber, 0, len(s.subscribers))
	for _, sub := range s.subscribers {
		subs = append(subs, sub)
	}
	s.subscriberMu.Unlock()

	for _, sub := range subs {
		if err := s.send(ctx, sub, line); err != nil {
			return err
		}
	}
	return nil
}

func (s *SerialMux[T]) send(ctx context.Context, sub *subscriber, line string) error {
	sub.mu.Lock()
	defer sub.mu.Unlock()
	if sub.closed {
		return nil
	}

	if sub.lossy {
		select {
		case sub.ch <- line:
		default:
		}
		return nil
	}

	select {
	case sub.ch <- line:
	case <-sub.done:
		// unsubscribed while we were waiting
	case <-ctx.Done():
		return ctx.Err()
	case <-s.closed:
	}
	return nil
}

// Close stops delivery, closes every subscriber channel and closes the port.
// Calls after the first return nil.
func (s *SerialMux[T]) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.subscriberMu.Lock()
		close(s.closed)
		ids := make([]string, 0, len(s.subscribers))
		for id := range s.subscribers {
			ids = append(ids, id)
		}
		s.subscriberMu.Unlock()
		for _, id := range ids {
			s.Unsubscribe(id)
		}

		err = s.port.Close()
	})
	return err
}

func (s *SerialMux[T]) AttachAdminRoutes(mux *http.ServeMux) {
	debug := tsweb.Debugger(mux)

	debug.HandleSilentFunc("imu-command", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		command := strings.TrimSpace(r.FormValue("command"))
		if command == "" {
			http.Error(w, "Missing command", http.StatusBadRequest)
			return
		}
		if err := s.SendCommand(command); err != nil {
			http.Error(w, "Failed to write command", http.StatusInternalServerError)
			return
		}
		fmt.Fprintf(w, "Wrote command %q to serial port", command)
	})

	// Server-sent events of raw IMU lines.
	debug.HandleFunc("imu-tail", "live tail of IMU frames", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		flusher, ok := w.(http.Flusher)
		if !ok {
			http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.Header().Set("X-Accel-Buffering", "no")

		id, c := s.SubscribeTail()
		defer s.Unsubscribe(id)

		w.Write([]byte(": ping\n\n"))
		flusher.Flush()

		for {
			select {
			case payload, ok := <-c:
				if !ok {
					return
				}
				if _, err := fmt.Fprintf(w, "data: %s\n\n", payload); err != nil {
					return
				}
				flusher.Flush()
			case <-r.Context().Done():
				return
			}
		}
	})
}
