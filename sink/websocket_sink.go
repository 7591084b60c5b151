package sink

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"meowchat/domain/event"
)

// ErrClosed reports a delivery attempted after the connection was torn
// down. Callers treat it as the receiver being offline.
var ErrClosed = errors.New("connection sink closed")

// WebsocketSink buffers events for a single connection's write pump.
type WebsocketSink struct {
	Events  chan event.DomainEvent
	log     *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
}

func NewWebsocketSink(log *slog.Logger, bufferSize int, deliveryTimeout time.Duration) *WebsocketSink {
	return &WebsocketSink{
		Events:  make(chan event.DomainEvent, bufferSize),
		log:     log,
		timeout: deliveryTimeout,
	}
}

// Consume hands an event to the connection's write pump. A buffer that
// stays full past the delivery timeout means the connection is gone or
// stalled; the event is dropped and the caller treats the receiver as
// offline. The message itself is already durable at this point.
func (s *WebsocketSink) Consume(ctx context.Context, e event.DomainEvent) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()

	select {
	case s.Events <- e:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		s.log.Warn("Delivery timed out, dropping event", "receiver", e.Receiver())
		return nil
	}
}

// Close releases the write pump. It waits for in-flight Consume calls
// to finish, so a concurrent delivery can never hit a closed channel.
// Safe to call more than once.
func (s *WebsocketSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.Events)
}
