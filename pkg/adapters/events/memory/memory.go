package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/arbiterhq/arbiter/internal/domain"
	"github.com/arbiterhq/arbiter/internal/ports"
)

// Bus is the in-process event bus. Each subscriber gets its own bounded
// buffer; publishing never blocks. When a subscriber falls behind, the
// oldest buffered events are dropped and the gap is surfaced to that
// subscriber as a single subscriber_overflow event carrying the drop
// count. Other subscribers are unaffected.
type Bus struct {
	bufferSize int
	logger     *zap.Logger
	metrics    ports.MetricsCollector

	mu     sync.Mutex
	subs   map[string][]*subscription
	total  int
	closed bool
}

// NewBus creates an in-process event bus with the given per-subscriber
// buffer size.
func NewBus(bufferSize int, metrics ports.MetricsCollector, logger *zap.Logger) *Bus {
	if bufferSize < 2 {
		bufferSize = 2
	}
	return &Bus{
		bufferSize: bufferSize,
		logger:     logger,
		metrics:    metrics,
		subs:       make(map[string][]*subscription),
	}
}

// Publish delivers the event to every subscriber of its session. Events
// published before a subscriber joins are not replayed.
func (b *Bus) Publish(_ context.Context, ev domain.ProgressEvent) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return fmt.Errorf("event bus is closed")
	}
	subs := make([]*subscription, len(b.subs[ev.SessionID]))
	copy(subs, b.subs[ev.SessionID])
	b.mu.Unlock()

	for _, s := range subs {
		s.deliver(ev)
	}
	return nil
}

// Subscribe registers a new subscriber for one session's events.
func (b *Bus) Subscribe(sessionID string) (ports.Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, fmt.Errorf("event bus is closed")
	}

	s := &subscription{
		sessionID: sessionID,
		ch:        make(chan domain.ProgressEvent, b.bufferSize),
	}
	s.remove = func() { b.drop(sessionID, s) }

	b.subs[sessionID] = append(b.subs[sessionID], s)
	b.total++
	b.metrics.SetSubscribers(b.total)
	b.logger.Debug("event subscriber added",
		zap.String("session_id", sessionID),
		zap.Int("total", b.total))
	return s, nil
}

// Close shuts the bus down and closes every subscription.
func (b *Bus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true

	for _, subs := range b.subs {
		for _, s := range subs {
			s.shut()
		}
	}
	b.subs = make(map[string][]*subscription)
	b.total = 0
	b.metrics.SetSubscribers(0)
	return nil
}

func (b *Bus) drop(sessionID string, target *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subs[sessionID]
	for i, s := range subs {
		if s == target {
			b.subs[sessionID] = append(subs[:i], subs[i+1:]...)
			b.total--
			break
		}
	}
	if len(b.subs[sessionID]) == 0 {
		delete(b.subs, sessionID)
	}
	b.metrics.SetSubscribers(b.total)
}

// subscription is one subscriber's bounded view of a session's events.
type subscription struct {
	sessionID string
	ch        chan domain.ProgressEvent
	remove    func()

	mu     sync.Mutex
	closed bool
}

func (s *subscription) Events() <-chan domain.ProgressEvent { return s.ch }

// Close detaches the subscription from the bus and closes its channel.
func (s *subscription) Close() {
	s.remove()
	s.shut()
}

func (s *subscription) shut() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

// deliver enqueues the event, dropping the oldest buffered events when the
// buffer is full. The gap is reported in-band as subscriber_overflow so a
// consumer can tell its view is incomplete.
func (s *subscription) deliver(ev domain.ProgressEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	select {
	case s.ch <- ev:
		return
	default:
	}

	// Full buffer: make room for the overflow marker plus the new event.
	// A drained marker folds its count forward so the gap stays accurate.
	dropped := 0
	for len(s.ch) > cap(s.ch)-2 {
		select {
		case old := <-s.ch:
			if old.Kind == domain.EventSubscriberOverflow {
				dropped += old.Dropped
			} else {
				dropped++
			}
		default:
		}
	}
	s.ch <- domain.ProgressEvent{
		SessionID: s.sessionID,
		Kind:      domain.EventSubscriberOverflow,
		Timestamp: time.Now().UTC(),
		Dropped:   dropped,
	}
	s.ch <- ev
}
