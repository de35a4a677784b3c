// Package notification fans playback events out to subscribers such as
// event-stream clients.
package notification

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/pibox/internal/app/playback"
)

const (
	// sendTimeout bounds a single subscriber send.
	sendTimeout = 500 * time.Millisecond

	// maxFailures is the number of consecutive failed or timed-out sends
	// after which a subscriber is dropped.
	maxFailures = 3
)

// Notification is a playback event stamped with a sequence number.
type Notification struct {
	SequenceNo uint64         `json:"sequence_no"`
	Event      playback.Event `json:"event"`
}

// Stream receives notifications for one subscriber.
type Stream interface {
	Send(Notification) error
}

// Subscription is a registered stream. Done is closed when the subscription
// ends, either by Unsubscribe, Close or after repeated send failures.
type Subscription struct {
	ID string

	stream   Stream
	types    map[playback.EventType]bool
	failures atomic.Int32
	done     chan struct{}
	once     sync.Once
}

// Done returns a channel closed when the subscription has ended.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

func (s *Subscription) wants(t playback.EventType) bool {
	return len(s.types) == 0 || s.types[t]
}

func (s *Subscription) end() {
	s.once.Do(func() { close(s.done) })
}

// Manager tracks subscriptions and broadcasts events to them.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*Subscription
	sequenceNo    atomic.Uint64
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*Subscription),
	}
}

// Subscribe registers stream for the given event types, or for every event
// when no types are given.
func (m *Manager) Subscribe(stream Stream, types ...playback.EventType) *Subscription {
	sub := &Subscription{
		ID:     uuid.New().String(),
		stream: stream,
		done:   make(chan struct{}),
	}
	if len(types) > 0 {
		sub.types = make(map[playback.EventType]bool, len(types))
		for _, t := range types {
			sub.types[t] = true
		}
	}

	m.mu.Lock()
	m.subscriptions[sub.ID] = sub
	m.mu.Unlock()

	zlog.Debug().Msgf("notification: subscribed: id=%s types=%v", sub.ID, types)
	return sub
}

// Unsubscribe removes a subscription. Unknown IDs are ignored.
func (m *Manager) Unsubscribe(id string) {
	m.mu.Lock()
	sub, ok := m.subscriptions[id]
	delete(m.subscriptions, id)
	m.mu.Unlock()

	if ok {
		sub.end()
		zlog.Debug().Msgf("notification: unsubscribed: id=%s", id)
	}
}

// Broadcast stamps event with the next sequence number and sends it to every
// interested subscriber in parallel. It returns once every send has finished
// or timed out.
func (m *Manager) Broadcast(event playback.Event) {
	n := Notification{SequenceNo: m.sequenceNo.Add(1), Event: event}

	m.mu.RLock()
	subs := make([]*Subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		if sub.wants(event.Type) {
			subs = append(subs, sub)
		}
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *Subscription) {
			defer wg.Done()
			if m.send(s, n) {
				s.failures.Store(0)
				return
			}
			if s.failures.Add(1) >= maxFailures {
				zlog.Info().Msgf("notification: dropping unresponsive subscriber: id=%s", s.ID)
				m.Unsubscribe(s.ID)
			}
		}(sub)
	}
	wg.Wait()
}

// send delivers n to one subscriber and reports whether it succeeded in time.
func (m *Manager) send(s *Subscription, n Notification) bool {
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()

	result := make(chan error, 1)
	go func() {
		result <- s.stream.Send(n)
	}()

	select {
	case err := <-result:
		if err != nil {
			zlog.Debug().Msgf("notification: send failed: id=%s seq=%d err=%v", s.ID, n.SequenceNo, err)
			return false
		}
		return true
	case <-ctx.Done():
		zlog.Debug().Msgf("notification: send timed out: id=%s seq=%d", s.ID, n.SequenceNo)
		return false
	}
}

// Pump broadcasts every event from events until the channel is closed.
func (m *Manager) Pump(events <-chan playback.Event) {
	for e := range events {
		m.Broadcast(e)
	}
	zlog.Debug().Msg("notification: event source closed")
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close ends every subscription.
func (m *Manager) Close() {
	m.mu.Lock()
	subs := m.subscriptions
	m.subscriptions = make(map[string]*Subscription)
	m.mu.Unlock()

	for _, sub := range subs {
		sub.end()
	}
}
