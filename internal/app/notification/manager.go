// Package notification broadcasts session and shuffle events to stream subscribers.
package notification

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"
)

// EventType identifies the kind of a notification.
type EventType string

const (
	EventSessionChanged  EventType = "session_changed"
	EventProgressChanged EventType = "progress_changed"
	EventTracksAppended  EventType = "tracks_appended"
	EventCompleted       EventType = "completed"
	EventPublished       EventType = "published"
	EventInitialState    EventType = "initial_state"
)

// sendTimeout bounds a single subscriber send.
const sendTimeout = 500 * time.Millisecond

// Notification is a single event delivered to subscribers.
type Notification struct {
	SequenceNo uint64    `json:"sequence_no"`
	Type       EventType `json:"type"`
	Time       time.Time `json:"time"`
	Payload    any       `json:"payload,omitempty"`
}

// Stream represents a notification stream for a subscriber.
type Stream interface {
	Send(*Notification) error
}

// Manager fans notifications out to subscribed streams.
type Manager struct {
	mu      sync.RWMutex
	streams map[string]Stream
	seq     atomic.Uint64
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{streams: make(map[string]Stream)}
}

// Subscribe registers stream and returns its subscription ID.
func (m *Manager) Subscribe(stream Stream) string {
	id := uuid.NewString()
	m.mu.Lock()
	m.streams[id] = stream
	m.mu.Unlock()
	zlog.Debug().Msgf("notification: subscribed: subscription=%s", id)
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	delete(m.streams, subscriptionID)
	m.mu.Unlock()
}

// Notify builds a notification of the given type and broadcasts it.
func (m *Manager) Notify(eventType EventType, payload any) {
	m.Broadcast(&Notification{
		Type:    eventType,
		Time:    time.Now(),
		Payload: payload,
	})
}

// Broadcast stamps n with the next sequence number and delivers it to every
// subscriber concurrently. It returns once each delivery finished or timed out.
func (m *Manager) Broadcast(n *Notification) {
	n.SequenceNo = m.seq.Add(1)

	m.mu.RLock()
	targets := make(map[string]Stream, len(m.streams))
	for id, s := range m.streams {
		targets[id] = s
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for id, s := range targets {
		wg.Add(1)
		go func() {
			defer wg.Done()
			deliver(id, s, n)
		}()
	}
	wg.Wait()
}

// deliver sends n to one stream. A send that outlives sendTimeout is
// abandoned and finishes in the background.
func deliver(id string, s Stream, n *Notification) {
	result := make(chan error, 1)
	go func() { result <- s.Send(n) }()

	timer := time.NewTimer(sendTimeout)
	defer timer.Stop()

	select {
	case err := <-result:
		if err != nil {
			zlog.Debug().Err(err).Msgf("notification: send failed: subscription=%s type=%s", id, n.Type)
		}
	case <-timer.C:
		zlog.Debug().Msgf("notification: send timed out: subscription=%s type=%s", id, n.Type)
	}
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.streams)
}

// Close drops all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	clear(m.streams)
	m.mu.Unlock()
}
