// Package events carries connection change notifications to subscribers.
package events

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Type string

const (
	// CredentialsUpdated is published after a token was refreshed or reauthenticated.
	CredentialsUpdated Type = "credentials_updated"
	// CredentialsInvalidated is published when a cached token was revoked or removed.
	CredentialsInvalidated Type = "credentials_invalidated"
	// ActiveConnectionChanged is published on every session switch, including pins.
	ActiveConnectionChanged Type = "active_connection_changed"
	// ConnectionDeleted is published after a connection left the registry.
	ConnectionDeleted Type = "connection_deleted"
)

// Event is the payload delivered to listeners. Feature is set only for
// ActiveConnectionChanged events that concern a feature pin.
type Event struct {
	ID           string
	Type         Type
	ConnectionID string
	Feature      string
	At           time.Time
}

// Listener receives events synchronously on the publishing goroutine.
type Listener func(Event)

// Publisher is the emitting side of the bus.
type Publisher interface {
	Publish(eventType Type, connectionID string)
}

// Bus fans events out to every subscriber.
type Bus struct {
	mu        sync.RWMutex
	nextID    int
	listeners map[int]Listener
	nowFunc   func() time.Time
}

func NewBus() *Bus {
	return &Bus{
		listeners: make(map[int]Listener),
		nowFunc:   time.Now,
	}
}

// Subscribe registers listener and returns a function that removes it.
func (b *Bus) Subscribe(listener Listener) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	id := b.nextID
	b.nextID++
	b.listeners[id] = listener
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.listeners, id)
	}
}

func (b *Bus) Publish(eventType Type, connectionID string) {
	b.PublishEvent(Event{Type: eventType, ConnectionID: connectionID})
}

// PublishEvent fills in ID and At when empty and delivers evt.
func (b *Bus) PublishEvent(evt Event) {
	if evt.ID == "" {
		evt.ID = uuid.NewString()
	}
	if evt.At.IsZero() {
		evt.At = b.nowFunc()
	}

	b.mu.RLock()
	listeners := make([]Listener, 0, len(b.listeners))
	for _, l := range b.listeners {
		listeners = append(listeners, l)
	}
	b.mu.RUnlock()

	log.Debug().Str("event", string(evt.Type)).Str("connection_id", evt.ConnectionID).Msg("publishing connection event")
	for _, l := range listeners {
		l(evt)
	}
}

// Nop discards events.
type Nop struct{}

func (Nop) Publish(Type, string) {}
