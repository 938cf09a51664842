package core

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// SessionEvent is published when the persisted session changes
type SessionEvent struct {
	Type    string    `json:"type"`    // EventLogin or EventLogout
	Subject string    `json:"subject"` // identifier of the session owner, if known
	At      time.Time `json:"at"`
}

// Broadcaster publishes session events to other contexts sharing the same storage.
//
// Delivery is best-effort: subscribers may observe an event late, and a subscriber
// that is absent at publish time never sees it. There is no replay and no ordering
// guarantee between publishers.
type Broadcaster interface {
	Publish(ctx context.Context, event SessionEvent) error
}

// Hub is an in-process Broadcaster. Sends never block; a subscriber whose
// buffer is full misses the event.
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[int]chan SessionEvent
}

// NewHub creates a hub with no subscribers
func NewHub() *Hub {
	return &Hub{subs: make(map[int]chan SessionEvent)}
}

// Subscribe registers a subscriber. The returned cancel func unregisters it and closes the channel.
func (h *Hub) Subscribe(buffer int) (<-chan SessionEvent, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan SessionEvent, buffer)

	h.mu.Lock()
	id := h.nextID
	h.nextID++
	h.subs[id] = ch
	h.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

// Publish delivers the event to every current subscriber without blocking
func (h *Hub) Publish(_ context.Context, event SessionEvent) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for id, ch := range h.subs {
		select {
		case ch <- event:
		default:
			slog.Debug("Dropped session event for slow subscriber",
				"subscriber", id,
				"event_type", event.Type)
		}
	}
	return nil
}
