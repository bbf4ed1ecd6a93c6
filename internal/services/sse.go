package services

import (
	"sync"
	"time"
)

// Cache tags revalidated after mutations.
const (
	TagAdvisees      = "advisees"
	TagUsers         = "users"
	TagAnnouncements = "announcements"
	TagProfile       = "profile"
)

// ChangeEvent tells connected clients that data behind a tag changed and any
// list showing it should be refetched.
type ChangeEvent struct {
	Tag    string    `json:"tag"`
	Action string    `json:"action"` // created, updated, deleted
	ID     string    `json:"id,omitempty"`
	At     time.Time `json:"at"`
}

// Revalidator receives the tag of every successful mutation.
type Revalidator interface {
	Revalidate(tag, action, id string)
}

// SSEHub manages SSE client connections and event broadcasting
type SSEHub struct {
	clients map[string]chan ChangeEvent
	mu      sync.RWMutex
}

func NewSSEHub() *SSEHub {
	return &SSEHub{
		clients: make(map[string]chan ChangeEvent),
	}
}

// Subscribe registers a new client and returns a channel for receiving events
func (h *SSEHub) Subscribe(clientID string) <-chan ChangeEvent {
	h.mu.Lock()
	defer h.mu.Unlock()

	ch := make(chan ChangeEvent, 100)
	h.clients[clientID] = ch
	return ch
}

// Unsubscribe removes a client from the hub
func (h *SSEHub) Unsubscribe(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if ch, ok := h.clients[clientID]; ok {
		close(ch)
		delete(h.clients, clientID)
	}
}

// Publish broadcasts an event to all connected clients. Slow clients miss events
// rather than blocking the publisher.
func (h *SSEHub) Publish(event ChangeEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, ch := range h.clients {
		select {
		case ch <- event:
		default:
		}
	}
}

// Revalidate publishes a ChangeEvent for tag.
func (h *SSEHub) Revalidate(tag, action, id string) {
	h.Publish(ChangeEvent{Tag: tag, Action: action, ID: id, At: time.Now()})
}

func (h *SSEHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

var globalSSEHub *SSEHub
var sseHubOnce sync.Once

// GetSSEHub returns the global SSE hub singleton
func GetSSEHub() *SSEHub {
	sseHubOnce.Do(func() {
		globalSSEHub = NewSSEHub()
	})
	return globalSSEHub
}
