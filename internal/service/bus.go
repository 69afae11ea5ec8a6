package service

import "sync"

// Event resources published by a MapSession.
const (
	ResourceLayers    = "layers"
	ResourceMarker    = "marker"
	ResourceReadout   = "readout"
	ResourceClipboard = "clipboard"
)

// Event represents a session state change.
type Event struct {
	Resource string // e.g. "layers"
	Action   string // "toggled", "selected", "placed", "removed", "hover", "write"
	ID       string // layer id, or the clipboard request id
	Text     string // readout or clipboard text
}

// EventBus is a simple fan-out pub/sub for session events.
type EventBus struct {
	mu   sync.RWMutex
	subs map[chan Event]struct{}
}

// NewEventBus creates a new event bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[chan Event]struct{})}
}

// Publish sends an event to all subscribers (non-blocking) and returns how
// many received it.
func (b *EventBus) Publish(e Event) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	delivered := 0
	for ch := range b.subs {
		select {
		case ch <- e:
			delivered++
		default:
			// subscriber too slow, skip
		}
	}
	return delivered
}

// Subscribe returns a buffered channel that receives events.
func (b *EventBus) Subscribe() chan Event {
	ch := make(chan Event, 16)
	b.mu.Lock()
	b.subs[ch] = struct{}{}
	b.mu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber and closes its channel.
func (b *EventBus) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	delete(b.subs, ch)
	b.mu.Unlock()
	close(ch)
}

// Subscribers returns the number of active subscribers.
func (b *EventBus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
