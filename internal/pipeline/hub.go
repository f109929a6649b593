package pipeline

import (
	"fmt"
	"sync"

	"github.com/gemsieve/gemsieve/internal/domain"
)

// Event kinds.
const (
	EventStarted = "STARTED"
	EventDone    = "DONE"
	EventFailed  = "FAILED"
)

// Event is one live pipeline notification.
type Event struct {
	Kind  string       `json:"kind"`
	RunID int64        `json:"run_id"`
	Stage domain.Stage `json:"stage"`
	Items int          `json:"items"`
	Error string       `json:"error,omitempty"`
}

// String renders the event in the log-line form the stream emits.
func (e Event) String() string {
	switch e.Kind {
	case EventDone:
		return fmt.Sprintf("[DONE] %d %s %d", e.RunID, e.Stage, e.Items)
	case EventFailed:
		return fmt.Sprintf("[FAILED] %d %s %s", e.RunID, e.Stage, e.Error)
	default:
		return fmt.Sprintf("[STARTED] %d %s", e.RunID, e.Stage)
	}
}

// Hub fans pipeline events out to SSE subscribers. Slow consumers lose
// their oldest buffered event rather than blocking the pipeline.
type Hub struct {
	mu   sync.RWMutex
	subs map[string]chan Event
}

// NewHub creates an event hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[string]chan Event)}
}

// Subscribe registers a client. The id must be unique per client.
func (h *Hub) Subscribe(id string) <-chan Event {
	ch := make(chan Event, 100)
	h.mu.Lock()
	h.subs[id] = ch
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (h *Hub) Unsubscribe(id string) {
	h.mu.Lock()
	if ch, ok := h.subs[id]; ok {
		close(ch)
		delete(h.subs, id)
	}
	h.mu.Unlock()
}

// Publish delivers an event to every subscriber.
func (h *Hub) Publish(e Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, ch := range h.subs {
		select {
		case ch <- e:
		default:
			// Full buffer: drop the oldest, then push.
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- e:
			default:
			}
		}
	}
}
