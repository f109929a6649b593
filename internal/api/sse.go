package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// Stream is the SSE endpoint for live pipeline events. Each event goes
// out as `event: <kind>` with the JSON payload in `data:`.
func (h *Handlers) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	id := uuid.NewString()
	events := h.hub.Subscribe(id)
	defer h.hub.Unsubscribe(id)
	h.log.Info("sse subscriber connected", "id", id)

	for {
		select {
		case <-r.Context().Done():
			h.log.Info("sse subscriber disconnected", "id", id)
			return
		case ev, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Kind, payload)
			flusher.Flush()
		}
	}
}
