package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prysmai/debate-arena/internal/debate"
)

// streamSSE frames a round's event feed as Server-Sent Events. Each event is
// written and flushed whole, so events are atomic on the wire. Returns when
// the feed closes or the client disconnects (which cancels the round via the
// request context).
func streamSSE(w http.ResponseWriter, r *http.Request, events <-chan debate.Event) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		Error(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for ev := range events {
		data, err := json.Marshal(ev)
		if err != nil {
			slog.Error("failed to encode stream event", "type", ev.Type, "error", err)
			continue
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
			slog.Debug("SSE write failed, client likely gone", "error", err)
			return
		}
		flusher.Flush()
	}
}
