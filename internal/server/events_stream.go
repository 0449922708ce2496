package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/osf/network-sim/internal/events"
	"github.com/osf/network-sim/internal/utils"
)

// heartbeatInterval bounds how long a client can go without any bytes on
// the wire, so proxies between the client and this process don't time out
// an idle connection between clock_sync heartbeats.
const heartbeatInterval = 15 * time.Second

// handleEventsStream serves the network's event bus over SSE. An optional
// ?types=clock_sync,month_completed query param narrows the subscription;
// omitted, the client receives every canonical event type.
func (s *Server) handleEventsStream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sub := s.bus.Subscribe(parseEventTypes(r.URL.Query().Get("types"))...)
	defer s.bus.Unsubscribe(sub)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	fmt.Fprintf(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case evt := <-sub.C:
			if err := writeSSEEvent(w, evt); err != nil {
				s.log.Warn().Err(err).Msg("dropping event stream client after write error")
				return
			}
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprintf(w, ": keep-alive\n\n")
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, evt *events.Event) error {
	body, err := evt.MarshalJSON()
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", evt.Type, body); err != nil {
		return err
	}
	return nil
}

func parseEventTypes(raw string) []events.EventType {
	parts := utils.ParseCSV(raw)
	if parts == nil {
		return nil
	}
	types := make([]events.EventType, len(parts))
	for i, p := range parts {
		types[i] = events.EventType(p)
	}
	return types
}
