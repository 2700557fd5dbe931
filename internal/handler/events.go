package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/dial-agent-go/internal/events"
)

const eventsHeartbeatInterval = 30 * time.Second

// EventsHandler streams bus events to a local UI as server-sent events.
// ?types=a,b limits the stream to those event types.
type EventsHandler struct {
	bus *events.Bus
}

func NewEventsHandler(bus *events.Bus) *EventsHandler {
	return &EventsHandler{bus: bus}
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Streaming not supported"})
		return
	}

	var types []string
	if raw := r.URL.Query().Get("types"); raw != "" {
		types = strings.Split(raw, ",")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	sub := h.bus.Subscribe(types...)
	defer h.bus.Unsubscribe(sub)

	log.Info().Str("component", "http").Strs("types", types).Msg("event stream opened")

	if err := h.sendEvent(w, flusher, "ready", map[string]any{"subscribers": h.bus.SubscriberCount()}); err != nil {
		return
	}

	ctx := r.Context()
	heartbeat := time.NewTicker(eventsHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Str("component", "http").Msg("event stream closed by client")
			return

		case <-sub.Done:
			log.Info().Str("component", "http").Msg("event stream closed by bus")
			return

		case ev := <-sub.Events:
			data, err := json.Marshal(ev)
			if err != nil {
				log.Error().Err(err).Msg("failed to encode event")
				continue
			}
			if err := h.sendRawEvent(w, flusher, ev.Type, data); err != nil {
				log.Debug().Err(err).Msg("failed to send event")
				return
			}

		case <-heartbeat.C:
			if _, err := fmt.Fprintf(w, ": ping\n\n"); err != nil {
				log.Debug().Str("component", "http").Msg("heartbeat failed, closing event stream")
				return
			}
			flusher.Flush()
		}
	}
}

func (h *EventsHandler) sendEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data any) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}
	return h.sendRawEvent(w, flusher, eventType, jsonData)
}

func (h *EventsHandler) sendRawEvent(w http.ResponseWriter, flusher http.Flusher, eventType string, data []byte) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", eventType); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
