package api

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/surpluscoord/control-plane/internal/eventbus"
)

// EventHandlers serves the /events long-poll and /events/stream websocket
// surfaces, both backed by the same eventbus.Bus.
type EventHandlers struct {
	bus      *eventbus.Bus
	upgrader websocket.Upgrader
	logger   *slog.Logger
}

func NewEventHandlers(bus *eventbus.Bus, logger *slog.Logger) *EventHandlers {
	return &EventHandlers{
		bus:      bus,
		upgrader: websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 1024, CheckOrigin: func(r *http.Request) bool { return true }},
		logger:   logger.With("component", "api.events"),
	}
}

// Since handles GET /events?since=&limit=, returning every event with a
// sequence greater than since.
func (h *EventHandlers) Since(w http.ResponseWriter, r *http.Request) {
	cursor := int64(queryInt(r, "since", 0))
	limit := queryInt(r, "limit", 100)
	events := h.bus.Since(cursor, limit)
	writeJSON(w, http.StatusOK, map[string]any{"events": events, "count": len(events)})
}

// Stream handles GET /events/stream, upgrading to a websocket and pushing
// every subsequently published event to the client until it disconnects.
func (h *EventHandlers) Stream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	sub := eventbus.NewChannelSubscriber(r.Context(), uuid.NewString(), 64)
	h.bus.Subscribe(sub)
	defer h.bus.Unsubscribe(sub.ID())

	for event := range sub.Events() {
		if err := conn.WriteJSON(event); err != nil {
			h.logger.Debug("websocket write failed, closing stream", "subscriber_id", sub.ID(), "error", err)
			return
		}
	}
}
