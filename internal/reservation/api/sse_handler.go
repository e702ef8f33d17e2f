package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"ms-reservations/internal/logger"
	"ms-reservations/internal/sse"

	"github.com/go-chi/chi/v5"
)

// SSEHandler streams newly created pending reservations to staff
// dashboards. The customer flow does not use this; it polls.
type SSEHandler struct {
	Logger       *logger.Logger
	EventEmitter *sse.PendingEventEmitter
}

func NewSSEHandler(log *logger.Logger, emitter *sse.PendingEventEmitter) *SSEHandler {
	return &SSEHandler{
		Logger:       log,
		EventEmitter: emitter,
	}
}

// HandlePendingReservations streams pending-reservation events for a hotel
func (h *SSEHandler) HandlePendingReservations(w http.ResponseWriter, r *http.Request) {
	hotelID := chi.URLParam(r, "hotelId")
	if hotelID == "" {
		http.Error(w, "Hotel ID is required", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ctx := r.Context()
	eventChan := h.EventEmitter.SubscribeToHotel(ctx, hotelID)

	fmt.Fprintf(w, "event: connected\ndata: {\"status\":\"connected\",\"hotelId\":\"%s\"}\n\n", hotelID)
	flusher.Flush()

	h.Logger.Info("SSE", fmt.Sprintf("Staff client subscribed to pending reservations for hotel %s", hotelID))

	for {
		select {
		case reservation, ok := <-eventChan:
			if !ok {
				return
			}
			data, err := json.Marshal(reservation.ToResponse())
			if err != nil {
				h.Logger.Error("SSE", fmt.Sprintf("Failed to marshal reservation event: %v", err))
				continue
			}
			fmt.Fprintf(w, "event: pending\ndata: %s\n\n", data)
			flusher.Flush()
		case <-ctx.Done():
			h.Logger.Debug("SSE", fmt.Sprintf("Staff client disconnected from hotel %s", hotelID))
			return
		}
	}
}
