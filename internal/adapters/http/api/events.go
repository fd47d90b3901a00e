package api

import (
	"errors"
	"fmt"
	"net/http"

	service "github.com/okian/deathlog/internal/app"
	"github.com/okian/deathlog/internal/domain/types"
)

// EventsHandler handles event requests.
type EventsHandler struct {
	deps Dependencies
}

// NewEventsHandler creates a new events handler.
func NewEventsHandler(deps Dependencies) *EventsHandler {
	return &EventsHandler{deps: deps}
}

// HandlePostEvent handles POST /events requests.
func (h *EventsHandler) HandlePostEvent(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_event"
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var in types.Inbound
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%s: %w: %w", op, ErrBadRequest, err))
		return
	}

	duplicate, err := h.deps.Submit(r.Context(), in)
	switch {
	case err == nil && duplicate:
		writeJSON(w, http.StatusOK, types.Ack{Status: "duplicate", Duplicate: true})
	case err == nil:
		writeJSON(w, http.StatusAccepted, types.Ack{Status: "accepted"})
	case errors.Is(err, types.ErrInvalidMessage):
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("%s: %w: %w", op, ErrBadRequest, err))
	case errors.Is(err, service.ErrBackpressure):
		writeError(w, http.StatusTooManyRequests, "backpressure", fmt.Errorf("%s: %w", op, ErrBackpressure))
	case errors.Is(err, service.ErrStopped):
		writeError(w, http.StatusServiceUnavailable, "unavailable", fmt.Errorf("%s: %w", op, ErrUnavailable))
	default:
		writeError(w, http.StatusInternalServerError, "internal", fmt.Errorf("%s: %w", op, err))
	}
}
