package api

import (
	"fmt"
	"net/http"

	"github.com/okian/deathlog/internal/domain/types"
)

// CommandsHandler runs text commands for the UI.
type CommandsHandler struct {
	deps Dependencies
}

// NewCommandsHandler creates a new commands handler.
func NewCommandsHandler(deps Dependencies) *CommandsHandler {
	return &CommandsHandler{deps: deps}
}

// HandlePostCommand handles POST /commands requests. Rejected commands are
// still answered with 200; the lines explain the rejection.
func (h *CommandsHandler) HandlePostCommand(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req types.CommandRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Errorf("api.post_command: %w: %w", ErrBadRequest, err))
		return
	}
	writeJSON(w, http.StatusOK, types.CommandResponse{Lines: h.deps.RunCommand(r.Context(), req.Text)})
}
