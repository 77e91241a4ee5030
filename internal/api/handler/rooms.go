package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/francismars/live/internal/api/apierr"
	"github.com/francismars/live/internal/api/response"
	"github.com/francismars/live/internal/model"
	"github.com/francismars/live/internal/services/room"
)

// RoomsHandler handles room lookup endpoints
type RoomsHandler struct {
	registry *room.Registry
}

// NewRoomsHandler creates a new rooms handler
func NewRoomsHandler(registry *room.Registry) *RoomsHandler {
	return &RoomsHandler{registry: registry}
}

// Get handles GET /api/v1/rooms/{id}
func (h *RoomsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := model.RoomID(mux.Vars(r)["id"])

	rm, err := h.registry.GetRoom(r.Context(), id)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, room.Snapshot(rm))
}
