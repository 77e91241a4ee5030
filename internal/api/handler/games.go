package handler

import (
	"net/http"

	"github.com/francismars/live/internal/api/response"
	"github.com/francismars/live/internal/services/scheduler"
)

// GamesHandler handles active game listing endpoints
type GamesHandler struct {
	scheduler *scheduler.Scheduler
}

// NewGamesHandler creates a new games handler
func NewGamesHandler(sched *scheduler.Scheduler) *GamesHandler {
	return &GamesHandler{scheduler: sched}
}

// List handles GET /api/v1/games
func (h *GamesHandler) List(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, response.Games{Games: h.scheduler.ActiveGames(r.Context())})
}
