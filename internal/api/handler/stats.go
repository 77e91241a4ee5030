package handler

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/francismars/live/internal/api/apierr"
	"github.com/francismars/live/internal/api/response"
	"github.com/francismars/live/internal/model"
	"github.com/francismars/live/internal/services/stats"
)

// StatsHandler handles player stats endpoints
type StatsHandler struct {
	ledger *stats.Ledger
}

// NewStatsHandler creates a new stats handler
func NewStatsHandler(ledger *stats.Ledger) *StatsHandler {
	return &StatsHandler{ledger: ledger}
}

// Get handles GET /api/v1/stats/{pubkey}
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	pubkey := model.Identity(mux.Vars(r)["pubkey"])
	if pubkey == "" {
		apierr.WriteError(w, apierr.NewInvalidRequestError("pubkey is required"))
		return
	}

	projection, err := h.ledger.GetStats(r.Context(), pubkey)
	if err != nil {
		apierr.WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.Stats{StatsProjection: *projection})
}
