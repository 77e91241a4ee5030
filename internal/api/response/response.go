package response

import (
	"encoding/json"
	"net/http"

	"github.com/francismars/live/internal/model"
)

// Health is the health check response
type Health struct {
	Status string `json:"status"`
}

// Stats is the player stats response. It carries the full projection the
// gateway pushes over the socket so both surfaces agree.
type Stats struct {
	model.StatsProjection
}

// Games is the active games listing response
type Games struct {
	Games []model.ActiveGamePayload `json:"games"`
}

// JSON writes a JSON response
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}
