package api

import (
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/francismars/live/internal/api/handler"
	"github.com/francismars/live/internal/api/middleware"
	"github.com/francismars/live/internal/gateway"
	"github.com/francismars/live/internal/services/room"
	"github.com/francismars/live/internal/services/scheduler"
	"github.com/francismars/live/internal/services/stats"
)

// RouterConfig holds configuration for the API router
type RouterConfig struct {
	Logger    *slog.Logger
	Registry  *room.Registry
	Ledger    *stats.Ledger
	Scheduler *scheduler.Scheduler
	Gateway   *gateway.Gateway
}

// NewRouter creates a new router with the websocket endpoint and the REST
// read surface configured
func NewRouter(cfg RouterConfig) http.Handler {
	r := mux.NewRouter()

	// The websocket endpoint stays outside the middleware chain: the
	// logging wrapper does not support hijacking the connection.
	r.HandleFunc("/ws", cfg.Gateway.HandleWS)

	statsHandler := handler.NewStatsHandler(cfg.Ledger)
	gamesHandler := handler.NewGamesHandler(cfg.Scheduler)
	roomsHandler := handler.NewRoomsHandler(cfg.Registry)

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(middleware.Recovery(cfg.Logger))
	api.Use(middleware.Logging(cfg.Logger))

	api.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	api.HandleFunc("/stats/{pubkey}", statsHandler.Get).Methods(http.MethodGet)
	api.HandleFunc("/games", gamesHandler.List).Methods(http.MethodGet)
	api.HandleFunc("/rooms/{id}", roomsHandler.Get).Methods(http.MethodGet)

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
