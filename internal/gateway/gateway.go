package gateway

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/francismars/live/internal/model"
	"github.com/francismars/live/internal/services/match"
	"github.com/francismars/live/internal/services/room"
	"github.com/francismars/live/internal/services/scheduler"
	"github.com/francismars/live/internal/services/stats"
)

// Gateway owns the websocket surface: it upgrades connections, decodes the
// event envelope, routes each event to the right service and pushes state
// back out through the hub. All room mutations broadcast a fresh roomState
// so every subscriber converges on the same view.
type Gateway struct {
	hub       *Hub
	registry  *room.Registry
	queue     *match.Queue
	scheduler *scheduler.Scheduler
	ledger    *stats.Ledger
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

// New creates a new gateway around an existing hub
func New(
	hub *Hub,
	registry *room.Registry,
	queue *match.Queue,
	sched *scheduler.Scheduler,
	ledger *stats.Ledger,
	logger *slog.Logger,
) *Gateway {
	return &Gateway{
		hub:       hub,
		registry:  registry,
		queue:     queue,
		scheduler: sched,
		ledger:    ledger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: logger.With(slog.String("component", "gateway")),
	}
}

// HandleWS upgrades an HTTP request and serves the connection until it
// drops
func (g *Gateway) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.logger.Warn("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	g.Serve(r.Context(), conn)
}

// Serve runs the read loop for one connection. Malformed frames are
// discarded; a read error of any kind tears the session down.
func (g *Gateway) Serve(ctx context.Context, conn Conn) {
	c := g.hub.register(conn)
	defer g.disconnect(c)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var env Envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			g.logger.Warn("discarding malformed frame",
				slog.String("conn", string(c.id)),
				slog.String("error", err.Error()))
			continue
		}
		g.dispatch(context.WithoutCancel(ctx), c, env)
	}
}

// disconnect is the teardown path shared by clean closes and dropped
// sockets: cancel any queued matchmaking, leave every room (forfeiting a
// live game when the leaver held a seat) and release the connection.
func (g *Gateway) disconnect(c *client) {
	ctx := context.Background()

	g.queue.CancelByConn(c.id)

	for _, roomID := range c.roomIDs() {
		g.leaveByConn(ctx, c, roomID)
	}

	g.hub.unregister(c)
	g.logger.Info("connection closed", slog.String("conn", string(c.id)))
}

func (g *Gateway) leaveByConn(ctx context.Context, c *client, roomID model.RoomID) {
	if r, err := g.registry.GetRoom(ctx, roomID); err == nil {
		for _, m := range r.Members {
			if m.Conn == c.id && m.Role == model.RolePlayer {
				g.scheduler.Forfeit(ctx, roomID, m.Pubkey)
				break
			}
		}
	}

	r, _, emptied, err := g.registry.RemoveByConn(ctx, roomID, c.id)
	g.hub.unsubscribe(c, roomID)
	if err != nil {
		return
	}
	if emptied {
		g.scheduler.Drop(roomID)
		return
	}
	g.hub.BroadcastToRoom(roomID, model.EventRoomState, room.Snapshot(r))
}

func (g *Gateway) decode(c *client, env Envelope, v any) bool {
	if err := json.Unmarshal(env.Data, v); err != nil {
		g.logger.Warn("discarding malformed payload",
			slog.String("conn", string(c.id)),
			slog.String("event", env.Event),
			slog.String("error", err.Error()))
		return false
	}
	return true
}
