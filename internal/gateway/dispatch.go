package gateway

import (
	"context"
	"errors"
	"log/slog"

	"github.com/francismars/live/internal/model"
	"github.com/francismars/live/internal/services/room"
	"github.com/francismars/live/internal/services/scheduler"
)

func (g *Gateway) dispatch(ctx context.Context, c *client, env Envelope) {
	switch env.Event {
	case model.EventJoinRoom:
		g.handleJoinRoom(ctx, c, env)
	case model.EventLeaveRoom:
		g.handleLeaveRoom(ctx, c, env)
	case model.EventRegisterToPlay:
		g.handleRegisterToPlay(ctx, c, env)
	case model.EventJoinGame:
		g.handleJoinGame(ctx, c, env)
	case model.EventLeaveGame:
		g.handleLeaveGame(ctx, c, env)
	case model.EventPlayerReady, model.EventStartGame:
		g.handlePlayerReady(ctx, c, env)
	case model.EventPlayerInput:
		g.handlePlayerInput(ctx, c, env)
	case model.EventFindMatch:
		g.handleFindMatch(ctx, c, env)
	case model.EventCancelMatchmaking:
		g.handleCancelMatchmaking(ctx, c, env)
	case model.EventAcceptMatch:
		g.handleAcceptMatch(ctx, c, env)
	case model.EventRequestRematch:
		g.handleRequestRematch(ctx, c, env)
	case model.EventRespondToRematch:
		g.handleRespondToRematch(ctx, c, env)
	case model.EventRequestPlayerStats:
		g.handleRequestPlayerStats(ctx, c, env)
	case model.EventGetActiveGames:
		g.handleGetActiveGames(ctx, c, env)
	case model.EventLobbyChat:
		g.handleLobbyChat(ctx, c, env)
	default:
		g.logger.Warn("unknown event",
			slog.String("conn", string(c.id)),
			slog.String("event", env.Event))
	}
}

// handleJoinRoom creates the room if needed and adds the sender as a
// spectator. Everyone enters as a spectator; registerToPlay claims a seat.
// If a game is already live the joiner gets an immediate catch-up snapshot.
func (g *Gateway) handleJoinRoom(ctx context.Context, c *client, env Envelope) {
	var p model.JoinRoomPayload
	if !g.decode(c, env, &p) {
		return
	}
	c.identify(p.User.Pubkey, p.User.Name)

	if _, err := g.registry.CreateOrGetRoom(ctx, p.RoomID, p.BuyIn); err != nil {
		g.logger.Error("join room failed",
			slog.String("room_id", string(p.RoomID)),
			slog.String("error", err.Error()))
		return
	}

	r, err := g.registry.AddSpectator(ctx, p.RoomID, model.Participant{
		Pubkey: p.User.Pubkey,
		Name:   p.User.Name,
		Conn:   c.id,
		Role:   model.RoleSpectator,
	})
	if err != nil {
		if errors.Is(err, model.ErrSpectatorsClosed) {
			_ = c.send(model.EventRegistrationFailed, model.RegistrationFailedPayload{
				RoomID:  p.RoomID,
				Message: "room does not allow spectators",
			})
		}
		return
	}

	g.hub.subscribe(c, p.RoomID)
	g.hub.BroadcastToRoom(p.RoomID, model.EventRoomState, room.Snapshot(r))

	if snapshot, ok := g.scheduler.Snapshot(p.RoomID); ok {
		_ = c.send(model.EventGameState, snapshot)
	}
}

func (g *Gateway) handleLeaveRoom(ctx context.Context, c *client, env Envelope) {
	var p model.LeaveRoomPayload
	if !g.decode(c, env, &p) {
		return
	}
	g.leave(ctx, c, p.RoomID, p.UserID)
}

// leave removes an identity from a room, forfeiting any live game it held a
// seat in and disposing the room when the last member goes.
func (g *Gateway) leave(ctx context.Context, c *client, roomID model.RoomID, userID model.Identity) {
	if r, err := g.registry.GetRoom(ctx, roomID); err == nil {
		if m := r.GetMember(userID); m != nil && m.Role == model.RolePlayer {
			g.scheduler.Forfeit(ctx, roomID, userID)
		}
	}

	r, emptied, err := g.registry.RemoveParticipant(ctx, roomID, userID)
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

// handleRegisterToPlay promotes a spectator into a seat. Rejected while a
// game is live or when both seats are taken.
func (g *Gateway) handleRegisterToPlay(ctx context.Context, c *client, env Envelope) {
	var p model.RegisterToPlayPayload
	if !g.decode(c, env, &p) {
		return
	}

	if _, live := g.scheduler.Snapshot(p.RoomID); live {
		_ = c.send(model.EventRegistrationFailed, model.RegistrationFailedPayload{
			RoomID:  p.RoomID,
			Message: "game already in progress",
		})
		return
	}

	r, err := g.registry.PromoteToPlayer(ctx, p.RoomID, p.UserID)
	if err != nil {
		_ = c.send(model.EventRegistrationFailed, model.RegistrationFailedPayload{
			RoomID:  p.RoomID,
			Message: err.Error(),
		})
		return
	}

	g.hub.BroadcastToRoom(p.RoomID, model.EventRoomState, room.Snapshot(r))
}

// handleJoinGame is the spectator catch-up request: reply with the current
// game snapshot if one is live.
func (g *Gateway) handleJoinGame(ctx context.Context, c *client, env Envelope) {
	var p model.JoinGamePayload
	if !g.decode(c, env, &p) {
		return
	}
	if snapshot, ok := g.scheduler.Snapshot(p.RoomID); ok {
		_ = c.send(model.EventGameState, snapshot)
	}
}

// handleLeaveGame abandons the sender's seat mid-game without leaving the
// room. The opponent wins by forfeit.
func (g *Gateway) handleLeaveGame(ctx context.Context, c *client, env Envelope) {
	var p model.LeaveGamePayload
	if !g.decode(c, env, &p) {
		return
	}

	pubkey, _ := c.identity()
	if pubkey == "" {
		return
	}
	g.scheduler.Forfeit(ctx, p.RoomID, pubkey)

	if r, err := g.registry.ClearReady(ctx, p.RoomID); err == nil {
		g.hub.BroadcastToRoom(p.RoomID, model.EventRoomState, room.Snapshot(r))
	}
}

// handlePlayerReady marks a seat ready; once both seats are ready the game
// is prepared and the countdown starts.
func (g *Gateway) handlePlayerReady(ctx context.Context, c *client, env Envelope) {
	var p model.PlayerReadyPayload
	if !g.decode(c, env, &p) {
		return
	}

	r, err := g.registry.MarkReady(ctx, p.RoomID, p.UserID)
	if err != nil {
		return
	}
	g.hub.BroadcastToRoom(p.RoomID, model.EventRoomState, room.Snapshot(r))

	if !r.AllPlayersReady() {
		return
	}
	g.launch(ctx, r)
}

// launch prepares and starts a room's game. ErrGameRunning is expected on
// duplicate ready signals and is not an error worth surfacing.
func (g *Gateway) launch(ctx context.Context, r *model.Room) {
	if _, err := g.scheduler.Prepare(ctx, r); err != nil {
		if !errors.Is(err, model.ErrGameRunning) {
			g.logger.Error("prepare failed",
				slog.String("room_id", string(r.ID)),
				slog.String("error", err.Error()))
		}
		return
	}
	if err := g.scheduler.Start(ctx, r.ID); err != nil {
		g.logger.Error("start failed",
			slog.String("room_id", string(r.ID)),
			slog.String("error", err.Error()))
	}
}

func (g *Gateway) handlePlayerInput(ctx context.Context, c *client, env Envelope) {
	var p model.PlayerInputPayload
	if !g.decode(c, env, &p) {
		return
	}
	// Reversals and stale inputs are routine; drop them silently.
	_ = g.scheduler.HandleInput(p.RoomID, p.Pubkey, p.Direction)
}

// handleFindMatch puts the sender in the matchmaking queue. When a
// compatible opponent is already waiting both sides are moved into a fresh
// room and notified; otherwise the sender waits.
func (g *Gateway) handleFindMatch(ctx context.Context, c *client, env Envelope) {
	var p model.FindMatchPayload
	if !g.decode(c, env, &p) {
		return
	}
	c.identify(p.UserID, p.Name)

	result, err := g.queue.Submit(ctx, model.MatchRequest{
		Conn:            c.id,
		Pubkey:          p.UserID,
		Name:            p.Name,
		GameType:        p.GameType,
		BuyIn:           p.BuyIn,
		AllowSpectators: p.AllowSpectators,
	})
	if err != nil {
		_ = c.send(model.EventMatchmakingStatus, model.MatchmakingStatusPayload{
			Status:  "error",
			Message: err.Error(),
		})
		return
	}

	if !result.Matched {
		_ = c.send(model.EventMatchmakingStatus, model.MatchmakingStatusPayload{Status: "waiting"})
		return
	}

	for _, player := range result.Players {
		peer, ok := g.hub.clientByConn(player.Conn)
		if !ok {
			continue
		}
		g.hub.subscribe(peer, result.RoomID)
		_ = peer.send(model.EventMatchFound, model.MatchFoundPayload{RoomID: result.RoomID})
	}

	if r, err := g.registry.GetRoom(ctx, result.RoomID); err == nil {
		g.hub.BroadcastToRoom(result.RoomID, model.EventRoomState, room.Snapshot(r))
	}
}

func (g *Gateway) handleCancelMatchmaking(ctx context.Context, c *client, env Envelope) {
	var p model.CancelMatchmakingPayload
	if !g.decode(c, env, &p) {
		return
	}
	// Cancelling an absent request still reads back as cancelled
	_ = g.queue.Cancel(p.UserID)
	_ = c.send(model.EventMatchmakingStatus, model.MatchmakingStatusPayload{Status: "cancelled"})
}

// handleAcceptMatch records one side's acceptance; when the second side
// accepts, both seats are marked ready and the game launches.
func (g *Gateway) handleAcceptMatch(ctx context.Context, c *client, env Envelope) {
	var p model.AcceptMatchPayload
	if !g.decode(c, env, &p) {
		return
	}

	result, err := g.queue.Accept(ctx, p.RoomID, p.UserID)
	if err != nil {
		_ = c.send(model.EventMatchmakingStatus, model.MatchmakingStatusPayload{
			Status:  "error",
			Message: err.Error(),
		})
		return
	}
	if !result.BothAccepted {
		return
	}

	g.hub.BroadcastToRoom(p.RoomID, model.EventRoomState, room.Snapshot(result.Room))
	g.launch(ctx, result.Room)
}

func (g *Gateway) handleRequestRematch(ctx context.Context, c *client, env Envelope) {
	var p model.RequestRematchPayload
	if !g.decode(c, env, &p) {
		return
	}

	if err := g.scheduler.RequestRematch(ctx, p.RoomID, p.RequesterID); err != nil {
		return
	}
	g.hub.BroadcastToRoom(p.RoomID, model.EventRematchRequested,
		model.RematchRequestedPayload{RequesterID: p.RequesterID})
}

func (g *Gateway) handleRespondToRematch(ctx context.Context, c *client, env Envelope) {
	var p model.RespondToRematchPayload
	if !g.decode(c, env, &p) {
		return
	}

	accepted, err := g.scheduler.RespondRematch(ctx, p.RoomID, p.UserID, p.Accept)
	if err != nil {
		return
	}
	event := model.EventRematchDeclined
	if accepted {
		event = model.EventRematchAccepted
	}
	g.hub.BroadcastToRoom(p.RoomID, event, model.MatchFoundPayload{RoomID: p.RoomID})
}

func (g *Gateway) handleRequestPlayerStats(ctx context.Context, c *client, env Envelope) {
	var p model.RequestPlayerStatsPayload
	if !g.decode(c, env, &p) {
		return
	}

	projection, err := g.ledger.GetStats(ctx, p.Pubkey)
	if err != nil {
		_ = c.send(model.EventPlayerStatsError, model.PlayerStatsErrorPayload{
			Message: "failed to load stats",
		})
		return
	}
	_ = c.send(model.EventPlayerStats, projection)
}

func (g *Gateway) handleGetActiveGames(ctx context.Context, c *client, env Envelope) {
	_ = c.send(model.EventActiveGames, g.scheduler.ActiveGames(ctx))
}

// handleLobbyChat relays a chat line to everyone in the room, sender
// included
func (g *Gateway) handleLobbyChat(ctx context.Context, c *client, env Envelope) {
	var p model.LobbyChatPayload
	if !g.decode(c, env, &p) {
		return
	}
	if p.Text == "" {
		return
	}
	g.hub.BroadcastToRoom(p.RoomID, model.EventLobbyChat, p)
}

var _ scheduler.Broadcaster = (*Hub)(nil)
