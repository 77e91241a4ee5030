package match

import (
	"context"
	"log/slog"
	"sync"

	"github.com/francismars/live/internal/dependencies/clock"
	"github.com/francismars/live/internal/model"
	"github.com/francismars/live/internal/services/room"
)

// Queue pairs compatible pending requests into a room. The scan is
// linear in insertion order: tens of concurrent entries, not thousands,
// and FIFO among compatible candidates.
type Queue struct {
	mu      sync.Mutex
	pending []model.MatchRequest
	accepts map[model.RoomID]*pendingMatch

	registry *room.Registry
	clock    clock.Clock
	logger   *slog.Logger
}

// pendingMatch tracks which of a pairing's two identities have accepted.
// Discarded once both have.
type pendingMatch struct {
	players  [2]model.MatchRequest
	accepted map[model.Identity]bool
}

// NewQueue creates a new matchmaking Queue
func NewQueue(registry *room.Registry, clock clock.Clock, logger *slog.Logger) *Queue {
	return &Queue{
		accepts:  make(map[model.RoomID]*pendingMatch),
		registry: registry,
		clock:    clock,
		logger:   logger.With(slog.String("component", "matchmaking")),
	}
}

// SubmitResult reports the outcome of a submission
type SubmitResult struct {
	Matched bool
	RoomID  model.RoomID
	// Players holds both paired requests when Matched; Players[0] is the
	// earlier-queued side.
	Players [2]model.MatchRequest
}

// Submit enqueues a request or pairs it with the first compatible
// earlier request. At most one outstanding request per identity.
func (q *Queue) Submit(ctx context.Context, req model.MatchRequest) (*SubmitResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, existing := range q.pending {
		if existing.Pubkey == req.Pubkey {
			return nil, model.ErrAlreadyQueued
		}
	}

	req.QueuedAt = q.clock.Now()

	for i, candidate := range q.pending {
		if !candidate.Compatible(req) {
			continue
		}

		q.pending = append(q.pending[:i], q.pending[i+1:]...)

		roomID := q.registry.NewRoomID(ctx)
		_, err := q.registry.CreateMatchedRoom(ctx, roomID,
			model.RoomSettings{
				GameType:        req.GameType,
				AllowSpectators: req.AllowSpectators,
			},
			req.BuyIn,
			[]model.Participant{
				{Pubkey: candidate.Pubkey, Name: candidate.Name, Conn: candidate.Conn},
				{Pubkey: req.Pubkey, Name: req.Name, Conn: req.Conn},
			},
		)
		if err != nil {
			// Pairing failed; reinsert the candidate at its original
			// position so a storage hiccup does not cost it its turn
			q.pending = append(q.pending[:i], append([]model.MatchRequest{candidate}, q.pending[i:]...)...)
			return nil, err
		}

		q.accepts[roomID] = &pendingMatch{
			players:  [2]model.MatchRequest{candidate, req},
			accepted: make(map[model.Identity]bool),
		}

		q.logger.Info("match found",
			slog.String("room_id", string(roomID)),
			slog.String("player_a", string(candidate.Pubkey)),
			slog.String("player_b", string(req.Pubkey)),
			slog.Int("buy_in", req.BuyIn),
		)

		return &SubmitResult{
			Matched: true,
			RoomID:  roomID,
			Players: [2]model.MatchRequest{candidate, req},
		}, nil
	}

	q.pending = append(q.pending, req)

	q.logger.Info("request queued",
		slog.String("pubkey", string(req.Pubkey)),
		slog.Int("buy_in", req.BuyIn),
		slog.Int("queue_depth", len(q.pending)),
	)

	return &SubmitResult{Matched: false}, nil
}

// Cancel removes an identity's queued request. Cancelling an identity
// that is not queued returns ErrRequestNotFound, which callers are free
// to treat as success.
func (q *Queue) Cancel(pubkey model.Identity) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, req := range q.pending {
		if req.Pubkey == pubkey {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return nil
		}
	}
	return model.ErrRequestNotFound
}

// CancelByConn drops any queued request owned by the given connection,
// used when a client disconnects while waiting.
func (q *Queue) CancelByConn(conn model.ConnID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, req := range q.pending {
		if req.Conn == conn {
			q.pending = append(q.pending[:i], q.pending[i+1:]...)
			return true
		}
	}
	return false
}

// AcceptResult reports acceptance progress for a pending match
type AcceptResult struct {
	BothAccepted bool
	Room         *model.Room
}

// Accept records one side's acceptance of a pairing. Once both matched
// identities have accepted, both players are seated and marked ready and
// the accept set is discarded; the caller hands the room to the
// scheduler to start the game.
func (q *Queue) Accept(ctx context.Context, roomID model.RoomID, pubkey model.Identity) (*AcceptResult, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	pm, ok := q.accepts[roomID]
	if !ok {
		return nil, model.ErrMatchNotFound
	}

	matched := false
	for _, p := range pm.players {
		if p.Pubkey == pubkey {
			matched = true
			break
		}
	}
	if !matched {
		return nil, model.ErrNotAPlayer
	}

	pm.accepted[pubkey] = true
	if len(pm.accepted) < len(pm.players) {
		return &AcceptResult{BothAccepted: false}, nil
	}

	delete(q.accepts, roomID)

	// A matched identity that rejoined the lobby as spectator in the
	// meantime still has to end up seated
	for _, p := range pm.players {
		current, err := q.registry.GetRoom(ctx, roomID)
		if err != nil {
			return nil, err
		}
		if m := current.GetMember(p.Pubkey); m != nil && m.Role == model.RoleSpectator {
			if _, err := q.registry.PromoteToPlayer(ctx, roomID, p.Pubkey); err != nil {
				return nil, err
			}
		}
	}

	updated, err := q.registry.MarkBothReady(ctx, roomID)
	if err != nil {
		return nil, err
	}

	q.logger.Info("match accepted by both sides", slog.String("room_id", string(roomID)))

	return &AcceptResult{BothAccepted: true, Room: updated}, nil
}

// Depth returns the number of queued requests
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
