package room

import (
	"context"
	"log/slog"
	"sync"

	"github.com/francismars/live/internal/dependencies/clock"
	"github.com/francismars/live/internal/dependencies/random"
	"github.com/francismars/live/internal/model"
	"github.com/francismars/live/internal/storage"
)

const (
	// RoomCodeLength is the length of generated room codes
	RoomCodeLength = 6
	// RoomCodeAlphabet is the characters used in room codes (avoid confusing chars)
	RoomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// Registry owns room lifecycle from creation to disposal: membership,
// spectator/player promotion, readiness and chat routing.
//
// Every mutation is a read-modify-write against the backend, so writes
// to the same room are serialized through a per-room mutex. Reads go
// straight to storage.
type Registry struct {
	storage storage.Storage
	clock   clock.Clock
	random  random.Random
	logger  *slog.Logger

	mu    sync.Mutex
	locks map[model.RoomID]*sync.Mutex
}

// NewRegistry creates a new room Registry
func NewRegistry(
	storage storage.Storage,
	clock clock.Clock,
	random random.Random,
	logger *slog.Logger,
) *Registry {
	return &Registry{
		storage: storage,
		clock:   clock,
		random:  random,
		logger:  logger.With(slog.String("component", "room")),
		locks:   make(map[model.RoomID]*sync.Mutex),
	}
}

// roomLock returns the mutex guarding mutations of one room, creating
// it on first use.
func (r *Registry) roomLock(id model.RoomID) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[id] = lock
	}
	return lock
}

// dropLock forgets the per-room mutex after the room is deleted
func (r *Registry) dropLock(id model.RoomID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.locks, id)
}

// NewRoomID generates a fresh room code. Uniqueness is probabilistic;
// codes are a presentation detail, not a security boundary.
func (r *Registry) NewRoomID(ctx context.Context) model.RoomID {
	for {
		id := model.RoomID(r.random.String(RoomCodeLength, RoomCodeAlphabet))
		exists, err := r.storage.RoomExists(ctx, id)
		if err != nil || !exists {
			return id
		}
	}
}

// CreateOrGetRoom returns the room with the given id, creating it if
// absent. Idempotent: the first caller's stake (if any) is retained and
// later stakes are ignored.
func (r *Registry) CreateOrGetRoom(ctx context.Context, id model.RoomID, stake *int) (*model.Room, error) {
	lock := r.roomLock(id)
	lock.Lock()
	defer lock.Unlock()

	if existing, err := r.storage.GetRoom(ctx, id); err == nil {
		return existing, nil
	}

	now := r.clock.Now()
	room := &model.Room{
		ID:      id,
		Members: []model.Participant{},
		Ready:   make(map[model.Identity]bool),
		Settings: model.RoomSettings{
			GameType:        model.GameModeClassic,
			AllowSpectators: true,
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if stake != nil {
		room.Stake = *stake
	}

	if err := r.storage.SaveRoom(ctx, room); err != nil {
		return nil, err
	}

	r.logger.Info("room created",
		slog.String("room_id", string(id)),
		slog.Int("stake", room.Stake),
	)

	return room, nil
}

// CreateMatchedRoom creates a room for a matchmaking pairing with both
// participants seated as players and the shared buy-in as stake.
func (r *Registry) CreateMatchedRoom(
	ctx context.Context,
	id model.RoomID,
	settings model.RoomSettings,
	stake int,
	players []model.Participant,
) (*model.Room, error) {
	lock := r.roomLock(id)
	lock.Lock()
	defer lock.Unlock()

	now := r.clock.Now()

	members := make([]model.Participant, len(players))
	for i, p := range players {
		p.Role = model.RolePlayer
		p.JoinedAt = now
		members[i] = p
	}

	room := &model.Room{
		ID:        id,
		Members:   members,
		Stake:     stake,
		Ready:     make(map[model.Identity]bool),
		Settings:  settings,
		Matchmade: true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := r.storage.SaveRoom(ctx, room); err != nil {
		return nil, err
	}

	r.logger.Info("matched room created",
		slog.String("room_id", string(id)),
		slog.Int("stake", stake),
	)

	return room, nil
}

// GetRoom retrieves a room by id
func (r *Registry) GetRoom(ctx context.Context, id model.RoomID) (*model.Room, error) {
	return r.storage.GetRoom(ctx, id)
}

// AddSpectator joins a participant to a room as spectator. Joining is
// idempotent: a member already present (by identity) is left as-is.
func (r *Registry) AddSpectator(ctx context.Context, id model.RoomID, participant model.Participant) (*model.Room, error) {
	lock := r.roomLock(id)
	lock.Lock()
	defer lock.Unlock()

	room, err := r.storage.GetRoom(ctx, id)
	if err != nil {
		return nil, err
	}

	if existing := room.GetMember(participant.Pubkey); existing != nil {
		// Rebind the connection so a rejoin after reconnect works
		existing.Conn = participant.Conn
		room.UpdatedAt = r.clock.Now()
		if err := r.storage.SaveRoom(ctx, room); err != nil {
			return nil, err
		}
		return room, nil
	}

	if !room.Settings.AllowSpectators {
		return nil, model.ErrSpectatorsClosed
	}

	participant.Role = model.RoleSpectator
	participant.JoinedAt = r.clock.Now()
	room.Members = append(room.Members, participant)
	room.UpdatedAt = r.clock.Now()

	if err := r.storage.SaveRoom(ctx, room); err != nil {
		return nil, err
	}

	return room, nil
}

// PromoteToPlayer moves an identity from spectators to players. Fails if
// the identity is not a spectator in the room or both seats are taken.
func (r *Registry) PromoteToPlayer(ctx context.Context, id model.RoomID, pubkey model.Identity) (*model.Room, error) {
	lock := r.roomLock(id)
	lock.Lock()
	defer lock.Unlock()

	room, err := r.storage.GetRoom(ctx, id)
	if err != nil {
		return nil, err
	}

	member := room.GetMember(pubkey)
	if member == nil || member.Role != model.RoleSpectator {
		return nil, model.ErrNotASpectator
	}

	if len(room.Players()) >= model.MaxPlayers {
		return nil, model.ErrRoomFull
	}

	member.Role = model.RolePlayer
	room.UpdatedAt = r.clock.Now()

	if err := r.storage.SaveRoom(ctx, room); err != nil {
		return nil, err
	}

	r.logger.Info("spectator promoted",
		slog.String("room_id", string(id)),
		slog.String("pubkey", string(pubkey)),
	)

	return room, nil
}

// RemoveParticipant removes an identity from the room. When the last
// member leaves the room is deleted; callers learn that via the empty
// return flag so the scheduler can drop any live game alongside.
func (r *Registry) RemoveParticipant(ctx context.Context, id model.RoomID, pubkey model.Identity) (*model.Room, bool, error) {
	lock := r.roomLock(id)
	lock.Lock()
	defer lock.Unlock()

	return r.removeLocked(ctx, id, pubkey)
}

func (r *Registry) removeLocked(ctx context.Context, id model.RoomID, pubkey model.Identity) (*model.Room, bool, error) {
	room, err := r.storage.GetRoom(ctx, id)
	if err != nil {
		return nil, false, err
	}

	member := room.GetMember(pubkey)
	if member == nil {
		return nil, false, model.ErrNotInRoom
	}

	for i, m := range room.Members {
		if m.Pubkey == pubkey {
			room.Members = append(room.Members[:i], room.Members[i+1:]...)
			break
		}
	}
	delete(room.Ready, pubkey)

	if len(room.Members) == 0 {
		if err := r.storage.DeleteRoom(ctx, id); err != nil {
			return nil, false, err
		}
		r.dropLock(id)
		r.logger.Info("room disposed", slog.String("room_id", string(id)))
		return room, true, nil
	}

	room.UpdatedAt = r.clock.Now()
	if err := r.storage.SaveRoom(ctx, room); err != nil {
		return nil, false, err
	}

	return room, false, nil
}

// RemoveByConn removes whichever member owns the given connection.
// Used on disconnect, where only the connection handle is known.
func (r *Registry) RemoveByConn(ctx context.Context, id model.RoomID, conn model.ConnID) (*model.Room, model.Identity, bool, error) {
	lock := r.roomLock(id)
	lock.Lock()
	defer lock.Unlock()

	room, err := r.storage.GetRoom(ctx, id)
	if err != nil {
		return nil, "", false, err
	}

	for _, m := range room.Members {
		if m.Conn == conn {
			updated, empty, err := r.removeLocked(ctx, id, m.Pubkey)
			return updated, m.Pubkey, empty, err
		}
	}

	return room, "", false, model.ErrNotInRoom
}

// MarkReady records an identity as ready. Only seated players count
// toward AllPlayersReady but marking is tolerated for any member.
func (r *Registry) MarkReady(ctx context.Context, id model.RoomID, pubkey model.Identity) (*model.Room, error) {
	lock := r.roomLock(id)
	lock.Lock()
	defer lock.Unlock()

	room, err := r.storage.GetRoom(ctx, id)
	if err != nil {
		return nil, err
	}

	if room.GetMember(pubkey) == nil {
		return nil, model.ErrNotInRoom
	}

	room.Ready[pubkey] = true
	room.UpdatedAt = r.clock.Now()

	if err := r.storage.SaveRoom(ctx, room); err != nil {
		return nil, err
	}

	return room, nil
}

// MarkBothReady readies both seated players in one step, used when a
// matchmaking pairing is accepted by both sides.
func (r *Registry) MarkBothReady(ctx context.Context, id model.RoomID) (*model.Room, error) {
	lock := r.roomLock(id)
	lock.Lock()
	defer lock.Unlock()

	room, err := r.storage.GetRoom(ctx, id)
	if err != nil {
		return nil, err
	}

	for _, p := range room.Players() {
		room.Ready[p.Pubkey] = true
	}
	room.UpdatedAt = r.clock.Now()

	if err := r.storage.SaveRoom(ctx, room); err != nil {
		return nil, err
	}

	return room, nil
}

// ClearReady resets the ready set, e.g. between a game ending and a
// rematch starting.
func (r *Registry) ClearReady(ctx context.Context, id model.RoomID) (*model.Room, error) {
	lock := r.roomLock(id)
	lock.Lock()
	defer lock.Unlock()

	room, err := r.storage.GetRoom(ctx, id)
	if err != nil {
		return nil, err
	}

	room.Ready = make(map[model.Identity]bool)
	room.UpdatedAt = r.clock.Now()

	if err := r.storage.SaveRoom(ctx, room); err != nil {
		return nil, err
	}

	return room, nil
}

// Snapshot derives the lobby-level room state payload broadcast to all
// subscribers after every registry mutation. Connection handles are
// stripped; clients only ever see identity, name and role.
func Snapshot(room *model.Room) model.RoomStatePayload {
	players := room.Players()

	ready := make([]model.Identity, 0, len(players))
	for _, p := range players {
		if room.Ready[p.Pubkey] {
			ready = append(ready, p.Pubkey)
		}
	}

	return model.RoomStatePayload{
		RoomID:       room.ID,
		Players:      memberPayloads(players),
		Spectators:   memberPayloads(room.Spectators()),
		Stake:        room.Stake,
		ReadyPlayers: ready,
	}
}

func memberPayloads(members []model.Participant) []model.RoomMemberPayload {
	out := make([]model.RoomMemberPayload, len(members))
	for i, m := range members {
		out[i] = model.RoomMemberPayload{
			Pubkey:   m.Pubkey,
			Name:     m.Name,
			Role:     m.Role,
			JoinedAt: m.JoinedAt,
		}
	}
	return out
}
