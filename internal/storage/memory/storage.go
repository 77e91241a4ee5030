package memory

import (
	"context"
	"sync"

	"github.com/francismars/live/internal/model"
	"github.com/francismars/live/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	rooms map[model.RoomID]*model.Room
	stats map[model.Identity]*model.StatsRecord
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		rooms: make(map[model.RoomID]*model.Room),
		stats: make(map[model.Identity]*model.StatsRecord),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// cloneRoom copies a room so callers never share mutable state with the
// map. The redis backend gets this for free from the JSON round-trip;
// the in-memory backend has to do it by hand.
func cloneRoom(room *model.Room) *model.Room {
	clone := *room
	clone.Members = append([]model.Participant(nil), room.Members...)
	clone.Ready = make(map[model.Identity]bool, len(room.Ready))
	for k, v := range room.Ready {
		clone.Ready[k] = v
	}
	return &clone
}

func cloneStats(record *model.StatsRecord) *model.StatsRecord {
	clone := *record
	clone.History = append([]model.GameResult(nil), record.History...)
	return &clone
}

// Room operations

func (s *Storage) SaveRoom(ctx context.Context, room *model.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[room.ID] = cloneRoom(room)
	return nil
}

func (s *Storage) GetRoom(ctx context.Context, id model.RoomID) (*model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	room, ok := s.rooms[id]
	if !ok {
		return nil, model.ErrRoomNotFound
	}
	return cloneRoom(room), nil
}

func (s *Storage) DeleteRoom(ctx context.Context, id model.RoomID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.rooms, id)
	return nil
}

func (s *Storage) RoomExists(ctx context.Context, id model.RoomID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.rooms[id]
	return ok, nil
}

// Stats operations

func (s *Storage) SaveStats(ctx context.Context, record *model.StatsRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stats[record.Pubkey] = cloneStats(record)
	return nil
}

func (s *Storage) GetStats(ctx context.Context, pubkey model.Identity) (*model.StatsRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.stats[pubkey]
	if !ok {
		return nil, model.ErrStatsNotFound
	}
	return cloneStats(record), nil
}
