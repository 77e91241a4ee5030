package storage

import (
	"context"

	"github.com/francismars/live/internal/model"
)

// Storage defines the interface for data persistence. Live game state is
// never stored here; it belongs to the scheduler for exactly as long as
// the tick loop runs.
type Storage interface {
	// Room operations
	SaveRoom(ctx context.Context, room *model.Room) error
	GetRoom(ctx context.Context, id model.RoomID) (*model.Room, error)
	DeleteRoom(ctx context.Context, id model.RoomID) error
	RoomExists(ctx context.Context, id model.RoomID) (bool, error)

	// Stats operations
	SaveStats(ctx context.Context, record *model.StatsRecord) error
	GetStats(ctx context.Context, pubkey model.Identity) (*model.StatsRecord, error)
}
