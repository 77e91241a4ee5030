package redis

import (
	"fmt"

	"github.com/francismars/live/internal/model"
)

// Key prefix for all game-related data
const keyPrefix = "live"

// roomKey returns the Redis key for a Room
func roomKey(id model.RoomID) string {
	return fmt.Sprintf("%s:room:%s", keyPrefix, id)
}

// statsKey returns the Redis key for a StatsRecord
func statsKey(pubkey model.Identity) string {
	return fmt.Sprintf("%s:stats:%s", keyPrefix, pubkey)
}
