package model

import "time"

// RoomID is a human-typeable code identifying a room
type RoomID string

// Identity is the opaque public key identifying a participant across
// rooms, chat and stats. Always supplied externally, never generated here.
type Identity string

// ConnID identifies a single gateway connection
type ConnID string

// GameMode selects the rule set players are matched on
type GameMode string

const (
	GameModeClassic GameMode = "classic"
)

// ParticipantRole distinguishes players from spectators
type ParticipantRole string

const (
	RolePlayer    ParticipantRole = "player"
	RoleSpectator ParticipantRole = "spectator"
)

// Participant is a connected member of a room. Conn is persisted so a
// storage round-trip keeps the member addressable on disconnect; it is
// never sent to clients (room snapshots use RoomMemberPayload).
type Participant struct {
	Pubkey   Identity        `json:"pubkey"`
	Name     string          `json:"name"`
	Conn     ConnID          `json:"connId"`
	Role     ParticipantRole `json:"role"`
	JoinedAt time.Time       `json:"joinedAt"`
}

// RoomSettings holds the per-room options fixed at creation
type RoomSettings struct {
	GameType        GameMode `json:"gameType"`
	AllowSpectators bool     `json:"allowSpectators"`
}

// Room groups up to two players and any number of spectators around one
// shared game. A participant is never simultaneously a player and a
// spectator; the two sets are disjoint by construction.
type Room struct {
	ID        RoomID            `json:"roomId"`
	Members   []Participant     `json:"members"`
	Stake     int               `json:"stake"` // sats per seat; 0 until a joiner names one
	Ready     map[Identity]bool `json:"ready"`
	Settings  RoomSettings      `json:"settings"`
	Matchmade bool              `json:"matchmade"` // created by the matchmaking queue
	CreatedAt time.Time         `json:"createdAt"`
	UpdatedAt time.Time         `json:"updatedAt"`
}

// MaxPlayers is the seat limit for a room
const MaxPlayers = 2

// GetMember returns the member with the given identity, or nil
func (r *Room) GetMember(pubkey Identity) *Participant {
	for i := range r.Members {
		if r.Members[i].Pubkey == pubkey {
			return &r.Members[i]
		}
	}
	return nil
}

// Players returns all members seated as players, in registration order
func (r *Room) Players() []Participant {
	var players []Participant
	for _, m := range r.Members {
		if m.Role == RolePlayer {
			players = append(players, m)
		}
	}
	return players
}

// Spectators returns all members with the spectator role
func (r *Room) Spectators() []Participant {
	var spectators []Participant
	for _, m := range r.Members {
		if m.Role == RoleSpectator {
			spectators = append(spectators, m)
		}
	}
	return spectators
}

// AllPlayersReady reports whether both seats are filled and marked ready
func (r *Room) AllPlayersReady() bool {
	players := r.Players()
	if len(players) != MaxPlayers {
		return false
	}
	for _, p := range players {
		if !r.Ready[p.Pubkey] {
			return false
		}
	}
	return true
}
