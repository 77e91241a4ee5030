package sim

import (
	"math"

	"github.com/francismars/live/internal/dependencies/random"
	"github.com/francismars/live/internal/model"
)

// Board geometry and starting conditions. The two spawn points are fixed,
// symmetric and non-overlapping; snakes start two segments long facing
// each other across the centered food.
const (
	BoardWidth   = 51
	BoardHeight  = 25
	DefaultStake = 1000
)

// Service advances game state one tick at a time. Advance is a pure,
// single-threaded transformation; the only randomness is food relocation,
// which goes through the injected Random so tests can pin it.
type Service struct {
	random random.Random
}

// New creates a new simulator service
func New(rnd random.Random) *Service {
	return &Service{random: rnd}
}

// Seat describes one player entering a new game
type Seat struct {
	Pubkey model.Identity
	Name   string
}

// NewGame builds the initial game state for a room. The first seat spawns
// on the left moving right, the second on the right moving left. Stake 0
// falls back to DefaultStake.
func NewGame(roomID model.RoomID, seats [2]Seat, stake int) *model.Game {
	if stake <= 0 {
		stake = DefaultStake
	}

	spawns := [2]model.Point{
		{X: 6, Y: 12},
		{X: 44, Y: 12},
	}
	directions := [2]model.Direction{model.DirectionRight, model.DirectionLeft}

	players := make([]model.GamePlayer, 2)
	for i, seat := range seats {
		players[i] = model.GamePlayer{
			Pubkey:           seat.Pubkey,
			Name:             seat.Name,
			Stake:            stake,
			InitialStake:     stake,
			Direction:        directions[i],
			InitialDirection: directions[i],
			Body:             []model.Point{spawns[i], spawns[i].Behind(directions[i])},
			Alive:            true,
			Spawn:            spawns[i],
		}
	}

	return &model.Game{
		RoomID:    roomID,
		Players:   players,
		Food:      model.Point{X: BoardWidth / 2, Y: BoardHeight / 2},
		BoardSize: model.BoardSize{Width: BoardWidth, Height: BoardHeight},
		Status:    model.GameStatusWaiting,
	}
}

// Advance applies one simulation tick to a running game: per player in
// registration order it resolves respawn, movement, collisions and food
// capture, then evaluates the win threshold. A colliding player respawns
// on the following tick rather than ending the game.
func (s *Service) Advance(g *model.Game) {
	if g.Status != model.GameStatusRunning {
		return
	}

	for i := range g.Players {
		player := &g.Players[i]

		if !player.Alive {
			s.respawn(player)
			continue
		}

		head := player.Head().Shifted(player.Direction)

		// Wall collision: far edges exclusive
		if !g.BoardSize.Contains(head) {
			player.Alive = false
			continue
		}

		// Self collision, checked against the whole current body
		// including the tail cell that would otherwise move away
		if model.OccupiesCell(player.Body, head) {
			player.Alive = false
			continue
		}

		// Opponent collision
		opponent := g.Opponent(player.Pubkey)
		if opponent != nil && model.OccupiesCell(opponent.Body, head) {
			player.Alive = false
			continue
		}

		player.Body = append([]model.Point{head}, player.Body...)

		if head == g.Food {
			s.capture(g, player, opponent)
		} else {
			player.Body = player.Body[:len(player.Body)-1]
		}
	}

	// Win check every tick; with both players over the threshold the
	// earlier-registered one wins.
	for i := range g.Players {
		player := &g.Players[i]
		if player.Stake >= player.InitialStake*2 {
			g.Status = model.GameStatusEnded
			g.Winner = player.Pubkey
			break
		}
	}
}

// respawn resets a dead snake to its spawn point at length two. The
// player sits out the movement phase for this tick.
func (s *Service) respawn(player *model.GamePlayer) {
	player.Body = []model.Point{
		player.Spawn,
		player.Spawn.Behind(player.InitialDirection),
	}
	player.Direction = player.InitialDirection
	player.Alive = true
}

// capture transfers a tier fraction of the combined pot from the opponent
// to the capturing player and relocates the food. The new food cell is
// uniformly random and deliberately not checked against snake bodies.
func (s *Service) capture(g *model.Game, player, opponent *model.GamePlayer) {
	bodyLength := len(player.Body) - 1

	total := player.Stake
	if opponent != nil {
		total += opponent.Stake
	}

	delta := int(math.Floor(float64(total) * CaptureFraction(bodyLength)))
	player.Stake += delta
	if opponent != nil {
		opponent.Stake = max(0, opponent.Stake-delta)
	}

	g.Food = model.Point{
		X: s.random.Intn(g.BoardSize.Width),
		Y: s.random.Intn(g.BoardSize.Height),
	}
}

// CaptureFraction maps a trailing body length (length excluding head) to
// the fraction of the combined pot transferred on a food capture.
func CaptureFraction(bodyLength int) float64 {
	switch {
	case bodyLength >= 11:
		return 0.32
	case bodyLength >= 7:
		return 0.16
	case bodyLength >= 4:
		return 0.08
	case bodyLength >= 2:
		return 0.04
	case bodyLength == 1:
		return 0.02
	}
	return 0
}

// CapturePercent is CaptureFraction expressed as a whole percentage for
// the client projection. It must stay in lockstep with CaptureFraction.
func CapturePercent(bodyLength int) int {
	return int(CaptureFraction(bodyLength) * 100)
}

// HandleInput applies a direction change for a player, rejecting exact
// reversals so a snake can never fold back onto its own neck. Input is
// only accepted while the game is running; frames arriving during the
// countdown or after the end must not steer anything.
func HandleInput(g *model.Game, pubkey model.Identity, direction model.Direction) error {
	if g.Status != model.GameStatusRunning {
		return model.ErrGameNotRunning
	}
	if !direction.Valid() {
		return model.ErrReversal
	}
	player := g.PlayerByPubkey(pubkey)
	if player == nil {
		return model.ErrNotAPlayer
	}
	if player.Direction.Opposite(direction) {
		return model.ErrReversal
	}
	player.Direction = direction
	return nil
}

// Project derives the client-safe view of a game, attaching each player's
// current capture percentage.
func Project(g *model.Game) model.GameStatePayload {
	players := make([]model.PlayerProjection, len(g.Players))
	for i, p := range g.Players {
		players[i] = model.PlayerProjection{
			GamePlayer:     p,
			CapturePercent: CapturePercent(len(p.Body) - 1),
		}
	}
	return model.GameStatePayload{
		RoomID:    g.RoomID,
		Players:   players,
		Food:      g.Food,
		BoardSize: g.BoardSize,
		Status:    g.Status,
		Winner:    g.Winner,
	}
}
