package model

import "time"

// GameStatus represents the current phase of a game
type GameStatus string

const (
	GameStatusWaiting GameStatus = "waiting" // Players seated, not all ready
	GameStatusRunning GameStatus = "running" // Tick loop active
	GameStatusEnded   GameStatus = "ended"   // Terminal: win, forfeit or abandonment
)

// Direction is a cardinal movement direction
type Direction string

const (
	DirectionUp    Direction = "up"
	DirectionDown  Direction = "down"
	DirectionLeft  Direction = "left"
	DirectionRight Direction = "right"
)

// Valid reports whether d is one of the four cardinal directions
func (d Direction) Valid() bool {
	switch d {
	case DirectionUp, DirectionDown, DirectionLeft, DirectionRight:
		return true
	}
	return false
}

// Opposite reports whether d and other are exact reverses of each other
func (d Direction) Opposite(other Direction) bool {
	switch {
	case d == DirectionUp && other == DirectionDown,
		d == DirectionDown && other == DirectionUp,
		d == DirectionLeft && other == DirectionRight,
		d == DirectionRight && other == DirectionLeft:
		return true
	}
	return false
}

// Point is a cell on the board
type Point struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Shifted returns the point one cell along the given direction
func (p Point) Shifted(d Direction) Point {
	switch d {
	case DirectionUp:
		return Point{X: p.X, Y: p.Y - 1}
	case DirectionDown:
		return Point{X: p.X, Y: p.Y + 1}
	case DirectionLeft:
		return Point{X: p.X - 1, Y: p.Y}
	case DirectionRight:
		return Point{X: p.X + 1, Y: p.Y}
	}
	return p
}

// Behind returns the point one cell against the given direction
func (p Point) Behind(d Direction) Point {
	switch d {
	case DirectionUp:
		return Point{X: p.X, Y: p.Y + 1}
	case DirectionDown:
		return Point{X: p.X, Y: p.Y - 1}
	case DirectionLeft:
		return Point{X: p.X + 1, Y: p.Y}
	case DirectionRight:
		return Point{X: p.X - 1, Y: p.Y}
	}
	return p
}

// OccupiesCell reports whether any segment of body sits on the given point.
// The same predicate is used for self-collision, opponent-collision and
// food-capture checks so the three can never diverge.
func OccupiesCell(body []Point, p Point) bool {
	for _, seg := range body {
		if seg == p {
			return true
		}
	}
	return false
}

// BoardSize is the playable grid; the far edges are exclusive,
// so x == Width is out of bounds.
type BoardSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Contains reports whether p is inside the board
func (b BoardSize) Contains(p Point) bool {
	return p.X >= 0 && p.X < b.Width && p.Y >= 0 && p.Y < b.Height
}

// GamePlayer is one snake inside a running or waiting game
type GamePlayer struct {
	Pubkey           Identity  `json:"pubkey"`
	Name             string    `json:"name"`
	Stake            int       `json:"sats"`
	InitialStake     int       `json:"initialSats"`
	Direction        Direction `json:"direction"`
	Body             []Point   `json:"snake"` // head first, non-empty while alive
	Alive            bool      `json:"alive"`
	Spawn            Point     `json:"spawn"`
	InitialDirection Direction `json:"initialDirection"`
}

// Head returns the player's head segment
func (p *GamePlayer) Head() Point {
	return p.Body[0]
}

// Game is the live simulation state hosted inside a room.
// Player order is registration order and is the deterministic
// iteration order for movement and the win check.
type Game struct {
	RoomID    RoomID       `json:"roomId"`
	Players   []GamePlayer `json:"players"`
	Food      Point        `json:"food"`
	BoardSize BoardSize    `json:"boardSize"`
	Status    GameStatus   `json:"status"`
	Winner    Identity     `json:"winner,omitempty"` // empty until ended; may stay empty on abandonment
	StartedAt time.Time    `json:"startedAt"`
}

// PlayerByPubkey returns the player with the given identity, or nil
func (g *Game) PlayerByPubkey(pubkey Identity) *GamePlayer {
	for i := range g.Players {
		if g.Players[i].Pubkey == pubkey {
			return &g.Players[i]
		}
	}
	return nil
}

// Opponent returns the other player, or nil for a single-seat game
func (g *Game) Opponent(pubkey Identity) *GamePlayer {
	for i := range g.Players {
		if g.Players[i].Pubkey != pubkey {
			return &g.Players[i]
		}
	}
	return nil
}
