package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
}

// NewOutput creates a new Output formatter
func NewOutput(format string) *Output {
	return &Output{format: format}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		fmt.Fprintln(os.Stderr, string(data))
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case Stats:
		o.printStats(v)
	case Games:
		o.printGames(v)
	case RoomState:
		o.printRoomState(v)
	case HealthResult:
		o.printHealthResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// Stats response type (matches API)
type Stats struct {
	Pubkey             string       `json:"pubkey"`
	Name               string       `json:"name"`
	Rating             int          `json:"rating"`
	GamesPlayed        int          `json:"gamesPlayed"`
	Wins               int          `json:"wins"`
	Losses             int          `json:"losses"`
	Draws              int          `json:"draws"`
	SatsWon            int          `json:"satsWon"`
	SatsLost           int          `json:"satsLost"`
	CurrentStreak      int          `json:"currentStreak"`
	LongestStreak      int          `json:"longestStreak"`
	WinRate            int          `json:"winRate"`
	AvgDurationSeconds int          `json:"avgDurationSeconds"`
	History            []GameResult `json:"history"`
}

// GameResult is one history entry in a stats response
type GameResult struct {
	RoomID          string `json:"roomId"`
	Opponent        string `json:"opponent"`
	OpponentName    string `json:"opponentName"`
	Outcome         string `json:"outcome"`
	SatsDelta       int    `json:"satsDelta"`
	RatingDelta     int    `json:"ratingDelta"`
	DurationSeconds int    `json:"durationSeconds"`
}

// Games response type
type Games struct {
	Games []ActiveGame `json:"games"`
}

// ActiveGame is one entry in the active games listing
type ActiveGame struct {
	RoomID  string `json:"roomId"`
	Stake   int    `json:"stake"`
	Players []struct {
		Pubkey string `json:"pubkey"`
		Name   string `json:"name"`
		Stake  int    `json:"sats"`
	} `json:"players"`
}

// RoomState response type
type RoomState struct {
	RoomID       string       `json:"roomId"`
	Stake        int          `json:"stake"`
	Players      []RoomMember `json:"players"`
	Spectators   []RoomMember `json:"spectators"`
	ReadyPlayers []string     `json:"readyPlayers"`
}

// RoomMember response type
type RoomMember struct {
	Pubkey string `json:"pubkey"`
	Name   string `json:"name"`
	Role   string `json:"role"`
}

// HealthResult response type
type HealthResult struct {
	Status string `json:"status"`
}

func (o *Output) printStats(s Stats) {
	name := s.Name
	if name == "" {
		name = s.Pubkey
	}
	fmt.Printf("Player: %s\n", name)
	fmt.Printf("Rating: %d\n", s.Rating)
	fmt.Printf("Record: %dW-%dL-%dD (%d%% win rate)\n", s.Wins, s.Losses, s.Draws, s.WinRate)
	fmt.Printf("Sats: +%d / -%d\n", s.SatsWon, s.SatsLost)
	fmt.Printf("Streak: %d (best %d)\n", s.CurrentStreak, s.LongestStreak)
	if s.GamesPlayed > 0 {
		fmt.Printf("Avg Game: %ds\n", s.AvgDurationSeconds)
	}
	if len(s.History) > 0 {
		fmt.Printf("Recent Games (%d):\n", len(s.History))
		for _, g := range s.History {
			opp := g.OpponentName
			if opp == "" {
				opp = g.Opponent
			}
			fmt.Printf("  - %s vs %s: %+d sats, %+d rating (%ds)\n",
				g.Outcome, opp, g.SatsDelta, g.RatingDelta, g.DurationSeconds)
		}
	}
}

func (o *Output) printGames(g Games) {
	if len(g.Games) == 0 {
		fmt.Println("No active games")
		return
	}
	fmt.Printf("Active Games (%d):\n", len(g.Games))
	for _, game := range g.Games {
		names := make([]string, 0, len(game.Players))
		for _, p := range game.Players {
			if p.Name != "" {
				names = append(names, p.Name)
			} else {
				names = append(names, p.Pubkey)
			}
		}
		fmt.Printf("  - %s: %s (stake %d)\n", game.RoomID, strings.Join(names, " vs "), game.Stake)
	}
}

func (o *Output) printRoomState(r RoomState) {
	fmt.Printf("Room: %s\n", r.RoomID)
	fmt.Printf("Stake: %d\n", r.Stake)
	fmt.Printf("Players (%d):\n", len(r.Players))
	for _, p := range r.Players {
		readyStr := ""
		for _, rp := range r.ReadyPlayers {
			if rp == p.Pubkey {
				readyStr = " [ready]"
			}
		}
		fmt.Printf("  - %s (%s)%s\n", p.Name, p.Pubkey, readyStr)
	}
	if len(r.Spectators) > 0 {
		fmt.Printf("Spectators (%d):\n", len(r.Spectators))
		for _, s := range r.Spectators {
			fmt.Printf("  - %s (%s)\n", s.Name, s.Pubkey)
		}
	}
}

func (o *Output) printHealthResult(h HealthResult) {
	fmt.Printf("Server status: %s\n", h.Status)
}
