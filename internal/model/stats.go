package model

import "time"

// GameOutcome is a finished game from one player's perspective
type GameOutcome string

const (
	OutcomeWin  GameOutcome = "win"
	OutcomeLoss GameOutcome = "loss"
	OutcomeDraw GameOutcome = "draw"
)

// HistoryLimit caps the per-player game history, most recent first
const HistoryLimit = 50

// GameResult is one bounded-history entry on a StatsRecord
type GameResult struct {
	RoomID          RoomID      `json:"roomId"`
	Opponent        Identity    `json:"opponent"`
	OpponentName    string      `json:"opponentName"`
	Outcome         GameOutcome `json:"outcome"`
	SatsDelta       int         `json:"satsDelta"`
	RatingDelta     int         `json:"ratingDelta"`
	DurationSeconds int         `json:"durationSeconds"`
	PlayedAt        time.Time   `json:"playedAt"`
}

// StatsRecord is the per-identity aggregate ledger entry. Created lazily
// on first game completion or first query; mutated only by the stats
// ledger; never deleted.
type StatsRecord struct {
	Pubkey               Identity     `json:"pubkey"`
	Name                 string       `json:"name"`
	Rating               int          `json:"rating"`
	GamesPlayed          int          `json:"gamesPlayed"`
	Wins                 int          `json:"wins"`
	Losses               int          `json:"losses"`
	Draws                int          `json:"draws"`
	SatsWon              int          `json:"satsWon"`
	SatsLost             int          `json:"satsLost"`
	TotalDurationSeconds int          `json:"totalDurationSeconds"`
	CurrentStreak        int          `json:"currentStreak"`
	LongestStreak        int          `json:"longestStreak"`
	History              []GameResult `json:"history"` // most recent first, capped at HistoryLimit
	UpdatedAt            time.Time    `json:"updatedAt"`
}

// StatsProjection is the client-safe stats view with derived fields
type StatsProjection struct {
	StatsRecord
	WinRate            int `json:"winRate"`            // round(100*wins/gamesPlayed)
	AvgDurationSeconds int `json:"avgDurationSeconds"` // round(totalDuration/gamesPlayed)
}
