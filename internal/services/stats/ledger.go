package stats

import (
	"context"
	"errors"
	"log/slog"
	"math"

	"github.com/francismars/live/internal/dependencies/clock"
	"github.com/francismars/live/internal/model"
	"github.com/francismars/live/internal/storage"
)

const (
	// DefaultRating seeds a lazily created record
	DefaultRating = 1000
	// KFactor scales per-game rating movement
	KFactor = 32
)

// Ledger maintains per-identity aggregate records. Records are created
// lazily, mutated only here, and never deleted.
type Ledger struct {
	storage storage.Storage
	clock   clock.Clock
	logger  *slog.Logger
}

// NewLedger creates a new stats Ledger
func NewLedger(storage storage.Storage, clock clock.Clock, logger *slog.Logger) *Ledger {
	return &Ledger{
		storage: storage,
		clock:   clock,
		logger:  logger.With(slog.String("component", "stats")),
	}
}

// PlayerResult is one side of a finished game
type PlayerResult struct {
	Pubkey       model.Identity
	Name         string
	Stake        int
	InitialStake int
}

// GameSummary describes a finished game for the ledger. Winner is empty
// when the game ended without one (both players gone).
type GameSummary struct {
	RoomID          model.RoomID
	Winner          model.Identity
	Players         [2]PlayerResult
	DurationSeconds int
}

// RecordResult updates both players' records for one finished game.
// Rating deltas are computed from each other's pre-update ratings, so
// the order the two sides are written in cannot matter.
func (l *Ledger) RecordResult(ctx context.Context, summary GameSummary) error {
	a, err := l.loadOrCreate(ctx, summary.Players[0].Pubkey, summary.Players[0].Name)
	if err != nil {
		return err
	}
	b, err := l.loadOrCreate(ctx, summary.Players[1].Pubkey, summary.Players[1].Name)
	if err != nil {
		return err
	}

	ratingA, ratingB := a.Rating, b.Rating
	deltaA := ratingDelta(ratingA, ratingB, score(summary, summary.Players[0].Pubkey))
	deltaB := ratingDelta(ratingB, ratingA, score(summary, summary.Players[1].Pubkey))

	l.apply(a, summary, summary.Players[0], summary.Players[1], deltaA)
	l.apply(b, summary, summary.Players[1], summary.Players[0], deltaB)

	if err := l.storage.SaveStats(ctx, a); err != nil {
		return err
	}
	if err := l.storage.SaveStats(ctx, b); err != nil {
		return err
	}

	l.logger.Info("game recorded",
		slog.String("room_id", string(summary.RoomID)),
		slog.String("winner", string(summary.Winner)),
		slog.Int("duration_seconds", summary.DurationSeconds),
	)

	return nil
}

// loadOrCreate fetches a record or builds a fresh one with defaults
func (l *Ledger) loadOrCreate(ctx context.Context, pubkey model.Identity, name string) (*model.StatsRecord, error) {
	record, err := l.storage.GetStats(ctx, pubkey)
	if err != nil {
		if !errors.Is(err, model.ErrStatsNotFound) {
			return nil, err
		}
		record = &model.StatsRecord{
			Pubkey: pubkey,
			Rating: DefaultRating,
		}
	}
	if name != "" {
		record.Name = name
	}
	return record, nil
}

// apply folds one game into one side's record
func (l *Ledger) apply(record *model.StatsRecord, summary GameSummary, self, opponent PlayerResult, ratingDelta int) {
	outcome := outcomeFor(summary, self.Pubkey)

	record.Rating += ratingDelta
	record.GamesPlayed++
	record.TotalDurationSeconds += summary.DurationSeconds

	satsDelta := self.Stake - self.InitialStake
	switch {
	case satsDelta > 0:
		record.SatsWon += satsDelta
	case satsDelta < 0:
		record.SatsLost += -satsDelta
	}

	switch outcome {
	case model.OutcomeWin:
		record.Wins++
		record.CurrentStreak++
		if record.CurrentStreak > record.LongestStreak {
			record.LongestStreak = record.CurrentStreak
		}
	case model.OutcomeLoss:
		record.Losses++
		record.CurrentStreak = 0
	case model.OutcomeDraw:
		record.Draws++
		record.CurrentStreak = 0
	}

	entry := model.GameResult{
		RoomID:          summary.RoomID,
		Opponent:        opponent.Pubkey,
		OpponentName:    opponent.Name,
		Outcome:         outcome,
		SatsDelta:       satsDelta,
		RatingDelta:     ratingDelta,
		DurationSeconds: summary.DurationSeconds,
		PlayedAt:        l.clock.Now(),
	}
	record.History = append([]model.GameResult{entry}, record.History...)
	if len(record.History) > model.HistoryLimit {
		record.History = record.History[:model.HistoryLimit]
	}
	record.UpdatedAt = l.clock.Now()
}

// GetStats returns the projection for an identity, or a fresh zeroed
// record (not persisted) if none exists yet.
func (l *Ledger) GetStats(ctx context.Context, pubkey model.Identity) (*model.StatsProjection, error) {
	record, err := l.storage.GetStats(ctx, pubkey)
	if err != nil {
		if !errors.Is(err, model.ErrStatsNotFound) {
			return nil, err
		}
		record = &model.StatsRecord{
			Pubkey:  pubkey,
			Rating:  DefaultRating,
			History: []model.GameResult{},
		}
	}

	projection := &model.StatsProjection{StatsRecord: *record}
	if record.GamesPlayed > 0 {
		projection.WinRate = int(math.Round(100 * float64(record.Wins) / float64(record.GamesPlayed)))
		projection.AvgDurationSeconds = int(math.Round(float64(record.TotalDurationSeconds) / float64(record.GamesPlayed)))
	}
	return projection, nil
}

// score maps a game outcome to the actual score used by the rating
// formula: 1 win, 0 loss, 0.5 draw.
func score(summary GameSummary, pubkey model.Identity) float64 {
	switch {
	case summary.Winner == "":
		return 0.5
	case summary.Winner == pubkey:
		return 1
	}
	return 0
}

func outcomeFor(summary GameSummary, pubkey model.Identity) model.GameOutcome {
	switch {
	case summary.Winner == "":
		return model.OutcomeDraw
	case summary.Winner == pubkey:
		return model.OutcomeWin
	}
	return model.OutcomeLoss
}

// ratingDelta is the logistic expected-score rating update
func ratingDelta(rating, opponentRating int, actual float64) int {
	expected := 1 / (1 + math.Pow(10, float64(opponentRating-rating)/400))
	return int(math.Round(KFactor * (actual - expected)))
}
