package model

import "errors"

// Common errors used across the application
var (
	// Room errors
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomFull         = errors.New("room already has two players")
	ErrNotInRoom        = errors.New("participant is not in room")
	ErrNotASpectator    = errors.New("participant is not a spectator")
	ErrSpectatorsClosed = errors.New("room does not allow spectators")

	// Game errors
	ErrGameNotFound   = errors.New("no game for room")
	ErrGameNotRunning = errors.New("game is not running")
	ErrGameRunning    = errors.New("game already running")
	ErrNotAPlayer     = errors.New("identity is not a seated player")
	ErrSeatsNotFilled = errors.New("room does not have two seated players")
	ErrReversal       = errors.New("cannot reverse direction")

	// Rematch errors
	ErrNoRematchPending   = errors.New("no rematch request pending")
	ErrNotRematchOpponent = errors.New("rematch response must come from the opponent")

	// Matchmaking errors
	ErrAlreadyQueued   = errors.New("identity already has a queued request")
	ErrRequestNotFound = errors.New("no queued request for identity")
	ErrMatchNotFound   = errors.New("no pending match for room")

	// Stats errors
	ErrStatsNotFound = errors.New("no stats record for identity")
)
