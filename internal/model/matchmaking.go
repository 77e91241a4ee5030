package model

import "time"

// MatchRequest is one outstanding matchmaking entry. At most one
// request per identity may be queued at a time.
type MatchRequest struct {
	Conn            ConnID
	Pubkey          Identity
	Name            string
	GameType        GameMode
	BuyIn           int
	AllowSpectators bool
	QueuedAt        time.Time
}

// Compatible reports whether two requests can be paired: identical
// preferences, different identities.
func (r MatchRequest) Compatible(other MatchRequest) bool {
	return r.Pubkey != other.Pubkey &&
		r.GameType == other.GameType &&
		r.BuyIn == other.BuyIn &&
		r.AllowSpectators == other.AllowSpectators
}
