package model

import "time"

// Gateway event names. These mirror the original client contract and
// must not be renamed without breaking deployed clients.
const (
	// Inbound (client → server)
	EventJoinRoom           = "joinRoom"
	EventLeaveRoom          = "leaveRoom"
	EventRegisterToPlay     = "registerToPlay"
	EventJoinGame           = "joinGame"
	EventLeaveGame          = "leaveGame"
	EventPlayerReady        = "playerReady"
	EventStartGame          = "startGame" // legacy alias for playerReady
	EventPlayerInput        = "playerInput"
	EventFindMatch          = "findMatch"
	EventCancelMatchmaking  = "cancelMatchmaking"
	EventAcceptMatch        = "acceptMatch"
	EventRequestRematch     = "requestRematch"
	EventRespondToRematch   = "respondToRematch"
	EventRequestPlayerStats = "requestPlayerStats"
	EventGetActiveGames     = "getActiveGames"
	EventLobbyChat          = "lobbyChat"

	// Outbound (server → client)
	EventRoomState          = "roomState"
	EventGameState          = "gameState"
	EventGameStarted        = "gameStarted"
	EventStartCountdown     = "startCountdown"
	EventCountdownTick      = "countdownTick"
	EventMatchmakingStatus  = "matchmakingStatus"
	EventMatchFound         = "matchFound"
	EventRematchRequested   = "rematchRequested"
	EventRematchAccepted    = "rematchAccepted"
	EventRematchDeclined    = "rematchDeclined"
	EventPlayerStats        = "playerStats"
	EventPlayerStatsError   = "playerStatsError"
	EventRegistrationFailed = "registrationFailed"
	EventActiveGames        = "activeGames"
)

// UserRef identifies a user inside event payloads
type UserRef struct {
	Pubkey Identity `json:"pubkey"`
	Name   string   `json:"name"`
}

// Inbound payloads. One struct per event name; the gateway decodes the
// envelope into exactly one of these so the services only ever see
// well-typed structures.

type JoinRoomPayload struct {
	RoomID RoomID  `json:"roomId"`
	User   UserRef `json:"user"`
	BuyIn  *int    `json:"buyIn,omitempty"`
}

type LeaveRoomPayload struct {
	RoomID RoomID   `json:"roomId"`
	UserID Identity `json:"userId"`
}

type RegisterToPlayPayload struct {
	RoomID RoomID   `json:"roomId"`
	UserID Identity `json:"userId"`
}

type JoinGamePayload struct {
	RoomID RoomID `json:"roomId"`
}

type LeaveGamePayload struct {
	RoomID RoomID `json:"roomId"`
}

type PlayerReadyPayload struct {
	RoomID RoomID   `json:"roomId"`
	UserID Identity `json:"userId"`
}

type PlayerInputPayload struct {
	RoomID    RoomID    `json:"roomId"`
	Pubkey    Identity  `json:"pubkey"`
	Direction Direction `json:"direction"`
}

type FindMatchPayload struct {
	UserID          Identity `json:"userId"`
	Name            string   `json:"name"`
	GameType        GameMode `json:"gameType"`
	BuyIn           int      `json:"buyIn"`
	AllowSpectators bool     `json:"allowSpectators"`
}

type CancelMatchmakingPayload struct {
	UserID Identity `json:"userId"`
}

type AcceptMatchPayload struct {
	RoomID RoomID   `json:"roomId"`
	UserID Identity `json:"userId"`
}

type RequestRematchPayload struct {
	RoomID      RoomID   `json:"roomId"`
	RequesterID Identity `json:"requesterId"`
}

type RespondToRematchPayload struct {
	RoomID RoomID   `json:"roomId"`
	UserID Identity `json:"userId"`
	Accept bool     `json:"accept"`
}

type RequestPlayerStatsPayload struct {
	Pubkey Identity `json:"pubkey"`
	Name   string   `json:"name"`
}

type LobbyChatPayload struct {
	RoomID RoomID   `json:"roomId"`
	Sender Identity `json:"sender"`
	Text   string   `json:"text"`
}

// Outbound payloads

// RoomMemberPayload is the client-safe view of a Participant. The
// connection handle stays server-side.
type RoomMemberPayload struct {
	Pubkey   Identity        `json:"pubkey"`
	Name     string          `json:"name"`
	Role     ParticipantRole `json:"role"`
	JoinedAt time.Time       `json:"joinedAt"`
}

// RoomStatePayload is the lobby-level snapshot emitted on every
// registry mutation.
type RoomStatePayload struct {
	RoomID       RoomID              `json:"roomId"`
	Players      []RoomMemberPayload `json:"players"`
	Spectators   []RoomMemberPayload `json:"spectators"`
	Stake        int                 `json:"stake"`
	ReadyPlayers []Identity          `json:"readyPlayers"`
}

// PlayerProjection is the client-safe per-snake view
type PlayerProjection struct {
	GamePlayer
	CapturePercent int `json:"capturePercent"`
}

// GameStatePayload is the per-broadcast-tick game snapshot
type GameStatePayload struct {
	RoomID    RoomID             `json:"roomId"`
	Players   []PlayerProjection `json:"players"`
	Food      Point              `json:"food"`
	BoardSize BoardSize          `json:"boardSize"`
	Status    GameStatus         `json:"status"`
	Winner    Identity           `json:"winner,omitempty"`
}

type CountdownTickPayload struct {
	N int `json:"n"`
}

type MatchmakingStatusPayload struct {
	Status  string `json:"status"` // waiting | error | cancelled
	Message string `json:"message,omitempty"`
}

type MatchFoundPayload struct {
	RoomID RoomID `json:"roomId"`
}

type RematchRequestedPayload struct {
	RequesterID Identity `json:"requesterId"`
}

type RegistrationFailedPayload struct {
	RoomID  RoomID `json:"roomId"`
	Message string `json:"message"`
}

type PlayerStatsErrorPayload struct {
	Message string `json:"message"`
}

// ActiveGamePayload is one entry in the getActiveGames listing
type ActiveGamePayload struct {
	RoomID      RoomID             `json:"roomId"`
	Stake       int                `json:"stake"`
	Players     []ActiveGamePlayer `json:"players"`
	Preferences RoomSettings       `json:"preferences"`
}

// ActiveGamePlayer is one seat in an active-games entry
type ActiveGamePlayer struct {
	Pubkey Identity `json:"pubkey"`
	Name   string   `json:"name"`
	Stake  int      `json:"sats"`
}
