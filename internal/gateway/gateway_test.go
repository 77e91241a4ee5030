package gateway

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/francismars/live/internal/dependencies/clock"
	"github.com/francismars/live/internal/dependencies/random"
	"github.com/francismars/live/internal/model"
	"github.com/francismars/live/internal/services/match"
	"github.com/francismars/live/internal/services/room"
	"github.com/francismars/live/internal/services/scheduler"
	"github.com/francismars/live/internal/services/sim"
	"github.com/francismars/live/internal/services/stats"
	"github.com/francismars/live/internal/storage/memory"
	"github.com/francismars/live/internal/testutil"
)

// fakeConn is an in-memory Conn. Frames written by the server are captured
// for assertions; Close unblocks the read loop.
type fakeConn struct {
	mu      sync.Mutex
	frames  []Envelope
	inbound chan []byte
	closed  chan struct{}
	once    sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		inbound: make(chan []byte, 16),
		closed:  make(chan struct{}),
	}
}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	select {
	case data := <-c.inbound:
		return 1, data, nil
	case <-c.closed:
		return 0, nil, io.EOF
	}
}

func (c *fakeConn) WriteMessage(messageType int, data []byte) error {
	select {
	case <-c.closed:
		return io.ErrClosedPipe
	default:
	}
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	c.mu.Lock()
	c.frames = append(c.frames, env)
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) emit(t *testing.T, event string, payload any) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal %s: %v", event, err)
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		t.Fatalf("marshal envelope: %v", err)
	}
	c.inbound <- frame
}

func (c *fakeConn) received(event string) []Envelope {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Envelope
	for _, f := range c.frames {
		if f.Event == event {
			out = append(out, f)
		}
	}
	return out
}

func (c *fakeConn) countEvent(event string) int {
	return len(c.received(event))
}

type GatewaySuite struct {
	suite.Suite
	ctx     context.Context
	storage *memory.Storage
	ledger  *stats.Ledger
	gateway *Gateway

	conns []*fakeConn
}

func TestGatewaySuite(t *testing.T) {
	suite.Run(t, new(GatewaySuite))
}

func (s *GatewaySuite) SetupTest() {
	s.ctx = context.Background()
	s.storage = memory.New()
	s.conns = nil
	logger := testutil.NopLogger()
	clk := clock.New()
	rnd := random.New()

	registry := room.NewRegistry(s.storage, clk, rnd, logger)
	queue := match.NewQueue(registry, clk, logger)
	s.ledger = stats.NewLedger(s.storage, clk, logger)
	hub := NewHub(logger)

	cfg := scheduler.Config{
		SimTick:           2 * time.Millisecond,
		BroadcastTick:     time.Millisecond,
		CountdownFrom:     -1,
		CountdownInterval: time.Millisecond,
		RematchDelay:      2 * time.Millisecond,
	}
	sched := scheduler.New(cfg, registry, sim.New(rnd), s.ledger, clk, hub, logger)

	s.gateway = New(hub, registry, queue, sched, s.ledger, logger)
}

func (s *GatewaySuite) TearDownTest() {
	for _, c := range s.conns {
		_ = c.Close()
	}
}

// connect starts a served fake connection
func (s *GatewaySuite) connect() *fakeConn {
	conn := newFakeConn()
	s.conns = append(s.conns, conn)
	go s.gateway.Serve(s.ctx, conn)
	return conn
}

func (s *GatewaySuite) joinRoom(conn *fakeConn, roomID model.RoomID, pubkey model.Identity, name string, buyIn *int) {
	conn.emit(s.T(), model.EventJoinRoom, model.JoinRoomPayload{
		RoomID: roomID,
		User:   model.UserRef{Pubkey: pubkey, Name: name},
		BuyIn:  buyIn,
	})
	s.Require().Eventually(func() bool {
		return conn.countEvent(model.EventRoomState) >= 1
	}, time.Second, time.Millisecond)
}

func (s *GatewaySuite) register(conn *fakeConn, roomID model.RoomID, pubkey model.Identity) {
	before := conn.countEvent(model.EventRoomState)
	conn.emit(s.T(), model.EventRegisterToPlay, model.RegisterToPlayPayload{RoomID: roomID, UserID: pubkey})
	s.Require().Eventually(func() bool {
		return conn.countEvent(model.EventRoomState) > before
	}, time.Second, time.Millisecond)
}

func (s *GatewaySuite) lastRoomState(conn *fakeConn) model.RoomStatePayload {
	frames := conn.received(model.EventRoomState)
	s.Require().NotEmpty(frames)
	var payload model.RoomStatePayload
	s.Require().NoError(json.Unmarshal(frames[len(frames)-1].Data, &payload))
	return payload
}

func intp(v int) *int { return &v }

func (s *GatewaySuite) TestJoinRoomAsSpectator() {
	conn := s.connect()
	s.joinRoom(conn, "ROOM01", "npub1alice", "Alice", intp(500))

	state := s.lastRoomState(conn)
	s.Equal(model.RoomID("ROOM01"), state.RoomID)
	s.Equal(500, state.Stake)
	s.Empty(state.Players)
	s.Require().Len(state.Spectators, 1)
	s.Equal(model.Identity("npub1alice"), state.Spectators[0].Pubkey)
}

func (s *GatewaySuite) TestRegisterToPlayClaimsSeat() {
	conn := s.connect()
	s.joinRoom(conn, "ROOM01", "npub1alice", "Alice", nil)
	s.register(conn, "ROOM01", "npub1alice")

	state := s.lastRoomState(conn)
	s.Require().Len(state.Players, 1)
	s.Equal(model.Identity("npub1alice"), state.Players[0].Pubkey)
	s.Empty(state.Spectators)
}

func (s *GatewaySuite) TestThirdSeatRejected() {
	a, b, z := s.connect(), s.connect(), s.connect()
	s.joinRoom(a, "ROOM01", "npub1alice", "Alice", nil)
	s.joinRoom(b, "ROOM01", "npub1bob", "Bob", nil)
	s.joinRoom(z, "ROOM01", "npub1zoe", "Zoe", nil)
	s.register(a, "ROOM01", "npub1alice")
	s.register(b, "ROOM01", "npub1bob")

	z.emit(s.T(), model.EventRegisterToPlay, model.RegisterToPlayPayload{RoomID: "ROOM01", UserID: "npub1zoe"})

	s.Require().Eventually(func() bool {
		return z.countEvent(model.EventRegistrationFailed) == 1
	}, time.Second, time.Millisecond)
}

// startDuel seats alice and bob in roomID and readies both, returning once
// the game has started on both connections.
func (s *GatewaySuite) startDuel(roomID model.RoomID) (*fakeConn, *fakeConn) {
	a, b := s.connect(), s.connect()
	s.joinRoom(a, roomID, "npub1alice", "Alice", intp(1000))
	s.joinRoom(b, roomID, "npub1bob", "Bob", nil)
	s.register(a, roomID, "npub1alice")
	s.register(b, roomID, "npub1bob")

	a.emit(s.T(), model.EventPlayerReady, model.PlayerReadyPayload{RoomID: roomID, UserID: "npub1alice"})
	b.emit(s.T(), model.EventPlayerReady, model.PlayerReadyPayload{RoomID: roomID, UserID: "npub1bob"})

	s.Require().Eventually(func() bool {
		return a.countEvent(model.EventGameStarted) >= 1 && b.countEvent(model.EventGameStarted) >= 1
	}, time.Second, time.Millisecond)
	return a, b
}

func (s *GatewaySuite) TestReadyFlowStartsGame() {
	a, b := s.startDuel("ROOM01")

	s.Require().Eventually(func() bool {
		return a.countEvent(model.EventGameState) >= 2 && b.countEvent(model.EventGameState) >= 2
	}, time.Second, time.Millisecond)

	frames := a.received(model.EventGameState)
	var snapshot model.GameStatePayload
	s.Require().NoError(json.Unmarshal(frames[len(frames)-1].Data, &snapshot))
	s.Equal(model.GameStatusRunning, snapshot.Status)
	s.Len(snapshot.Players, 2)
}

func (s *GatewaySuite) TestLegacyStartGameAlias() {
	a, b := s.connect(), s.connect()
	s.joinRoom(a, "ROOM01", "npub1alice", "Alice", nil)
	s.joinRoom(b, "ROOM01", "npub1bob", "Bob", nil)
	s.register(a, "ROOM01", "npub1alice")
	s.register(b, "ROOM01", "npub1bob")

	a.emit(s.T(), model.EventStartGame, model.PlayerReadyPayload{RoomID: "ROOM01", UserID: "npub1alice"})
	b.emit(s.T(), model.EventStartGame, model.PlayerReadyPayload{RoomID: "ROOM01", UserID: "npub1bob"})

	s.Require().Eventually(func() bool {
		return a.countEvent(model.EventGameStarted) >= 1
	}, time.Second, time.Millisecond)
}

func (s *GatewaySuite) TestPlayerInputChangesDirection() {
	a, _ := s.startDuel("ROOM01")

	a.emit(s.T(), model.EventPlayerInput, model.PlayerInputPayload{
		RoomID: "ROOM01", Pubkey: "npub1alice", Direction: model.DirectionUp,
	})

	s.Require().Eventually(func() bool {
		frames := a.received(model.EventGameState)
		if len(frames) == 0 {
			return false
		}
		var snapshot model.GameStatePayload
		if err := json.Unmarshal(frames[len(frames)-1].Data, &snapshot); err != nil {
			return false
		}
		for _, p := range snapshot.Players {
			if p.Pubkey == "npub1alice" && p.Direction == model.DirectionUp {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)
}

func (s *GatewaySuite) TestDisconnectForfeitsLiveGame() {
	a, b := s.startDuel("ROOM01")

	_ = b.Close()

	s.Require().Eventually(func() bool {
		for _, f := range a.received(model.EventGameState) {
			var snapshot model.GameStatePayload
			if json.Unmarshal(f.Data, &snapshot) == nil &&
				snapshot.Status == model.GameStatusEnded &&
				snapshot.Winner == "npub1alice" {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)

	s.Require().Eventually(func() bool {
		projection, err := s.ledger.GetStats(s.ctx, "npub1alice")
		return err == nil && projection.Wins == 1
	}, time.Second, time.Millisecond)
}

func (s *GatewaySuite) TestLeaveRoomForfeitsAndNotifies() {
	a, b := s.startDuel("ROOM01")

	b.emit(s.T(), model.EventLeaveRoom, model.LeaveRoomPayload{RoomID: "ROOM01", UserID: "npub1bob"})

	s.Require().Eventually(func() bool {
		for _, f := range a.received(model.EventGameState) {
			var snapshot model.GameStatePayload
			if json.Unmarshal(f.Data, &snapshot) == nil && snapshot.Winner == "npub1alice" {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)

	s.Require().Eventually(func() bool {
		state := s.lastRoomState(a)
		return len(state.Players) == 1
	}, time.Second, time.Millisecond)
}

func (s *GatewaySuite) TestFindMatchPairsCompatibleRequests() {
	a, b := s.connect(), s.connect()

	a.emit(s.T(), model.EventFindMatch, model.FindMatchPayload{
		UserID: "npub1alice", Name: "Alice", GameType: model.GameModeClassic, BuyIn: 500, AllowSpectators: true,
	})
	s.Require().Eventually(func() bool {
		return a.countEvent(model.EventMatchmakingStatus) == 1
	}, time.Second, time.Millisecond)

	b.emit(s.T(), model.EventFindMatch, model.FindMatchPayload{
		UserID: "npub1bob", Name: "Bob", GameType: model.GameModeClassic, BuyIn: 500, AllowSpectators: true,
	})

	s.Require().Eventually(func() bool {
		return a.countEvent(model.EventMatchFound) == 1 && b.countEvent(model.EventMatchFound) == 1
	}, time.Second, time.Millisecond)

	var found model.MatchFoundPayload
	s.Require().NoError(json.Unmarshal(a.received(model.EventMatchFound)[0].Data, &found))
	s.NotEmpty(found.RoomID)

	a.emit(s.T(), model.EventAcceptMatch, model.AcceptMatchPayload{RoomID: found.RoomID, UserID: "npub1alice"})
	b.emit(s.T(), model.EventAcceptMatch, model.AcceptMatchPayload{RoomID: found.RoomID, UserID: "npub1bob"})

	s.Require().Eventually(func() bool {
		return a.countEvent(model.EventGameStarted) >= 1 && b.countEvent(model.EventGameStarted) >= 1
	}, time.Second, time.Millisecond)
}

func (s *GatewaySuite) TestFindMatchIncompatibleStakesWait() {
	a, b := s.connect(), s.connect()

	a.emit(s.T(), model.EventFindMatch, model.FindMatchPayload{
		UserID: "npub1alice", Name: "Alice", GameType: model.GameModeClassic, BuyIn: 500,
	})
	b.emit(s.T(), model.EventFindMatch, model.FindMatchPayload{
		UserID: "npub1bob", Name: "Bob", GameType: model.GameModeClassic, BuyIn: 2000,
	})

	s.Require().Eventually(func() bool {
		return a.countEvent(model.EventMatchmakingStatus) == 1 && b.countEvent(model.EventMatchmakingStatus) == 1
	}, time.Second, time.Millisecond)
	s.Zero(a.countEvent(model.EventMatchFound))
	s.Zero(b.countEvent(model.EventMatchFound))
}

func (s *GatewaySuite) TestCancelMatchmaking() {
	a := s.connect()

	a.emit(s.T(), model.EventFindMatch, model.FindMatchPayload{
		UserID: "npub1alice", Name: "Alice", GameType: model.GameModeClassic, BuyIn: 500,
	})
	a.emit(s.T(), model.EventCancelMatchmaking, model.CancelMatchmakingPayload{UserID: "npub1alice"})

	s.Require().Eventually(func() bool {
		frames := a.received(model.EventMatchmakingStatus)
		if len(frames) < 2 {
			return false
		}
		var status model.MatchmakingStatusPayload
		return json.Unmarshal(frames[1].Data, &status) == nil && status.Status == "cancelled"
	}, time.Second, time.Millisecond)
}

func (s *GatewaySuite) TestLobbyChatRelaysToRoom() {
	a, b := s.connect(), s.connect()
	s.joinRoom(a, "ROOM01", "npub1alice", "Alice", nil)
	s.joinRoom(b, "ROOM01", "npub1bob", "Bob", nil)

	a.emit(s.T(), model.EventLobbyChat, model.LobbyChatPayload{
		RoomID: "ROOM01", Sender: "npub1alice", Text: "glhf",
	})

	s.Require().Eventually(func() bool {
		return b.countEvent(model.EventLobbyChat) == 1 && a.countEvent(model.EventLobbyChat) == 1
	}, time.Second, time.Millisecond)

	var chat model.LobbyChatPayload
	s.Require().NoError(json.Unmarshal(b.received(model.EventLobbyChat)[0].Data, &chat))
	s.Equal("glhf", chat.Text)
	s.Equal(model.Identity("npub1alice"), chat.Sender)
}

func (s *GatewaySuite) TestRequestPlayerStats() {
	a := s.connect()
	a.emit(s.T(), model.EventRequestPlayerStats, model.RequestPlayerStatsPayload{
		Pubkey: "npub1alice", Name: "Alice",
	})

	s.Require().Eventually(func() bool {
		return a.countEvent(model.EventPlayerStats) == 1
	}, time.Second, time.Millisecond)

	var projection model.StatsProjection
	s.Require().NoError(json.Unmarshal(a.received(model.EventPlayerStats)[0].Data, &projection))
	s.Equal(model.Identity("npub1alice"), projection.Pubkey)
	s.Zero(projection.GamesPlayed)
}

func (s *GatewaySuite) TestGetActiveGames() {
	s.startDuel("ROOM01")

	z := s.connect()
	s.Require().Eventually(func() bool {
		z.emit(s.T(), model.EventGetActiveGames, struct{}{})
		frames := z.received(model.EventActiveGames)
		if len(frames) == 0 {
			return false
		}
		var games []model.ActiveGamePayload
		return json.Unmarshal(frames[len(frames)-1].Data, &games) == nil && len(games) == 1
	}, time.Second, 10*time.Millisecond)
}

func (s *GatewaySuite) TestRematchRestartsGame() {
	a, b := s.startDuel("ROOM01")

	b.emit(s.T(), model.EventLeaveGame, model.LeaveGamePayload{RoomID: "ROOM01"})
	s.Require().Eventually(func() bool {
		for _, f := range a.received(model.EventGameState) {
			var snapshot model.GameStatePayload
			if json.Unmarshal(f.Data, &snapshot) == nil && snapshot.Status == model.GameStatusEnded {
				return true
			}
		}
		return false
	}, time.Second, time.Millisecond)

	a.emit(s.T(), model.EventRequestRematch, model.RequestRematchPayload{RoomID: "ROOM01", RequesterID: "npub1alice"})
	s.Require().Eventually(func() bool {
		return b.countEvent(model.EventRematchRequested) == 1
	}, time.Second, time.Millisecond)

	b.emit(s.T(), model.EventRespondToRematch, model.RespondToRematchPayload{
		RoomID: "ROOM01", UserID: "npub1bob", Accept: true,
	})

	s.Require().Eventually(func() bool {
		return a.countEvent(model.EventRematchAccepted) == 1 &&
			a.countEvent(model.EventGameStarted) >= 2
	}, time.Second, time.Millisecond)
}

func (s *GatewaySuite) TestMalformedFrameIsIgnored() {
	a := s.connect()
	a.inbound <- []byte("not json")

	s.joinRoom(a, "ROOM01", "npub1alice", "Alice", nil)
	s.Equal(1, a.countEvent(model.EventRoomState))
}

func (s *GatewaySuite) TestSpectatorsClosedRoomRejectsJoin() {
	a, b := s.connect(), s.connect()

	a.emit(s.T(), model.EventFindMatch, model.FindMatchPayload{
		UserID: "npub1alice", Name: "Alice", GameType: model.GameModeClassic, BuyIn: 500, AllowSpectators: false,
	})
	b.emit(s.T(), model.EventFindMatch, model.FindMatchPayload{
		UserID: "npub1bob", Name: "Bob", GameType: model.GameModeClassic, BuyIn: 500, AllowSpectators: false,
	})
	s.Require().Eventually(func() bool {
		return a.countEvent(model.EventMatchFound) == 1
	}, time.Second, time.Millisecond)

	var found model.MatchFoundPayload
	s.Require().NoError(json.Unmarshal(a.received(model.EventMatchFound)[0].Data, &found))

	z := s.connect()
	z.emit(s.T(), model.EventJoinRoom, model.JoinRoomPayload{
		RoomID: found.RoomID,
		User:   model.UserRef{Pubkey: "npub1zoe", Name: "Zoe"},
	})
	s.Require().Eventually(func() bool {
		return z.countEvent(model.EventRegistrationFailed) == 1
	}, time.Second, time.Millisecond)
}
