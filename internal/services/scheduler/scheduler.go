package scheduler

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/francismars/live/internal/dependencies/clock"
	"github.com/francismars/live/internal/model"
	"github.com/francismars/live/internal/services/room"
	"github.com/francismars/live/internal/services/sim"
	"github.com/francismars/live/internal/services/stats"
)

// Broadcaster fans an event out to every connection subscribed to a room.
// The gateway implements it; the scheduler never touches sockets directly.
type Broadcaster interface {
	BroadcastToRoom(roomID model.RoomID, event string, payload any)
}

// Config holds the scheduler's timing knobs. Tests shrink the intervals;
// production uses DefaultConfig.
type Config struct {
	SimTick           time.Duration
	BroadcastTick     time.Duration
	CountdownFrom     int // set negative to skip the countdown
	CountdownInterval time.Duration
	RematchDelay      time.Duration
}

// DefaultConfig returns the production timing configuration
func DefaultConfig() Config {
	return Config{
		SimTick:           100 * time.Millisecond,
		BroadcastTick:     16 * time.Millisecond,
		CountdownFrom:     3,
		CountdownInterval: time.Second,
		RematchDelay:      3 * time.Second,
	}
}

// session is the live state for one room's game. The simulation and
// broadcast loops share a cancel so stopping one stops both.
type session struct {
	mu       sync.Mutex
	game     *model.Game
	cancel   context.CancelFunc
	running  bool // a loop goroutine has been launched
	finished bool // teardown has run; late ticks and double finishes no-op
}

// Scheduler owns the per-room game lifecycle: it creates games once both
// seats are ready, drives the fixed-step simulation and the faster state
// broadcast, and tears both down on any exit path, win, forfeit or
// abandonment alike. Live game state lives only here; storage keeps rooms
// and stats.
type Scheduler struct {
	mu       sync.Mutex
	sessions map[model.RoomID]*session
	rematch  map[model.RoomID]model.Identity // pending rematch requester per room

	config      Config
	registry    *room.Registry
	simulator   *sim.Service
	ledger      *stats.Ledger
	clock       clock.Clock
	broadcaster Broadcaster
	logger      *slog.Logger
}

// New creates a new scheduler
func New(
	config Config,
	registry *room.Registry,
	simulator *sim.Service,
	ledger *stats.Ledger,
	clk clock.Clock,
	broadcaster Broadcaster,
	logger *slog.Logger,
) *Scheduler {
	return &Scheduler{
		sessions:    make(map[model.RoomID]*session),
		rematch:     make(map[model.RoomID]model.Identity),
		config:      config,
		registry:    registry,
		simulator:   simulator,
		ledger:      ledger,
		clock:       clk,
		broadcaster: broadcaster,
		logger:      logger.With(slog.String("component", "scheduler")),
	}
}

// Prepare creates the waiting game for a room with two seated players.
// Calling it again before Start returns the same game; calling it while a
// game is running returns ErrGameRunning.
func (s *Scheduler) Prepare(ctx context.Context, r *model.Room) (*model.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sess, ok := s.sessions[r.ID]; ok {
		sess.mu.Lock()
		defer sess.mu.Unlock()
		if sess.game.Status == model.GameStatusRunning {
			return nil, model.ErrGameRunning
		}
		return sess.game, nil
	}

	players := r.Players()
	if len(players) != model.MaxPlayers {
		return nil, model.ErrSeatsNotFilled
	}

	seats := [2]sim.Seat{
		{Pubkey: players[0].Pubkey, Name: players[0].Name},
		{Pubkey: players[1].Pubkey, Name: players[1].Name},
	}
	game := sim.NewGame(r.ID, seats, r.Stake)
	s.sessions[r.ID] = &session{game: game}

	s.logger.InfoContext(ctx, "game prepared",
		slog.String("roomId", string(r.ID)),
		slog.Int("stake", game.Players[0].InitialStake))
	return game, nil
}

// Start launches the countdown and then the simulation and broadcast loops
// for a prepared game. A second Start while a loop is active is ignored, so
// at most one loop ever runs per room.
func (s *Scheduler) Start(ctx context.Context, roomID model.RoomID) error {
	s.mu.Lock()
	sess, ok := s.sessions[roomID]
	if !ok {
		s.mu.Unlock()
		return model.ErrGameNotFound
	}
	if sess.running {
		s.mu.Unlock()
		s.logger.WarnContext(ctx, "start ignored, loop already active",
			slog.String("roomId", string(roomID)))
		return nil
	}
	sess.running = true
	runCtx, cancel := context.WithCancel(context.Background())
	sess.cancel = cancel
	s.mu.Unlock()

	go s.run(runCtx, roomID, sess)
	return nil
}

func (s *Scheduler) run(ctx context.Context, roomID model.RoomID, sess *session) {
	if !s.countdown(ctx, roomID) {
		return
	}

	sess.mu.Lock()
	if sess.finished {
		sess.mu.Unlock()
		return
	}
	sess.game.Status = model.GameStatusRunning
	sess.game.StartedAt = s.clock.Now()
	started := sim.Project(sess.game)
	sess.mu.Unlock()

	s.broadcaster.BroadcastToRoom(roomID, model.EventGameStarted, started)
	s.logger.Info("game started", slog.String("roomId", string(roomID)))

	go s.broadcastLoop(ctx, roomID, sess)

	ticker := time.NewTicker(s.config.SimTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if s.step(roomID, sess) {
				return
			}
		}
	}
}

// countdown emits startCountdown and then one countdownTick per interval
// from CountdownFrom down to zero. Returns false if the session was
// cancelled mid-count.
func (s *Scheduler) countdown(ctx context.Context, roomID model.RoomID) bool {
	if s.config.CountdownFrom < 0 {
		return true
	}

	s.broadcaster.BroadcastToRoom(roomID, model.EventStartCountdown,
		model.CountdownTickPayload{N: s.config.CountdownFrom})

	timer := time.NewTimer(s.config.CountdownInterval)
	defer timer.Stop()
	for n := s.config.CountdownFrom; n >= 0; n-- {
		s.broadcaster.BroadcastToRoom(roomID, model.EventCountdownTick,
			model.CountdownTickPayload{N: n})
		select {
		case <-ctx.Done():
			return false
		case <-timer.C:
			timer.Reset(s.config.CountdownInterval)
		}
	}
	return true
}

// step advances the game one tick. Returns true once the game is over and
// teardown has run.
func (s *Scheduler) step(roomID model.RoomID, sess *session) bool {
	sess.mu.Lock()
	if sess.finished || sess.game.Status != model.GameStatusRunning {
		sess.mu.Unlock()
		return true
	}
	s.advance(roomID, sess.game)
	ended := sess.game.Status == model.GameStatusEnded
	sess.mu.Unlock()

	if ended {
		s.finish(context.Background(), roomID, sess)
	}
	return ended
}

// advance contains the tick's panic boundary so a bad frame never kills
// the loop or leaks the session lock.
func (s *Scheduler) advance(roomID model.RoomID, g *model.Game) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("tick panicked",
				slog.String("roomId", string(roomID)),
				slog.Any("panic", r))
		}
	}()
	s.simulator.Advance(g)
}

func (s *Scheduler) broadcastLoop(ctx context.Context, roomID model.RoomID, sess *session) {
	ticker := time.NewTicker(s.config.BroadcastTick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sess.mu.Lock()
			snapshot := sim.Project(sess.game)
			sess.mu.Unlock()
			s.broadcaster.BroadcastToRoom(roomID, model.EventGameState, snapshot)
		}
	}
}

// finish stops both loops, pushes the terminal snapshot, records the result
// in the ledger and disposes the session. Safe to call more than once.
func (s *Scheduler) finish(ctx context.Context, roomID model.RoomID, sess *session) {
	sess.mu.Lock()
	if sess.finished {
		sess.mu.Unlock()
		return
	}
	sess.finished = true
	if sess.cancel != nil {
		sess.cancel()
	}
	final := sim.Project(sess.game)
	duration := int(s.clock.Since(sess.game.StartedAt).Seconds())
	summary := stats.GameSummary{
		RoomID:          roomID,
		Winner:          sess.game.Winner,
		DurationSeconds: duration,
	}
	for i, p := range sess.game.Players {
		summary.Players[i] = stats.PlayerResult{
			Pubkey:       p.Pubkey,
			Name:         p.Name,
			Stake:        p.Stake,
			InitialStake: p.InitialStake,
		}
	}
	sess.mu.Unlock()

	s.broadcaster.BroadcastToRoom(roomID, model.EventGameState, final)

	if err := s.ledger.RecordResult(ctx, summary); err != nil {
		s.logger.ErrorContext(ctx, "failed to record game result",
			slog.String("roomId", string(roomID)),
			slog.String("error", err.Error()))
	}

	s.mu.Lock()
	delete(s.sessions, roomID)
	s.mu.Unlock()

	s.logger.InfoContext(ctx, "game ended",
		slog.String("roomId", string(roomID)),
		slog.String("winner", string(summary.Winner)),
		slog.Int("durationSeconds", duration))
}

// HandleInput applies a direction change to the room's running game
func (s *Scheduler) HandleInput(roomID model.RoomID, pubkey model.Identity, direction model.Direction) error {
	s.mu.Lock()
	sess, ok := s.sessions[roomID]
	s.mu.Unlock()
	if !ok {
		return model.ErrGameNotFound
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sim.HandleInput(sess.game, pubkey, direction)
}

// Forfeit ends the room's game because a seated player left. The remaining
// player wins; if the leaver's opponent is somehow gone the winner stays
// unset and the result is a draw. A forfeit before the game started tears
// the session down without touching the ledger.
func (s *Scheduler) Forfeit(ctx context.Context, roomID model.RoomID, leaver model.Identity) {
	s.mu.Lock()
	sess, ok := s.sessions[roomID]
	s.mu.Unlock()
	if !ok {
		return
	}

	sess.mu.Lock()
	if sess.finished || sess.game.Status == model.GameStatusEnded {
		sess.mu.Unlock()
		return
	}
	if sess.game.PlayerByPubkey(leaver) == nil {
		sess.mu.Unlock()
		return
	}
	running := sess.game.Status == model.GameStatusRunning
	sess.game.Status = model.GameStatusEnded
	if opponent := sess.game.Opponent(leaver); opponent != nil {
		sess.game.Winner = opponent.Pubkey
	}
	sess.mu.Unlock()

	if !running {
		s.Drop(roomID)
		return
	}

	s.logger.InfoContext(ctx, "player forfeited",
		slog.String("roomId", string(roomID)),
		slog.String("pubkey", string(leaver)))
	s.finish(ctx, roomID, sess)
}

// Drop discards a room's session without recording a result. Used when the
// room itself is disposed or a game is abandoned before it started.
func (s *Scheduler) Drop(roomID model.RoomID) {
	s.mu.Lock()
	sess, ok := s.sessions[roomID]
	if ok {
		delete(s.sessions, roomID)
	}
	delete(s.rematch, roomID)
	s.mu.Unlock()
	if !ok {
		return
	}

	sess.mu.Lock()
	sess.finished = true
	if sess.cancel != nil {
		sess.cancel()
	}
	sess.mu.Unlock()
}

// Snapshot returns the latest client-safe view of the room's game
func (s *Scheduler) Snapshot(roomID model.RoomID) (model.GameStatePayload, bool) {
	s.mu.Lock()
	sess, ok := s.sessions[roomID]
	s.mu.Unlock()
	if !ok {
		return model.GameStatePayload{}, false
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sim.Project(sess.game), true
}

// ActiveGames lists every room with a running game, ordered by room id
func (s *Scheduler) ActiveGames(ctx context.Context) []model.ActiveGamePayload {
	s.mu.Lock()
	ids := make([]model.RoomID, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	games := make([]model.ActiveGamePayload, 0, len(ids))
	for _, id := range ids {
		s.mu.Lock()
		sess, ok := s.sessions[id]
		s.mu.Unlock()
		if !ok {
			continue
		}

		sess.mu.Lock()
		if sess.game.Status != model.GameStatusRunning {
			sess.mu.Unlock()
			continue
		}
		entry := model.ActiveGamePayload{
			RoomID:  id,
			Players: make([]model.ActiveGamePlayer, 0, len(sess.game.Players)),
		}
		for _, p := range sess.game.Players {
			entry.Players = append(entry.Players, model.ActiveGamePlayer{
				Pubkey: p.Pubkey,
				Name:   p.Name,
				Stake:  p.Stake,
			})
		}
		sess.mu.Unlock()

		if r, err := s.registry.GetRoom(ctx, id); err == nil {
			entry.Stake = r.Stake
			entry.Preferences = r.Settings
		}
		games = append(games, entry)
	}
	return games
}

// RequestRematch records that a seated player wants to play again in the
// same room. The gateway relays the request to the opponent.
func (s *Scheduler) RequestRematch(ctx context.Context, roomID model.RoomID, requester model.Identity) error {
	r, err := s.registry.GetRoom(ctx, roomID)
	if err != nil {
		return err
	}
	member := r.GetMember(requester)
	if member == nil || member.Role != model.RolePlayer {
		return model.ErrNotAPlayer
	}

	s.mu.Lock()
	s.rematch[roomID] = requester
	s.mu.Unlock()
	return nil
}

// RespondRematch resolves a pending rematch request. Only the seated
// player other than the requester may answer; a rejected responder
// leaves the request pending. On acceptance a fresh game with fresh
// stakes starts in the same room after RematchDelay; on decline the
// request is simply cleared. Returns whether the rematch was accepted.
func (s *Scheduler) RespondRematch(ctx context.Context, roomID model.RoomID, responder model.Identity, accept bool) (bool, error) {
	s.mu.Lock()
	requester, pending := s.rematch[roomID]
	s.mu.Unlock()
	if !pending {
		return false, model.ErrNoRematchPending
	}
	if responder == requester {
		return false, model.ErrNotRematchOpponent
	}

	r, err := s.registry.GetRoom(ctx, roomID)
	if err != nil {
		return false, err
	}
	member := r.GetMember(responder)
	if member == nil || member.Role != model.RolePlayer {
		return false, model.ErrNotRematchOpponent
	}

	s.mu.Lock()
	delete(s.rematch, roomID)
	s.mu.Unlock()

	if !accept {
		return false, nil
	}

	time.AfterFunc(s.config.RematchDelay, func() {
		s.restart(roomID)
	})
	return true, nil
}

// restart re-runs the ready -> prepare -> start sequence for a rematch
func (s *Scheduler) restart(roomID model.RoomID) {
	ctx := context.Background()
	r, err := s.registry.MarkBothReady(ctx, roomID)
	if err != nil {
		s.logger.Warn("rematch room gone",
			slog.String("roomId", string(roomID)),
			slog.String("error", err.Error()))
		return
	}
	if _, err := s.Prepare(ctx, r); err != nil {
		s.logger.Warn("rematch prepare failed",
			slog.String("roomId", string(roomID)),
			slog.String("error", err.Error()))
		return
	}
	if err := s.Start(ctx, roomID); err != nil {
		s.logger.Warn("rematch start failed",
			slog.String("roomId", string(roomID)),
			slog.String("error", err.Error()))
	}
}

// Shutdown stops every live session. Called on server shutdown.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	ids := make([]model.RoomID, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		s.Drop(id)
	}
}
