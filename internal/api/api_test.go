package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/francismars/live/internal/api"
	"github.com/francismars/live/internal/api/apierr"
	"github.com/francismars/live/internal/api/response"
	"github.com/francismars/live/internal/factory"
	"github.com/francismars/live/internal/model"
	"github.com/francismars/live/internal/services/stats"
	"github.com/francismars/live/internal/testutil"
)

// testServer wraps the configured router for request helpers
type testServer struct {
	handler http.Handler
}

func newTestServer(t *testing.T) (*testServer, *factory.TestApp) {
	t.Helper()

	app := factory.NewTestApp()

	router := api.NewRouter(api.RouterConfig{
		Logger:    testutil.NopLogger(),
		Registry:  app.Registry,
		Ledger:    app.Ledger,
		Scheduler: app.Scheduler,
		Gateway:   app.Gateway,
	})

	return &testServer{handler: router}, app
}

func (ts *testServer) get(path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthCheck(t *testing.T) {
	ts, _ := newTestServer(t)

	rr := ts.get("/api/v1/health")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "ok")
}

func TestGetStatsUnknownPlayerIsZeroed(t *testing.T) {
	ts, _ := newTestServer(t)

	rr := ts.get("/api/v1/stats/npub1nobody")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp response.Stats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, model.Identity("npub1nobody"), resp.Pubkey)
	assert.Zero(t, resp.GamesPlayed)
	assert.Equal(t, stats.DefaultRating, resp.Rating)
}

func TestGetStatsAfterGame(t *testing.T) {
	ts, app := newTestServer(t)

	err := app.Ledger.RecordResult(t.Context(), stats.GameSummary{
		RoomID: "ROOM01",
		Winner: "npub1alice",
		Players: [2]stats.PlayerResult{
			{Pubkey: "npub1alice", Name: "Alice", Stake: 1100, InitialStake: 1000},
			{Pubkey: "npub1bob", Name: "Bob", Stake: 900, InitialStake: 1000},
		},
		DurationSeconds: 60,
	})
	require.NoError(t, err)

	rr := ts.get("/api/v1/stats/npub1alice")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp response.Stats
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Wins)
	assert.Equal(t, 100, resp.WinRate)
	assert.Equal(t, 100, resp.SatsWon)
}

func TestGetRoom(t *testing.T) {
	ts, app := newTestServer(t)

	stake := 500
	_, err := app.Registry.CreateOrGetRoom(t.Context(), "ROOM01", &stake)
	require.NoError(t, err)

	rr := ts.get("/api/v1/rooms/ROOM01")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp model.RoomStatePayload
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, model.RoomID("ROOM01"), resp.RoomID)
	assert.Equal(t, 500, resp.Stake)
}

func TestGetRoomNotFound(t *testing.T) {
	ts, _ := newTestServer(t)

	rr := ts.get("/api/v1/rooms/GHOST1")
	require.Equal(t, http.StatusNotFound, rr.Code)

	var resp apierr.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, apierr.CodeRoomNotFound, resp.Error.Code)
}

func TestListGamesEmpty(t *testing.T) {
	ts, _ := newTestServer(t)

	rr := ts.get("/api/v1/games")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp response.Games
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Empty(t, resp.Games)
}
