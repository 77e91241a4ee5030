package e2e_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/francismars/live/internal/api"
	"github.com/francismars/live/internal/factory"
	"github.com/francismars/live/internal/services/scheduler"
)

// cliRunner manages CLI binary execution
type cliRunner struct {
	binaryPath string
	serverURL  string
}

func newCLIRunner(t *testing.T, serverURL string) *cliRunner {
	t.Helper()

	// Find project root (where go.mod is)
	projectRoot := findProjectRoot(t)

	// Build the CLI binary
	binaryPath := filepath.Join(projectRoot, "bin", "livectl-test")
	cmd := exec.Command("go", "build", "-o", binaryPath, "./cmd/livectl")
	cmd.Dir = projectRoot
	output, err := cmd.CombinedOutput()
	require.NoError(t, err, "failed to build CLI: %s", string(output))

	return &cliRunner{
		binaryPath: binaryPath,
		serverURL:  serverURL,
	}
}

func (r *cliRunner) run(args ...string) (string, error) {
	fullArgs := append([]string{
		"--server", r.serverURL,
		"--output", "json",
	}, args...)

	cmd := exec.Command(r.binaryPath, fullArgs...)
	output, err := cmd.CombinedOutput()
	return string(output), err
}

func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// testServer manages a real HTTP server for e2e tests
type testServer struct {
	server   *http.Server
	addr     string
	wsURL    string
	shutdown func()
}

func startTestServer(t *testing.T) *testServer {
	t.Helper()

	// Find a free port
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))

	// Fast game loop so e2e flows finish quickly
	app, err := factory.New(factory.Config{
		Logger: logger,
		SchedulerConfig: &scheduler.Config{
			SimTick:           10 * time.Millisecond,
			BroadcastTick:     5 * time.Millisecond,
			CountdownFrom:     -1,
			CountdownInterval: 5 * time.Millisecond,
			RematchDelay:      10 * time.Millisecond,
		},
	})
	require.NoError(t, err)

	router := api.NewRouter(api.RouterConfig{
		Logger:    logger,
		Registry:  app.Registry,
		Ledger:    app.Ledger,
		Scheduler: app.Scheduler,
		Gateway:   app.Gateway,
	})

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		if err := server.ListenAndServe(); err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := "http://" + addr
	waitForServer(t, serverURL+"/api/v1/health")

	return &testServer{
		server: server,
		addr:   serverURL,
		wsURL:  "ws://" + addr + "/ws",
		shutdown: func() {
			app.Scheduler.Shutdown()
			app.Hub.CloseAll()
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = server.Shutdown(ctx)
		},
	}
}

func waitForServer(t *testing.T, url string) {
	t.Helper()

	client := &http.Client{Timeout: 100 * time.Millisecond}
	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Fatal("server did not become ready in time")
}

// wsClient is a thin websocket client speaking the gateway's envelope protocol
type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func dialWS(t *testing.T, wsURL string) *wsClient {
	t.Helper()

	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	if resp != nil {
		_ = resp.Body.Close()
	}
	t.Cleanup(func() { _ = conn.Close() })

	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(event string, data any) {
	c.t.Helper()

	payload, err := json.Marshal(data)
	require.NoError(c.t, err)
	frame, err := json.Marshal(envelope{Event: event, Data: payload})
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, frame))
}

// waitFor discards frames until one with the wanted event name arrives
func (c *wsClient) waitFor(event string) json.RawMessage {
	c.t.Helper()

	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, frame, err := c.conn.ReadMessage()
		require.NoError(c.t, err, "waiting for %q", event)

		var env envelope
		require.NoError(c.t, json.Unmarshal(frame, &env))
		if env.Event == event {
			return env.Data
		}
	}
}

func (c *wsClient) close() {
	_ = c.conn.Close()
}

// Response types for JSON parsing
type statsResponse struct {
	Pubkey      string `json:"pubkey"`
	Rating      int    `json:"rating"`
	GamesPlayed int    `json:"gamesPlayed"`
	Wins        int    `json:"wins"`
	Losses      int    `json:"losses"`
	WinRate     int    `json:"winRate"`
}

type gamesResponse struct {
	Games []struct {
		RoomID string `json:"roomId"`
		Stake  int    `json:"stake"`
	} `json:"games"`
}

type roomResponse struct {
	RoomID  string `json:"roomId"`
	Stake   int    `json:"stake"`
	Players []struct {
		Pubkey string `json:"pubkey"`
		Name   string `json:"name"`
	} `json:"players"`
}

type healthResponse struct {
	Status string `json:"status"`
}

// Tests

func TestCLI_HealthCheck(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("health")
	require.NoError(t, err, "output: %s", output)

	var resp healthResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "ok", resp.Status)
}

func TestCLI_StatsUnknownPlayer(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("stats", "npub1stranger")
	require.NoError(t, err, "output: %s", output)

	var resp statsResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Equal(t, "npub1stranger", resp.Pubkey)
	assert.Equal(t, 1000, resp.Rating)
	assert.Equal(t, 0, resp.GamesPlayed)
}

func TestCLI_GamesEmpty(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("games")
	require.NoError(t, err, "output: %s", output)

	var resp gamesResponse
	require.NoError(t, json.Unmarshal([]byte(output), &resp))
	assert.Empty(t, resp.Games)
}

func TestCLI_RoomNotFound(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	output, err := cli.run("room", "NOSUCH")
	require.Error(t, err)
	assert.Contains(t, output, "ROOM_NOT_FOUND")
}

func TestCLI_DuelFlow(t *testing.T) {
	ts := startTestServer(t)
	defer ts.shutdown()

	cli := newCLIRunner(t, ts.addr)

	const roomID = "E2E001"

	// Two players join the same room over the websocket
	alice := dialWS(t, ts.wsURL)
	bob := dialWS(t, ts.wsURL)

	alice.send("joinRoom", map[string]any{
		"roomId": roomID,
		"user":   map[string]string{"pubkey": "npub1alice", "name": "Alice"},
	})
	alice.waitFor("roomState")

	bob.send("joinRoom", map[string]any{
		"roomId": roomID,
		"user":   map[string]string{"pubkey": "npub1bob", "name": "Bob"},
	})
	bob.waitFor("roomState")

	// Both take seats
	alice.send("registerToPlay", map[string]string{"roomId": roomID, "userId": "npub1alice"})
	alice.waitFor("roomState")
	bob.send("registerToPlay", map[string]string{"roomId": roomID, "userId": "npub1bob"})
	bob.waitFor("roomState")

	// The room is visible over the REST surface
	output, err := cli.run("room", roomID)
	require.NoError(t, err, "output: %s", output)

	var roomResp roomResponse
	require.NoError(t, json.Unmarshal([]byte(output), &roomResp))
	assert.Equal(t, roomID, roomResp.RoomID)
	require.Len(t, roomResp.Players, 2)

	// Both ready up and the game starts
	alice.send("playerReady", map[string]string{"roomId": roomID, "userId": "npub1alice"})
	bob.send("playerReady", map[string]string{"roomId": roomID, "userId": "npub1bob"})
	alice.waitFor("gameStarted")

	// The duel shows up in the active games listing
	output, err = cli.run("games")
	require.NoError(t, err, "output: %s", output)

	var gamesResp gamesResponse
	require.NoError(t, json.Unmarshal([]byte(output), &gamesResp))
	require.Len(t, gamesResp.Games, 1)
	assert.Equal(t, roomID, gamesResp.Games[0].RoomID)

	// Bob's connection drops, forfeiting the duel to Alice
	bob.close()

	aliceStats := pollStats(t, cli, "npub1alice")
	assert.Equal(t, 1, aliceStats.Wins)
	assert.Equal(t, 100, aliceStats.WinRate)
	assert.Greater(t, aliceStats.Rating, 1000)

	bobStats := pollStats(t, cli, "npub1bob")
	assert.Equal(t, 1, bobStats.Losses)
	assert.Less(t, bobStats.Rating, 1000)
}

// pollStats fetches stats via the CLI until a game has been recorded
func pollStats(t *testing.T, cli *cliRunner, pubkey string) statsResponse {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	var last string
	for time.Now().Before(deadline) {
		output, err := cli.run("stats", pubkey)
		if err == nil {
			var resp statsResponse
			if json.Unmarshal([]byte(output), &resp) == nil && resp.GamesPlayed > 0 {
				return resp
			}
			last = strings.TrimSpace(output)
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Fatalf("stats for %s never recorded a game, last: %s", pubkey, last)
	return statsResponse{}
}
