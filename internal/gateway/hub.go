package gateway

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/francismars/live/internal/model"
)

const writeWait = 10 * time.Second

// Conn is the subset of *websocket.Conn the gateway uses. Tests swap in an
// in-memory fake.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// Envelope is the wire frame. Every message in either direction is an
// event name plus a JSON payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// client is one connected socket. The write mutex serializes frames from
// the broadcast loops and the dispatch path; identity is learned from the
// first event that carries one.
type client struct {
	id      model.ConnID
	conn    Conn
	writeMu sync.Mutex

	mu     sync.Mutex
	pubkey model.Identity
	name   string
	rooms  map[model.RoomID]struct{}
}

func (c *client) send(event string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	frame, err := json.Marshal(Envelope{Event: event, Data: data})
	if err != nil {
		return fmt.Errorf("marshal %s envelope: %w", event, err)
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

func (c *client) identify(pubkey model.Identity, name string) {
	if pubkey == "" {
		return
	}
	c.mu.Lock()
	c.pubkey = pubkey
	if name != "" {
		c.name = name
	}
	c.mu.Unlock()
}

func (c *client) identity() (model.Identity, string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pubkey, c.name
}

func (c *client) roomIDs() []model.RoomID {
	c.mu.Lock()
	defer c.mu.Unlock()
	ids := make([]model.RoomID, 0, len(c.rooms))
	for id := range c.rooms {
		ids = append(ids, id)
	}
	return ids
}

// Hub tracks connected clients and their room subscriptions and fans
// events out to them. It is the scheduler's broadcaster.
type Hub struct {
	mu      sync.Mutex
	clients map[model.ConnID]*client
	rooms   map[model.RoomID]map[model.ConnID]*client
	nextID  atomic.Uint64

	logger *slog.Logger
}

// NewHub creates a new hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[model.ConnID]*client),
		rooms:   make(map[model.RoomID]map[model.ConnID]*client),
		logger:  logger.With(slog.String("component", "hub")),
	}
}

func (h *Hub) register(conn Conn) *client {
	c := &client{
		id:    model.ConnID(fmt.Sprintf("conn-%d", h.nextID.Add(1))),
		conn:  conn,
		rooms: make(map[model.RoomID]struct{}),
	}
	h.mu.Lock()
	h.clients[c.id] = c
	h.mu.Unlock()
	return c
}

func (h *Hub) unregister(c *client) {
	rooms := c.roomIDs()
	h.mu.Lock()
	delete(h.clients, c.id)
	for _, roomID := range rooms {
		h.dropFromRoomLocked(roomID, c.id)
	}
	h.mu.Unlock()
	_ = c.conn.Close()
}

func (h *Hub) subscribe(c *client, roomID model.RoomID) {
	h.mu.Lock()
	subs, ok := h.rooms[roomID]
	if !ok {
		subs = make(map[model.ConnID]*client)
		h.rooms[roomID] = subs
	}
	subs[c.id] = c
	h.mu.Unlock()

	c.mu.Lock()
	c.rooms[roomID] = struct{}{}
	c.mu.Unlock()
}

func (h *Hub) unsubscribe(c *client, roomID model.RoomID) {
	h.mu.Lock()
	h.dropFromRoomLocked(roomID, c.id)
	h.mu.Unlock()

	c.mu.Lock()
	delete(c.rooms, roomID)
	c.mu.Unlock()
}

func (h *Hub) dropFromRoomLocked(roomID model.RoomID, id model.ConnID) {
	if subs, ok := h.rooms[roomID]; ok {
		delete(subs, id)
		if len(subs) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

func (h *Hub) clientByConn(id model.ConnID) (*client, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[id]
	return c, ok
}

// BroadcastToRoom sends one event to every connection subscribed to the
// room. A failed write closes the connection; its read loop then runs the
// normal disconnect teardown.
func (h *Hub) BroadcastToRoom(roomID model.RoomID, event string, payload any) {
	h.mu.Lock()
	subs := make([]*client, 0, len(h.rooms[roomID]))
	for _, c := range h.rooms[roomID] {
		subs = append(subs, c)
	}
	h.mu.Unlock()

	for _, c := range subs {
		if err := c.send(event, payload); err != nil {
			h.logger.Warn("dropping unwritable connection",
				slog.String("conn", string(c.id)),
				slog.String("event", event),
				slog.String("error", err.Error()))
			_ = c.conn.Close()
		}
	}
}

// SendToConn sends one event to a single connection if it is still around
func (h *Hub) SendToConn(id model.ConnID, event string, payload any) {
	c, ok := h.clientByConn(id)
	if !ok {
		return
	}
	if err := c.send(event, payload); err != nil {
		_ = c.conn.Close()
	}
}

// CloseAll closes every connection. Called on server shutdown; the read
// loops unwind and clean up their own state.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	conns := make([]*client, 0, len(h.clients))
	for _, c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	for _, c := range conns {
		_ = c.conn.Close()
	}
}
