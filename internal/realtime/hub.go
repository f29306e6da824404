// Package realtime keeps the registry of connected users and pushes events to
// them over websockets.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"gitea.kood.tech/petrkubec/match-me/matchcore/internal/matching"
)

const (
	sendBuffer   = 16
	writeTimeout = 10 * time.Second
	pongTimeout  = 60 * time.Second
	pingInterval = 30 * time.Second
)

// Event is the envelope written to a socket.
type Event struct {
	Type string `json:"type"` // "info" | "match_formed"
	Data any    `json:"data,omitempty"`
}

// Inbound is a frame a client sends up the socket.
type Inbound struct {
	Type           string `json:"type"` // "typing"
	ConversationID string `json:"conversation_id,omitempty"`
	IsTyping       bool   `json:"is_typing,omitempty"`
}

// InboundHandler receives the frames of userID's connections.
type InboundHandler func(ctx context.Context, userID string, in Inbound)

// Client is one websocket connection of a user.
type Client struct {
	userID string
	conn   *websocket.Conn
	send   chan any
}

// NewClient wraps conn for userID. conn may be nil for in-process consumers.
func NewClient(userID string, conn *websocket.Conn) *Client {
	return &Client{userID: userID, conn: conn, send: make(chan any, sendBuffer)}
}

// Send exposes the outgoing queue.
func (c *Client) Send() <-chan any { return c.send }

// Hub is the presence registry: users are online while at least one of their
// connections has joined and not yet left.
type Hub struct {
	log      *zap.Logger
	upgrader websocket.Upgrader

	mu            sync.RWMutex
	clientsByUser map[string]map[*Client]struct{}
	inbound       InboundHandler
}

// NewHub returns an empty hub.
func NewHub(log *zap.Logger) *Hub {
	if log == nil {
		log = zap.NewNop()
	}
	return &Hub{
		log: log.Named("realtime"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clientsByUser: make(map[string]map[*Client]struct{}),
	}
}

// HandleInbound sets the handler for client frames. Without one, frames are
// discarded.
func (h *Hub) HandleInbound(fn InboundHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.inbound = fn
}

func (h *Hub) dispatch(ctx context.Context, userID string, raw []byte) {
	h.mu.RLock()
	fn := h.inbound
	h.mu.RUnlock()
	if fn == nil {
		return
	}
	var in Inbound
	if err := json.Unmarshal(raw, &in); err != nil || in.Type == "" {
		h.log.Debug("bad client frame", zap.String("user_id", userID), zap.Error(err))
		return
	}
	fn(ctx, userID, in)
}

// Join registers c.
func (h *Hub) Join(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clientsByUser[c.userID] == nil {
		h.clientsByUser[c.userID] = make(map[*Client]struct{})
	}
	h.clientsByUser[c.userID][c] = struct{}{}
}

// Leave unregisters c and closes its queue. Leaving twice is a no-op.
func (h *Hub) Leave(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	peers, ok := h.clientsByUser[c.userID]
	if !ok {
		return
	}
	if _, ok := peers[c]; !ok {
		return
	}
	delete(peers, c)
	if len(peers) == 0 {
		delete(h.clientsByUser, c.userID)
	}
	close(c.send)
}

// Online reports whether userID has a live connection.
func (h *Hub) Online(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clientsByUser[userID]) > 0
}

// OnlineCount returns the number of users with a live connection.
func (h *Hub) OnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clientsByUser)
}

// SendToUser queues payload on every connection of userID and returns how
// many accepted it. Full queues drop the payload.
func (h *Hub) SendToUser(userID string, payload any) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	delivered := 0
	for c := range h.clientsByUser[userID] {
		select {
		case c.send <- payload:
			delivered++
		default:
			h.log.Debug("client queue full", zap.String("user_id", userID))
		}
	}
	return delivered
}

// OnMatchFormed notifies both participants.
func (h *Hub) OnMatchFormed(_ context.Context, evt matching.MatchFormed) {
	out := Event{Type: "match_formed", Data: evt}
	h.SendToUser(evt.Pair.Low, out)
	h.SendToUser(evt.Pair.High, out)
}

// ServeWS upgrades the request and keeps the socket joined until it closes.
// Client frames go to the inbound handler.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, userID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Debug("ws upgrade", zap.String("user_id", userID), zap.Error(err))
		return
	}

	c := NewClient(userID, conn)
	h.Join(c)
	c.send <- Event{Type: "info", Data: "connected"}

	go h.writePump(c)
	h.readPump(r.Context(), c)
}

func (h *Hub) readPump(ctx context.Context, c *Client) {
	defer func() {
		h.Leave(c)
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongTimeout))
	})
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		h.dispatch(ctx, c.userID, raw)
	}
}

func (h *Hub) writePump(c *Client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteJSON(payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
