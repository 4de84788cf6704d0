package wshub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"

	"turtlesoup/internal/metrics"
)

const writeTimeout = 10 * time.Second

// Client-to-server message types.
const (
	TypeJoinGame       = "join_game"
	TypePlayerReady    = "player_ready"
	TypePlayerUnready  = "player_unready"
	TypeSelectStory    = "select_story"
	TypeSubmitQuestion = "submit_question"
	TypeLeaveRoom      = "leave_room"
	TypeHeartbeat      = "heartbeat"
	TypePlayAgain      = "play_again"
)

// ClientMessage is the JSON structure received from clients.
type ClientMessage struct {
	Type     string `json:"type"`
	RoomID   string `json:"room_id,omitempty"`
	StoryID  *int   `json:"story_id,omitempty"`
	Question string `json:"question,omitempty"`
}

// ServerMessage is the JSON structure sent to clients.
type ServerMessage struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}

// WritePump reads from the Send channel and writes to the WebSocket connection.
func (c *Client) WritePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.Send:
			if !ok {
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.Conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				c.log.Debug().Err(err).Msg("write failed")
				c.Conn.Close(websocket.StatusInternalError, "write failed")
				return
			}
		}
	}
}

// enqueue hands msg to the write pump. A client that cannot keep up is
// disconnected rather than silently missing events.
func (c *Client) enqueue(msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		c.log.Error().Err(err).Str("event", msg.Event).Msg("marshal error")
		return
	}
	select {
	case c.Send <- data:
	default:
		c.log.Warn().Msg("send buffer full, closing connection")
		c.Conn.Close(websocket.StatusPolicyViolation, "client too slow")
	}
}

// Hub tracks the live WebSocket connections.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	metrics *metrics.Collectors
	log     zerolog.Logger
}

func NewHub(m *metrics.Collectors, log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		metrics: m,
		log:     log,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		return
	}
	h.clients[c] = struct{}{}
	h.metrics.ConnOpened()
}

// Unregister removes a client. It is safe to call more than once.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	h.metrics.ConnClosed()
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Clients returns the identities connected to room.
func (h *Hub) Clients(room string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	var ids []string
	for c := range h.clients {
		if c.Room() == room {
			ids = append(ids, c.Identity)
		}
	}
	return ids
}

// CloseAll closes every connection, as on server shutdown.
func (h *Hub) CloseAll(reason string) {
	h.mu.RLock()
	list := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		list = append(list, c)
	}
	h.mu.RUnlock()

	for _, c := range list {
		c.Conn.Close(websocket.StatusGoingAway, reason)
	}
	h.log.Info().Int("count", len(list)).Msg("closed websocket connections")
}
