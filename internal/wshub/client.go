package wshub

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"turtlesoup/internal/broadcast"
	"turtlesoup/internal/events"
	"turtlesoup/internal/game"
	"turtlesoup/internal/rooms"
)

const (
	sendBufferSize = 64
	detachTimeout  = 5 * time.Second

	// NewRoom as a join_game room_id asks for a fresh room.
	NewRoom = "new"
)

// Coordinator is the part of rooms.Store a connection drives.
type Coordinator interface {
	Join(ctx context.Context, code, identity string) (rooms.Snapshot, *broadcast.Subscription, error)
	JoinOrMatch(ctx context.Context, identity string) (rooms.Snapshot, *broadcast.Subscription, error)
	CreateAndJoin(ctx context.Context, identity string) (rooms.Snapshot, *broadcast.Subscription, error)
	Dispatch(ctx context.Context, code string, cmd rooms.Command) (rooms.Snapshot, error)
	Leave(ctx context.Context, code, identity string) error
	Disconnect(ctx context.Context, code, identity string) error
}

// Wire codes for failures that are not room rejections.
var (
	errAlreadyJoined  = &game.Error{Class: game.ClassValidation, Code: "already_joined", Message: "leave your current room first"}
	errNotInRoom      = &game.Error{Class: game.ClassValidation, Code: "not_in_room", Message: "join a room first"}
	errRoomNotFound   = &game.Error{Class: game.ClassValidation, Code: "room_not_found", Message: "room not found"}
	errRateLimited    = &game.Error{Class: game.ClassValidation, Code: "rate_limited", Message: "slow down"}
	errUnknownMessage = &game.Error{Class: game.ClassValidation, Code: "unknown_message", Message: "unknown message type"}
)

type Options struct {
	HeartbeatTimeout time.Duration
	// DefaultRoom is used by join_game messages that carry no room_id.
	DefaultRoom string
	Limit       rate.Limit
	Burst       int
}

// Client represents a single WebSocket connection in the hub.
type Client struct {
	Identity string
	Conn     *websocket.Conn
	Send     chan []byte

	hub       *Hub
	rooms     Coordinator
	limiter   *rate.Limiter
	heartbeat time.Duration
	defRoom   string
	expired   atomic.Bool
	log       zerolog.Logger

	mu   sync.Mutex
	room string
	sub  *broadcast.Subscription
}

func NewClient(identity string, conn *websocket.Conn, hub *Hub, coord Coordinator, opts Options) *Client {
	limit, burst := opts.Limit, opts.Burst
	if limit == 0 {
		limit, burst = 5, 10
	}
	return &Client{
		Identity:  identity,
		Conn:      conn,
		Send:      make(chan []byte, sendBufferSize),
		hub:       hub,
		rooms:     coord,
		limiter:   rate.NewLimiter(limit, burst),
		heartbeat: opts.HeartbeatTimeout,
		defRoom:   opts.DefaultRoom,
		log:       hub.log.With().Str("identity", identity).Logger(),
	}
}

// Room returns the code of the room the client is in, or "".
func (c *Client) Room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.room
}

// Serve runs the connection until the socket closes or the heartbeat lapses.
// A closed socket keeps the player's slot for the reconnect grace period; a
// lapsed heartbeat is a leave.
func (c *Client) Serve(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.hub.Register(c)
	defer c.hub.Unregister(c)

	go c.WritePump(ctx)

	var watchdog *time.Timer
	if c.heartbeat > 0 {
		watchdog = time.AfterFunc(c.heartbeat, func() {
			c.expired.Store(true)
			c.log.Info().Msg("heartbeat timeout")
			c.Conn.Close(websocket.StatusPolicyViolation, "heartbeat timeout")
			cancel()
		})
		defer watchdog.Stop()
	}

	for {
		var msg ClientMessage
		if err := wsjson.Read(ctx, c.Conn, &msg); err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				c.log.Debug().Err(err).Msg("read failed")
			}
			break
		}
		if watchdog != nil {
			watchdog.Reset(c.heartbeat)
		}
		if msg.Type != TypeHeartbeat && !c.limiter.Allow() {
			c.sendError(errRateLimited)
			continue
		}
		if err := c.handle(ctx, msg); err != nil {
			c.sendError(err)
		}
	}

	c.detach()
	c.Conn.Close(websocket.StatusNormalClosure, "")
}

func (c *Client) handle(ctx context.Context, msg ClientMessage) error {
	if msg.Type == TypeJoinGame {
		return c.join(ctx, msg.RoomID)
	}

	room := c.Room()
	if room == "" {
		if msg.Type == TypeHeartbeat {
			return nil
		}
		return errNotInRoom
	}

	var cmd rooms.Command
	switch msg.Type {
	case TypePlayerReady:
		cmd = rooms.SetReady{Identity: c.Identity, Ready: true}
	case TypePlayerUnready:
		cmd = rooms.SetReady{Identity: c.Identity, Ready: false}
	case TypeSelectStory:
		if msg.StoryID == nil {
			return game.ErrInvalidStory
		}
		cmd = rooms.SelectStory{Identity: c.Identity, StoryID: *msg.StoryID}
	case TypeSubmitQuestion:
		// Blocks until the judge answers; the heartbeat timeout outlasts the
		// judge timeout.
		cmd = rooms.SubmitQuestion{Identity: c.Identity, Question: msg.Question}
	case TypeHeartbeat:
		cmd = rooms.Heartbeat{Identity: c.Identity}
	case TypePlayAgain:
		cmd = rooms.PlayAgain{Identity: c.Identity}
	case TypeLeaveRoom:
		return c.leave(ctx)
	default:
		return errUnknownMessage
	}
	_, err := c.rooms.Dispatch(ctx, room, cmd)
	return err
}

func (c *Client) join(ctx context.Context, code string) error {
	if c.Room() != "" {
		return errAlreadyJoined
	}
	if code == "" {
		code = c.defRoom
	}

	var (
		snap rooms.Snapshot
		sub  *broadcast.Subscription
		err  error
	)
	switch code {
	case "":
		snap, sub, err = c.rooms.JoinOrMatch(ctx, c.Identity)
	case NewRoom:
		snap, sub, err = c.rooms.CreateAndJoin(ctx, c.Identity)
	default:
		snap, sub, err = c.rooms.Join(ctx, code, c.Identity)
	}
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.room = snap.RoomID
	c.sub = sub
	c.mu.Unlock()
	c.log.Info().Str("room", snap.RoomID).Msg("joined room")

	go c.forward(ctx, sub)
	return nil
}

func (c *Client) leave(ctx context.Context) error {
	room, _ := c.take()
	if room == "" {
		return errNotInRoom
	}
	c.log.Info().Str("room", room).Msg("left room")
	return c.rooms.Leave(ctx, room, c.Identity)
}

// take clears the client's room so the forwarder treats the end of its
// subscription as expected.
func (c *Client) take() (string, *broadcast.Subscription) {
	c.mu.Lock()
	defer c.mu.Unlock()
	room, sub := c.room, c.sub
	c.room, c.sub = "", nil
	return room, sub
}

func (c *Client) current(sub *broadcast.Subscription) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sub == sub
}

// detach tells the room the connection is gone. It runs on a fresh context:
// the connection's own is already cancelled.
func (c *Client) detach() {
	room, _ := c.take()
	if room == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), detachTimeout)
	defer cancel()

	var err error
	if c.expired.Load() {
		err = c.rooms.Leave(ctx, room, c.Identity)
	} else {
		err = c.rooms.Disconnect(ctx, room, c.Identity)
	}
	if err != nil && !errors.Is(err, rooms.ErrRoomNotFound) && !errors.Is(err, game.ErrNotMember) {
		c.log.Warn().Err(err).Str("room", room).Msg("detach failed")
	}
}

// forward copies room events to the write pump until the subscription ends.
func (c *Client) forward(ctx context.Context, sub *broadcast.Subscription) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub.C:
			if !ok {
				if c.current(sub) {
					// The room closed or dropped us for falling behind. The
					// room is kept so detach reports the drop once Serve exits.
					c.log.Warn().Msg("room subscription ended")
					c.Conn.Close(websocket.StatusPolicyViolation, "room subscription ended")
				}
				return
			}
			c.enqueue(ServerMessage{Event: string(ev.Name), Data: ev.Payload})
		}
	}
}

func (c *Client) sendError(err error) {
	c.enqueue(ServerMessage{Event: string(events.Error), Data: ErrorPayload(err)})
}

// ErrorPayload maps a command failure onto the error event body.
func ErrorPayload(err error) events.ErrorPayload {
	var desync *rooms.DesyncError
	if errors.As(err, &desync) {
		return events.ErrorPayload{
			Code:     game.ErrLifecycleViolation.Code,
			Message:  game.ErrLifecycleViolation.Message,
			Snapshot: desync.Snapshot,
		}
	}
	if errors.Is(err, rooms.ErrRoomNotFound) {
		err = errRoomNotFound
	}
	var gerr *game.Error
	if errors.As(err, &gerr) {
		return events.ErrorPayload{Code: gerr.Code, Message: gerr.Message}
	}
	return events.ErrorPayload{Code: "internal", Message: "something went wrong"}
}
