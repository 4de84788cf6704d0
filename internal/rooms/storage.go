package rooms

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"turtlesoup/internal/broadcast"
	"turtlesoup/internal/game"
	"turtlesoup/internal/judge"
	"turtlesoup/internal/metrics"
)

const (
	defaultTTL    = 1 * time.Hour
	sweepInterval = 5 * time.Minute
)

type Options struct {
	Capacity       int
	ReconnectGrace time.Duration
	JudgeTimeout   time.Duration
	IdleTTL        time.Duration
	Recorder       Recorder
	Metrics        *metrics.Collectors
	Clock          func() time.Time
	NewID          func() string
	Logger         *zerolog.Logger
}

// Store is the session coordinator: it owns every live room and routes
// commands to them by code.
type Store struct {
	mu     sync.Mutex
	rooms  map[string]*Room
	d      *deps
	ttl    time.Duration
	ctx    context.Context
	cancel context.CancelFunc
}

func NewStore(j judge.Judge, catalog Catalog, opts Options) *Store {
	d := &deps{
		judge:        j,
		catalog:      catalog,
		rec:          opts.Recorder,
		metrics:      opts.Metrics,
		now:          opts.Clock,
		newID:        opts.NewID,
		capacity:     opts.Capacity,
		grace:        opts.ReconnectGrace,
		judgeTimeout: opts.JudgeTimeout,
		log:          zerolog.Nop(),
	}
	if d.rec == nil {
		d.rec = nopRecorder{}
	}
	if d.now == nil {
		d.now = time.Now
	}
	if d.newID == nil {
		d.newID = uuid.NewString
	}
	if opts.Logger != nil {
		d.log = *opts.Logger
	}
	ttl := opts.IdleTTL
	if ttl <= 0 {
		ttl = defaultTTL
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		rooms:  make(map[string]*Room),
		d:      d,
		ttl:    ttl,
		ctx:    ctx,
		cancel: cancel,
	}
	go s.sweepStale()
	return s
}

// Create opens an empty room under a fresh code.
func (s *Store) Create() (*Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.ctx.Err() != nil {
		return nil, ErrRoomClosed
	}
	// Try up to 10 times to generate a unique code
	for range 10 {
		code, err := GenerateCode()
		if err != nil {
			return nil, fmt.Errorf("generating room code: %w", err)
		}
		if _, exists := s.rooms[code]; exists {
			continue
		}
		room := newRoom(s.ctx, code, s.d, s.remove)
		s.rooms[code] = room
		s.d.metrics.RoomOpened()
		s.d.log.Info().Str("room", code).Msg("room created")
		return room, nil
	}
	return nil, fmt.Errorf("failed to generate unique room code after 10 attempts")
}

func (s *Store) Get(code string) *Room {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms[NormalizeCode(code)]
}

// Delete closes a room and forgets it.
func (s *Store) Delete(code string) {
	if room := s.Get(code); room != nil {
		room.Close()
		<-room.Done()
	}
}

// remove runs when a room stops, whatever stopped it.
func (s *Store) remove(code string) {
	s.mu.Lock()
	_, ok := s.rooms[code]
	delete(s.rooms, code)
	s.mu.Unlock()
	if ok {
		s.d.metrics.RoomClosed()
		s.d.log.Info().Str("room", code).Msg("room closed")
	}
}

// List returns the live rooms, oldest first.
func (s *Store) List() []*Room {
	s.mu.Lock()
	list := make([]*Room, 0, len(s.rooms))
	for _, r := range s.rooms {
		list = append(list, r)
	}
	s.mu.Unlock()
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].Code < list[j].Code
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
	return list
}

// Join adds identity to the room and subscribes it to the room's events,
// starting with its room_joined snapshot.
func (s *Store) Join(ctx context.Context, code, identity string) (Snapshot, *broadcast.Subscription, error) {
	room := s.Get(code)
	if room == nil {
		return Snapshot{}, nil, ErrRoomNotFound
	}
	res := room.Send(ctx, Join{Identity: strings.TrimSpace(identity)})
	if errors.Is(res.Err, ErrRoomClosed) {
		return Snapshot{}, nil, ErrRoomNotFound
	}
	return res.Snapshot, res.Sub, res.Err
}

// CreateAndJoin opens a room with identity as its host.
func (s *Store) CreateAndJoin(ctx context.Context, identity string) (Snapshot, *broadcast.Subscription, error) {
	if strings.TrimSpace(identity) == "" {
		return Snapshot{}, nil, game.ErrEmptyInput
	}
	room, err := s.Create()
	if err != nil {
		return Snapshot{}, nil, err
	}
	snap, sub, err := s.Join(ctx, room.Code, identity)
	if err != nil {
		s.Delete(room.Code)
	}
	return snap, sub, err
}

// JoinOrMatch puts identity somewhere without a room code: back into a room
// still holding its slot, else into a lobby with a single waiting player,
// else into a new room.
func (s *Store) JoinOrMatch(ctx context.Context, identity string) (Snapshot, *broadcast.Subscription, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return Snapshot{}, nil, game.ErrEmptyInput
	}

	var snaps []Snapshot
	for _, room := range s.List() {
		snap, err := room.Snapshot(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return Snapshot{}, nil, ctx.Err()
			}
			continue
		}
		snaps = append(snaps, snap)
	}

	for _, snap := range snaps {
		if snap.HasMember(identity) {
			return s.Join(ctx, snap.RoomID, identity)
		}
	}
	for _, snap := range snaps {
		if snap.State != game.StateLobby || len(snap.Players) != 1 {
			continue
		}
		if res, sub, err := s.Join(ctx, snap.RoomID, identity); err == nil {
			return res, sub, nil
		}
	}
	return s.CreateAndJoin(ctx, identity)
}

// Dispatch applies a command other than Join to the room.
func (s *Store) Dispatch(ctx context.Context, code string, cmd Command) (Snapshot, error) {
	if _, ok := cmd.(Join); ok {
		return Snapshot{}, errors.New("rooms: join must go through Store.Join")
	}
	room := s.Get(code)
	if room == nil {
		return Snapshot{}, ErrRoomNotFound
	}
	res := room.Send(ctx, cmd)
	if errors.Is(res.Err, ErrRoomClosed) {
		return Snapshot{}, ErrRoomNotFound
	}
	return res.Snapshot, res.Err
}

func (s *Store) Leave(ctx context.Context, code, identity string) error {
	_, err := s.Dispatch(ctx, code, Leave{Identity: identity})
	return err
}

func (s *Store) Disconnect(ctx context.Context, code, identity string) error {
	_, err := s.Dispatch(ctx, code, Disconnect{Identity: identity})
	return err
}

func (s *Store) Heartbeat(ctx context.Context, code, identity string) error {
	_, err := s.Dispatch(ctx, code, Heartbeat{Identity: identity})
	return err
}

func (s *Store) Snapshot(ctx context.Context, code string) (Snapshot, error) {
	room := s.Get(code)
	if room == nil {
		return Snapshot{}, ErrRoomNotFound
	}
	snap, err := room.Snapshot(ctx)
	if errors.Is(err, ErrRoomClosed) {
		return Snapshot{}, ErrRoomNotFound
	}
	return snap, err
}

// Close stops every room and the sweeper.
func (s *Store) Close() {
	s.cancel()
	for _, room := range s.List() {
		<-room.Done()
	}
}

func (s *Store) sweepStale() {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.SweepIdle()
		}
	}
}

// SweepIdle closes rooms that have not seen a command for the idle TTL.
func (s *Store) SweepIdle() int {
	now := s.d.now()
	n := 0
	for _, room := range s.List() {
		if now.Sub(room.IdleSince()) > s.ttl {
			s.d.log.Info().Str("room", room.Code).Msg("closing idle room")
			room.Close()
			<-room.Done()
			n++
		}
	}
	return n
}
