package rooms

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"turtlesoup/internal/broadcast"
	"turtlesoup/internal/events"
	"turtlesoup/internal/game"
	"turtlesoup/internal/judge"
	"turtlesoup/internal/metrics"
)

const inboxSize = 64

// Result is a room's reply to one command. Sub is only set for a
// successful Join.
type Result struct {
	Snapshot Snapshot
	Sub      *broadcast.Subscription
	Err      error
}

type envelope struct {
	cmd   Command
	reply chan Result
}

type pendingSubmit struct {
	identity string
	question string
	gameID   string
	reply    chan Result
}

// deps is what a room needs from its store.
type deps struct {
	judge        judge.Judge
	catalog      Catalog
	rec          Recorder
	metrics      *metrics.Collectors
	now          func() time.Time
	newID        func() string
	capacity     int
	grace        time.Duration
	judgeTimeout time.Duration
	log          zerolog.Logger
}

// Room runs one room's state on its own goroutine. Commands from every
// connection go through the inbox, so they are applied one at a time and
// every subscriber sees the resulting events in the same order.
type Room struct {
	Code        string
	CreatedAt   time.Time
	Broadcaster *broadcast.Broadcaster

	d       *deps
	state   *State
	inbox   chan envelope
	done    chan struct{}
	ctx     context.Context
	cancel  context.CancelFunc
	once    sync.Once
	onClose func(code string)

	lastActive atomic.Int64

	pending  *pendingSubmit
	deferred []envelope
	grace    map[string]uint64
	token    uint64
	log      zerolog.Logger
}

func newRoom(parent context.Context, code string, d *deps, onClose func(string)) *Room {
	now := d.now()
	ctx, cancel := context.WithCancel(parent)
	r := &Room{
		Code:        code,
		CreatedAt:   now,
		Broadcaster: broadcast.NewBroadcaster(),
		d:           d,
		state:       NewState(code, d.capacity, now, d.rec),
		inbox:       make(chan envelope, inboxSize),
		done:        make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
		onClose:     onClose,
		grace:       make(map[string]uint64),
		log:         d.log.With().Str("room", code).Logger(),
	}
	r.lastActive.Store(now.UnixNano())
	go r.run()
	return r
}

// Send hands cmd to the room and waits for the outcome. Once the room has
// accepted the command it is applied even if ctx ends before the reply.
func (r *Room) Send(ctx context.Context, cmd Command) Result {
	reply := make(chan Result, 1)
	select {
	case r.inbox <- envelope{cmd: cmd, reply: reply}:
	case <-r.done:
		return Result{Err: ErrRoomClosed}
	case <-ctx.Done():
		return Result{Err: ctx.Err()}
	}
	select {
	case res := <-reply:
		return res
	case <-r.done:
		select {
		case res := <-reply:
			return res
		default:
			return Result{Err: ErrRoomClosed}
		}
	case <-ctx.Done():
		return Result{Err: ctx.Err()}
	}
}

func (r *Room) Snapshot(ctx context.Context) (Snapshot, error) {
	res := r.Send(ctx, snapshotQuery{})
	return res.Snapshot, res.Err
}

// Close stops the room. Pending callers get ErrRoomClosed.
func (r *Room) Close() {
	r.cancel()
}

// Done is closed once the room has stopped.
func (r *Room) Done() <-chan struct{} {
	return r.done
}

// IdleSince is the time of the last command the room applied.
func (r *Room) IdleSince() time.Time {
	return time.Unix(0, r.lastActive.Load())
}

// post is used by timers and judge calls to feed results back into the room.
func (r *Room) post(cmd Command) {
	select {
	case r.inbox <- envelope{cmd: cmd}:
	case <-r.done:
	}
}

func (r *Room) run() {
	defer r.shutdown()
	for {
		select {
		case <-r.ctx.Done():
			return
		case env := <-r.inbox:
			r.handle(env)
			if r.state.Members.Len() == 0 && r.emptied(env.cmd) {
				r.log.Info().Msg("room empty, closing")
				return
			}
		}
	}
}

// emptied reports whether cmd is one that can leave a room without members.
func (r *Room) emptied(cmd Command) bool {
	switch cmd.(type) {
	case Leave, Disconnect, graceExpired:
		return true
	}
	return false
}

func (r *Room) shutdown() {
	r.once.Do(func() {
		if r.state.Abandon(r.d.now()) {
			r.log.Info().Msg("room closed mid-game")
			r.d.metrics.GameFinished("aborted")
		}
		r.cancel()
		close(r.done)
		if r.pending != nil {
			reply(r.pending.reply, Result{Err: ErrRoomClosed})
			r.pending = nil
		}
		for _, env := range r.deferred {
			reply(env.reply, Result{Err: ErrRoomClosed})
		}
		r.deferred = nil
		r.Broadcaster.CloseAll()
		if r.onClose != nil {
			r.onClose(r.Code)
		}
	})
}

func reply(ch chan Result, res Result) {
	if ch != nil {
		ch <- res
	}
}

func (r *Room) handle(env envelope) {
	now := r.d.now()
	r.lastActive.Store(now.UnixNano())

	switch cmd := env.cmd.(type) {
	case Join:
		evs, err := r.state.Join(cmd.Identity, now)
		var sub *broadcast.Subscription
		if err == nil {
			r.stopGrace(cmd.Identity)
			r.Broadcaster.UnsubscribeIdentity(cmd.Identity)
			sub = r.Broadcaster.Subscribe(cmd.Identity)
		}
		r.finish(env, evs, err, sub)

	case Leave:
		evs, err := r.state.Leave(cmd.Identity, now)
		if err == nil {
			r.stopGrace(cmd.Identity)
		}
		r.finish(env, evs, err, nil)
		if err == nil {
			r.Broadcaster.UnsubscribeIdentity(cmd.Identity)
		}

	case Disconnect:
		if r.d.grace <= 0 {
			evs, err := r.state.Leave(cmd.Identity, now)
			r.finish(env, evs, err, nil)
			if err == nil {
				r.Broadcaster.UnsubscribeIdentity(cmd.Identity)
			}
			break
		}
		evs, err := r.state.Disconnect(cmd.Identity, now)
		if err == nil && !r.state.Members.IsConnected(cmd.Identity) {
			r.Broadcaster.UnsubscribeIdentity(cmd.Identity)
			r.startGrace(cmd.Identity)
		}
		r.finish(env, evs, err, nil)

	case Heartbeat:
		evs, err := r.state.Heartbeat(cmd.Identity, now)
		if err == nil {
			r.stopGrace(cmd.Identity)
		}
		r.finish(env, evs, err, nil)

	case SetReady:
		evs, err := r.state.SetReady(cmd.Identity, cmd.Ready)
		r.finish(env, evs, err, nil)

	case SelectStory:
		evs, err := r.state.SelectStory(cmd.Identity, cmd.StoryID, r.d.catalog, r.d.newID(), now)
		if err == nil {
			r.log.Info().Str("host", cmd.Identity).Int("story", cmd.StoryID).Msg("game started")
		}
		r.finish(env, evs, err, nil)

	case SubmitQuestion:
		if r.pending != nil {
			// Another question is with the judge; look at this one afterwards.
			r.deferred = append(r.deferred, env)
			return
		}
		req, err := r.state.BeginSubmit(cmd.Identity, cmd.Question)
		if err != nil {
			r.finish(env, nil, err, nil)
			return
		}
		p := &pendingSubmit{
			identity: cmd.Identity,
			question: req.Question,
			gameID:   r.state.Game.ID,
			reply:    env.reply,
		}
		r.pending = p
		go r.evaluate(p, req)

	case verdictArrived:
		if cmd.pending != r.pending {
			return
		}
		r.pending = nil
		r.applyVerdict(cmd, now)
		r.replayDeferred()

	case graceExpired:
		if r.grace[cmd.identity] != cmd.token {
			return
		}
		delete(r.grace, cmd.identity)
		if r.state.Members.Get(cmd.identity) == nil || r.state.Members.IsConnected(cmd.identity) {
			return
		}
		r.log.Info().Str("identity", cmd.identity).Msg("reconnect grace expired")
		evs, err := r.state.Leave(cmd.identity, now)
		r.finish(env, evs, err, nil)

	case PlayAgain:
		evs, err := r.state.PlayAgain(cmd.Identity, now)
		r.finish(env, evs, err, nil)

	case snapshotQuery:
		reply(env.reply, Result{Snapshot: r.state.Snapshot()})
	}

	r.reconcilePending()
}

func (r *Room) applyVerdict(v verdictArrived, now time.Time) {
	p := v.pending
	if v.err != nil {
		r.log.Warn().Err(v.err).Str("identity", p.identity).Msg("judge failed")
		evs := r.state.CancelSubmit(p.identity, now)
		r.finish(envelope{cmd: SubmitQuestion{Identity: p.identity}, reply: p.reply}, evs, game.ErrJudgeUnavailable, nil)
		return
	}

	evs, err := r.state.ApplyVerdict(p.gameID, p.identity, p.question, v.verdict, now)
	if errors.Is(err, errStaleVerdict) {
		err = game.ErrLifecycleViolation
	}
	if err == nil && r.state.Phase == game.StateFinished {
		r.d.metrics.GameFinished("solved")
	}
	r.finish(envelope{cmd: SubmitQuestion{Identity: p.identity}, reply: p.reply}, evs, err, nil)
}

// reconcilePending settles a submission the state no longer waits on,
// because its submitter left or its game ended.
func (r *Room) reconcilePending() {
	p := r.pending
	if p == nil || r.state.Judging() == p.identity {
		return
	}
	r.pending = nil
	err := error(game.ErrLifecycleViolation)
	if r.state.Members.Get(p.identity) == nil {
		err = game.ErrNotMember
	}
	r.finish(envelope{cmd: SubmitQuestion{Identity: p.identity}, reply: p.reply}, nil, err, nil)
	r.replayDeferred()
}

func (r *Room) replayDeferred() {
	queued := r.deferred
	r.deferred = nil
	for _, env := range queued {
		r.handle(env)
	}
}

func (r *Room) evaluate(p *pendingSubmit, req judge.Request) {
	ctx := r.ctx
	if r.d.judgeTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.d.judgeTimeout)
		defer cancel()
	}
	v, err := r.d.judge.Evaluate(ctx, req)
	r.post(verdictArrived{pending: p, verdict: v, err: err})
}

func (r *Room) startGrace(identity string) {
	r.token++
	token := r.token
	r.grace[identity] = token
	time.AfterFunc(r.d.grace, func() {
		r.post(graceExpired{identity: identity, token: token})
	})
}

func (r *Room) stopGrace(identity string) {
	delete(r.grace, identity)
}

// finish publishes evs, records the outcome and answers the caller. Lifecycle
// rejections carry the current snapshot.
func (r *Room) finish(env envelope, evs []events.Event, err error, sub *broadcast.Subscription) {
	if len(evs) > 0 {
		r.Broadcaster.Publish(evs...)
		for _, ev := range evs {
			if ev.Name == events.ReturnedToLobby {
				if p, ok := ev.Payload.(events.ReturnedToLobbyPayload); ok && p.Reason == events.ReasonAborted {
					r.d.metrics.GameFinished("aborted")
				}
			}
		}
	}
	if errors.Is(err, game.ErrLifecycleViolation) {
		err = &DesyncError{Snapshot: r.state.Snapshot()}
	}
	r.d.metrics.ObserveCommand(env.cmd.Name(), err)
	if err != nil {
		r.log.Debug().Str("command", env.cmd.Name()).Err(err).Msg("command rejected")
	}
	reply(env.reply, Result{Snapshot: r.state.Snapshot(), Sub: sub, Err: err})
}
