package rooms

import (
	"strings"
	"time"

	"turtlesoup/internal/events"
	"turtlesoup/internal/game"
	"turtlesoup/internal/judge"
	"turtlesoup/internal/players"
	"turtlesoup/internal/stories"
)

// Catalog resolves story ids for select_story.
type Catalog interface {
	Get(id int) (stories.Story, bool)
}

// Recorder is told about game lifecycle facts as they happen. It is called
// from the room goroutine and must not block.
type Recorder interface {
	GameStarted(roomID, host string, s game.Session)
	QuestionJudged(gameID string, seq int, ex game.Exchange)
	GameEnded(gameID, winner string, aborted bool, at time.Time)
}

type nopRecorder struct{}

func (nopRecorder) GameStarted(string, string, game.Session)  {}
func (nopRecorder) QuestionJudged(string, int, game.Exchange) {}
func (nopRecorder) GameEnded(string, string, bool, time.Time) {}

// State is the room aggregate. Every method validates before it mutates, so
// a rejected command leaves the state untouched. State is not safe for
// concurrent use; Room owns it from a single goroutine.
type State struct {
	ID        string
	Host      string
	Members   *players.Store
	Phase     game.State
	Game      *game.Session
	CreatedAt time.Time
	Capacity  int // 0 means unlimited

	gateOpen bool
	judging  string // submitter whose question is with the judge
	rec      Recorder
}

func NewState(id string, capacity int, now time.Time, rec Recorder) *State {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &State{
		ID:        id,
		Members:   players.NewStore(),
		Phase:     game.StateLobby,
		CreatedAt: now,
		Capacity:  capacity,
		rec:       rec,
	}
}

// Judging returns the identity whose submission awaits a verdict, or "".
func (st *State) Judging() string {
	return st.judging
}

func (st *State) GateOpen() bool {
	return st.gateOpen
}

func (st *State) connected(identity string) bool {
	return st.Members.IsConnected(identity)
}

func (st *State) Join(identity string, now time.Time) ([]events.Event, error) {
	identity = strings.TrimSpace(identity)
	if identity == "" {
		return nil, game.ErrEmptyInput
	}

	if p := st.Members.Get(identity); p != nil {
		if p.Connected {
			return nil, game.ErrDuplicateIdentity
		}
		// Resuming a slot kept open by the reconnect grace period.
		st.Members.SetConnected(identity, true, now)
		evs := []events.Event{
			events.To(identity, events.RoomJoined, st.Snapshot()),
			events.BroadcastExcept(identity, events.PlayerConnectionChanged, events.ConnectionPayload{Username: identity, Connected: true}),
		}
		return append(evs, st.recomputeGate()...), nil
	}

	if st.Capacity > 0 && st.Members.Len() >= st.Capacity {
		return nil, game.ErrRoomFull
	}
	st.Members.Add(identity, now)
	if st.Host == "" {
		st.Host = identity
	}
	evs := []events.Event{
		events.To(identity, events.RoomJoined, st.Snapshot()),
		events.BroadcastExcept(identity, events.PlayerJoined, events.PlayerPayload{Username: identity}),
	}
	return append(evs, st.recomputeGate()...), nil
}

// Leave removes identity for good. A departing host hands over to the
// earliest-joined remaining member before anyone hears about the departure.
func (st *State) Leave(identity string, now time.Time) ([]events.Event, error) {
	if st.Members.Get(identity) == nil {
		return nil, game.ErrNotMember
	}
	st.Members.Remove(identity)

	var evs []events.Event
	if st.Host == identity {
		st.Host = players.ElectHost(st.Members.GetList())
		if st.Host != "" {
			evs = append(evs, events.Broadcast(events.NewHost, events.HostPayload{Host: st.Host}))
		}
	}
	evs = append(evs, events.Broadcast(events.PlayerLeft, events.PlayerPayload{Username: identity}))

	if st.judging == identity {
		st.judging = ""
	}
	if st.Phase == game.StatePlaying {
		moved := st.Game.Remove(identity, st.connected)
		if abort := st.checkAbort(now); abort != nil {
			evs = append(evs, abort...)
		} else if moved {
			evs = append(evs, st.turnChanged())
		}
	}
	return append(evs, st.recomputeGate()...), nil
}

// Disconnect marks identity as gone without giving up its slot. The turn
// moves on unless the player's question is still being judged.
func (st *State) Disconnect(identity string, now time.Time) ([]events.Event, error) {
	p := st.Members.Get(identity)
	if p == nil {
		return nil, game.ErrNotMember
	}
	if !p.Connected {
		return nil, nil
	}
	st.Members.SetConnected(identity, false, now)
	evs := []events.Event{
		events.Broadcast(events.PlayerConnectionChanged, events.ConnectionPayload{Username: identity, Connected: false}),
	}

	if st.Phase == game.StatePlaying {
		moved := false
		if st.Game.CurrentPlayer() == identity && st.judging != identity {
			st.Game.Advance(identity, st.connected)
			moved = true
		}
		if abort := st.checkAbort(now); abort != nil {
			evs = append(evs, abort...)
		} else if moved {
			evs = append(evs, st.turnChanged())
		}
	}
	return append(evs, st.recomputeGate()...), nil
}

// Heartbeat refreshes identity's liveness, reconnecting it if it had been
// marked as gone.
func (st *State) Heartbeat(identity string, now time.Time) ([]events.Event, error) {
	p := st.Members.Get(identity)
	if p == nil {
		return nil, game.ErrNotMember
	}
	p.LastSeen = now
	if p.Connected {
		return nil, nil
	}
	st.Members.SetConnected(identity, true, now)
	evs := []events.Event{
		events.Broadcast(events.PlayerConnectionChanged, events.ConnectionPayload{Username: identity, Connected: true}),
	}
	return append(evs, st.recomputeGate()...), nil
}

func (st *State) SetReady(identity string, ready bool) ([]events.Event, error) {
	if st.Members.Get(identity) == nil {
		return nil, game.ErrNotMember
	}
	if st.Phase != game.StateLobby {
		return nil, game.ErrLifecycleViolation
	}
	st.Members.SetReady(identity, ready)
	evs := []events.Event{
		events.Broadcast(events.PlayerStatusChanged, events.StatusPayload{Username: identity, Ready: ready}),
	}
	return append(evs, st.recomputeGate()...), nil
}

// SelectStory starts a game. The turn order is the ready, connected members
// in join order.
func (st *State) SelectStory(identity string, storyID int, catalog Catalog, gameID string, now time.Time) ([]events.Event, error) {
	if st.Members.Get(identity) == nil {
		return nil, game.ErrNotMember
	}
	if st.Phase != game.StateLobby {
		return nil, game.ErrLifecycleViolation
	}
	if identity != st.Host {
		return nil, game.ErrNotHost
	}
	if !st.gateOpen {
		return nil, game.ErrNotReady
	}
	story, ok := catalog.Get(storyID)
	if !ok {
		return nil, game.ErrInvalidStory
	}

	var order []string
	for _, p := range st.Members.GetList() {
		if p.Ready && p.Connected {
			order = append(order, p.ID)
		}
	}
	if len(order) == 0 {
		return nil, game.ErrNotReady
	}

	st.Game = game.NewSession(gameID, storyID, story.Surface, story.Bottom, order, now)
	st.Phase = game.StatePlaying
	st.gateOpen = false
	st.rec.GameStarted(st.ID, st.Host, *st.Game)

	return []events.Event{
		events.Broadcast(events.GameStarted, events.GameStartedPayload{
			StoryID:     storyID,
			Surface:     story.Surface,
			CurrentTurn: st.Game.CurrentPlayer(),
		}),
	}, nil
}

// BeginSubmit accepts a question from the turn holder and returns what the
// judge needs. Until ApplyVerdict or CancelSubmit the turn stays put.
func (st *State) BeginSubmit(identity, question string) (judge.Request, error) {
	if st.Members.Get(identity) == nil {
		return judge.Request{}, game.ErrNotMember
	}
	if st.Phase != game.StatePlaying {
		return judge.Request{}, game.ErrLifecycleViolation
	}
	if st.judging != "" || st.Game.CurrentPlayer() != identity {
		return judge.Request{}, game.ErrNotYourTurn
	}
	question = strings.TrimSpace(question)
	if question == "" {
		return judge.Request{}, game.ErrEmptyInput
	}

	st.judging = identity
	history := make([]judge.Exchange, len(st.Game.History))
	for i, ex := range st.Game.History {
		history[i] = judge.Exchange{Identity: ex.Identity, Question: ex.Question, Answer: ex.Answer}
	}
	return judge.Request{
		Surface:  st.Game.Surface,
		Solution: st.Game.Solution,
		Question: question,
		History:  history,
	}, nil
}

// CancelSubmit drops a pending submission after a judge failure.
func (st *State) CancelSubmit(identity string, now time.Time) []events.Event {
	if st.judging != identity {
		return nil
	}
	st.judging = ""
	if st.Phase != game.StatePlaying {
		return nil
	}
	// A holder who dropped while being judged kept the turn; pass it on now.
	holder := st.Game.CurrentPlayer()
	if holder == "" || st.connected(holder) {
		return nil
	}
	st.Game.Advance(holder, st.connected)
	if abort := st.checkAbort(now); abort != nil {
		return append(abort, st.recomputeGate()...)
	}
	return []events.Event{st.turnChanged()}
}

// ApplyVerdict records a judged question. A correct one ends the game;
// otherwise the turn passes to the next connected player.
func (st *State) ApplyVerdict(gameID, identity, question string, v judge.Verdict, now time.Time) ([]events.Event, error) {
	if st.judging != identity || st.Phase != game.StatePlaying || st.Game == nil || st.Game.ID != gameID {
		return nil, errStaleVerdict
	}
	st.judging = ""

	question = strings.TrimSpace(question)
	ex := game.Exchange{Identity: identity, Question: question, Answer: v.Answer, Correct: v.Correct, AskedAt: now}
	st.Game.Record(ex)
	st.rec.QuestionJudged(st.Game.ID, len(st.Game.History), ex)

	if v.Correct {
		st.Game.Winner = identity
		st.Game.EndedAt = now
		st.Phase = game.StateFinished
		st.rec.GameEnded(st.Game.ID, identity, false, now)
		return []events.Event{
			events.Broadcast(events.GameOver, events.GameOverPayload{
				Winner:        identity,
				FinalQuestion: question,
				Surface:       st.Game.Surface,
				Bottom:        st.Game.Solution,
			}),
		}, nil
	}

	st.Game.Advance(identity, st.connected)
	evs := []events.Event{
		events.Broadcast(events.QuestionAnswered, events.QuestionAnsweredPayload{
			Username: identity,
			Question: question,
			Judgment: v.Answer,
			NextTurn: st.Game.CurrentPlayer(),
		}),
	}
	return append(evs, st.checkAbort(now)...), nil
}

func (st *State) PlayAgain(identity string, now time.Time) ([]events.Event, error) {
	if st.Members.Get(identity) == nil {
		return nil, game.ErrNotMember
	}
	if st.Phase != game.StateFinished {
		return nil, game.ErrLifecycleViolation
	}
	evs := st.returnToLobby(events.ReasonPlayAgain, now)
	return append(evs, st.recomputeGate()...), nil
}

// Abandon ends a running game because the room itself is closing. It
// reports whether there was one.
func (st *State) Abandon(now time.Time) bool {
	if st.Phase != game.StatePlaying {
		return false
	}
	st.returnToLobby(events.ReasonAborted, now)
	return true
}

// checkAbort ends a game that can no longer go on: fewer than MinPlayers
// connected, or nobody left who may take a turn.
func (st *State) checkAbort(now time.Time) []events.Event {
	if st.Phase != game.StatePlaying {
		return nil
	}
	if st.Members.ConnectedCount() >= game.MinPlayers && st.Game.CurrentTurn >= 0 {
		return nil
	}
	return st.returnToLobby(events.ReasonAborted, now)
}

func (st *State) returnToLobby(reason string, now time.Time) []events.Event {
	if reason == events.ReasonAborted && st.Game != nil {
		st.Game.EndedAt = now
		st.rec.GameEnded(st.Game.ID, "", true, now)
	}
	st.Phase = game.StateLobby
	st.Game = nil
	st.judging = ""
	st.gateOpen = false
	st.Members.ResetAll()
	return []events.Event{
		events.Broadcast(events.ReturnedToLobby, events.ReturnedToLobbyPayload{Reason: reason}),
	}
}

func (st *State) turnChanged() events.Event {
	return events.Broadcast(events.TurnChanged, events.TurnChangedPayload{CurrentTurn: st.Game.CurrentPlayer()})
}

// recomputeGate announces all_players_ready only when the gate opens.
func (st *State) recomputeGate() []events.Event {
	open := st.Phase == game.StateLobby && game.GateOpen(st.Members.GetList(), st.Host)
	was := st.gateOpen
	st.gateOpen = open
	if open && !was {
		return []events.Event{events.Broadcast(events.AllPlayersReady, struct{}{})}
	}
	return nil
}
