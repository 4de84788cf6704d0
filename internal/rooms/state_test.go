package rooms

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"turtlesoup/internal/events"
	"turtlesoup/internal/game"
	"turtlesoup/internal/judge"
	"turtlesoup/internal/stories"
)

type mapCatalog map[int]stories.Story

func (m mapCatalog) Get(id int) (stories.Story, bool) {
	s, ok := m[id]
	return s, ok
}

var testCatalog = mapCatalog{
	5: {Title: "Soup", Surface: "A man orders turtle soup and weeps.", Bottom: "he had eaten human flesh"},
}

var t0 = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

type recorded struct {
	started   []game.Session
	questions []game.Exchange
	ended     []string
	aborted   []bool
}

func (r *recorded) GameStarted(_, _ string, s game.Session) { r.started = append(r.started, s) }
func (r *recorded) QuestionJudged(_ string, _ int, ex game.Exchange) {
	r.questions = append(r.questions, ex)
}
func (r *recorded) GameEnded(_, winner string, aborted bool, _ time.Time) {
	r.ended = append(r.ended, winner)
	r.aborted = append(r.aborted, aborted)
}

func newTestState(t *testing.T, ids ...string) *State {
	t.Helper()
	st := NewState("ABCD", 0, t0, nil)
	for _, id := range ids {
		_, err := st.Join(id, t0)
		require.NoError(t, err)
	}
	return st
}

// playing returns a room with A as host, everyone ready and story 5 started.
func playing(t *testing.T, ids ...string) *State {
	t.Helper()
	st := newTestState(t, ids...)
	for _, id := range ids {
		_, err := st.SetReady(id, true)
		require.NoError(t, err)
	}
	_, err := st.SelectStory(ids[0], 5, testCatalog, "game-1", t0)
	require.NoError(t, err)
	return st
}

func submit(t *testing.T, st *State, identity, question string, v judge.Verdict) []events.Event {
	t.Helper()
	_, err := st.BeginSubmit(identity, question)
	require.NoError(t, err)
	evs, err := st.ApplyVerdict(st.Game.ID, identity, question, v, t0)
	require.NoError(t, err)
	return evs
}

func TestJoin_FirstMemberIsHost(t *testing.T) {
	st := NewState("ABCD", 0, t0, nil)
	evs, err := st.Join("A", t0)
	require.NoError(t, err)

	assert.Equal(t, "A", st.Host)
	assert.Equal(t, []events.Name{events.RoomJoined, events.PlayerJoined}, events.Names(evs))
	assert.Equal(t, "A", evs[0].To)
	assert.Equal(t, "A", evs[1].Except)

	snap := evs[0].Payload.(Snapshot)
	assert.Equal(t, []string{"A"}, snap.Players)
	assert.Equal(t, game.StateLobby, snap.State)
	assert.Nil(t, snap.Game)
}

func TestJoin_Rejections(t *testing.T) {
	st := newTestState(t, "A")
	st.Capacity = 2

	_, err := st.Join("  ", t0)
	assert.ErrorIs(t, err, game.ErrEmptyInput)

	_, err = st.Join("A", t0)
	assert.ErrorIs(t, err, game.ErrDuplicateIdentity)

	_, err = st.Join("B", t0)
	require.NoError(t, err)
	_, err = st.Join("C", t0)
	assert.ErrorIs(t, err, game.ErrRoomFull)
	assert.Equal(t, []string{"A", "B"}, st.Members.IDs())
}

func TestJoin_ResumesDisconnectedSlot(t *testing.T) {
	st := newTestState(t, "A", "B")
	_, err := st.SetReady("B", true)
	require.NoError(t, err)
	_, err = st.Disconnect("B", t0)
	require.NoError(t, err)
	assert.False(t, st.GateOpen())

	evs, err := st.Join("B", t0)
	require.NoError(t, err)
	assert.Equal(t, []events.Name{events.RoomJoined, events.PlayerConnectionChanged, events.AllPlayersReady}, events.Names(evs))
	assert.Equal(t, []string{"A", "B"}, st.Members.IDs())
	assert.True(t, st.Members.Get("B").Ready)
}

func TestLeave_HostReelectedBeforeAnythingElse(t *testing.T) {
	st := newTestState(t, "A", "B", "C")

	evs, err := st.Leave("A", t0)
	require.NoError(t, err)

	assert.Equal(t, "B", st.Host)
	require.NotEmpty(t, evs)
	assert.Equal(t, events.NewHost, evs[0].Name)
	assert.Equal(t, events.HostPayload{Host: "B"}, evs[0].Payload)
	assert.Equal(t, events.PlayerLeft, evs[1].Name)

	_, err = st.Leave("A", t0)
	assert.ErrorIs(t, err, game.ErrNotMember)
}

func TestLeave_HostIsAlwaysEarliestSurvivor(t *testing.T) {
	st := newTestState(t, "A", "B", "C", "D")
	for _, tc := range []struct {
		leaver string
		host   string
	}{
		{"C", "A"},
		{"A", "B"},
		{"B", "D"},
	} {
		_, err := st.Leave(tc.leaver, t0)
		require.NoError(t, err)
		assert.Equal(t, tc.host, st.Host, "after %s left", tc.leaver)
	}

	evs, err := st.Leave("D", t0)
	require.NoError(t, err)
	assert.Equal(t, "", st.Host)
	assert.Equal(t, []events.Name{events.PlayerLeft}, events.Names(evs))
}

func TestGate_EdgeTriggered(t *testing.T) {
	st := newTestState(t, "A", "B", "C")

	evs, _ := st.SetReady("B", true)
	assert.Equal(t, []events.Name{events.PlayerStatusChanged}, events.Names(evs))

	evs, _ = st.SetReady("C", true)
	assert.Equal(t, []events.Name{events.PlayerStatusChanged, events.AllPlayersReady}, events.Names(evs))

	// Host readiness does not matter and does not re-fire.
	evs, _ = st.SetReady("A", true)
	assert.Equal(t, []events.Name{events.PlayerStatusChanged}, events.Names(evs))

	evs, _ = st.SetReady("C", false)
	assert.Equal(t, []events.Name{events.PlayerStatusChanged}, events.Names(evs))
	assert.False(t, st.GateOpen())

	evs, _ = st.SetReady("C", true)
	assert.Equal(t, []events.Name{events.PlayerStatusChanged, events.AllPlayersReady}, events.Names(evs))

	// A newcomer closes the gate.
	_, err := st.Join("D", t0)
	require.NoError(t, err)
	assert.False(t, st.GateOpen())
}

func TestGate_WaitsForDroppedHost(t *testing.T) {
	st := newTestState(t, "A", "B", "C")
	_, err := st.SetReady("B", true)
	require.NoError(t, err)

	evs, err := st.Disconnect("A", t0)
	require.NoError(t, err)
	assert.Equal(t, []events.Name{events.PlayerConnectionChanged}, events.Names(evs))

	evs, err = st.SetReady("C", true)
	require.NoError(t, err)
	assert.Equal(t, []events.Name{events.PlayerStatusChanged}, events.Names(evs))
	assert.False(t, st.GateOpen())

	evs, err = st.Heartbeat("A", t0)
	require.NoError(t, err)
	assert.Equal(t, []events.Name{events.PlayerConnectionChanged, events.AllPlayersReady}, events.Names(evs))
	assert.True(t, st.GateOpen())
}

func TestSelectStory_Checks(t *testing.T) {
	st := newTestState(t, "A", "B")

	_, err := st.SelectStory("B", 5, testCatalog, "g", t0)
	assert.ErrorIs(t, err, game.ErrNotHost)

	_, err = st.SelectStory("A", 5, testCatalog, "g", t0)
	assert.ErrorIs(t, err, game.ErrNotReady)

	_, _ = st.SetReady("B", true)
	_, err = st.SelectStory("A", 99, testCatalog, "g", t0)
	assert.ErrorIs(t, err, game.ErrInvalidStory)
	assert.Equal(t, game.StateLobby, st.Phase)
	assert.Nil(t, st.Game)
}

func TestThreePlayerGameToGameOver(t *testing.T) {
	rec := &recorded{}
	st := NewState("ABCD", 0, t0, rec)
	for _, id := range []string{"A", "B", "C"} {
		_, err := st.Join(id, t0)
		require.NoError(t, err)
	}

	_, _ = st.SetReady("B", true)
	evs, _ := st.SetReady("C", true)
	assert.Contains(t, events.Names(evs), events.AllPlayersReady)

	evs, err := st.SelectStory("A", 5, testCatalog, "game-1", t0)
	require.NoError(t, err)
	require.Len(t, evs, 1)
	assert.Equal(t, events.GameStartedPayload{StoryID: 5, Surface: testCatalog[5].Surface, CurrentTurn: "B"}, evs[0].Payload)
	assert.Equal(t, []string{"B", "C"}, st.Game.TurnOrder)
	require.Len(t, rec.started, 1)

	evs = submit(t, st, "B", "Is it alive?", judge.Verdict{Answer: judge.AnswerNo})
	assert.Equal(t, 1, st.Game.CurrentTurn)
	assert.Equal(t, events.QuestionAnsweredPayload{Username: "B", Question: "Is it alive?", Judgment: "no", NextTurn: "C"}, evs[0].Payload)

	evs = submit(t, st, "C", "he had eaten human flesh", judge.Verdict{Correct: true, Answer: judge.AnswerYes})
	assert.Equal(t, []events.Name{events.GameOver}, events.Names(evs))
	assert.Equal(t, "C", evs[0].Payload.(events.GameOverPayload).Winner)
	assert.Equal(t, game.StateFinished, st.Phase)

	for _, id := range []string{"B", "C"} {
		_, err = st.BeginSubmit(id, "again?")
		assert.ErrorIs(t, err, game.ErrLifecycleViolation)
	}
	assert.Len(t, st.Game.History, 2)
	assert.Equal(t, []string{"C"}, rec.ended)
	assert.Len(t, rec.questions, 2)
}

func TestSubmit_OnlyTurnHolder(t *testing.T) {
	st := playing(t, "A", "B", "C")
	assert.Equal(t, "A", st.Game.CurrentPlayer())

	_, err := st.BeginSubmit("B", "Is it a dog?")
	assert.ErrorIs(t, err, game.ErrNotYourTurn)

	_, err = st.BeginSubmit("A", "   ")
	assert.ErrorIs(t, err, game.ErrEmptyInput)

	assert.Equal(t, 0, st.Game.CurrentTurn)
	assert.Empty(t, st.Game.History)
	assert.Equal(t, "", st.Judging())
}

func TestSubmit_JudgeFailureKeepsTurn(t *testing.T) {
	st := playing(t, "A", "B")

	_, err := st.BeginSubmit("A", "Was it poison?")
	require.NoError(t, err)
	_, err = st.BeginSubmit("A", "Was it poison?")
	assert.ErrorIs(t, err, game.ErrNotYourTurn, "a second question waits for the first verdict")

	assert.Empty(t, st.CancelSubmit("A", t0))
	assert.Equal(t, "A", st.Game.CurrentPlayer())
	_, err = st.BeginSubmit("A", "Was it poison?")
	assert.NoError(t, err)
}

func TestDisconnect_SkipsTurnHolder(t *testing.T) {
	st := playing(t, "A", "B", "C")

	evs, err := st.Disconnect("A", t0)
	require.NoError(t, err)

	assert.Equal(t, []events.Name{events.PlayerConnectionChanged, events.TurnChanged}, events.Names(evs))
	assert.Equal(t, "B", st.Game.CurrentPlayer())
	assert.Equal(t, game.StatePlaying, st.Phase)
	assert.Equal(t, []string{"A", "B", "C"}, st.Game.TurnOrder, "disconnected slots are skipped, not removed")

	submit(t, st, "B", "Was it night?", judge.Verdict{Answer: judge.AnswerNo})
	submit(t, st, "C", "Was it raining?", judge.Verdict{Answer: judge.AnswerNo})
	assert.Equal(t, "B", st.Game.CurrentPlayer())
}

func TestDisconnect_DuringJudgingKeepsTurn(t *testing.T) {
	st := playing(t, "A", "B", "C")
	_, err := st.BeginSubmit("A", "Was he sad?")
	require.NoError(t, err)

	evs, err := st.Disconnect("A", t0)
	require.NoError(t, err)
	assert.Equal(t, []events.Name{events.PlayerConnectionChanged}, events.Names(evs))
	assert.Equal(t, "A", st.Game.CurrentPlayer())

	evs, err = st.ApplyVerdict("game-1", "A", "Was he sad?", judge.Verdict{Answer: judge.AnswerYes}, t0)
	require.NoError(t, err)
	assert.Equal(t, "B", evs[0].Payload.(events.QuestionAnsweredPayload).NextTurn)
}

func TestDisconnect_JudgeFailurePassesTurn(t *testing.T) {
	st := playing(t, "A", "B", "C")
	_, err := st.BeginSubmit("A", "Was he sad?")
	require.NoError(t, err)
	_, err = st.Disconnect("A", t0)
	require.NoError(t, err)
	require.Equal(t, "A", st.Game.CurrentPlayer())

	evs := st.CancelSubmit("A", t0)
	assert.Equal(t, []events.Name{events.TurnChanged}, events.Names(evs))
	assert.Equal(t, events.TurnChangedPayload{CurrentTurn: "B"}, evs[0].Payload)
	assert.Equal(t, "", st.Judging())

	submit(t, st, "B", "Was it night?", judge.Verdict{Answer: judge.AnswerNo})
	assert.Equal(t, "C", st.Game.CurrentPlayer())
}

func TestDisconnect_JudgeFailureWithOnePlayerLeftAborts(t *testing.T) {
	rec := &recorded{}
	st := NewState("ABCD", 0, t0, rec)
	for _, id := range []string{"A", "B"} {
		_, err := st.Join(id, t0)
		require.NoError(t, err)
		_, err = st.SetReady(id, true)
		require.NoError(t, err)
	}
	_, err := st.SelectStory("A", 5, testCatalog, "game-1", t0)
	require.NoError(t, err)
	_, err = st.BeginSubmit("A", "Was he sad?")
	require.NoError(t, err)

	// Dropping to one connected member aborts at once; the cancelled
	// submission then has nothing left to settle.
	evs, err := st.Disconnect("A", t0)
	require.NoError(t, err)
	assert.Contains(t, events.Names(evs), events.ReturnedToLobby)
	assert.Empty(t, st.CancelSubmit("A", t0))
	assert.Equal(t, game.StateLobby, st.Phase)
	assert.Equal(t, []bool{true}, rec.aborted)
}

func TestDropToOnePlayer_Aborts(t *testing.T) {
	rec := &recorded{}
	st := NewState("ABCD", 0, t0, rec)
	for _, id := range []string{"A", "B"} {
		_, _ = st.Join(id, t0)
		_, _ = st.SetReady(id, true)
	}
	_, err := st.SelectStory("A", 5, testCatalog, "game-1", t0)
	require.NoError(t, err)

	evs, err := st.Leave("B", t0)
	require.NoError(t, err)

	assert.Equal(t, []events.Name{events.PlayerLeft, events.ReturnedToLobby}, events.Names(evs))
	assert.Equal(t, events.ReturnedToLobbyPayload{Reason: events.ReasonAborted}, evs[1].Payload)
	assert.Equal(t, game.StateLobby, st.Phase)
	assert.Nil(t, st.Game)
	assert.False(t, st.Members.Get("A").Ready)
	assert.Equal(t, []bool{true}, rec.aborted)
}

func TestLeave_TurnHolderPassesTurn(t *testing.T) {
	st := playing(t, "A", "B", "C")
	submit(t, st, "A", "Q1", judge.Verdict{Answer: judge.AnswerNo})
	require.Equal(t, "B", st.Game.CurrentPlayer())

	evs, err := st.Leave("B", t0)
	require.NoError(t, err)
	assert.Equal(t, []events.Name{events.PlayerLeft, events.TurnChanged}, events.Names(evs))
	assert.Equal(t, "C", st.Game.CurrentPlayer())
	assert.Equal(t, []string{"A", "C"}, st.Game.TurnOrder)
}

func TestLeave_HostDuringGame(t *testing.T) {
	st := playing(t, "A", "B", "C")

	evs, err := st.Leave("A", t0)
	require.NoError(t, err)
	assert.Equal(t, []events.Name{events.NewHost, events.PlayerLeft, events.TurnChanged}, events.Names(evs))
	assert.Equal(t, "B", st.Host)
	assert.Equal(t, "B", st.Game.CurrentPlayer())
}

func TestStaleVerdictIsDiscarded(t *testing.T) {
	st := playing(t, "A", "B", "C")
	_, err := st.BeginSubmit("A", "Q")
	require.NoError(t, err)

	_, err = st.Leave("A", t0)
	require.NoError(t, err)

	_, err = st.ApplyVerdict("game-1", "A", "Q", judge.Verdict{Correct: true}, t0)
	assert.ErrorIs(t, err, errStaleVerdict)
	assert.Empty(t, st.Game.History)
	assert.Equal(t, game.StatePlaying, st.Phase)
}

func TestPlayAgain(t *testing.T) {
	st := playing(t, "A", "B")

	_, err := st.PlayAgain("B", t0)
	assert.ErrorIs(t, err, game.ErrLifecycleViolation)

	submit(t, st, "A", "he had eaten human flesh", judge.Verdict{Correct: true})

	_, err = st.SetReady("B", false)
	assert.ErrorIs(t, err, game.ErrLifecycleViolation)

	evs, err := st.PlayAgain("B", t0)
	require.NoError(t, err)
	assert.Equal(t, []events.Name{events.ReturnedToLobby}, events.Names(evs))
	assert.Equal(t, game.StateLobby, st.Phase)
	assert.Nil(t, st.Game)
	for _, p := range st.Members.GetList() {
		assert.False(t, p.Ready, p.ID)
	}
}

func TestSnapshot_HelpersAndImmutability(t *testing.T) {
	st := playing(t, "A", "B")
	snap := st.Snapshot()

	assert.True(t, snap.IsHost("A"))
	assert.False(t, snap.IsHost("B"))
	assert.True(t, snap.IsMyTurn("A"))
	assert.False(t, snap.IsMyTurn("B"))
	assert.True(t, snap.GameStarted)
	require.NotNil(t, snap.CurrentStory)
	assert.Equal(t, 5, *snap.CurrentStory)
	assert.Empty(t, snap.Game.Bottom, "solution stays hidden while playing")

	submit(t, st, "A", "Q", judge.Verdict{Answer: judge.AnswerNo})
	assert.Empty(t, snap.Game.History, "snapshots do not change after the fact")
	assert.Equal(t, "A", snap.CurrentTurn)
}
