package rooms

import "turtlesoup/internal/judge"

// Command is one request to a room. Commands are applied one at a time, in
// the order the room receives them.
type Command interface {
	Name() string
}

type Join struct{ Identity string }

type Leave struct{ Identity string }

// Disconnect reports a dropped connection. The player keeps their slot for
// the reconnect grace period.
type Disconnect struct{ Identity string }

type Heartbeat struct{ Identity string }

type SetReady struct {
	Identity string
	Ready    bool
}

type SelectStory struct {
	Identity string
	StoryID  int
}

type SubmitQuestion struct {
	Identity string
	Question string
}

type PlayAgain struct{ Identity string }

func (Join) Name() string           { return "join" }
func (Leave) Name() string          { return "leave" }
func (Disconnect) Name() string     { return "disconnect" }
func (Heartbeat) Name() string      { return "heartbeat" }
func (SetReady) Name() string       { return "set_ready" }
func (SelectStory) Name() string    { return "select_story" }
func (SubmitQuestion) Name() string { return "submit_question" }
func (PlayAgain) Name() string      { return "play_again" }

type verdictArrived struct {
	pending *pendingSubmit
	verdict judge.Verdict
	err     error
}

type graceExpired struct {
	identity string
	token    uint64
}

type snapshotQuery struct{}

func (verdictArrived) Name() string { return "verdict" }
func (graceExpired) Name() string   { return "grace_expired" }
func (snapshotQuery) Name() string  { return "snapshot" }
