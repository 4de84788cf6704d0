package game

// State is a room's lifecycle state.
type State string

const (
	StateLobby    = State("lobby")
	StatePlaying  = State("playing")
	StateFinished = State("finished")
)
