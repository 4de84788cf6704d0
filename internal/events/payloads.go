package events

type PlayerPayload struct {
	Username string `json:"username"`
}

type HostPayload struct {
	Host string `json:"host"`
}

type StatusPayload struct {
	Username string `json:"username"`
	Ready    bool   `json:"ready"`
}

type ConnectionPayload struct {
	Username  string `json:"username"`
	Connected bool   `json:"connected"`
}

type GameStartedPayload struct {
	StoryID     int    `json:"story_id"`
	Surface     string `json:"surface"`
	CurrentTurn string `json:"current_turn"`
}

type QuestionAnsweredPayload struct {
	Username string `json:"username"`
	Question string `json:"question"`
	Judgment string `json:"judgment"`
	NextTurn string `json:"next_turn"`
}

type TurnChangedPayload struct {
	CurrentTurn string `json:"current_turn"`
}

type GameOverPayload struct {
	Winner        string `json:"winner"`
	FinalQuestion string `json:"final_question"`
	Surface       string `json:"surface"`
	Bottom        string `json:"bottom"`
}

const (
	ReasonPlayAgain = "play_again"
	ReasonAborted   = "aborted"
)

type ReturnedToLobbyPayload struct {
	Reason string `json:"reason"`
}

type ErrorPayload struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Snapshot any    `json:"snapshot,omitempty"`
}
