package events

// Name is the wire name of a server-to-client event.
type Name string

const (
	RoomJoined              = Name("room_joined")
	PlayerJoined            = Name("player_joined")
	PlayerLeft              = Name("player_left")
	NewHost                 = Name("new_host")
	PlayerStatusChanged     = Name("player_status_changed")
	PlayerConnectionChanged = Name("player_connection_changed")
	AllPlayersReady         = Name("all_players_ready")
	GameStarted             = Name("game_started")
	QuestionAnswered        = Name("question_answered")
	TurnChanged             = Name("turn_changed")
	GameOver                = Name("game_over")
	ReturnedToLobby         = Name("returned_to_lobby")
	Error                   = Name("error")
)

// Event is one room event. To addresses a single identity; an empty To
// broadcasts to every subscriber except Except.
type Event struct {
	Name    Name
	To      string
	Except  string
	Payload any
}

// For reports whether the event should be delivered to identity.
func (e Event) For(identity string) bool {
	if e.To != "" {
		return e.To == identity
	}
	return e.Except != identity
}

func Broadcast(name Name, payload any) Event {
	return Event{Name: name, Payload: payload}
}

func BroadcastExcept(except string, name Name, payload any) Event {
	return Event{Name: name, Except: except, Payload: payload}
}

func To(identity string, name Name, payload any) Event {
	return Event{Name: name, To: identity, Payload: payload}
}

// Names lists the event names in order, handy for assertions and logs.
func Names(evs []Event) []Name {
	names := make([]Name, len(evs))
	for i, e := range evs {
		names[i] = e.Name
	}
	return names
}
