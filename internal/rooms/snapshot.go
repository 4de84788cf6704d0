package rooms

import (
	"slices"
	"time"

	"turtlesoup/internal/game"
)

type PlayerView struct {
	Username  string `json:"username"`
	Ready     bool   `json:"ready"`
	Connected bool   `json:"connected"`
}

type GameView struct {
	ID          string          `json:"id"`
	StoryID     int             `json:"story_id"`
	Surface     string          `json:"surface"`
	TurnOrder   []string        `json:"turn_order"`
	CurrentTurn string          `json:"current_turn,omitempty"`
	History     []game.Exchange `json:"history"`
	Winner      string          `json:"winner,omitempty"`
	// Bottom is only filled in once the game is over.
	Bottom string `json:"bottom,omitempty"`
}

// Snapshot is an immutable copy of a room's state, safe to hand to other
// goroutines and to serialize.
type Snapshot struct {
	RoomID       string       `json:"room_id"`
	Host         string       `json:"host"`
	Players      []string     `json:"players"`
	Members      []PlayerView `json:"members"`
	State        game.State   `json:"state"`
	GameStarted  bool         `json:"game_started"`
	CurrentStory *int         `json:"current_story"`
	CurrentTurn  string       `json:"current_turn,omitempty"`
	Game         *GameView    `json:"game"`
	CreatedAt    time.Time    `json:"created_at"`
}

func (s Snapshot) IsHost(identity string) bool {
	return identity != "" && s.Host == identity
}

func (s Snapshot) IsMyTurn(identity string) bool {
	return s.State == game.StatePlaying && identity != "" && s.CurrentTurn == identity
}

func (s Snapshot) HasMember(identity string) bool {
	return slices.Contains(s.Players, identity)
}

func (s Snapshot) Member(identity string) (PlayerView, bool) {
	for _, m := range s.Members {
		if m.Username == identity {
			return m, true
		}
	}
	return PlayerView{}, false
}

func (st *State) Snapshot() Snapshot {
	snap := Snapshot{
		RoomID:    st.ID,
		Host:      st.Host,
		Players:   st.Members.IDs(),
		State:     st.Phase,
		CreatedAt: st.CreatedAt,
	}
	for _, p := range st.Members.GetList() {
		snap.Members = append(snap.Members, PlayerView{Username: p.ID, Ready: p.Ready, Connected: p.Connected})
	}
	if g := st.Game; g != nil {
		story := g.StoryID
		snap.CurrentStory = &story
		snap.GameStarted = st.Phase == game.StatePlaying
		if st.Phase == game.StatePlaying {
			snap.CurrentTurn = g.CurrentPlayer()
		}
		view := &GameView{
			ID:          g.ID,
			StoryID:     g.StoryID,
			Surface:     g.Surface,
			TurnOrder:   slices.Clone(g.TurnOrder),
			CurrentTurn: snap.CurrentTurn,
			History:     slices.Clone(g.History),
			Winner:      g.Winner,
		}
		if st.Phase == game.StateFinished {
			view.Bottom = g.Solution
		}
		snap.Game = view
	}
	return snap
}
