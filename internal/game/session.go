package game

import "time"

// Exchange is one judged submission.
type Exchange struct {
	Identity string    `json:"username"`
	Question string    `json:"question"`
	Answer   string    `json:"judgment"`
	Correct  bool      `json:"correct"`
	AskedAt  time.Time `json:"asked_at"`
}

// Session is the game in progress inside a room.
type Session struct {
	ID          string
	StoryID     int
	Surface     string
	Solution    string
	TurnOrder   []string
	CurrentTurn int
	History     []Exchange
	Winner      string
	StartedAt   time.Time
	EndedAt     time.Time
}

func NewSession(id string, storyID int, surface, solution string, order []string, now time.Time) *Session {
	return &Session{
		ID:        id,
		StoryID:   storyID,
		Surface:   surface,
		Solution:  solution,
		TurnOrder: append([]string(nil), order...),
		StartedAt: now,
	}
}

// CurrentPlayer returns the identity holding the turn, or "".
func (s *Session) CurrentPlayer() string {
	if s.CurrentTurn < 0 || s.CurrentTurn >= len(s.TurnOrder) {
		return ""
	}
	return s.TurnOrder[s.CurrentTurn]
}

func (s *Session) IndexOf(identity string) int {
	for i, id := range s.TurnOrder {
		if id == identity {
			return i
		}
	}
	return -1
}

// Record appends an exchange to the history.
func (s *Session) Record(ex Exchange) {
	s.History = append(s.History, ex)
}

// Advance moves the turn past identity's slot. It returns false when no
// eligible player is left.
func (s *Session) Advance(from string, eligible func(string) bool) bool {
	idx := s.IndexOf(from)
	if idx < 0 {
		idx = s.CurrentTurn
	}
	s.CurrentTurn = AdvanceTurn(s.TurnOrder, idx, eligible)
	return s.CurrentTurn >= 0
}

// Remove takes identity out of the turn order, keeping the turn on the same
// player when someone else leaves and passing it on when the holder leaves.
// It reports whether the current player changed.
func (s *Session) Remove(identity string, eligible func(string) bool) bool {
	idx := s.IndexOf(identity)
	if idx < 0 {
		return false
	}
	before := s.CurrentPlayer()
	s.TurnOrder = append(s.TurnOrder[:idx], s.TurnOrder[idx+1:]...)

	switch {
	case len(s.TurnOrder) == 0:
		s.CurrentTurn = -1
	case idx < s.CurrentTurn:
		s.CurrentTurn--
	case idx == s.CurrentTurn:
		if s.CurrentTurn >= len(s.TurnOrder) {
			s.CurrentTurn = 0
		}
		s.CurrentTurn = SettleTurn(s.TurnOrder, s.CurrentTurn, eligible)
	}
	return s.CurrentPlayer() != before
}
