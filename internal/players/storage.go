package players

import "time"

// Store keeps a room's members in join order. It is not safe for concurrent
// use: the owning room applies every command from a single goroutine.
type Store struct {
	players []*Player
	nextSeq uint64
}

func NewStore() *Store {
	return &Store{}
}

func (s *Store) Add(id string, now time.Time) *Player {
	if p := s.Get(id); p != nil {
		return p
	}
	s.nextSeq++
	player := &Player{ID: id, Connected: true, JoinedAt: now, LastSeen: now, Seq: s.nextSeq}
	s.players = append(s.players, player)
	return player
}

func (s *Store) Get(id string) *Player {
	for _, p := range s.players {
		if p.ID == id {
			return p
		}
	}
	return nil
}

// Remove drops a member and reports whether it was present.
func (s *Store) Remove(id string) bool {
	for i, p := range s.players {
		if p.ID == id {
			s.players = append(s.players[:i], s.players[i+1:]...)
			return true
		}
	}
	return false
}

// GetList returns the members in join order.
func (s *Store) GetList() []*Player {
	list := make([]*Player, len(s.players))
	copy(list, s.players)
	return list
}

func (s *Store) IDs() []string {
	ids := make([]string, len(s.players))
	for i, p := range s.players {
		ids[i] = p.ID
	}
	return ids
}

func (s *Store) Len() int {
	return len(s.players)
}

func (s *Store) SetReady(id string, isReady bool) *Player {
	if p := s.Get(id); p != nil {
		p.Ready = isReady
		return p
	}
	return nil
}

func (s *Store) SetConnected(id string, connected bool, now time.Time) *Player {
	if p := s.Get(id); p != nil {
		p.Connected = connected
		p.LastSeen = now
		return p
	}
	return nil
}

func (s *Store) IsConnected(id string) bool {
	p := s.Get(id)
	return p != nil && p.Connected
}

func (s *Store) ConnectedCount() int {
	n := 0
	for _, p := range s.players {
		if p.Connected {
			n++
		}
	}
	return n
}

// ResetAll clears every ready flag, as happens whenever the room returns to the lobby.
func (s *Store) ResetAll() {
	for _, p := range s.players {
		p.Ready = false
	}
}

// ElectHost picks the earliest-joined member, or "" when there is none.
func ElectHost(members []*Player) string {
	var host *Player
	for _, p := range members {
		if host == nil || p.Seq < host.Seq {
			host = p
		}
	}
	if host == nil {
		return ""
	}
	return host.ID
}
