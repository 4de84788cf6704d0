package players

import "time"

// Player is one member of a room, keyed by the identity the client connected with.
type Player struct {
	ID        string
	Ready     bool
	Connected bool
	JoinedAt  time.Time
	LastSeen  time.Time
	Seq       uint64 // join order within the room
}
