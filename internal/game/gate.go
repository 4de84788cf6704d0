package game

import "turtlesoup/internal/players"

// MinPlayers is the number of connected members needed to start or keep a game.
const MinPlayers = 2

// GateOpen reports whether the host may start a game: the host connected,
// at least MinPlayers connected members, and every connected member other
// than the host ready.
func GateOpen(members []*players.Player, host string) bool {
	connected := 0
	hostHere := false
	for _, p := range members {
		if !p.Connected {
			continue
		}
		connected++
		if p.ID == host {
			hostHere = true
		} else if !p.Ready {
			return false
		}
	}
	return hostHere && connected >= MinPlayers
}
