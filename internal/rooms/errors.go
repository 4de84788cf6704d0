package rooms

import (
	"errors"

	"turtlesoup/internal/game"
)

var (
	ErrRoomNotFound = errors.New("room not found")
	ErrRoomClosed   = errors.New("room closed")
)

// errStaleVerdict marks a verdict that arrived after its game, turn or
// submitter went away.
var errStaleVerdict = errors.New("stale verdict")

// DesyncError is returned when a client sends a command its room's phase
// does not allow. It carries the authoritative snapshot so the client can
// resync.
type DesyncError struct {
	Snapshot Snapshot
}

func (e *DesyncError) Error() string {
	return game.ErrLifecycleViolation.Message
}

func (e *DesyncError) Unwrap() error {
	return game.ErrLifecycleViolation
}
