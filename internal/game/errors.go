package game

// Class groups rejections by how a client should react to them.
type Class int

const (
	ClassAuthority Class = iota + 1
	ClassValidation
	ClassPrecondition
	ClassCollaborator
	ClassLifecycle
)

func (c Class) String() string {
	switch c {
	case ClassAuthority:
		return "authority"
	case ClassValidation:
		return "validation"
	case ClassPrecondition:
		return "precondition"
	case ClassCollaborator:
		return "collaborator"
	case ClassLifecycle:
		return "lifecycle"
	}
	return "unknown"
}

// Error is a rejected room command. Rejections never change room state.
type Error struct {
	Class   Class
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Retryable reports whether resubmitting the same command may succeed.
func (e *Error) Retryable() bool {
	return e.Class == ClassCollaborator
}

var (
	ErrNotHost     = &Error{ClassAuthority, "not_host", "only the host can do that"}
	ErrNotYourTurn = &Error{ClassAuthority, "not_your_turn", "it is not your turn"}

	ErrEmptyInput        = &Error{ClassValidation, "empty_input", "input must not be blank"}
	ErrInvalidStory      = &Error{ClassValidation, "invalid_story", "unknown story"}
	ErrDuplicateIdentity = &Error{ClassValidation, "duplicate_identity", "that name is already connected to this room"}
	ErrRoomFull          = &Error{ClassValidation, "room_full", "room is full"}
	ErrNotMember         = &Error{ClassValidation, "not_member", "you are not in this room"}

	ErrNotReady = &Error{ClassPrecondition, "not_ready", "not every player is ready"}

	ErrJudgeUnavailable = &Error{ClassCollaborator, "judge_unavailable", "the judge is unavailable, try again"}

	ErrLifecycleViolation = &Error{ClassLifecycle, "lifecycle_violation", "that action is not allowed right now"}
)
