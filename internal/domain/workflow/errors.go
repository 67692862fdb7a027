package workflow

import "errors"

var (
	// ErrInvalidTransition is returned when a trigger is not permitted from the current state
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrAlreadyDecided is returned when a trigger is fired on a terminal state
	ErrAlreadyDecided = errors.New("claim already decided")
)
