package room

import "errors"

var (
	// ErrValidation is returned when a request is missing required fields
	ErrValidation = errors.New("validation error")
	// ErrNotFound is returned when no live room has the given code
	ErrNotFound = errors.New("room not found")
	// ErrInvalidState is returned when an action is not legal in the room's current state
	ErrInvalidState = errors.New("invalid room state")
	// ErrAlreadyJoined is returned when a player id is already present in the room
	ErrAlreadyJoined = errors.New("player already joined")
	// ErrUnknownAction is returned for an unrecognized client intent
	ErrUnknownAction = errors.New("unknown action")
)
