package app

import "errors"

var (
	// ErrInvalidVehicle indicates missing or malformed vehicle fields.
	ErrInvalidVehicle = errors.New("manufacturer, model, and year are required")
	// ErrEmptyMessage indicates a turn with no user text.
	ErrEmptyMessage = errors.New("message is required")
	// ErrSessionNotFound indicates an unknown session id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionForbidden indicates the session belongs to another user.
	ErrSessionForbidden = errors.New("session forbidden")
)
