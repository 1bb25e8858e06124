package session

import "errors"

var (
	// ErrMissingSource is returned by Tick when a pose source is nil.
	ErrMissingSource = errors.New("pose source missing")

	// ErrInvalidConfig is returned when a session configuration is out of range.
	ErrInvalidConfig = errors.New("invalid session config")
)
