package reference

import "errors"

var (
	// ErrNotFound is returned when a clip is not in the library.
	ErrNotFound = errors.New("clip not found")

	// ErrInvalidClip is returned when clip data is malformed.
	ErrInvalidClip = errors.New("invalid clip data")
)
