package mocopi

import "errors"

var (
	// ErrTruncated is returned when a box header or payload runs past the
	// end of its buffer.
	ErrTruncated = errors.New("truncated mocopi box")

	// ErrUnknownPacket is returned for datagrams that are neither a
	// skeleton definition nor a frame.
	ErrUnknownPacket = errors.New("unknown mocopi packet")

	// ErrMalformed is returned when a required field is missing.
	ErrMalformed = errors.New("malformed mocopi packet")
)
