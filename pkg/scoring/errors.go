package scoring

import "errors"

// ErrInvalidConfig is returned when a scoring configuration is out of range.
var ErrInvalidConfig = errors.New("invalid scoring config")
