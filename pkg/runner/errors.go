package runner

import "errors"

// ErrStopped is returned by commands sent after the runner stopped.
var ErrStopped = errors.New("runner stopped")
