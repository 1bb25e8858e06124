package session

import (
	"fmt"

	"github.com/teslashibe/go-mimic/pkg/scoring"
)

// Config controls sampling and scoring for a session.
type Config struct {
	// Tolerance is the alignment half-window T in frames. Windows hold
	// 2T+1 snapshots.
	Tolerance int

	// SampleInterval scores every K-th tick once the windows are full.
	SampleInterval int

	// AutoEnd ends the session when the finish signal reports true.
	AutoEnd bool

	Scoring scoring.Config
}

// DefaultConfig returns the standard session configuration.
func DefaultConfig() Config {
	return Config{
		Tolerance:      5,
		SampleInterval: 10,
		AutoEnd:        true,
		Scoring:        scoring.DefaultConfig(),
	}
}

// Validate checks ranges, including the scoring configuration.
func (c Config) Validate() error {
	if c.Tolerance < 0 {
		return fmt.Errorf("%w: tolerance must be >= 0, got %d", ErrInvalidConfig, c.Tolerance)
	}
	if c.SampleInterval < 1 {
		return fmt.Errorf("%w: sample interval must be >= 1, got %d", ErrInvalidConfig, c.SampleInterval)
	}
	if err := c.Scoring.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
