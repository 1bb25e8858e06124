// Package scoring compares a reference snapshot with candidate player
// snapshots and searches a bounded range of time shifts for the best match.
//
// Three sub-scores are computed per candidate: pose (joint rotations),
// position (end-effector placement) and rhythm (end-effector velocity). Each
// lands in [0, 1] and they are fused with re-normalized mix weights.
package scoring

import (
	"fmt"

	"github.com/teslashibe/go-mimic/pkg/skeleton"
)

// epsilon guards every weighted-sum denominator and error threshold.
const epsilon = 1e-6

// Config holds the scoring weights and thresholds.
type Config struct {
	// Weights is the per-joint weight table.
	Weights skeleton.Weights

	// EndEffectors are the joints used for position and rhythm scoring.
	EndEffectors []skeleton.JointID

	// Errors at or beyond these thresholds score zero.
	MaxAngleDeg      float64 // weighted mean rotation error, degrees
	MaxPositionError float64 // weighted mean end-effector distance, meters
	MaxVelocityError float64 // weighted mean velocity difference, m/s

	// Mix weights in [0, 1]. They need not sum to 1; fusion divides by the
	// sum of the weights whose sub-score was usable.
	PoseMix     float64
	PositionMix float64
	RhythmMix   float64

	// HipsRelativePosition compares end-effector positions after subtracting
	// the hips position on each side.
	HipsRelativePosition bool

	// HipsRelativeVelocity does the same for velocities.
	HipsRelativeVelocity bool

	// VelocityMagnitudeOnly compares speeds instead of velocity vectors.
	VelocityMagnitudeOnly bool
}

// DefaultConfig returns the standard scoring configuration.
func DefaultConfig() Config {
	return Config{
		Weights:      skeleton.DefaultWeights(),
		EndEffectors: skeleton.EndEffectors(),

		MaxAngleDeg:      60,
		MaxPositionError: 0.35,
		MaxVelocityError: 1.5,

		PoseMix:     0.5,
		PositionMix: 0.3,
		RhythmMix:   0.2,

		HipsRelativePosition:  true,
		HipsRelativeVelocity:  true,
		VelocityMagnitudeOnly: false,
	}
}

// Validate checks ranges. Zero thresholds are allowed and floored at scoring
// time.
func (c Config) Validate() error {
	mixes := []struct {
		name string
		v    float64
	}{
		{"pose mix", c.PoseMix},
		{"position mix", c.PositionMix},
		{"rhythm mix", c.RhythmMix},
	}
	for _, m := range mixes {
		if m.v < 0 || m.v > 1 {
			return fmt.Errorf("%w: %s must be in [0,1], got %v", ErrInvalidConfig, m.name, m.v)
		}
	}

	if c.MaxAngleDeg < 0 || c.MaxPositionError < 0 || c.MaxVelocityError < 0 {
		return fmt.Errorf("%w: error thresholds must be non-negative", ErrInvalidConfig)
	}

	w := c.Weights
	if w.EndEffector < 0 || w.Hips < 0 || w.Head < 0 || w.Default < 0 {
		return fmt.Errorf("%w: joint weights must be non-negative", ErrInvalidConfig)
	}

	for _, j := range c.EndEffectors {
		if !j.Valid() {
			return fmt.Errorf("%w: unknown end effector %d", ErrInvalidConfig, j)
		}
	}
	return nil
}
