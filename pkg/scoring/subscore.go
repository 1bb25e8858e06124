package scoring

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/teslashibe/go-mimic/pkg/motion"
	"github.com/teslashibe/go-mimic/pkg/skeleton"
)

// SubScore is one component of a comparison. When OK is false the component
// had nothing comparable and is left out of fusion.
type SubScore struct {
	OK    bool    `json:"ok"`
	Score float64 `json:"score"` // [0, 1]
	Error float64 `json:"error"` // weighted mean raw error in natural units
}

// clamp01 limits v to [0, 1]. NaN maps to 0.
func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// normalize maps a raw error to a score that is 1 at zero error and 0 at or
// beyond threshold.
func normalize(err, threshold float64) float64 {
	return clamp01(1 - err/math.Max(threshold, epsilon))
}

// PoseScore compares joint rotations for every joint tracked in both
// snapshots.
func PoseScore(ref, cand *motion.Snapshot, cfg Config) SubScore {
	var weighted, total float64
	for i := 0; i < int(skeleton.JointCount); i++ {
		if !ref.Valid[i] || !cand.Valid[i] {
			continue
		}
		w := cfg.Weights.Pose(skeleton.JointID(i))
		weighted += w * skeleton.AngleDeg(ref.Rotation[i], cand.Rotation[i])
		total += w
	}
	if total <= epsilon {
		return SubScore{}
	}

	avg := weighted / total
	return SubScore{OK: true, Score: normalize(avg, cfg.MaxAngleDeg), Error: avg}
}

// PositionScore compares end-effector positions, hips-relative when
// configured and the hips are tracked in both snapshots.
func PositionScore(ref, cand *motion.Snapshot, cfg Config) SubScore {
	if cfg.PositionMix <= epsilon || len(cfg.EndEffectors) == 0 {
		return SubScore{}
	}

	var refRoot, candRoot mgl64.Vec3
	if cfg.HipsRelativePosition && ref.Valid[skeleton.Hips] && cand.Valid[skeleton.Hips] {
		refRoot = ref.Position[skeleton.Hips]
		candRoot = cand.Position[skeleton.Hips]
	}

	var weighted, total float64
	for _, j := range cfg.EndEffectors {
		if !ref.Valid[j] || !cand.Valid[j] {
			continue
		}
		a := ref.Position[j].Sub(refRoot)
		b := cand.Position[j].Sub(candRoot)
		w := cfg.Weights.Linear(j)
		weighted += w * a.Sub(b).Len()
		total += w
	}
	if total <= epsilon {
		return SubScore{}
	}

	avg := weighted / total
	return SubScore{OK: true, Score: normalize(avg, cfg.MaxPositionError), Error: avg}
}

// RhythmScore compares end-effector velocities. Only joints with a valid
// velocity on both sides take part.
func RhythmScore(ref, cand *motion.Snapshot, cfg Config) SubScore {
	if cfg.RhythmMix <= epsilon || len(cfg.EndEffectors) == 0 {
		return SubScore{}
	}

	var refRoot, candRoot mgl64.Vec3
	if cfg.HipsRelativeVelocity && ref.VelocityValid[skeleton.Hips] && cand.VelocityValid[skeleton.Hips] {
		refRoot = ref.Velocity[skeleton.Hips]
		candRoot = cand.Velocity[skeleton.Hips]
	}

	var weighted, total float64
	for _, j := range cfg.EndEffectors {
		if !ref.VelocityValid[j] || !cand.VelocityValid[j] {
			continue
		}
		a := ref.Velocity[j].Sub(refRoot)
		b := cand.Velocity[j].Sub(candRoot)

		var e float64
		if cfg.VelocityMagnitudeOnly {
			e = math.Abs(a.Len() - b.Len())
		} else {
			e = a.Sub(b).Len()
		}

		w := cfg.Weights.Linear(j)
		weighted += w * e
		total += w
	}
	if total <= epsilon {
		return SubScore{}
	}

	avg := weighted / total
	return SubScore{OK: true, Score: normalize(avg, cfg.MaxVelocityError), Error: avg}
}

// Fuse combines the usable sub-scores. ok is false when no usable sub-score
// carries weight.
func Fuse(cfg Config, pose, position, rhythm SubScore) (combined float64, ok bool) {
	var sum, weight float64
	if pose.OK {
		sum += cfg.PoseMix * pose.Score
		weight += cfg.PoseMix
	}
	if position.OK {
		sum += cfg.PositionMix * position.Score
		weight += cfg.PositionMix
	}
	if rhythm.OK {
		sum += cfg.RhythmMix * rhythm.Score
		weight += cfg.RhythmMix
	}
	if weight <= epsilon {
		return 0, false
	}
	return clamp01(sum / weight), true
}
