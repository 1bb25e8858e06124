package skeleton

// Default joint weights. Hands and feet dominate because they carry most of
// the visible choreography.
const (
	DefaultEndEffectorWeight = 2.0
	DefaultHipsWeight        = 0.5
	DefaultHeadWeight        = 1.0
	DefaultJointWeight       = 1.0
)

// Weights is the per-joint weight table. It is a pure lookup keyed on the
// joint category and does not depend on any scoring threshold.
type Weights struct {
	EndEffector float64 // hands and feet
	Hips        float64
	Head        float64
	Default     float64 // every other joint
}

// DefaultWeights returns the standard weight table.
func DefaultWeights() Weights {
	return Weights{
		EndEffector: DefaultEndEffectorWeight,
		Hips:        DefaultHipsWeight,
		Head:        DefaultHeadWeight,
		Default:     DefaultJointWeight,
	}
}

// Pose returns the weight of j for the rotation comparison.
func (w Weights) Pose(j JointID) float64 {
	switch {
	case IsEndEffector(j):
		return w.EndEffector
	case j == Hips:
		return w.Hips
	case j == Head:
		return w.Head
	default:
		return w.Default
	}
}

// Linear returns the weight of end effector j for position and velocity
// comparisons. It deliberately reuses the end-effector pose weight; split it
// here if more linear joint categories are ever scored.
func (w Weights) Linear(j JointID) float64 {
	return w.EndEffector
}

// EndEffectors returns the hands and feet, the joints used for position and
// rhythm scoring.
func EndEffectors() []JointID {
	return []JointID{LeftHand, RightHand, LeftFoot, RightFoot}
}

// IsEndEffector reports whether j is a hand or a foot.
func IsEndEffector(j JointID) bool {
	switch j {
	case LeftHand, RightHand, LeftFoot, RightFoot:
		return true
	}
	return false
}
