package skeleton

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Transform is a world-space joint position and orientation.
type Transform struct {
	Position mgl64.Vec3
	Rotation mgl64.Quat
}

// PoseSource hands out per-joint transforms for the current tick.
// ok is false when the joint is not tracked this tick.
type PoseSource interface {
	JointTransform(j JointID) (t Transform, ok bool)
}

// Pose is a fixed set of joint transforms. It is the simplest PoseSource and
// is what clip playback and test fixtures produce.
type Pose map[JointID]Transform

// JointTransform implements PoseSource.
func (p Pose) JointTransform(j JointID) (Transform, bool) {
	t, ok := p[j]
	return t, ok
}

// Clone returns an independent copy of p.
func (p Pose) Clone() Pose {
	out := make(Pose, len(p))
	for j, t := range p {
		out[j] = t
	}
	return out
}

// Finite reports whether every component of t is a finite number.
func (t Transform) Finite() bool {
	for _, v := range [...]float64{
		t.Position[0], t.Position[1], t.Position[2],
		t.Rotation.W, t.Rotation.V[0], t.Rotation.V[1], t.Rotation.V[2],
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// UnitQuat normalizes q. Zero-length or non-finite quaternions become identity.
func UnitQuat(q mgl64.Quat) mgl64.Quat {
	n := q.Len()
	if n < 1e-8 || math.IsNaN(n) || math.IsInf(n, 0) {
		return mgl64.QuatIdent()
	}
	return mgl64.Quat{W: q.W / n, V: q.V.Mul(1 / n)}
}

// AngleDeg returns the angle in degrees of the rotation taking a onto b,
// in [0, 180]. q and -q are treated as the same orientation.
func AngleDeg(a, b mgl64.Quat) float64 {
	dot := math.Abs(UnitQuat(a).Dot(UnitQuat(b)))
	if dot > 1 {
		dot = 1
	}
	return mgl64.RadToDeg(2 * math.Acos(dot))
}
