package reference

import (
	"github.com/go-gl/mathgl/mgl64"

	"github.com/teslashibe/go-mimic/pkg/skeleton"
)

// Slerp interpolates rotations along the shorter arc.
func Slerp(a, b mgl64.Quat, alpha float64) mgl64.Quat {
	if a.Dot(b) < 0 {
		b = b.Scale(-1)
	}
	return skeleton.UnitQuat(mgl64.QuatSlerp(a, b, alpha))
}

// Lerp interpolates positions linearly.
func Lerp(a, b mgl64.Vec3, alpha float64) mgl64.Vec3 {
	return a.Add(b.Sub(a).Mul(alpha))
}

// InterpolateTransforms blends two transforms. alpha 0 returns a, 1 returns b.
func InterpolateTransforms(a, b skeleton.Transform, alpha float64) skeleton.Transform {
	return skeleton.Transform{
		Position: Lerp(a.Position, b.Position, alpha),
		Rotation: Slerp(a.Rotation, b.Rotation, alpha),
	}
}

// InterpolatePoses blends two keyframes into dst. Joints missing from
// either keyframe are left out. dst is cleared first and returned.
func InterpolatePoses(dst, a, b skeleton.Pose, alpha float64) skeleton.Pose {
	if dst == nil {
		dst = make(skeleton.Pose, len(a))
	}
	clear(dst)

	for j, ta := range a {
		tb, ok := b[j]
		if !ok {
			continue
		}
		dst[j] = InterpolateTransforms(ta, tb, alpha)
	}
	return dst
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
