// Package motion captures per-tick skeletal snapshots for a motion stream and
// keeps the most recent ones in fixed-capacity ring windows.
package motion

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/teslashibe/go-mimic/pkg/skeleton"
)

const (
	// MinFrameDelta is the smallest usable frame delta in seconds.
	MinFrameDelta = 1e-6

	// NominalFrameDelta replaces an unusable frame delta (60 Hz).
	NominalFrameDelta = 1.0 / 60.0
)

// Snapshot is one tick of one motion stream. All arrays are indexed by
// skeleton.JointID. VelocityValid[j] implies Valid[j] for this sample and
// the previous one.
type Snapshot struct {
	Rotation      [skeleton.JointCount]mgl64.Quat
	Position      [skeleton.JointCount]mgl64.Vec3
	Velocity      [skeleton.JointCount]mgl64.Vec3
	Valid         [skeleton.JointCount]bool
	VelocityValid [skeleton.JointCount]bool
}

// ValidCount returns the number of tracked joints in s.
func (s *Snapshot) ValidCount() int {
	n := 0
	for _, v := range s.Valid {
		if v {
			n++
		}
	}
	return n
}

// Capturer builds snapshots for a single stream and owns that stream's
// previous-sample cache.
type Capturer struct {
	prevPosition [skeleton.JointCount]mgl64.Vec3
	prevValid    [skeleton.JointCount]bool
}

// Capture reads every joint from src and derives velocities against the
// previous capture. dt is the frame delta in seconds; a non-positive or
// non-finite dt is replaced by NominalFrameDelta.
func (c *Capturer) Capture(src skeleton.PoseSource, dt float64) Snapshot {
	var s Snapshot
	c.CaptureInto(&s, src, dt)
	return s
}

// CaptureInto is Capture writing into an existing snapshot.
func (c *Capturer) CaptureInto(s *Snapshot, src skeleton.PoseSource, dt float64) {
	if !(dt > MinFrameDelta) || math.IsInf(dt, 0) {
		dt = NominalFrameDelta
	}

	for i := 0; i < int(skeleton.JointCount); i++ {
		j := skeleton.JointID(i)

		// Non-finite samples count as untracked.
		t, ok := src.JointTransform(j)
		if !ok || !t.Finite() {
			s.Valid[i] = false
			s.VelocityValid[i] = false
			s.Velocity[i] = mgl64.Vec3{}
			c.prevValid[i] = false
			continue
		}

		s.Position[i] = t.Position
		s.Rotation[i] = skeleton.UnitQuat(t.Rotation)
		s.Valid[i] = true

		if c.prevValid[i] {
			s.Velocity[i] = t.Position.Sub(c.prevPosition[i]).Mul(1 / dt)
			s.VelocityValid[i] = true
		} else {
			s.Velocity[i] = mgl64.Vec3{}
			s.VelocityValid[i] = false
		}

		c.prevPosition[i] = t.Position
		c.prevValid[i] = true
	}
}

// Reset forgets the previous sample so the next capture has no velocities.
func (c *Capturer) Reset() {
	*c = Capturer{}
}
