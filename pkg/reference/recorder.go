package reference

import (
	"time"

	"github.com/teslashibe/go-mimic/pkg/motion"
	"github.com/teslashibe/go-mimic/pkg/skeleton"
)

// Recorder samples a pose source every tick and builds a clip from it.
type Recorder struct {
	name        string
	description string

	elapsed float64
	times   []float64
	poses   []skeleton.Pose
}

// NewRecorder starts an empty recording.
func NewRecorder(name, description string) *Recorder {
	return &Recorder{name: name, description: description}
}

// Record appends the joints currently reported by src. dt is the time
// since the previous call; it is ignored for the first keyframe. Frames
// where src tracks no joint are skipped but still advance time.
func (r *Recorder) Record(src skeleton.PoseSource, dt float64) {
	if len(r.times) > 0 {
		if dt <= motion.MinFrameDelta {
			dt = motion.NominalFrameDelta
		}
		r.elapsed += dt
	}

	p := make(skeleton.Pose)
	for _, j := range skeleton.Joints() {
		if t, ok := src.JointTransform(j); ok {
			p[j] = t
		}
	}
	if len(p) == 0 {
		return
	}

	r.times = append(r.times, r.elapsed)
	r.poses = append(r.poses, p)
}

// Len returns the number of recorded keyframes.
func (r *Recorder) Len() int { return len(r.poses) }

// Clip returns the recording so far. Timestamps start at zero.
func (r *Recorder) Clip() *Clip {
	c := &Clip{
		Name:        r.name,
		Description: r.description,
		Timestamps:  make([]float64, len(r.times)),
		Poses:       make([]skeleton.Pose, len(r.poses)),
	}
	if len(r.times) == 0 {
		return c
	}

	base := r.times[0]
	for i, t := range r.times {
		c.Timestamps[i] = t - base
		c.Poses[i] = r.poses[i].Clone()
	}
	d := c.Timestamps[len(c.Timestamps)-1]
	c.Duration = time.Duration(d * float64(time.Second))
	if d > 0 {
		c.FrameRate = float64(len(c.Timestamps)-1) / d
	}
	return c
}
