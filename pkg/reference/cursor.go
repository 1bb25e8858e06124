package reference

import (
	"math"
	"sort"
	"time"

	"github.com/teslashibe/go-mimic/pkg/skeleton"
)

// Cursor plays a clip back under external control. Each Advance moves the
// playhead by a frame delta and the cursor then serves the interpolated
// pose through JointTransform. A Cursor is not safe for concurrent use.
type Cursor struct {
	clip  *Clip
	opts  CursorOptions
	state PlaybackState

	elapsed float64 // seconds since the first keyframe
	loops   int
	pose    skeleton.Pose
}

// NewCursor returns a cursor positioned at the first keyframe.
func NewCursor(clip *Clip, opts CursorOptions) *Cursor {
	if opts.Speed <= 0 {
		opts.Speed = 1
	}
	c := &Cursor{
		clip: clip,
		opts: opts,
		pose: make(skeleton.Pose, skeleton.JointCount),
	}
	c.Rewind()
	return c
}

// Clip returns the clip being played.
func (c *Cursor) Clip() *Clip { return c.clip }

// Options returns the playback options.
func (c *Cursor) Options() CursorOptions { return c.opts }

// Advance moves the playhead by dt seconds scaled by the playback speed.
// It does nothing while paused or finished.
func (c *Cursor) Advance(dt float64) {
	if c.state != StatePlaying || dt <= 0 || math.IsNaN(dt) {
		return
	}

	c.elapsed += dt * c.opts.Speed
	duration := c.clip.Duration.Seconds()

	if c.elapsed >= duration {
		if c.opts.Loop && duration > 0 {
			n := math.Floor(c.elapsed / duration)
			c.loops += int(n)
			c.elapsed -= n * duration
		} else {
			c.elapsed = duration
			c.state = StateFinished
		}
	}
	c.pose = c.clip.SampleInto(c.pose, c.elapsed)
}

// Rewind returns to the first keyframe and resumes playback.
func (c *Cursor) Rewind() {
	c.elapsed = 0
	c.loops = 0
	c.state = StatePlaying
	c.pose = c.clip.SampleInto(c.pose, 0)
}

// Pause stops Advance from moving the playhead.
func (c *Cursor) Pause() {
	if c.state == StatePlaying {
		c.state = StatePaused
	}
}

// Resume continues paused playback.
func (c *Cursor) Resume() {
	if c.state == StatePaused {
		c.state = StatePlaying
	}
}

// State returns the playback state.
func (c *Cursor) State() PlaybackState { return c.state }

// Finished reports whether a non-looping cursor reached the end.
func (c *Cursor) Finished() bool { return c.state == StateFinished }

// Elapsed returns the playhead position within the current pass.
func (c *Cursor) Elapsed() time.Duration {
	return time.Duration(c.elapsed * float64(time.Second))
}

// Loops returns how many times a looping cursor wrapped around.
func (c *Cursor) Loops() int { return c.loops }

// Progress returns the playhead position as a fraction of the clip.
func (c *Cursor) Progress() float64 {
	d := c.clip.Duration.Seconds()
	if d <= 0 {
		if c.state == StateFinished {
			return 1
		}
		return 0
	}
	return clamp01(c.elapsed / d)
}

// Pose returns the current interpolated pose. It is reused by the next
// Advance; clone it to keep it.
func (c *Cursor) Pose() skeleton.Pose { return c.pose }

// JointTransform implements skeleton.PoseSource.
func (c *Cursor) JointTransform(j skeleton.JointID) (skeleton.Transform, bool) {
	t, ok := c.pose[j]
	return t, ok
}

// Sample returns the interpolated pose t seconds after the first keyframe.
func (c *Clip) Sample(t float64) skeleton.Pose {
	return c.SampleInto(nil, t)
}

// SampleInto is Sample writing into dst.
func (c *Clip) SampleInto(dst skeleton.Pose, t float64) skeleton.Pose {
	if dst == nil {
		dst = make(skeleton.Pose, skeleton.JointCount)
	}
	if len(c.Poses) == 0 {
		clear(dst)
		return dst
	}
	if len(c.Poses) == 1 {
		return InterpolatePoses(dst, c.Poses[0], c.Poses[0], 0)
	}

	ts := c.Timestamps
	at := ts[0] + t
	idx := sort.Search(len(ts), func(i int) bool {
		return ts[i] > at
	})

	if idx == 0 {
		return InterpolatePoses(dst, c.Poses[0], c.Poses[0], 0)
	}
	if idx >= len(ts) {
		last := c.Poses[len(c.Poses)-1]
		return InterpolatePoses(dst, last, last, 0)
	}

	prev, next := idx-1, idx
	var alpha float64
	if ts[next] > ts[prev] {
		alpha = (at - ts[prev]) / (ts[next] - ts[prev])
	}
	return InterpolatePoses(dst, c.Poses[prev], c.Poses[next], clamp01(alpha))
}
