// Package reference provides recorded reference performances ("clips")
// and tick-driven playback of them as a pose source.
//
// Clips are keyframe animations of the scoring skeleton stored as JSON.
// A Cursor plays a clip back one frame delta at a time and interpolates
// between keyframes, so the session sees a smooth reference stream.
package reference

import (
	"time"

	"github.com/teslashibe/go-mimic/pkg/skeleton"
)

// JointSample is the on-disk form of one joint transform.
type JointSample struct {
	// Rot is a unit quaternion as [x, y, z, w].
	Rot [4]float64 `json:"rot"`

	// Pos is the world position in meters.
	Pos [3]float64 `json:"pos"`
}

// Frame holds the tracked joints of one keyframe, keyed by joint name.
type Frame struct {
	Joints map[string]JointSample `json:"joints"`
}

// ClipData is the raw JSON structure of a clip file.
type ClipData struct {
	Description string `json:"description"`

	// FrameRate is informational when Time is present. Without Time,
	// keyframes are spaced 1/FrameRate apart.
	FrameRate float64 `json:"frame_rate,omitempty"`

	// Time holds the timestamp of each keyframe in seconds.
	Time []float64 `json:"time,omitempty"`

	Frames []Frame `json:"frames"`
}

// Clip is a loaded, playable reference performance.
type Clip struct {
	// Name identifies the clip, usually the file name without extension.
	Name string

	Description string

	// FrameRate is the nominal keyframe rate, zero if unknown.
	FrameRate float64

	// Duration is the time between the first and last keyframe.
	Duration time.Duration

	// Timestamps holds one entry per keyframe, non-decreasing.
	Timestamps []float64

	// Poses holds the keyframes.
	Poses []skeleton.Pose
}

// Len returns the number of keyframes.
func (c *Clip) Len() int { return len(c.Poses) }

// Joints returns the joints tracked in at least one keyframe.
func (c *Clip) Joints() []skeleton.JointID {
	var seen [skeleton.JointCount]bool
	for _, p := range c.Poses {
		for j := range p {
			if j.Valid() {
				seen[j] = true
			}
		}
	}

	var out []skeleton.JointID
	for _, j := range skeleton.Joints() {
		if seen[j] {
			out = append(out, j)
		}
	}
	return out
}

// PlaybackState is the state of a Cursor.
type PlaybackState int

const (
	// StatePlaying means Advance moves the cursor.
	StatePlaying PlaybackState = iota

	// StatePaused means Advance is ignored.
	StatePaused

	// StateFinished means a non-looping cursor reached the last keyframe.
	StateFinished
)

// String returns a human-readable state name.
func (s PlaybackState) String() string {
	switch s {
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateFinished:
		return "finished"
	default:
		return "unknown"
	}
}

// CursorOptions configures playback.
type CursorOptions struct {
	// Loop restarts the clip when it reaches the end.
	Loop bool

	// Speed multiplier (1.0 = normal, 2.0 = 2x speed).
	Speed float64
}

// DefaultCursorOptions returns normal-speed, single-pass playback.
func DefaultCursorOptions() CursorOptions {
	return CursorOptions{
		Loop:  false,
		Speed: 1.0,
	}
}
