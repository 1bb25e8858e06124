// Package report defines the externally visible scoring state of a session
// and the sinks it is published to.
package report

import (
	"time"

	"github.com/teslashibe/go-mimic/pkg/scoring"
)

// Grade is the coarse verdict shown next to a percentage.
type Grade string

const (
	Perfect Grade = "Perfect"
	Good    Grade = "Good"
	OK      Grade = "OK"
	Miss    Grade = "Miss"
)

// Grade thresholds in percent.
const (
	PerfectThreshold = 85.0
	GoodThreshold    = 70.0
	OKThreshold      = 50.0
)

// GradeFor maps a percentage to a grade.
func GradeFor(percent float64) Grade {
	switch {
	case percent >= PerfectThreshold:
		return Perfect
	case percent >= GoodThreshold:
		return Good
	case percent >= OKThreshold:
		return OK
	default:
		return Miss
	}
}

// Event says why a report was published.
type Event string

const (
	EventReset  Event = "reset"
	EventSample Event = "sample"
	EventEnd    Event = "end"
)

// Component is one sub-score scaled to percent.
type Component struct {
	OK    bool    `json:"ok"`
	Score float64 `json:"score"`
	Error float64 `json:"error"`
}

// Breakdown holds the sub-scores at the winning shift of the last sample.
type Breakdown struct {
	Pose     Component `json:"pose"`
	Position Component `json:"position"`
	Rhythm   Component `json:"rhythm"`
}

// BreakdownOf converts a scoring result.
func BreakdownOf(r scoring.Result) Breakdown {
	conv := func(s scoring.SubScore) Component {
		return Component{OK: s.OK, Score: 100 * s.Score, Error: s.Error}
	}
	return Breakdown{
		Pose:     conv(r.Pose),
		Position: conv(r.Position),
		Rhythm:   conv(r.Rhythm),
	}
}

// Report is a value snapshot of a session. Percentages are in [0, 100].
type Report struct {
	SessionID string `json:"session_id"`
	Reference string `json:"reference,omitempty"`
	Event     Event  `json:"event"`

	State     string `json:"state"`
	Ended     bool   `json:"ended"`
	WarmingUp bool   `json:"warming_up"`

	Current float64 `json:"current"`
	Final   float64 `json:"final"`
	Grade   Grade   `json:"grade"`

	Samples int `json:"samples"`
	Ticks   int `json:"ticks"`

	// Shift is the alignment offset of the last sample in frames.
	Shift     int       `json:"shift"`
	Breakdown Breakdown `json:"breakdown"`

	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at,omitzero"`
}

// Score returns the final score once ended and the current score otherwise.
func (r Report) Score() float64 {
	if r.Ended {
		return r.Final
	}
	return r.Current
}

// Duration is the wall time between start and end, or zero while running.
func (r Report) Duration() time.Duration {
	if !r.Ended || r.EndedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}
