package runner

import (
	"fmt"
	"math"

	"github.com/teslashibe/go-mimic/pkg/reference"
	"github.com/teslashibe/go-mimic/pkg/report"
	"github.com/teslashibe/go-mimic/pkg/session"
)

// Replay scores a recorded player performance against a reference offline.
// Both cursors are ticked with a fixed dt until the session ends or both
// clips finish; the session is then ended and its report returned.
// Looping cursors stop after the longer clip has played once.
func Replay(sess *session.Session, ref, player *reference.Cursor, dt float64) (report.Report, error) {
	if dt <= 0 || math.IsNaN(dt) {
		return report.Report{}, fmt.Errorf("replay frame delta must be positive, got %v", dt)
	}

	limit := int(math.Ceil(math.Max(playTime(ref), playTime(player))/dt)) + 1
	for i := 0; i < limit; i++ {
		if err := sess.Tick(ref, player, dt); err != nil {
			return report.Report{}, err
		}
		if sess.Ended() || (ref.Finished() && player.Finished()) {
			break
		}
		ref.Advance(dt)
		player.Advance(dt)
	}

	sess.End()
	return sess.Report(), nil
}

// playTime is the wall time one pass of a cursor's clip takes.
func playTime(c *reference.Cursor) float64 {
	return c.Clip().Duration.Seconds() / c.Options().Speed
}
