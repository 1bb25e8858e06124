package store

import (
	"context"
	"time"

	"github.com/teslashibe/go-mimic/internal/log"
	"github.com/teslashibe/go-mimic/pkg/report"
)

// Sink persists ended reports. Running reports are ignored.
type Sink struct {
	DB      *DB
	Stats   *StatsFile
	Timeout time.Duration
}

// NewSink returns a sink writing to db and stats. Either may be nil.
func NewSink(db *DB, stats *StatsFile) *Sink {
	return &Sink{DB: db, Stats: stats, Timeout: 2 * time.Second}
}

// Publish implements report.Sink. Failures are logged and the
// session is only reported as stored when every write succeeded.
func (s *Sink) Publish(r report.Report) {
	if !r.Ended {
		return
	}

	stored := true

	if s.DB != nil {
		timeout := s.Timeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		err := s.DB.Save(ctx, r)
		cancel()
		if err != nil {
			log.Error("failed to save session", "session", r.SessionID, "error", err)
			stored = false
		}
	}
	if s.Stats != nil {
		if err := s.Stats.Record(r); err != nil {
			log.Error("failed to update stats", "path", s.Stats.Path(), "error", err)
			stored = false
		}
	}
	if !stored {
		return
	}
	log.Info("session stored", "session", r.SessionID, "reference", r.Reference, "final", r.Final, "grade", r.Grade)
}
