// Package store keeps summaries of finished performances.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/teslashibe/go-mimic/internal/log"
	"github.com/teslashibe/go-mimic/pkg/report"
)

// ErrNotFound is returned when no stored session matches.
var ErrNotFound = errors.New("session not found")

// ErrNotEnded is returned when saving a report of a running session.
var ErrNotEnded = errors.New("session has not ended")

// schema.sql creates the sessions table and its indexes.
//
//go:embed schema.sql
var schemaSQL string

// Record is one stored performance.
type Record struct {
	SessionID string       `json:"session_id"`
	Reference string       `json:"reference"`
	Final     float64      `json:"final"`
	Grade     report.Grade `json:"grade"`
	Samples   int          `json:"samples"`
	Ticks     int          `json:"ticks"`

	// Sub-score percentages of the last sample; nil when it had none.
	Pose     *float64 `json:"pose"`
	Position *float64 `json:"position"`
	Rhythm   *float64 `json:"rhythm"`

	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `json:"ended_at"`
}

// Duration returns how long the performance lasted.
func (r Record) Duration() time.Duration {
	return r.EndedAt.Sub(r.StartedAt)
}

// DB is a SQLite session store.
type DB struct {
	*sql.DB
}

// Open opens or creates the database at path and applies the schema.
// Use ":memory:" for a throwaway store.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// A single connection keeps ":memory:" databases shared.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	log.Debug("session store ready", "path", path)
	return &DB{db}, nil
}

// Save stores an ended report. Saving the same session again replaces it.
func (db *DB) Save(ctx context.Context, r report.Report) error {
	if !r.Ended {
		return ErrNotEnded
	}

	query := `
		INSERT OR REPLACE INTO sessions
			(session_id, reference, final, grade, samples, ticks, pose, position, rhythm, started_at, ended_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		r.SessionID, r.Reference, r.Final, string(r.Grade), r.Samples, r.Ticks,
		component(r.Breakdown.Pose), component(r.Breakdown.Position), component(r.Breakdown.Rhythm),
		r.StartedAt.UnixMilli(), r.EndedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", r.SessionID, err)
	}
	return nil
}

func component(c report.Component) any {
	if !c.OK {
		return nil
	}
	return c.Score
}

const selectColumns = `
	SELECT session_id, reference, final, grade, samples, ticks, pose, position, rhythm, started_at, ended_at
	FROM sessions
`

// Get returns one session by ID.
func (db *DB) Get(ctx context.Context, id string) (Record, error) {
	rows, err := db.QueryContext(ctx, selectColumns+` WHERE session_id = ?`, id)
	if err != nil {
		return Record{}, fmt.Errorf("failed to query session: %w", err)
	}
	return first(rows)
}

// Recent returns up to limit sessions, newest first.
func (db *DB) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := db.QueryContext(ctx, selectColumns+` ORDER BY ended_at DESC, write_timestamp DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent sessions: %w", err)
	}
	return scan(rows)
}

// ForReference returns up to limit sessions against one reference,
// newest first.
func (db *DB) ForReference(ctx context.Context, reference string, limit int) ([]Record, error) {
	rows, err := db.QueryContext(ctx, selectColumns+` WHERE reference = ? ORDER BY ended_at DESC LIMIT ?`, reference, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query sessions for %q: %w", reference, err)
	}
	return scan(rows)
}

// Best returns the highest scoring session against reference. Ties go to
// the earlier performance.
func (db *DB) Best(ctx context.Context, reference string) (Record, error) {
	rows, err := db.QueryContext(ctx, selectColumns+` WHERE reference = ? ORDER BY final DESC, ended_at ASC LIMIT 1`, reference)
	if err != nil {
		return Record{}, fmt.Errorf("failed to query best session: %w", err)
	}
	return first(rows)
}

// BestPerReference returns the best session of every reference, ordered by
// reference name.
func (db *DB) BestPerReference(ctx context.Context) ([]Record, error) {
	query := selectColumns + `
		WHERE session_id IN (
			SELECT (
				SELECT s2.session_id FROM sessions s2
				WHERE s2.reference = s1.reference
				ORDER BY s2.final DESC, s2.ended_at ASC LIMIT 1
			)
			FROM sessions s1 GROUP BY s1.reference
		)
		ORDER BY reference
	`
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query best sessions: %w", err)
	}
	return scan(rows)
}

// Count returns the number of stored sessions.
func (db *DB) Count(ctx context.Context) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM sessions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count sessions: %w", err)
	}
	return n, nil
}

// Delete removes one session.
func (db *DB) Delete(ctx context.Context, id string) error {
	res, err := db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func first(rows *sql.Rows) (Record, error) {
	recs, err := scan(rows)
	if err != nil {
		return Record{}, err
	}
	if len(recs) == 0 {
		return Record{}, ErrNotFound
	}
	return recs[0], nil
}

func scan(rows *sql.Rows) ([]Record, error) {
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		var (
			r                      Record
			grade                  string
			pose, position, rhythm sql.NullFloat64
			started, ended         int64
		)
		err := rows.Scan(&r.SessionID, &r.Reference, &r.Final, &grade, &r.Samples, &r.Ticks,
			&pose, &position, &rhythm, &started, &ended)
		if err != nil {
			return nil, fmt.Errorf("failed to scan session: %w", err)
		}
		r.Grade = report.Grade(grade)
		r.Pose = nullable(pose)
		r.Position = nullable(position)
		r.Rhythm = nullable(rhythm)
		r.StartedAt = time.UnixMilli(started)
		r.EndedAt = time.UnixMilli(ended)
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

func nullable(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
