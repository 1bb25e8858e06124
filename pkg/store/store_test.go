package store

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/teslashibe/go-mimic/internal/log"
	"github.com/teslashibe/go-mimic/pkg/report"
)

var epoch = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func ended(id, ref string, final float64, at time.Duration) report.Report {
	start := epoch.Add(at)
	return report.Report{
		SessionID: id,
		Reference: ref,
		Event:     report.EventEnd,
		State:     "ended",
		Ended:     true,
		Final:     final,
		Grade:     report.GradeFor(final),
		Samples:   5,
		Ticks:     60,
		Breakdown: report.Breakdown{
			Pose:     report.Component{OK: true, Score: final},
			Position: report.Component{OK: true, Score: final},
		},
		StartedAt: start,
		EndedAt:   start.Add(30 * time.Second),
	}
}

func openTest(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "mimic.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestSaveAndGet(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()

	r := ended("a", "sway", 91.5, 0)
	require.NoError(t, db.Save(ctx, r))

	got, err := db.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "sway", got.Reference)
	assert.Equal(t, 91.5, got.Final)
	assert.Equal(t, report.Perfect, got.Grade)
	assert.Equal(t, 5, got.Samples)
	assert.Equal(t, 60, got.Ticks)
	require.NotNil(t, got.Pose)
	assert.Equal(t, 91.5, *got.Pose)
	assert.Nil(t, got.Rhythm)
	assert.True(t, got.StartedAt.Equal(r.StartedAt))
	assert.Equal(t, 30*time.Second, got.Duration())

	_, err = db.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSaveRejectsRunningSession(t *testing.T) {
	db := openTest(t)

	r := ended("a", "sway", 50, 0)
	r.Ended = false
	assert.ErrorIs(t, db.Save(context.Background(), r), ErrNotEnded)
}

func TestSaveReplaces(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()

	require.NoError(t, db.Save(ctx, ended("a", "sway", 40, 0)))
	require.NoError(t, db.Save(ctx, ended("a", "sway", 60, 0)))

	n, err := db.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := db.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, 60.0, got.Final)
}

func TestRecent(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()

	require.NoError(t, db.Save(ctx, ended("a", "sway", 40, 0)))
	require.NoError(t, db.Save(ctx, ended("b", "wave", 70, time.Minute)))
	require.NoError(t, db.Save(ctx, ended("c", "sway", 90, 2*time.Minute)))

	recs, err := db.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "c", recs[0].SessionID)
	assert.Equal(t, "b", recs[1].SessionID)

	sway, err := db.ForReference(ctx, "sway", 10)
	require.NoError(t, err)
	require.Len(t, sway, 2)
	assert.Equal(t, "c", sway[0].SessionID)
}

func TestBest(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()

	require.NoError(t, db.Save(ctx, ended("a", "sway", 80, 0)))
	require.NoError(t, db.Save(ctx, ended("b", "sway", 80, time.Minute)))
	require.NoError(t, db.Save(ctx, ended("c", "sway", 60, 2*time.Minute)))
	require.NoError(t, db.Save(ctx, ended("d", "wave", 30, 3*time.Minute)))

	best, err := db.Best(ctx, "sway")
	require.NoError(t, err)
	assert.Equal(t, "a", best.SessionID)

	_, err = db.Best(ctx, "squat")
	assert.ErrorIs(t, err, ErrNotFound)

	all, err := db.BestPerReference(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].SessionID)
	assert.Equal(t, "d", all[1].SessionID)
}

func TestDelete(t *testing.T) {
	db := openTest(t)
	ctx := context.Background()

	require.NoError(t, db.Save(ctx, ended("a", "sway", 80, 0)))
	require.NoError(t, db.Delete(ctx, "a"))
	assert.ErrorIs(t, db.Delete(ctx, "a"), ErrNotFound)
}

func TestStatsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "save", "stats.json")
	s := NewStatsFile(path)

	empty, err := s.Load()
	require.NoError(t, err)
	assert.Zero(t, empty.Sessions)
	assert.Empty(t, empty.References)

	require.NoError(t, s.Record(ended("a", "sway", 72.456, 0)))
	require.NoError(t, s.Record(ended("b", "sway", 65, time.Minute)))
	require.NoError(t, s.Record(ended("c", "v1.2", 90, 2*time.Minute)))

	sum, err := s.Load()
	require.NoError(t, err)
	assert.Equal(t, int64(3), sum.Sessions)
	assert.Equal(t, 90.0, sum.PlaySeconds)

	sway := sum.References["sway"]
	assert.Equal(t, int64(2), sway.Count)
	assert.Equal(t, 72.46, sway.Best)
	assert.Equal(t, 65.0, sway.Last)
	assert.Equal(t, report.OK, sway.Grade)

	dotted, ok := sum.References["v1.2"]
	require.True(t, ok, "reference names with dots stay one key")
	assert.Equal(t, int64(1), dotted.Count)
}

func TestStatsFilePreservesUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stats.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"owner":"studio"}`), 0o644))

	s := NewStatsFile(path)
	require.NoError(t, s.Record(ended("a", "sway", 50, 0)))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "studio", gjson.GetBytes(data, "owner").String())
	assert.Equal(t, int64(1), gjson.GetBytes(data, "sessions").Int())

	assert.ErrorIs(t, s.Record(report.Report{}), ErrNotEnded)
}

func TestSink(t *testing.T) {
	db := openTest(t)
	stats := NewStatsFile(filepath.Join(t.TempDir(), "stats.json"))
	sink := NewSink(db, stats)

	running := ended("a", "sway", 50, 0)
	running.Ended = false
	sink.Publish(running)
	sink.Publish(ended("b", "sway", 88, 0))

	n, err := db.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	sum, err := stats.Load()
	require.NoError(t, err)
	assert.Equal(t, int64(1), sum.Sessions)
	assert.Equal(t, 88.0, sum.References["sway"].Best)

	var _ report.Sink = sink
}

func TestSinkLogsStoredOnlyOnSuccess(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	t.Cleanup(func() { log.SetOutput(os.Stdout) })

	// A regular file where the stats directory should be makes every write fail.
	blocker := filepath.Join(t.TempDir(), "blocker")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	db := openTest(t)
	sink := NewSink(db, NewStatsFile(filepath.Join(blocker, "stats.json")))
	sink.Publish(ended("bad", "sway", 70, 0))

	assert.Contains(t, buf.String(), "failed to update stats")
	assert.NotContains(t, buf.String(), "session stored")

	n, err := db.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n, "the database write is independent of the stats file")

	buf.Reset()
	NewSink(db, nil).Publish(ended("good", "sway", 90, 0))
	assert.Contains(t, buf.String(), "session stored")
}
