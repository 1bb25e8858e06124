package runner

import (
	"context"
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-mimic/pkg/reference"
	"github.com/teslashibe/go-mimic/pkg/report"
	"github.com/teslashibe/go-mimic/pkg/session"
	"github.com/teslashibe/go-mimic/pkg/skeleton"
)

const fps = 60.0

func dance(frame int) skeleton.Pose {
	p := skeleton.Pose{}
	phase := float64(frame) * 0.15
	rot := mgl64.QuatRotate(0.6*math.Sin(phase), mgl64.Vec3{0, 1, 0})
	for _, j := range skeleton.Joints() {
		t := skeleton.Transform{Rotation: rot}
		if skeleton.IsEndEffector(j) {
			t.Position = mgl64.Vec3{0.3 * math.Sin(phase+float64(j)), 0.1 * float64(j), 0}
		}
		p[j] = t
	}
	return p
}

// clip builds a 60 fps clip of n frames where frame i shows dance(i+offset).
func clip(name string, n, offset int) *reference.Clip {
	c := &reference.Clip{Name: name, FrameRate: fps}
	for i := 0; i < n; i++ {
		c.Timestamps = append(c.Timestamps, float64(i)/fps)
		c.Poses = append(c.Poses, dance(i+offset))
	}
	c.Duration = time.Duration(float64(n-1) / fps * float64(time.Second))
	return c
}

func testSession(t *testing.T) session.Config {
	t.Helper()
	cfg := session.DefaultConfig()
	cfg.Tolerance = 5
	cfg.SampleInterval = 10
	return cfg
}

func TestReplayIdentical(t *testing.T) {
	t.Parallel()

	sess, err := session.New(testSession(t), session.WithReference("dance"))
	require.NoError(t, err)

	c := clip("dance", 90, 0)
	opts := reference.DefaultCursorOptions()
	rep, err := Replay(sess, reference.NewCursor(c, opts), reference.NewCursor(c, opts), 1/fps)
	require.NoError(t, err)

	assert.True(t, rep.Ended)
	assert.Equal(t, report.EventEnd, rep.Event)
	assert.GreaterOrEqual(t, rep.Samples, 8)
	assert.InDelta(t, 100.0, rep.Final, 1e-3)
	assert.Equal(t, report.Perfect, rep.Grade)
	assert.Equal(t, "dance", rep.Reference)
}

func TestReplayLaggingPlayer(t *testing.T) {
	t.Parallel()

	sess, err := session.New(testSession(t))
	require.NoError(t, err)

	opts := reference.DefaultCursorOptions()
	ref := reference.NewCursor(clip("dance", 60, 0), opts)
	player := reference.NewCursor(clip("late", 60, -3), opts)

	rep, err := Replay(sess, ref, player, 1/fps)
	require.NoError(t, err)

	assert.Equal(t, 3, rep.Shift)
	assert.InDelta(t, 100.0, rep.Final, 1e-3)
}

func TestReplayStopsLoopingCursors(t *testing.T) {
	t.Parallel()

	sess, err := session.New(testSession(t))
	require.NoError(t, err)

	opts := reference.CursorOptions{Loop: true, Speed: 1}
	c := clip("dance", 30, 0)

	rep, err := Replay(sess, reference.NewCursor(c, opts), reference.NewCursor(c, opts), 1/fps)
	require.NoError(t, err)

	assert.True(t, rep.Ended)
	assert.LessOrEqual(t, rep.Ticks, 32)
}

func TestReplayRejectsBadDelta(t *testing.T) {
	t.Parallel()

	sess, err := session.New(testSession(t))
	require.NoError(t, err)

	c := clip("dance", 10, 0)
	opts := reference.DefaultCursorOptions()
	for _, dt := range []float64{0, -1, math.NaN()} {
		_, err := Replay(sess, reference.NewCursor(c, opts), reference.NewCursor(c, opts), dt)
		assert.Error(t, err)
	}
	assert.False(t, sess.Ended())
}

func TestNewRequiresClip(t *testing.T) {
	_, err := New(DefaultConfig(), nil, skeleton.Pose{})
	assert.Error(t, err)
}

func TestTickAutoEndsWithClip(t *testing.T) {
	t.Parallel()

	var ended atomic.Int32
	cfg := DefaultConfig()
	cfg.Session = testSession(t)
	cfg.Sink = report.EndedOnly(report.SinkFunc(func(report.Report) { ended.Add(1) }))

	r, err := New(cfg, clip("short", 30, 0), dance(0))
	require.NoError(t, err)
	assert.Equal(t, "short", r.Report().Reference)

	for i := 0; i < 40; i++ {
		r.tick(1 / fps)
	}

	rep := r.Report()
	assert.True(t, rep.Ended)
	assert.Equal(t, report.EventEnd, rep.Event)
	assert.Equal(t, int32(1), ended.Load())
	assert.Equal(t, uint64(40), r.Stats().Ticks)
	assert.Zero(t, r.Stats().Errors)
}

func TestTickCountsErrors(t *testing.T) {
	t.Parallel()

	r, err := New(DefaultConfig(), clip("dance", 30, 0), nil)
	require.NoError(t, err)

	r.tick(1 / fps)
	r.tick(1 / fps)

	assert.Equal(t, uint64(2), r.Stats().Errors)
	assert.Zero(t, r.Stats().Ticks)
}

type snapshotSource struct {
	calls int
	pose  skeleton.Pose
}

func (s *snapshotSource) JointTransform(j skeleton.JointID) (skeleton.Transform, bool) {
	t, ok := s.pose[j]
	return t, ok
}

func (s *snapshotSource) PoseInto(dst skeleton.Pose) skeleton.Pose {
	s.calls++
	if dst == nil {
		dst = make(skeleton.Pose)
	}
	clear(dst)
	for j, t := range s.pose {
		dst[j] = t
	}
	return dst
}

func TestTickSnapshotsPlayer(t *testing.T) {
	t.Parallel()

	src := &snapshotSource{pose: dance(0)}
	r, err := New(DefaultConfig(), clip("dance", 30, 0), src)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		r.tick(1 / fps)
	}
	assert.Equal(t, 5, src.calls)
	assert.Len(t, r.pose, int(skeleton.JointCount))
}

func TestRunAppliesCommands(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.Rate = 2 * time.Millisecond
	cfg.Session = testSession(t)
	cfg.Cursor = reference.CursorOptions{Loop: true, Speed: 1}

	r, err := New(cfg, clip("dance", 120, 0), dance(0))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errc := make(chan error, 1)
	go func() { errc <- r.Run(ctx) }()

	require.Eventually(t, func() bool { return r.Stats().Ticks > 3 }, time.Second, time.Millisecond)
	assert.True(t, r.Stats().Running)

	require.NoError(t, r.Reset(ctx))
	require.NoError(t, r.Load(ctx, clip("other", 60, 0)))
	assert.Equal(t, "other", r.Clip())

	bad := testSession(t)
	bad.SampleInterval = 0
	assert.ErrorIs(t, r.Reconfigure(ctx, bad), session.ErrInvalidConfig)

	good := testSession(t)
	good.Tolerance = 3
	require.NoError(t, r.Reconfigure(ctx, good))

	require.NoError(t, r.End(ctx))
	rep := r.Report()
	assert.True(t, rep.Ended)
	assert.Equal(t, "other", rep.Reference)

	cancel()
	select {
	case err := <-errc:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}

	assert.False(t, r.Stats().Running)
	assert.ErrorIs(t, r.Reset(context.Background()), ErrStopped)
}
