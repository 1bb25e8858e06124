// Package runner drives a scoring session from a live loop.
//
// The session itself is single-threaded. Runner owns it on one goroutine:
// every tick it advances the reference clip, reads the player source and
// ticks the session. Commands from other goroutines (HTTP handlers, reset
// messages) are queued and applied between ticks, and readers get copies
// of the latest report.
package runner

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-mimic/internal/log"
	"github.com/teslashibe/go-mimic/pkg/reference"
	"github.com/teslashibe/go-mimic/pkg/report"
	"github.com/teslashibe/go-mimic/pkg/session"
	"github.com/teslashibe/go-mimic/pkg/skeleton"
)

// DefaultRate is the tick period (60 Hz).
const DefaultRate = time.Second / 60

// Snapshotter is implemented by player sources that can copy a consistent
// frame, such as mocopi.Source.
type Snapshotter interface {
	PoseInto(dst skeleton.Pose) skeleton.Pose
}

// Config configures a Runner.
type Config struct {
	// Rate is the tick period.
	Rate time.Duration

	Session session.Config
	Cursor  reference.CursorOptions

	// Sink receives every report the session publishes.
	Sink report.Sink
}

// DefaultConfig returns a 60 Hz runner with default session settings.
func DefaultConfig() Config {
	return Config{
		Rate:    DefaultRate,
		Session: session.DefaultConfig(),
		Cursor:  reference.DefaultCursorOptions(),
	}
}

// Stats holds loop diagnostics.
type Stats struct {
	Ticks   uint64 `json:"ticks"`
	Errors  uint64 `json:"errors"`
	Running bool   `json:"running"`
	Clip    string `json:"clip"`
}

type command struct {
	name  string
	apply func() error
	reply chan error
}

// Runner ticks a session against a reference clip and a player source.
type Runner struct {
	cfg    Config
	sess   *session.Session
	cursor *reference.Cursor
	player skeleton.PoseSource
	pose   skeleton.Pose
	log    *slog.Logger

	cmds chan command
	done chan struct{}
	now  func() time.Time
	last time.Time

	mu      sync.RWMutex
	latest  report.Report
	clip    string
	running bool

	tickCount  atomic.Uint64
	errorCount atomic.Uint64
}

// New creates a runner for clip and player.
func New(cfg Config, clip *reference.Clip, player skeleton.PoseSource) (*Runner, error) {
	if clip == nil {
		return nil, fmt.Errorf("runner needs a reference clip")
	}
	if cfg.Rate <= 0 {
		cfg.Rate = DefaultRate
	}

	r := &Runner{
		cfg:    cfg,
		cursor: reference.NewCursor(clip, cfg.Cursor),
		player: player,
		log:    log.Component("runner"),
		cmds:   make(chan command),
		done:   make(chan struct{}),
		now:    time.Now,
		clip:   clip.Name,
	}

	sess, err := session.New(cfg.Session,
		session.WithReference(clip.Name),
		session.WithFinishSignal(func() bool { return r.cursor.Finished() }),
		session.WithSink(report.Multi{report.SinkFunc(r.store), cfg.Sink}),
	)
	if err != nil {
		return nil, err
	}
	r.sess = sess
	r.store(sess.Report())
	return r, nil
}

func (r *Runner) store(rep report.Report) {
	r.mu.Lock()
	r.latest = rep
	r.mu.Unlock()
}

// Run ticks until ctx is done. It must be called once.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Rate)
	defer ticker.Stop()

	r.setRunning(true)
	defer func() {
		r.setRunning(false)
		close(r.done)
	}()

	r.log.Info("started", "hz", 1/r.cfg.Rate.Seconds(), "clip", r.Clip())
	r.last = r.now()

	for {
		select {
		case <-ctx.Done():
			r.log.Info("stopped", "ticks", r.tickCount.Load(), "errors", r.errorCount.Load())
			return ctx.Err()

		case c := <-r.cmds:
			err := c.apply()
			if err != nil {
				r.log.Warn("command failed", "command", c.name, "error", err)
			}
			c.reply <- err

		case <-ticker.C:
			now := r.now()
			dt := now.Sub(r.last).Seconds()
			r.last = now
			r.tick(dt)
		}
	}
}

// tick runs one frame: score the current poses, then move the clip on.
func (r *Runner) tick(dt float64) {
	var player skeleton.PoseSource = r.player
	if snap, ok := r.player.(Snapshotter); ok {
		r.pose = snap.PoseInto(r.pose)
		player = r.pose
	}

	if err := r.sess.Tick(r.cursor, player, dt); err != nil {
		n := r.errorCount.Add(1)
		if n%100 == 1 {
			r.log.Error("tick failed", "error", err, "errors", n)
		}
		return
	}
	r.cursor.Advance(dt)

	n := r.tickCount.Add(1)
	if n%600 == 0 {
		rep := r.sess.Report()
		r.log.Debug("heartbeat", "ticks", n, "samples", rep.Samples, "current", rep.Current)
	}
}

// do queues fn for the loop goroutine and waits for it to run.
func (r *Runner) do(ctx context.Context, name string, fn func() error) error {
	c := command{name: name, apply: fn, reply: make(chan error, 1)}
	select {
	case r.cmds <- c:
	case <-r.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-c.reply
}

// Reset rewinds the clip and restarts scoring.
func (r *Runner) Reset(ctx context.Context) error {
	return r.do(ctx, "reset", func() error {
		r.cursor.Rewind()
		return r.sess.Reset()
	})
}

// End finalizes the current performance.
func (r *Runner) End(ctx context.Context) error {
	return r.do(ctx, "end", func() error {
		r.sess.End()
		return nil
	})
}

// Reconfigure applies new session settings. A tolerance change restarts
// the performance.
func (r *Runner) Reconfigure(ctx context.Context, cfg session.Config) error {
	return r.do(ctx, "reconfigure", func() error {
		resets := cfg.Tolerance != r.sess.Config().Tolerance
		if err := r.sess.Reconfigure(cfg); err != nil {
			return err
		}
		if resets {
			r.cursor.Rewind()
		}
		return nil
	})
}

// Load switches to another reference clip and restarts scoring.
func (r *Runner) Load(ctx context.Context, clip *reference.Clip) error {
	if clip == nil {
		return fmt.Errorf("runner needs a reference clip")
	}
	return r.do(ctx, "load", func() error {
		r.cursor = reference.NewCursor(clip, r.cfg.Cursor)
		r.sess.SetReference(clip.Name)
		r.mu.Lock()
		r.clip = clip.Name
		r.mu.Unlock()
		return r.sess.Reset()
	})
}

// Report returns a copy of the latest report.
func (r *Runner) Report() report.Report {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.latest
}

// Clip returns the name of the reference clip.
func (r *Runner) Clip() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.clip
}

// Stats returns loop diagnostics.
func (r *Runner) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{
		Ticks:   r.tickCount.Load(),
		Errors:  r.errorCount.Load(),
		Running: r.running,
		Clip:    r.clip,
	}
}

func (r *Runner) setRunning(v bool) {
	r.mu.Lock()
	r.running = v
	r.mu.Unlock()
}
