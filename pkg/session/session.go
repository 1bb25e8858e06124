// Package session accumulates alignment scores over a performance.
//
// A Session is driven by a single goroutine: one Tick per frame captures
// both streams and every SampleInterval ticks scores the centered
// reference pose against the player. Reset, End and Reconfigure must be
// called from the same goroutine, between ticks.
package session

import (
	"reflect"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-mimic/pkg/motion"
	"github.com/teslashibe/go-mimic/pkg/report"
	"github.com/teslashibe/go-mimic/pkg/scoring"
	"github.com/teslashibe/go-mimic/pkg/skeleton"
)

// FinishFunc reports whether the reference performance has finished.
type FinishFunc func() bool

// Option configures a Session.
type Option func(*Session)

// WithFinishSignal sets the function polled after each tick when AutoEnd
// is enabled.
func WithFinishSignal(f FinishFunc) Option {
	return func(s *Session) { s.finished = f }
}

// WithSink publishes a report on reset, on every sample and on end.
func WithSink(sink report.Sink) Option {
	return func(s *Session) { s.sink = sink }
}

// WithReference labels reports with a reference clip name.
func WithReference(name string) Option {
	return func(s *Session) { s.reference = name }
}

// WithClock replaces time.Now for report timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Session) { s.now = now }
}

// Session owns the stream windows, the scorer and the running totals.
type Session struct {
	cfg    Config
	scorer *scoring.Scorer
	bufs   *motion.Buffers

	reference string
	finished  FinishFunc
	sink      report.Sink
	now       func() time.Time

	id        string
	state     State
	ticks     int
	samples   int
	sum       float64
	current   float64
	final     float64
	warmingUp bool
	last      scoring.Result
	startedAt time.Time
	endedAt   time.Time
}

// New validates cfg and returns a running session.
func New(cfg Config, opts ...Option) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	scorer, err := scoring.NewScorer(cfg.Scoring)
	if err != nil {
		return nil, err
	}

	s := &Session{
		cfg:    cfg,
		scorer: scorer,
		bufs:   motion.NewBuffers(cfg.Tolerance),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.clear()
	return s, nil
}

// Reset starts a new performance: accumulators, windows and velocity
// caches are cleared and the session is running again.
func (s *Session) Reset() error {
	if err := s.cfg.Validate(); err != nil {
		return err
	}
	s.clear()
	s.publish(report.EventReset)
	return nil
}

func (s *Session) clear() {
	s.bufs.Reset()
	s.id = uuid.NewString()
	s.state = Running
	s.ticks = 0
	s.samples = 0
	s.sum = 0
	s.current = 0
	s.final = 0
	s.warmingUp = true
	s.last = scoring.Result{}
	s.startedAt = s.now()
	s.endedAt = time.Time{}
}

// missing reports whether src is nil, including a nil pointer stored in
// the interface. A nil Pose map is a valid empty source.
func missing(src skeleton.PoseSource) bool {
	if src == nil {
		return true
	}
	v := reflect.ValueOf(src)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

// Tick advances the session by one frame. dt is the frame delta in
// seconds. Ticks on an ended session do nothing.
func (s *Session) Tick(reference, player skeleton.PoseSource, dt float64) error {
	if missing(reference) || missing(player) {
		return ErrMissingSource
	}
	if s.state == Ended {
		return nil
	}

	s.bufs.Capture(reference, player, dt)
	s.ticks++

	if s.bufs.Full() && s.ticks%s.cfg.SampleInterval == 0 {
		s.sample()
	}

	if s.cfg.AutoEnd && s.finished != nil && s.finished() {
		s.End()
	}
	return nil
}

func (s *Session) sample() {
	r := s.scorer.Align(s.bufs.Reference, s.bufs.Player, s.cfg.Tolerance)
	s.last = r
	s.current = 100 * r.Combined
	s.sum += s.current
	s.samples++
	s.warmingUp = false
	s.publish(report.EventSample)
}

// End finalizes the session. The final score is the mean of all samples,
// or zero without samples. Calling End again has no effect.
func (s *Session) End() {
	if s.state == Ended {
		return
	}
	s.state = Ended
	if s.samples > 0 {
		s.final = s.sum / float64(s.samples)
	} else {
		s.final = 0
	}
	s.endedAt = s.now()
	s.publish(report.EventEnd)
}

// Reconfigure replaces the configuration. A tolerance change reallocates
// the windows and resets the session; other changes apply from the next
// sample.
func (s *Session) Reconfigure(cfg Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	scorer, err := scoring.NewScorer(cfg.Scoring)
	if err != nil {
		return err
	}

	resize := cfg.Tolerance != s.cfg.Tolerance
	s.cfg = cfg
	s.scorer = scorer
	if resize {
		s.bufs.Resize(cfg.Tolerance)
		return s.Reset()
	}
	return nil
}

func (s *Session) publish(e report.Event) {
	if s.sink != nil {
		s.sink.Publish(s.report(e))
	}
}

// SetReference relabels reports, typically after switching clips.
func (s *Session) SetReference(name string) { s.reference = name }

// Reference returns the reference label.
func (s *Session) Reference() string { return s.reference }

// ID returns the identifier of the current performance. It changes on
// every reset.
func (s *Session) ID() string { return s.id }

// Config returns the active configuration.
func (s *Session) Config() Config { return s.cfg }

// State returns the lifecycle state.
func (s *Session) State() State { return s.state }

// Ended reports whether the session has ended.
func (s *Session) Ended() bool { return s.state == Ended }

// WarmingUp is true until the first sample.
func (s *Session) WarmingUp() bool { return s.warmingUp }

// Current returns the latest sample score in percent.
func (s *Session) Current() float64 { return s.current }

// Final returns the final score in percent, zero until ended.
func (s *Session) Final() float64 { return s.final }

// Samples returns the number of scored samples.
func (s *Session) Samples() int { return s.samples }

// Ticks returns the number of ticks since the last reset.
func (s *Session) Ticks() int { return s.ticks }

// Last returns the alignment result of the latest sample.
func (s *Session) Last() scoring.Result { return s.last }

// Report returns a value snapshot of the session.
func (s *Session) Report() report.Report {
	e := report.EventSample
	switch {
	case s.state == Ended:
		e = report.EventEnd
	case s.samples == 0:
		e = report.EventReset
	}
	return s.report(e)
}

func (s *Session) report(e report.Event) report.Report {
	r := report.Report{
		SessionID: s.id,
		Reference: s.reference,
		Event:     e,
		State:     s.state.String(),
		Ended:     s.state == Ended,
		WarmingUp: s.warmingUp,
		Current:   s.current,
		Final:     s.final,
		Samples:   s.samples,
		Ticks:     s.ticks,
		Shift:     s.last.Shift,
		Breakdown: report.BreakdownOf(s.last),
		StartedAt: s.startedAt,
		EndedAt:   s.endedAt,
	}
	r.Grade = report.GradeFor(r.Score())
	return r
}
