package mocopi

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gorilla/websocket"

	"github.com/teslashibe/go-mimic/internal/log"
)

// FeedConfig configures a websocket frame feed.
type FeedConfig struct {
	// URL of a websocket endpoint streaming JSON frames.
	URL string

	// Retry is the delay between reconnect attempts.
	Retry time.Duration

	// OnReset is called for reset commands, if set.
	OnReset func()
}

// Feed streams JSON frames from a websocket server into a Source,
// reconnecting until its context ends.
type Feed struct {
	cfg    FeedConfig
	source *Source
	dialer websocket.Dialer
	log    *slog.Logger
}

// NewFeed creates a feed writing into source.
func NewFeed(cfg FeedConfig, source *Source) *Feed {
	if cfg.Retry <= 0 {
		cfg.Retry = 2 * time.Second
	}
	return &Feed{
		cfg:    cfg,
		source: source,
		dialer: websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		log:    log.Component("feed").With("url", cfg.URL),
	}
}

// Run connects and reads frames until ctx is done.
func (f *Feed) Run(ctx context.Context) error {
	for {
		err := f.session(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		f.log.Warn("feed disconnected, retrying", "error", err, "in", f.cfg.Retry)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.cfg.Retry):
		}
	}
}

// session runs one connection.
func (f *Feed) session(ctx context.Context) error {
	conn, _, err := f.dialer.DialContext(ctx, f.cfg.URL, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to feed: %w", err)
	}
	defer conn.Close()
	f.log.Info("feed connected")

	// Unblock ReadMessage on cancellation.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		if IsResetCommand(msg) {
			if f.cfg.OnReset != nil {
				f.cfg.OnReset()
			}
			continue
		}

		frame, err := DecodeJSONFrame(msg)
		if err != nil {
			f.log.Debug("skipping message", "error", err)
			continue
		}
		f.source.ApplyFrame(frame)
	}
}
