package mocopi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"

	"github.com/teslashibe/go-mimic/internal/log"
)

// DefaultAddress is the mocopi app's default UDP destination.
const DefaultAddress = ":12351"

// ListenerConfig configures a UDP listener.
type ListenerConfig struct {
	// Address to bind, e.g. ":12351".
	Address string

	// RcvBuf is the socket receive buffer in bytes; zero keeps the OS default.
	RcvBuf int

	// LogInterval is how often packet statistics are logged.
	LogInterval time.Duration

	// OnPacket is called after each decoded packet, if set.
	OnPacket func(p *Packet)

	// OnReset is called for JSON reset commands, if set.
	OnReset func()
}

// Stats counts listener activity.
type Stats struct {
	Packets   uint64 `json:"packets"`
	Skeletons uint64 `json:"skeletons"`
	Frames    uint64 `json:"frames"`
	Errors    uint64 `json:"errors"`
}

// Listener receives mocopi datagrams and feeds them into a Source. Both
// the binary box protocol and JSON frames are accepted.
type Listener struct {
	cfg    ListenerConfig
	source *Source
	log    *slog.Logger

	conn  atomic.Pointer[net.UDPConn]
	ready chan struct{}

	packets   atomic.Uint64
	skeletons atomic.Uint64
	frames    atomic.Uint64
	failures  atomic.Uint64
}

// NewListener creates a listener writing into source.
func NewListener(cfg ListenerConfig, source *Source) *Listener {
	if cfg.Address == "" {
		cfg.Address = DefaultAddress
	}
	if cfg.LogInterval == 0 {
		cfg.LogInterval = time.Minute
	}
	return &Listener{
		cfg:    cfg,
		source: source,
		log:    log.Component("mocopi").With("addr", cfg.Address),
		ready:  make(chan struct{}),
	}
}

// Run binds the socket and processes datagrams until ctx is done.
func (l *Listener) Run(ctx context.Context) error {
	addr, err := net.ResolveUDPAddr("udp", l.cfg.Address)
	if err != nil {
		return fmt.Errorf("failed to resolve UDP address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	defer conn.Close()

	if l.cfg.RcvBuf > 0 {
		if err := conn.SetReadBuffer(l.cfg.RcvBuf); err != nil {
			l.log.Warn("failed to set receive buffer", "bytes", l.cfg.RcvBuf, "error", err)
		}
	}

	l.conn.Store(conn)
	close(l.ready)
	l.log.Info("listening", "local", conn.LocalAddr().String())

	go l.logStats(ctx)

	buf := make([]byte, 65536)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		// Short deadline so cancellation is noticed.
		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		n, from, err := conn.ReadFromUDP(buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.log.Warn("read error", "error", err)
			continue
		}

		if err := l.Handle(buf[:n]); err != nil {
			l.log.Debug("dropped datagram", "from", from.String(), "len", n, "error", err)
		}
	}
}

// LocalAddr returns the bound address once Run has started, or nil.
func (l *Listener) LocalAddr() net.Addr {
	if c := l.conn.Load(); c != nil {
		return c.LocalAddr()
	}
	return nil
}

// Ready is closed once the socket is bound.
func (l *Listener) Ready() <-chan struct{} { return l.ready }

// Handle processes one datagram.
func (l *Listener) Handle(data []byte) error {
	l.packets.Add(1)

	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '{' {
		return l.handleJSON(trimmed)
	}

	p, err := ParsePacket(data)
	if err != nil {
		l.failures.Add(1)
		return err
	}

	switch p.Kind {
	case KindSkeleton:
		l.skeletons.Add(1)
		l.log.Info("skeleton received", "bones", len(p.Bones))
	case KindFrame:
		l.frames.Add(1)
	}
	l.source.HandlePacket(p)
	if l.cfg.OnPacket != nil {
		l.cfg.OnPacket(p)
	}
	return nil
}

func (l *Listener) handleJSON(data []byte) error {
	if IsResetCommand(data) {
		if l.cfg.OnReset != nil {
			l.cfg.OnReset()
		}
		return nil
	}

	f, err := DecodeJSONFrame(data)
	if err != nil {
		l.failures.Add(1)
		return err
	}
	l.frames.Add(1)
	l.source.ApplyFrame(f)
	if l.cfg.OnPacket != nil {
		l.cfg.OnPacket(&Packet{Kind: KindFrame, Frame: f})
	}
	return nil
}

// Stats returns the counters.
func (l *Listener) Stats() Stats {
	return Stats{
		Packets:   l.packets.Load(),
		Skeletons: l.skeletons.Load(),
		Frames:    l.frames.Load(),
		Errors:    l.failures.Load(),
	}
}

func (l *Listener) logStats(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.LogInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := l.Stats()
			l.log.Info("packet stats",
				"packets", st.Packets,
				"frames", st.Frames,
				"skeletons", st.Skeletons,
				"errors", st.Errors)
		}
	}
}
