package hub

import (
	"context"
	"log/slog"
	"sync"

	"github.com/teslashibe/go-mimic/internal/log"
)

// subscriber is anything the hub can queue messages for.
type subscriber struct {
	send chan Message
}

// Hub maintains the set of subscribers and broadcasts messages to them.
type Hub struct {
	name string
	log  *slog.Logger

	subs map[*subscriber]struct{}

	broadcast  chan Message
	register   chan *subscriber
	unregister chan *subscriber
	done       chan struct{}

	// last message per topic, replayed to new subscribers
	lastMu sync.RWMutex
	last   map[string]Message

	mu      sync.RWMutex
	count   int
	running bool
}

// New creates a hub. Call Run once before subscribing.
func New(name string) *Hub {
	return &Hub{
		name:       name,
		log:        log.Component("hub").With("hub", name),
		subs:       make(map[*subscriber]struct{}),
		broadcast:  make(chan Message, 256),
		register:   make(chan *subscriber),
		unregister: make(chan *subscriber),
		done:       make(chan struct{}),
		last:       make(map[string]Message),
	}
}

// Run is the hub's main loop. It returns when ctx is done, closing every
// subscriber channel.
func (h *Hub) Run(ctx context.Context) {
	h.setRunning(true)
	defer func() {
		h.setRunning(false)
		close(h.done)
	}()

	for {
		select {
		case <-ctx.Done():
			for s := range h.subs {
				close(s.send)
				delete(h.subs, s)
			}
			h.setCount(0)
			return

		case s := <-h.register:
			h.subs[s] = struct{}{}
			h.lastMu.RLock()
			for _, m := range h.last {
				select {
				case s.send <- m:
				default:
				}
			}
			h.lastMu.RUnlock()
			h.setCount(len(h.subs))
			h.log.Debug("subscriber connected", "total", len(h.subs))

		case s := <-h.unregister:
			_, ok := h.subs[s]
			delete(h.subs, s)
			h.setCount(len(h.subs))
			if ok {
				close(s.send)
			}
			h.log.Debug("subscriber disconnected", "remaining", len(h.subs))

		case m := <-h.broadcast:
			for s := range h.subs {
				select {
				case s.send <- m:
				default:
					// Too slow to keep up.
					close(s.send)
					delete(h.subs, s)
					h.log.Warn("dropped slow subscriber")
				}
			}
			h.setCount(len(h.subs))
		}
	}
}

// Broadcast queues msg for every subscriber. It never blocks; when the
// queue is full the message is dropped.
func (h *Hub) Broadcast(msg Message) {
	h.lastMu.Lock()
	h.last[msg.Topic] = msg
	h.lastMu.Unlock()

	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn("broadcast queue full, dropping message", "topic", msg.Topic)
	}
}

// BroadcastJSON encodes v and broadcasts it under topic.
func (h *Hub) BroadcastJSON(topic string, v any) error {
	msg, err := NewMessage(topic, v)
	if err != nil {
		return err
	}
	h.Broadcast(msg)
	return nil
}

// Subscribe registers an in-process subscriber. The returned channel is
// closed when cancel is called or the hub stops. The most recent message
// of each topic is delivered first.
func (h *Hub) Subscribe(ctx context.Context, buffer int) (<-chan Message, func()) {
	if buffer < 1 {
		buffer = 1
	}
	s := &subscriber{send: make(chan Message, buffer)}
	select {
	case h.register <- s:
	case <-h.done:
		close(s.send)
		return s.send, func() {}
	case <-ctx.Done():
		close(s.send)
		return s.send, func() {}
	}

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			select {
			case h.unregister <- s:
			case <-h.done:
			}
		})
	}
	return s.send, cancel
}

// ClientCount returns the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.count
}

// IsRunning reports whether Run is active.
func (h *Hub) IsRunning() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

func (h *Hub) setCount(n int) {
	h.mu.Lock()
	h.count = n
	h.mu.Unlock()
}

func (h *Hub) setRunning(v bool) {
	h.mu.Lock()
	h.running = v
	h.mu.Unlock()
}
