package hub

import (
	"context"
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must be less than pongWait
	maxMessageSize = 4 * 1024
)

// Serve subscribes a websocket connection and pumps messages to it until
// the peer disconnects or the hub stops. Call it from a websocket handler.
func (h *Hub) Serve(conn *websocket.Conn) {
	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	msgs, cancel := h.Subscribe(ctx, 64)

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		defer stop()
		readPump(conn)
	}()

	writePump(ctx, conn, msgs)
	cancel()
	conn.Close()
	<-readDone
}

// readPump discards client messages. Reading is still needed to notice
// disconnects and to process pongs.
func readPump(conn *websocket.Conn) {
	conn.SetReadLimit(maxMessageSize)
	conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump is the only writer on conn.
func writePump(ctx context.Context, conn *websocket.Conn, msgs <-chan Message) {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case m, ok := <-msgs:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, m.Data); err != nil {
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
