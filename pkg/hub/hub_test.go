package hub

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := New("test")
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	t.Cleanup(cancel)
	return h, cancel
}

func receive(t *testing.T, ch <-chan Message) (Message, bool) {
	t.Helper()
	select {
	case m, ok := <-ch:
		return m, ok
	case <-time.After(2 * time.Second):
		t.Fatal("Timed out waiting for message")
		return Message{}, false
	}
}

func waitCount(t *testing.T, h *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for h.ClientCount() != want && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if got := h.ClientCount(); got != want {
		t.Fatalf("Expected %d subscribers, got %d", want, got)
	}
}

func TestBroadcastReachesSubscribers(t *testing.T) {
	h, _ := startHub(t)

	a, cancelA := h.Subscribe(context.Background(), 4)
	defer cancelA()
	b, cancelB := h.Subscribe(context.Background(), 4)
	defer cancelB()

	waitCount(t, h, 2)

	if err := h.BroadcastJSON("report", map[string]int{"samples": 3}); err != nil {
		t.Fatalf("BroadcastJSON failed: %v", err)
	}

	for _, ch := range []<-chan Message{a, b} {
		m, ok := receive(t, ch)
		if !ok {
			t.Fatal("Expected open channel")
		}
		if m.Topic != "report" {
			t.Errorf("Expected topic report, got %q", m.Topic)
		}
		var v map[string]int
		if err := json.Unmarshal(m.Data, &v); err != nil || v["samples"] != 3 {
			t.Errorf("Unexpected payload %s (%v)", m.Data, err)
		}
	}
}

func TestNewSubscriberGetsLastMessage(t *testing.T) {
	h, _ := startHub(t)

	// Make sure the loop is up before broadcasting.
	warm, cancelWarm := h.Subscribe(context.Background(), 1)
	h.Broadcast(Message{Topic: "report", Data: []byte(`{"current":50}`)})
	receive(t, warm)
	cancelWarm()

	late, cancel := h.Subscribe(context.Background(), 4)
	defer cancel()

	m, ok := receive(t, late)
	if !ok || string(m.Data) != `{"current":50}` {
		t.Errorf("Expected replay of last report, got %q (open=%v)", m.Data, ok)
	}
}

func TestCancelClosesChannel(t *testing.T) {
	h, _ := startHub(t)

	ch, cancel := h.Subscribe(context.Background(), 1)
	cancel()
	cancel()

	if _, ok := receive(t, ch); ok {
		t.Error("Expected closed channel after cancel")
	}
	if got := h.ClientCount(); got != 0 {
		t.Errorf("Expected 0 subscribers, got %d", got)
	}
}

func TestStopClosesSubscribers(t *testing.T) {
	h, stop := startHub(t)

	ch, cancel := h.Subscribe(context.Background(), 1)
	stop()

	if _, ok := receive(t, ch); ok {
		t.Error("Expected closed channel after hub stop")
	}
	// Must not block once the hub is gone.
	cancel()

	late, _ := h.Subscribe(context.Background(), 1)
	if _, ok := receive(t, late); ok {
		t.Error("Expected closed channel from stopped hub")
	}
	if h.IsRunning() {
		t.Error("Expected hub to report stopped")
	}
}

func TestSlowSubscriberDropped(t *testing.T) {
	h, _ := startHub(t)

	slow, cancel := h.Subscribe(context.Background(), 1)
	defer cancel()

	for i := 0; i < 3; i++ {
		h.Broadcast(Message{Topic: "tick", Data: []byte{byte('0' + i)}})
	}

	waitCount(t, h, 0)

	n := 0
	for range slow {
		n++
	}
	if n != 1 {
		t.Errorf("Expected 1 buffered message before drop, got %d", n)
	}
}
