package report

import (
	"github.com/teslashibe/go-mimic/internal/log"
	"github.com/teslashibe/go-mimic/pkg/hub"
)

// HubTopic is the hub topic reports are broadcast under.
const HubTopic = "report"

// HubSink broadcasts reports to websocket subscribers.
type HubSink struct {
	hub *hub.Hub
}

// NewHubSink wraps h.
func NewHubSink(h *hub.Hub) *HubSink {
	return &HubSink{hub: h}
}

// Publish implements Sink.
func (s *HubSink) Publish(r Report) {
	if err := s.hub.BroadcastJSON(HubTopic, r); err != nil {
		log.Warn("broadcast report", "error", err)
	}
}
