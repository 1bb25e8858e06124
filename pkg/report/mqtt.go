package report

import (
	"encoding/json"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/teslashibe/go-mimic/internal/log"
)

// DefaultTopic is the base MQTT topic for reports.
const DefaultTopic = "mimic/score"

// Publisher is the part of mqtt.Client used by MQTTSink.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTConfig holds broker settings.
type MQTTConfig struct {
	Broker   string        // e.g. tcp://localhost:1883
	ClientID string        // unique per process
	Topic    string        // base topic, DefaultTopic when empty
	QoS      byte          // 0, 1 or 2
	Timeout  time.Duration // publish wait
}

// DefaultMQTTConfig returns local broker defaults.
func DefaultMQTTConfig() MQTTConfig {
	return MQTTConfig{
		Broker:   "tcp://localhost:1883",
		ClientID: "go-mimic",
		Topic:    DefaultTopic,
		QoS:      0,
		Timeout:  2 * time.Second,
	}
}

// Connect dials the broker.
func Connect(cfg MQTTConfig) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return client, nil
}

// MQTTSink publishes every report as JSON on <topic>/<event>. The latest
// report is retained on <topic>.
type MQTTSink struct {
	client  Publisher
	topic   string
	qos     byte
	timeout time.Duration
	log     *slog.Logger
}

// NewMQTTSink wraps a connected client.
func NewMQTTSink(client Publisher, cfg MQTTConfig) *MQTTSink {
	topic := strings.TrimSuffix(cfg.Topic, "/")
	if topic == "" {
		topic = DefaultTopic
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &MQTTSink{
		client:  client,
		topic:   topic,
		qos:     cfg.QoS,
		timeout: timeout,
		log:     log.Component("mqtt"),
	}
}

// Publish implements Sink. Failures are logged.
func (s *MQTTSink) Publish(r Report) {
	payload, err := json.Marshal(r)
	if err != nil {
		s.log.Error("marshal report", "error", err)
		return
	}

	s.send(s.topic, true, payload)
	if r.Event != "" {
		s.send(s.topic+"/"+string(r.Event), false, payload)
	}
}

func (s *MQTTSink) send(topic string, retained bool, payload []byte) {
	token := s.client.Publish(topic, s.qos, retained, payload)
	if !token.WaitTimeout(s.timeout) {
		s.log.Warn("publish timed out", "topic", topic)
		return
	}
	if err := token.Error(); err != nil {
		s.log.Warn("publish failed", "topic", topic, "error", err)
	}
}
