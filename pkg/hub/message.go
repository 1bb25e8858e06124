// Package hub fans messages out to websocket clients and in-process
// subscribers using a single channel-driven loop.
package hub

import "encoding/json"

// Message is one broadcast payload. Topic lets clients tell report
// updates apart from session lifecycle events.
type Message struct {
	Topic string
	Data  []byte
}

// NewMessage encodes v as JSON under topic.
func NewMessage(topic string, v any) (Message, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return Message{}, err
	}
	return Message{Topic: topic, Data: data}, nil
}
