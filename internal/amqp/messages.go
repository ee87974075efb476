package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"sixjars/internal/core"
)

// EventMessage carries one ledger event over the broker. The event is
// complete, so consumers never read back from the ledger store.
type EventMessage struct {
	Event     core.LedgerEvent `json:"event"`
	Timestamp time.Time        `json:"timestamp"`
}

func NewEventMessage(ev core.LedgerEvent) *EventMessage {
	return &EventMessage{Event: ev, Timestamp: time.Now()}
}

func (m *EventMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// EventMessageFromJSON decodes a message and rejects ones without an event id or kind.
func EventMessageFromJSON(data []byte) (*EventMessage, error) {
	var msg EventMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Event.ID == "" || msg.Event.Kind == "" {
		return nil, fmt.Errorf("event message missing id or kind")
	}
	return &msg, nil
}
