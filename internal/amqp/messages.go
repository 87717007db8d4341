package amqp

import (
	"encoding/json"
	"fmt"

	"fintrack/internal/events"
)

// EncodeEvent converts the event to JSON bytes
func EncodeEvent(e events.RecordEvent) ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEvent parses and validates a message body.
func DecodeEvent(data []byte) (events.RecordEvent, error) {
	var e events.RecordEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return events.RecordEvent{}, fmt.Errorf("decode event: %w", err)
	}
	if err := e.Validate(); err != nil {
		return events.RecordEvent{}, err
	}
	return e, nil
}
