package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// EventPrimitives is the plain representation of a stored event
type EventPrimitives struct {
	ID            string          `json:"id"`
	AggregateID   string          `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	EventType     string          `json:"event_type"`
	Payload       json.RawMessage `json:"payload"`
	Timestamp     time.Time       `json:"timestamp"`
}

// Event is the event store aggregate. Rows are immutable once appended.
type Event struct {
	AggregateBase
	aggregateID   string
	aggregateType string
	eventType     string
	payload       json.RawMessage
	timestamp     time.Time
}

// NewEvent creates a store record and buffers its creation notification
func NewEvent(p EventPrimitives) (*Event, error) {
	if strings.TrimSpace(p.ID) == "" {
		return nil, Validation("event id is required")
	}
	if strings.TrimSpace(p.AggregateID) == "" || strings.TrimSpace(p.AggregateType) == "" {
		return nil, Validation("event %s must reference an aggregate", p.ID)
	}
	if strings.TrimSpace(p.EventType) == "" {
		return nil, Validation("event %s has no event type", p.ID)
	}
	if p.Timestamp.IsZero() {
		p.Timestamp = time.Now().UTC()
	}

	event := EventFromPrimitives(p)
	event.raise(EventCreatedPayload{event.ToPrimitives()})
	return event, nil
}

// EventFromPrimitives rebuilds a stored event without raising anything
func EventFromPrimitives(p EventPrimitives) *Event {
	return &Event{
		AggregateBase: NewAggregateBase(EventAggregateType, p.ID),
		aggregateID:   p.AggregateID,
		aggregateType: p.AggregateType,
		eventType:     p.EventType,
		payload:       p.Payload,
		timestamp:     p.Timestamp,
	}
}

func (e *Event) AggregateID() string {
	return e.aggregateID
}

func (e *Event) AggregateType() string {
	return e.aggregateType
}

func (e *Event) EventType() string {
	return e.eventType
}

func (e *Event) Timestamp() time.Time {
	return e.timestamp
}

// Payload returns the opaque stored body
func (e *Event) Payload() json.RawMessage {
	return e.payload
}

func (e *Event) ToPrimitives() EventPrimitives {
	return EventPrimitives{
		ID:            e.GetID(),
		AggregateID:   e.aggregateID,
		AggregateType: e.aggregateType,
		EventType:     e.eventType,
		Payload:       e.payload,
		Timestamp:     e.timestamp,
	}
}
