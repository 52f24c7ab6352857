package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Aggregate types
const (
	EventAggregateType        = "event"
	SagaInstanceAggregateType = "saga_instance"
	SagaStepAggregateType     = "saga_step"
	SagaLogAggregateType      = "saga_log"
)

// EventType constants
const (
	// Event store events
	EventCreated = "V1_EVENT_CREATED"

	// Saga instance events
	SagaInstanceCreated       = "V1_SAGA_INSTANCE_CREATED"
	SagaInstanceUpdated       = "V1_SAGA_INSTANCE_UPDATED"
	SagaInstanceStatusChanged = "V1_SAGA_INSTANCE_STATUS_CHANGED"
	SagaInstanceDeleted       = "V1_SAGA_INSTANCE_DELETED"

	// Saga step events
	SagaStepCreated       = "V1_SAGA_STEP_CREATED"
	SagaStepUpdated       = "V1_SAGA_STEP_UPDATED"
	SagaStepStatusChanged = "V1_SAGA_STEP_STATUS_CHANGED"
	SagaStepRetried       = "V1_SAGA_STEP_RETRIED"
	SagaStepDeleted       = "V1_SAGA_STEP_DELETED"

	// Saga log events
	SagaLogCreated = "V1_SAGA_LOG_CREATED"
	SagaLogDeleted = "V1_SAGA_LOG_DELETED"
)

// DomainEvent is the envelope every aggregate change travels in
type DomainEvent struct {
	EventID       string    `json:"event_id"`
	AggregateID   string    `json:"aggregate_id"`
	AggregateType string    `json:"aggregate_type"`
	EventType     string    `json:"event_type"`
	OccurredAt    time.Time `json:"occurred_at"`
	IsReplay      bool      `json:"is_replay"`
	Data          Payload   `json:"data"`
}

// NewDomainEvent creates an event with a fresh id; the type comes from the payload
func NewDomainEvent(aggregateID, aggregateType string, data Payload) DomainEvent {
	return DomainEvent{
		EventID:       uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     data.EventType(),
		OccurredAt:    time.Now().UTC(),
		Data:          data,
	}
}

// NewReplayedEvent rebuilds a historical event for re-publication
func NewReplayedEvent(aggregateID, aggregateType, eventType string, occurredAt time.Time, data Payload) DomainEvent {
	return DomainEvent{
		EventID:       uuid.New().String(),
		AggregateID:   aggregateID,
		AggregateType: aggregateType,
		EventType:     eventType,
		OccurredAt:    occurredAt,
		IsReplay:      true,
		Data:          data,
	}
}

// Payload is the event-specific body of a DomainEvent
type Payload interface {
	EventType() string
}

// Event store payloads

type EventCreatedPayload struct{ EventPrimitives }

func (EventCreatedPayload) EventType() string { return EventCreated }

// Saga instance payloads

type SagaInstanceCreatedPayload struct{ SagaInstancePrimitives }
type SagaInstanceUpdatedPayload struct{ SagaInstancePrimitives }
type SagaInstanceStatusChangedPayload struct{ SagaInstancePrimitives }
type SagaInstanceDeletedPayload struct{ SagaInstancePrimitives }

func (SagaInstanceCreatedPayload) EventType() string       { return SagaInstanceCreated }
func (SagaInstanceUpdatedPayload) EventType() string       { return SagaInstanceUpdated }
func (SagaInstanceStatusChangedPayload) EventType() string { return SagaInstanceStatusChanged }
func (SagaInstanceDeletedPayload) EventType() string       { return SagaInstanceDeleted }

// Saga step payloads

type SagaStepCreatedPayload struct{ SagaStepPrimitives }
type SagaStepUpdatedPayload struct{ SagaStepPrimitives }
type SagaStepStatusChangedPayload struct{ SagaStepPrimitives }
type SagaStepRetriedPayload struct{ SagaStepPrimitives }
type SagaStepDeletedPayload struct{ SagaStepPrimitives }

func (SagaStepCreatedPayload) EventType() string       { return SagaStepCreated }
func (SagaStepUpdatedPayload) EventType() string       { return SagaStepUpdated }
func (SagaStepStatusChangedPayload) EventType() string { return SagaStepStatusChanged }
func (SagaStepRetriedPayload) EventType() string       { return SagaStepRetried }
func (SagaStepDeletedPayload) EventType() string       { return SagaStepDeleted }

// Saga log payloads

type SagaLogCreatedPayload struct{ SagaLogPrimitives }
type SagaLogDeletedPayload struct{ SagaLogPrimitives }

func (SagaLogCreatedPayload) EventType() string { return SagaLogCreated }
func (SagaLogDeletedPayload) EventType() string { return SagaLogDeleted }

// RawPayload carries a stored body whose type has no registered decoder
type RawPayload struct {
	Type string
	Raw  json.RawMessage
}

func (p RawPayload) EventType() string { return p.Type }

// MarshalJSON emits the stored body unchanged
func (p RawPayload) MarshalJSON() ([]byte, error) {
	if len(p.Raw) == 0 {
		return []byte("null"), nil
	}
	return p.Raw, nil
}

var payloadDecoders = map[string]func([]byte) (Payload, error){
	EventCreated:              decodePayload[EventCreatedPayload],
	SagaInstanceCreated:       decodePayload[SagaInstanceCreatedPayload],
	SagaInstanceUpdated:       decodePayload[SagaInstanceUpdatedPayload],
	SagaInstanceStatusChanged: decodePayload[SagaInstanceStatusChangedPayload],
	SagaInstanceDeleted:       decodePayload[SagaInstanceDeletedPayload],
	SagaStepCreated:           decodePayload[SagaStepCreatedPayload],
	SagaStepUpdated:           decodePayload[SagaStepUpdatedPayload],
	SagaStepStatusChanged:     decodePayload[SagaStepStatusChangedPayload],
	SagaStepRetried:           decodePayload[SagaStepRetriedPayload],
	SagaStepDeleted:           decodePayload[SagaStepDeletedPayload],
	SagaLogCreated:            decodePayload[SagaLogCreatedPayload],
	SagaLogDeleted:            decodePayload[SagaLogDeletedPayload],
}

func decodePayload[T Payload](raw []byte) (Payload, error) {
	var data T
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, err
	}
	return data, nil
}

// DecodePayload turns a stored body back into its typed payload. Unknown types
// and empty bodies come back as RawPayload.
func DecodePayload(eventType string, raw []byte) (Payload, error) {
	decoder, ok := payloadDecoders[eventType]
	if !ok || len(raw) == 0 || string(raw) == "null" {
		return RawPayload{Type: eventType, Raw: raw}, nil
	}

	data, err := decoder(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal %s payload: %w", eventType, err)
	}
	return data, nil
}

// MarshalPayload serializes a payload for storage
func MarshalPayload(data Payload) (json.RawMessage, error) {
	if data == nil {
		return nil, nil
	}
	if raw, ok := data.(RawPayload); ok {
		return raw.Raw, nil
	}

	body, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", data.EventType(), err)
	}
	return body, nil
}
