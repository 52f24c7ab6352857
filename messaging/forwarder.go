package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/messaging/azservicebus"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/saga/bus"
	"example.com/backstage/services/saga/domain"
)

// MessageSender is the part of *azservicebus.Sender the forwarder needs
type MessageSender interface {
	SendMessage(ctx context.Context, message *azservicebus.Message, options *azservicebus.SendMessageOptions) error
}

// OutboundEvent is the body written to the events queue
type OutboundEvent struct {
	EventID       string          `json:"eventId"`
	EventType     string          `json:"eventType"`
	AggregateID   string          `json:"aggregateId"`
	AggregateType string          `json:"aggregateType"`
	OccurredAt    time.Time       `json:"occurredAt"`
	Data          json.RawMessage `json:"data"`
}

// EventForwarder copies every event appended to the event store onto an
// Azure queue for other services. It listens for the store's created
// notification, so nothing is sent for an event whose append failed.
// Messages use the aggregate id as session id so each aggregate's events
// stay ordered.
type EventForwarder struct {
	sender MessageSender
	source string
}

func NewEventForwarder(sender MessageSender, source string) *EventForwarder {
	return &EventForwarder{sender: sender, source: source}
}

// Register subscribes the forwarder to the event store notifications on b
func (f *EventForwarder) Register(b bus.Bus) {
	b.Subscribe(domain.EventCreated, f.Forward)
}

// Forward sends the stored event carried by a created notification. The
// message id is the event store id.
func (f *EventForwarder) Forward(ctx context.Context, notification domain.DomainEvent) error {
	if notification.IsReplay {
		return nil
	}
	created, ok := notification.Data.(domain.EventCreatedPayload)
	if !ok {
		return nil
	}
	stored := created.EventPrimitives

	body, err := json.Marshal(OutboundEvent{
		EventID:       stored.ID,
		EventType:     stored.EventType,
		AggregateID:   stored.AggregateID,
		AggregateType: stored.AggregateType,
		OccurredAt:    stored.Timestamp,
		Data:          stored.Payload,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message body: %w", err)
	}

	messageID := stored.ID
	sessionID := stored.AggregateID
	msg := &azservicebus.Message{
		Body:      body,
		MessageID: &messageID,
		SessionID: &sessionID,
		ApplicationProperties: map[string]interface{}{
			"source":    f.source,
			"eventType": stored.EventType,
			"time":      time.Now().UTC().Format(time.RFC3339),
		},
	}

	if err := f.sender.SendMessage(ctx, msg, nil); err != nil {
		log.Error().Err(err).Str("eventID", stored.ID).Str("eventType", stored.EventType).Msg("Failed to forward event")
		return err
	}
	return nil
}
