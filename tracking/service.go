package tracking

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/saga/bus"
	"example.com/backstage/services/saga/domain"
	"example.com/backstage/services/saga/eventstore"
	"example.com/backstage/services/saga/metrics"
)

// Service appends every original domain event to the event store and
// announces the append. Replayed events and the store's own notifications
// are skipped.
type Service struct {
	events    eventstore.EventRepository
	publisher bus.Publisher
	metrics   *metrics.Metrics
}

func NewService(events eventstore.EventRepository, publisher bus.Publisher, m *metrics.Metrics) *Service {
	return &Service{events: events, publisher: publisher, metrics: m}
}

// Register subscribes the service to every event on b
func (s *Service) Register(b bus.Bus) {
	b.Subscribe(bus.AllEvents, s.Handle)
}

// Handle appends, publishes, then commits, in that order
func (s *Service) Handle(ctx context.Context, event domain.DomainEvent) error {
	if event.IsReplay {
		s.metrics.EventSkipped("replay")
		return nil
	}
	if event.AggregateType == domain.EventAggregateType {
		s.metrics.EventSkipped("event_store")
		return nil
	}

	payload, err := domain.MarshalPayload(event.Data)
	if err != nil {
		return domain.Validation("event %s has an unserializable payload: %v", event.EventID, err)
	}

	stored, err := domain.NewEvent(domain.EventPrimitives{
		ID:            uuid.New().String(),
		AggregateID:   event.AggregateID,
		AggregateType: event.AggregateType,
		EventType:     event.EventType,
		Payload:       payload,
		Timestamp:     event.OccurredAt,
	})
	if err != nil {
		return err
	}

	if err := s.events.Save(ctx, stored); err != nil {
		log.Error().
			Err(err).
			Str("aggregateID", event.AggregateID).
			Str("eventType", event.EventType).
			Msg("Failed to append event")
		return err
	}

	if err := s.publisher.PublishAll(ctx, stored.GetUncommittedEvents()); err != nil {
		return err
	}
	stored.Commit()

	s.metrics.EventTracked(event.EventType)
	log.Debug().
		Str("eventID", stored.GetID()).
		Str("aggregateID", event.AggregateID).
		Str("eventType", event.EventType).
		Msg("Event tracked")
	return nil
}
