package projections

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"example.com/backstage/services/saga/domain"
	"example.com/backstage/services/saga/eventstore"
	"example.com/backstage/services/saga/search"
)

// EventProjector mirrors appended events into the event view table and the
// search index
type EventProjector struct {
	views   eventstore.EventViewRepository
	indexer search.Indexer
}

func NewEventProjector(views eventstore.EventViewRepository, indexer search.Indexer) *EventProjector {
	if indexer == nil {
		indexer = search.NoopIndexer{}
	}
	return &EventProjector{views: views, indexer: indexer}
}

func (p *EventProjector) EventTypes() []string {
	return []string{domain.EventCreated}
}

func (p *EventProjector) Project(ctx context.Context, event domain.DomainEvent) error {
	data, ok := event.Data.(domain.EventCreatedPayload)
	if !ok {
		return nil
	}

	view := domain.EventView{
		EventPrimitives: data.EventPrimitives,
		CreatedAt:       event.OccurredAt,
		UpdatedAt:       time.Now().UTC(),
	}
	if err := p.views.Save(ctx, view); err != nil {
		return err
	}
	if err := p.indexer.IndexEvent(ctx, view); err != nil {
		log.Warn().Err(err).Str("eventID", view.ID).Msg("Failed to index event")
	}
	return nil
}
