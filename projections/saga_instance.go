package projections

import (
	"context"

	"github.com/rs/zerolog/log"

	"example.com/backstage/services/saga/cache"
	"example.com/backstage/services/saga/domain"
	"example.com/backstage/services/saga/repositories"
	"example.com/backstage/services/saga/search"
)

// SagaInstanceProjector maintains saga instance views, their cache entries
// and search documents
type SagaInstanceProjector struct {
	views   repositories.SagaInstanceViewRepository
	cache   *cache.RedisCache
	indexer search.Indexer
}

func NewSagaInstanceProjector(views repositories.SagaInstanceViewRepository, c *cache.RedisCache, indexer search.Indexer) *SagaInstanceProjector {
	if indexer == nil {
		indexer = search.NoopIndexer{}
	}
	return &SagaInstanceProjector{views: views, cache: c, indexer: indexer}
}

func (p *SagaInstanceProjector) EventTypes() []string {
	return []string{
		domain.SagaInstanceCreated,
		domain.SagaInstanceUpdated,
		domain.SagaInstanceStatusChanged,
		domain.SagaInstanceDeleted,
	}
}

func (p *SagaInstanceProjector) Project(ctx context.Context, event domain.DomainEvent) error {
	switch data := event.Data.(type) {
	case domain.SagaInstanceCreatedPayload:
		return p.save(ctx, domain.SagaInstanceView{SagaInstancePrimitives: data.SagaInstancePrimitives, CreatedAt: event.OccurredAt, UpdatedAt: event.OccurredAt})
	case domain.SagaInstanceUpdatedPayload:
		return p.save(ctx, domain.SagaInstanceView{SagaInstancePrimitives: data.SagaInstancePrimitives, UpdatedAt: event.OccurredAt})
	case domain.SagaInstanceStatusChangedPayload:
		return p.save(ctx, domain.SagaInstanceView{SagaInstancePrimitives: data.SagaInstancePrimitives, UpdatedAt: event.OccurredAt})
	case domain.SagaInstanceDeletedPayload:
		return p.delete(ctx, data.ID)
	default:
		return nil
	}
}

func (p *SagaInstanceProjector) save(ctx context.Context, view domain.SagaInstanceView) error {
	if err := p.views.Save(ctx, view); err != nil {
		return err
	}
	// the stored row carries the original created_at
	if err := p.cache.Delete(ctx, cache.SagaInstanceKey(view.ID)); err != nil {
		log.Warn().Err(err).Str("sagaInstanceID", view.ID).Msg("Failed to evict saga instance from cache")
	}
	if err := p.indexer.IndexSagaInstance(ctx, view); err != nil {
		log.Warn().Err(err).Str("sagaInstanceID", view.ID).Msg("Failed to index saga instance")
	}
	return nil
}

func (p *SagaInstanceProjector) delete(ctx context.Context, id string) error {
	if err := p.views.Delete(ctx, id); err != nil {
		return err
	}
	if err := p.cache.Delete(ctx, cache.SagaInstanceKey(id)); err != nil {
		log.Warn().Err(err).Str("sagaInstanceID", id).Msg("Failed to evict saga instance from cache")
	}
	if err := p.indexer.DeleteSagaInstance(ctx, id); err != nil {
		log.Warn().Err(err).Str("sagaInstanceID", id).Msg("Failed to remove saga instance from index")
	}
	return nil
}
