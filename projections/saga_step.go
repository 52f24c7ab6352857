package projections

import (
	"context"

	"github.com/rs/zerolog/log"

	"example.com/backstage/services/saga/cache"
	"example.com/backstage/services/saga/domain"
	"example.com/backstage/services/saga/repositories"
)

// SagaStepProjector maintains saga step views
type SagaStepProjector struct {
	views repositories.SagaStepViewRepository
	cache *cache.RedisCache
}

func NewSagaStepProjector(views repositories.SagaStepViewRepository, c *cache.RedisCache) *SagaStepProjector {
	return &SagaStepProjector{views: views, cache: c}
}

func (p *SagaStepProjector) EventTypes() []string {
	return []string{
		domain.SagaStepCreated,
		domain.SagaStepUpdated,
		domain.SagaStepStatusChanged,
		domain.SagaStepRetried,
		domain.SagaStepDeleted,
	}
}

func (p *SagaStepProjector) Project(ctx context.Context, event domain.DomainEvent) error {
	var snapshot domain.SagaStepPrimitives
	switch data := event.Data.(type) {
	case domain.SagaStepCreatedPayload:
		view := domain.NewSagaStepView(data.SagaStepPrimitives)
		view.CreatedAt = event.OccurredAt
		view.UpdatedAt = event.OccurredAt
		return p.save(ctx, view)
	case domain.SagaStepUpdatedPayload:
		snapshot = data.SagaStepPrimitives
	case domain.SagaStepStatusChangedPayload:
		snapshot = data.SagaStepPrimitives
	case domain.SagaStepRetriedPayload:
		snapshot = data.SagaStepPrimitives
	case domain.SagaStepDeletedPayload:
		if err := p.views.Delete(ctx, data.ID); err != nil {
			return err
		}
		p.evict(ctx, data.ID)
		return nil
	default:
		return nil
	}

	view := domain.NewSagaStepView(snapshot)
	view.UpdatedAt = event.OccurredAt
	return p.save(ctx, view)
}

func (p *SagaStepProjector) save(ctx context.Context, view domain.SagaStepView) error {
	if err := p.views.Save(ctx, view); err != nil {
		return err
	}
	p.evict(ctx, view.ID)
	return nil
}

func (p *SagaStepProjector) evict(ctx context.Context, id string) {
	if err := p.cache.Delete(ctx, cache.SagaStepKey(id)); err != nil {
		log.Warn().Err(err).Str("sagaStepID", id).Msg("Failed to evict saga step from cache")
	}
}
