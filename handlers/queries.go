package handlers

import (
	"context"
	stdErrors "errors"

	"github.com/rs/zerolog/log"

	"example.com/backstage/services/saga/cache"
	"example.com/backstage/services/saga/criteria"
	"example.com/backstage/services/saga/domain"
	"example.com/backstage/services/saga/eventstore"
	"example.com/backstage/services/saga/repositories"
)

// EventQueries reads the event view side
type EventQueries struct {
	views eventstore.EventViewRepository
}

func NewEventQueries(views eventstore.EventViewRepository) *EventQueries {
	return &EventQueries{views: views}
}

func (q *EventQueries) FindByID(ctx context.Context, id string) (*domain.EventView, error) {
	return q.views.FindByID(ctx, id)
}

func (q *EventQueries) FindByCriteria(ctx context.Context, c criteria.Criteria) (criteria.Page[domain.EventView], error) {
	return q.views.FindByCriteria(ctx, c)
}

// SagaInstanceQueries reads saga instance views through the cache
type SagaInstanceQueries struct {
	views repositories.SagaInstanceViewRepository
	cache *cache.RedisCache
}

func NewSagaInstanceQueries(views repositories.SagaInstanceViewRepository, c *cache.RedisCache) *SagaInstanceQueries {
	return &SagaInstanceQueries{views: views, cache: c}
}

func (q *SagaInstanceQueries) FindByID(ctx context.Context, id string) (*domain.SagaInstanceView, error) {
	key := cache.SagaInstanceKey(id)

	var cached domain.SagaInstanceView
	err := q.cache.Get(ctx, key, &cached)
	if err == nil {
		return &cached, nil
	}
	if !stdErrors.Is(err, cache.ErrMiss) {
		log.Warn().Err(err).Str("sagaInstanceID", id).Msg("Saga instance cache read failed")
	}

	view, err := q.views.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := q.cache.Set(ctx, key, view); err != nil {
		log.Warn().Err(err).Str("sagaInstanceID", id).Msg("Failed to cache saga instance")
	}
	return view, nil
}

func (q *SagaInstanceQueries) FindByCriteria(ctx context.Context, c criteria.Criteria) (criteria.Page[domain.SagaInstanceView], error) {
	return q.views.FindByCriteria(ctx, c)
}

// SagaStepQueries reads saga step views
type SagaStepQueries struct {
	views repositories.SagaStepViewRepository
	cache *cache.RedisCache
}

func NewSagaStepQueries(views repositories.SagaStepViewRepository, c *cache.RedisCache) *SagaStepQueries {
	return &SagaStepQueries{views: views, cache: c}
}

func (q *SagaStepQueries) FindByID(ctx context.Context, id string) (*domain.SagaStepView, error) {
	key := cache.SagaStepKey(id)

	var cached domain.SagaStepView
	if err := q.cache.Get(ctx, key, &cached); err == nil {
		return &cached, nil
	}

	view, err := q.views.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := q.cache.Set(ctx, key, view); err != nil {
		log.Warn().Err(err).Str("sagaStepID", id).Msg("Failed to cache saga step")
	}
	return view, nil
}

func (q *SagaStepQueries) FindByCriteria(ctx context.Context, c criteria.Criteria) (criteria.Page[domain.SagaStepView], error) {
	return q.views.FindByCriteria(ctx, c)
}

// ListByInstance returns the steps of one instance in execution order
func (q *SagaStepQueries) ListByInstance(ctx context.Context, sagaInstanceID string, p criteria.Pagination) (criteria.Page[domain.SagaStepView], error) {
	return q.views.FindByCriteria(ctx, criteria.Criteria{
		Filters:    []criteria.Filter{criteria.Eq("sagaInstanceId", sagaInstanceID)},
		Sorts:      []criteria.Sort{{Field: "order", Direction: criteria.Asc}},
		Pagination: p,
	})
}

// SagaLogQueries reads saga log views
type SagaLogQueries struct {
	views repositories.SagaLogViewRepository
}

func NewSagaLogQueries(views repositories.SagaLogViewRepository) *SagaLogQueries {
	return &SagaLogQueries{views: views}
}

func (q *SagaLogQueries) FindByID(ctx context.Context, id string) (*domain.SagaLogView, error) {
	return q.views.FindByID(ctx, id)
}

func (q *SagaLogQueries) FindByCriteria(ctx context.Context, c criteria.Criteria) (criteria.Page[domain.SagaLogView], error) {
	return q.views.FindByCriteria(ctx, c)
}
