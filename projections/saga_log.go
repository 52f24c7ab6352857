package projections

import (
	"context"

	"example.com/backstage/services/saga/domain"
	"example.com/backstage/services/saga/repositories"
)

// SagaLogProjector maintains saga log views. A deletion removes exactly the
// view with the deleted entry's id.
type SagaLogProjector struct {
	views repositories.SagaLogViewRepository
}

func NewSagaLogProjector(views repositories.SagaLogViewRepository) *SagaLogProjector {
	return &SagaLogProjector{views: views}
}

func (p *SagaLogProjector) EventTypes() []string {
	return []string{domain.SagaLogCreated, domain.SagaLogDeleted}
}

func (p *SagaLogProjector) Project(ctx context.Context, event domain.DomainEvent) error {
	switch data := event.Data.(type) {
	case domain.SagaLogCreatedPayload:
		return p.views.Save(ctx, domain.SagaLogView{SagaLogPrimitives: data.SagaLogPrimitives})
	case domain.SagaLogDeletedPayload:
		return p.views.Delete(ctx, data.ID)
	default:
		return nil
	}
}
