package projections

import (
	"context"

	"example.com/backstage/services/saga/bus"
	"example.com/backstage/services/saga/domain"
)

// Projector keeps one view model in sync with its aggregate's events
type Projector interface {
	EventTypes() []string
	Project(ctx context.Context, event domain.DomainEvent) error
}

// Register subscribes each projector to the event types it handles
func Register(b bus.Bus, projectors ...Projector) {
	for _, p := range projectors {
		for _, eventType := range p.EventTypes() {
			b.Subscribe(eventType, p.Project)
		}
	}
}
