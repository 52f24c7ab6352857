package domain

// Aggregate is the interface for all event-sourced aggregates
type Aggregate interface {
	GetID() string
	GetType() string
	Apply(event DomainEvent)
	GetUncommittedEvents() []DomainEvent
	Commit()
}

// AggregateBase provides the uncommitted event buffer shared by every aggregate.
// Concrete aggregates embed it, mutate their own fields, then call Apply with the
// event describing the change.
type AggregateBase struct {
	id            string
	aggregateType string
	uncommitted   []DomainEvent
}

// NewAggregateBase creates a new aggregate base
func NewAggregateBase(aggregateType, id string) AggregateBase {
	return AggregateBase{
		id:            id,
		aggregateType: aggregateType,
	}
}

// GetID returns the aggregate ID
func (a *AggregateBase) GetID() string {
	return a.id
}

// GetType returns the aggregate type
func (a *AggregateBase) GetType() string {
	return a.aggregateType
}

// Apply buffers an event as uncommitted
func (a *AggregateBase) Apply(event DomainEvent) {
	a.uncommitted = append(a.uncommitted, event)
}

// GetUncommittedEvents returns a copy of the buffered events
func (a *AggregateBase) GetUncommittedEvents() []DomainEvent {
	events := make([]DomainEvent, len(a.uncommitted))
	copy(events, a.uncommitted)
	return events
}

// Commit clears the buffer. Callers must publish the buffered events first.
func (a *AggregateBase) Commit() {
	a.uncommitted = nil
}

// raise builds a domain event for this aggregate and applies it
func (a *AggregateBase) raise(data Payload) {
	a.Apply(NewDomainEvent(a.id, a.aggregateType, data))
}
