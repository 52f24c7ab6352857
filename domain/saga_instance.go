package domain

import (
	"strings"
	"time"
)

const sagaInstanceEntity = "saga instance"

// SagaInstancePrimitives is the plain representation of a saga instance
type SagaInstancePrimitives struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Status    Status     `json:"status"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
	Revision  int        `json:"-"`
}

// SagaInstance is the top-level unit of a multi-step process.
// PENDING -> STARTED -> RUNNING -> COMPLETED | FAILED
type SagaInstance struct {
	AggregateBase
	name      string
	status    Status
	startDate *time.Time
	endDate   *time.Time
	revision  int
}

// NewSagaInstance creates a PENDING instance
func NewSagaInstance(id, name string) (*SagaInstance, error) {
	if strings.TrimSpace(id) == "" {
		return nil, Validation("saga instance id is required")
	}
	if strings.TrimSpace(name) == "" {
		return nil, Validation("saga instance name is required")
	}

	instance := &SagaInstance{
		AggregateBase: NewAggregateBase(SagaInstanceAggregateType, id),
		name:          name,
		status:        StatusPending,
	}
	instance.raise(SagaInstanceCreatedPayload{instance.ToPrimitives()})
	return instance, nil
}

// SagaInstanceFromPrimitives rebuilds an instance without raising anything
func SagaInstanceFromPrimitives(p SagaInstancePrimitives) *SagaInstance {
	return &SagaInstance{
		AggregateBase: NewAggregateBase(SagaInstanceAggregateType, p.ID),
		name:          p.Name,
		status:        p.Status,
		startDate:     p.StartDate,
		endDate:       p.EndDate,
		revision:      p.Revision,
	}
}

func (s *SagaInstance) Name() string          { return s.name }
func (s *SagaInstance) Status() Status        { return s.status }
func (s *SagaInstance) StartDate() *time.Time { return s.startDate }
func (s *SagaInstance) EndDate() *time.Time   { return s.endDate }

// Revision is the persisted row version used for optimistic concurrency.
// Zero means the instance has never been saved.
func (s *SagaInstance) Revision() int { return s.revision }

// MarkPersisted records the row version written by the repository
func (s *SagaInstance) MarkPersisted(revision int) {
	s.revision = revision
}

// Update renames the instance
func (s *SagaInstance) Update(name string) error {
	if strings.TrimSpace(name) == "" {
		return Validation("saga instance name is required")
	}
	s.name = name
	s.raise(SagaInstanceUpdatedPayload{s.ToPrimitives()})
	return nil
}

func (s *SagaInstance) MarkAsStarted() error {
	if err := s.transition(StatusStarted, StatusPending); err != nil {
		return err
	}
	s.startDate = timestamp()
	s.raise(SagaInstanceStatusChangedPayload{s.ToPrimitives()})
	return nil
}

func (s *SagaInstance) MarkAsRunning() error {
	if err := s.transition(StatusRunning, StatusStarted); err != nil {
		return err
	}
	s.raise(SagaInstanceStatusChangedPayload{s.ToPrimitives()})
	return nil
}

func (s *SagaInstance) MarkAsCompleted() error {
	if err := s.transition(StatusCompleted, StatusRunning); err != nil {
		return err
	}
	s.endDate = timestamp()
	s.raise(SagaInstanceStatusChangedPayload{s.ToPrimitives()})
	return nil
}

func (s *SagaInstance) MarkAsFailed() error {
	if err := s.transition(StatusFailed, StatusPending, StatusStarted, StatusRunning); err != nil {
		return err
	}
	s.endDate = timestamp()
	s.raise(SagaInstanceStatusChangedPayload{s.ToPrimitives()})
	return nil
}

// ChangeStatus dispatches to the transition verb named by value
func (s *SagaInstance) ChangeStatus(value string) error {
	status, _ := ParseStatus(value)
	switch status {
	case StatusStarted:
		return s.MarkAsStarted()
	case StatusRunning:
		return s.MarkAsRunning()
	case StatusCompleted:
		return s.MarkAsCompleted()
	case StatusFailed:
		return s.MarkAsFailed()
	default:
		return InvalidTransition(sagaInstanceEntity, s.status, status)
	}
}

// Delete buffers the removal notification; the row itself is soft-deleted by the repository
func (s *SagaInstance) Delete() {
	s.raise(SagaInstanceDeletedPayload{s.ToPrimitives()})
}

func (s *SagaInstance) transition(to Status, from ...Status) error {
	if s.status.IsTerminal() || !statusIn(s.status, from) {
		return InvalidTransition(sagaInstanceEntity, s.status, to)
	}
	s.status = to
	return nil
}

func (s *SagaInstance) ToPrimitives() SagaInstancePrimitives {
	return SagaInstancePrimitives{
		ID:        s.GetID(),
		Name:      s.name,
		Status:    s.status,
		StartDate: s.startDate,
		EndDate:   s.endDate,
		Revision:  s.revision,
	}
}
