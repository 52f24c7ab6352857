package domain

import (
	"encoding/json"
	"strings"
	"time"
)

const sagaStepEntity = "saga step"

// DefaultMaxRetries applies when a step is created without an explicit ceiling
const DefaultMaxRetries = 3

// SagaStepPrimitives is the plain representation of a saga step
type SagaStepPrimitives struct {
	ID             string          `json:"id"`
	SagaInstanceID string          `json:"saga_instance_id"`
	Name           string          `json:"name"`
	Order          int             `json:"order"`
	Status         Status          `json:"status"`
	StartDate      *time.Time      `json:"start_date"`
	EndDate        *time.Time      `json:"end_date"`
	ErrorMessage   *string         `json:"error_message"`
	RetryCount     int             `json:"retry_count"`
	MaxRetries     int             `json:"max_retries"`
	Payload        json.RawMessage `json:"payload"`
	Result         json.RawMessage `json:"result"`
	Revision       int             `json:"revision"`
}

// NewSagaStepParams holds the inputs for creating a step
type NewSagaStepParams struct {
	ID             string
	SagaInstanceID string
	Name           string
	Order          int
	Payload        json.RawMessage
	MaxRetries     *int
}

// SagaStep is an ordered, retryable unit of work within a saga instance
type SagaStep struct {
	AggregateBase
	sagaInstanceID string
	name           string
	order          int
	status         Status
	startDate      *time.Time
	endDate        *time.Time
	errorMessage   *string
	retryCount     int
	maxRetries     int
	payload        json.RawMessage
	result         json.RawMessage
	revision       int
}

// NewSagaStep creates a PENDING step
func NewSagaStep(p NewSagaStepParams) (*SagaStep, error) {
	if strings.TrimSpace(p.ID) == "" {
		return nil, Validation("saga step id is required")
	}
	if strings.TrimSpace(p.SagaInstanceID) == "" {
		return nil, Validation("saga step %s must belong to a saga instance", p.ID)
	}
	if strings.TrimSpace(p.Name) == "" {
		return nil, Validation("saga step name is required")
	}
	if p.Order < 1 {
		return nil, Validation("saga step order must be at least 1, got %d", p.Order)
	}
	if !hasBody(p.Payload) {
		return nil, Validation("saga step payload is required")
	}

	maxRetries := DefaultMaxRetries
	if p.MaxRetries != nil {
		if *p.MaxRetries < 0 {
			return nil, Validation("saga step max retries cannot be negative")
		}
		maxRetries = *p.MaxRetries
	}

	step := &SagaStep{
		AggregateBase:  NewAggregateBase(SagaStepAggregateType, p.ID),
		sagaInstanceID: p.SagaInstanceID,
		name:           p.Name,
		order:          p.Order,
		status:         StatusPending,
		maxRetries:     maxRetries,
		payload:        p.Payload,
	}
	step.raise(SagaStepCreatedPayload{step.ToPrimitives()})
	return step, nil
}

// SagaStepFromPrimitives rebuilds a step without raising anything
func SagaStepFromPrimitives(p SagaStepPrimitives) *SagaStep {
	return &SagaStep{
		AggregateBase:  NewAggregateBase(SagaStepAggregateType, p.ID),
		sagaInstanceID: p.SagaInstanceID,
		name:           p.Name,
		order:          p.Order,
		status:         p.Status,
		startDate:      p.StartDate,
		endDate:        p.EndDate,
		errorMessage:   p.ErrorMessage,
		retryCount:     p.RetryCount,
		maxRetries:     p.MaxRetries,
		payload:        p.Payload,
		result:         p.Result,
		revision:       p.Revision,
	}
}

func (s *SagaStep) SagaInstanceID() string  { return s.sagaInstanceID }
func (s *SagaStep) Name() string            { return s.name }
func (s *SagaStep) Order() int              { return s.order }
func (s *SagaStep) Status() Status          { return s.status }
func (s *SagaStep) RetryCount() int         { return s.retryCount }
func (s *SagaStep) MaxRetries() int         { return s.maxRetries }
func (s *SagaStep) ErrorMessage() *string   { return s.errorMessage }
func (s *SagaStep) Result() json.RawMessage { return s.result }
func (s *SagaStep) EndDate() *time.Time     { return s.endDate }

// Revision is the persisted row version used for optimistic concurrency
func (s *SagaStep) Revision() int { return s.revision }

// MarkPersisted records the row version written by the repository
func (s *SagaStep) MarkPersisted(revision int) {
	s.revision = revision
}

// Update changes the name and input of a step that has not started yet
func (s *SagaStep) Update(name string, payload json.RawMessage) error {
	if s.status != StatusPending {
		return newError(KindInvalidTransition, nil, "saga step %s can only be edited while PENDING, status is %s", s.GetID(), s.status)
	}
	if strings.TrimSpace(name) != "" {
		s.name = name
	}
	if hasBody(payload) {
		s.payload = payload
	}
	s.raise(SagaStepUpdatedPayload{s.ToPrimitives()})
	return nil
}

func (s *SagaStep) MarkAsStarted() error {
	if err := s.transition(StatusStarted, StatusPending); err != nil {
		return err
	}
	s.startDate = timestamp()
	s.raise(SagaStepStatusChangedPayload{s.ToPrimitives()})
	return nil
}

func (s *SagaStep) MarkAsRunning() error {
	if err := s.transition(StatusRunning, StatusStarted); err != nil {
		return err
	}
	s.raise(SagaStepStatusChangedPayload{s.ToPrimitives()})
	return nil
}

// MarkAsCompleted records the step output
func (s *SagaStep) MarkAsCompleted(result json.RawMessage) error {
	if err := s.transition(StatusCompleted, StatusRunning); err != nil {
		return err
	}
	s.endDate = timestamp()
	if hasBody(result) {
		s.result = result
	}
	s.raise(SagaStepStatusChangedPayload{s.ToPrimitives()})
	return nil
}

// MarkAsFailed records the failure reason; the retry counter is left alone
func (s *SagaStep) MarkAsFailed(message string) error {
	if err := s.transition(StatusFailed, StatusPending, StatusStarted, StatusRunning); err != nil {
		return err
	}
	s.endDate = timestamp()
	s.errorMessage = &message
	s.raise(SagaStepStatusChangedPayload{s.ToPrimitives()})
	return nil
}

// CanRetry reports whether Retry would be accepted
func (s *SagaStep) CanRetry() bool {
	return s.status == StatusFailed && s.retryCount < s.maxRetries
}

// Retry sends a failed step back to PENDING while retries remain. Once the
// ceiling is reached the step stays FAILED for good.
func (s *SagaStep) Retry() error {
	if !s.CanRetry() {
		if s.status != StatusFailed {
			return newError(KindInvalidTransition, nil, "saga step %s can only be retried from FAILED, status is %s", s.GetID(), s.status)
		}
		return newError(KindInvalidTransition, nil, "saga step %s exhausted its %d retries", s.GetID(), s.maxRetries)
	}

	s.retryCount++
	s.status = StatusPending
	s.endDate = nil
	s.errorMessage = nil
	s.raise(SagaStepRetriedPayload{s.ToPrimitives()})
	return nil
}

// ChangeStatus dispatches to the transition verb named by value
func (s *SagaStep) ChangeStatus(value string, result json.RawMessage, errorMessage string) error {
	status, _ := ParseStatus(value)
	switch status {
	case StatusStarted:
		return s.MarkAsStarted()
	case StatusRunning:
		return s.MarkAsRunning()
	case StatusCompleted:
		return s.MarkAsCompleted(result)
	case StatusFailed:
		return s.MarkAsFailed(errorMessage)
	default:
		return InvalidTransition(sagaStepEntity, s.status, status)
	}
}

// Delete buffers the removal notification
func (s *SagaStep) Delete() {
	s.raise(SagaStepDeletedPayload{s.ToPrimitives()})
}

// transition treats COMPLETED as final and FAILED as final except through Retry
func (s *SagaStep) transition(to Status, from ...Status) error {
	if !statusIn(s.status, from) {
		return InvalidTransition(sagaStepEntity, s.status, to)
	}
	s.status = to
	return nil
}

func (s *SagaStep) ToPrimitives() SagaStepPrimitives {
	return SagaStepPrimitives{
		ID:             s.GetID(),
		SagaInstanceID: s.sagaInstanceID,
		Name:           s.name,
		Order:          s.order,
		Status:         s.status,
		StartDate:      s.startDate,
		EndDate:        s.endDate,
		ErrorMessage:   s.errorMessage,
		RetryCount:     s.retryCount,
		MaxRetries:     s.maxRetries,
		Payload:        s.payload,
		Result:         s.result,
		Revision:       s.revision,
	}
}

// ValidateNextOrder checks that order extends the existing sequence of an
// instance without duplicates or gaps. Orders start at 1.
func ValidateNextOrder(existing []int, order int) error {
	highest := 0
	for _, o := range existing {
		if o == order {
			return Conflict("saga step order %d is already taken", order)
		}
		if o > highest {
			highest = o
		}
	}
	if order != highest+1 {
		return Validation("saga step order must be %d, got %d", highest+1, order)
	}
	return nil
}

func hasBody(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed != "" && trimmed != "null"
}
