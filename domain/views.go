package domain

import (
	"encoding/json"
	"time"
)

// View models are the query-side projections of each aggregate. Projectors
// keep them in sync with the write side.

type EventView struct {
	EventPrimitives
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SagaInstanceView struct {
	SagaInstancePrimitives
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type SagaStepView struct {
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
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}

type SagaLogView struct {
	SagaLogPrimitives
}

// NewSagaStepView projects a step snapshot; the revision stays on the write side
func NewSagaStepView(p SagaStepPrimitives) SagaStepView {
	return SagaStepView{
		ID:             p.ID,
		SagaInstanceID: p.SagaInstanceID,
		Name:           p.Name,
		Order:          p.Order,
		Status:         p.Status,
		StartDate:      p.StartDate,
		EndDate:        p.EndDate,
		ErrorMessage:   p.ErrorMessage,
		RetryCount:     p.RetryCount,
		MaxRetries:     p.MaxRetries,
		Payload:        p.Payload,
		Result:         p.Result,
	}
}
