package handlers

import (
	"context"
	"encoding/json"

	"example.com/backstage/services/saga/bus"
	"example.com/backstage/services/saga/domain"
	"example.com/backstage/services/saga/metrics"
	"example.com/backstage/services/saga/repositories"
	"example.com/backstage/services/saga/tracing"
	"example.com/backstage/services/saga/utils"
)

// CreateSagaStepCommand appends a step. Order 0 takes the next free position.
type CreateSagaStepCommand struct {
	ID             string          `json:"id"`
	SagaInstanceID string          `json:"saga_instance_id" validate:"required"`
	Name           string          `json:"name" validate:"required"`
	Order          int             `json:"order" validate:"omitempty,min=1"`
	Payload        json.RawMessage `json:"payload" validate:"required"`
	MaxRetries     *int            `json:"max_retries" validate:"omitempty,min=0"`
}

type UpdateSagaStepCommand struct {
	ID      string          `json:"id" validate:"required"`
	Name    string          `json:"name"`
	Payload json.RawMessage `json:"payload"`
}

type ChangeSagaStepStatusCommand struct {
	ID           string          `json:"id" validate:"required"`
	Status       string          `json:"status" validate:"required"`
	Result       json.RawMessage `json:"result"`
	ErrorMessage string          `json:"error_message"`
}

type RetrySagaStepCommand struct {
	ID string `json:"id" validate:"required"`
}

type DeleteSagaStepCommand struct {
	ID string `json:"id" validate:"required"`
}

// SagaStepHandler handles all saga step commands
type SagaStepHandler struct {
	commander
	steps     repositories.SagaStepRepository
	instances repositories.SagaInstanceRepository
}

func NewSagaStepHandler(
	steps repositories.SagaStepRepository,
	instances repositories.SagaInstanceRepository,
	publisher bus.Publisher,
	m *metrics.Metrics,
	tracer tracing.Tracer,
) *SagaStepHandler {
	return &SagaStepHandler{
		commander: newCommander(publisher, m, tracer),
		steps:     steps,
		instances: instances,
	}
}

// HandleCreateSagaStep appends a PENDING step to an existing instance
func (h *SagaStepHandler) HandleCreateSagaStep(ctx context.Context, cmd CreateSagaStepCommand) (string, error) {
	if err := utils.ValidateStruct(cmd); err != nil {
		return "", err
	}
	id := newID(cmd.ID)

	err := h.run(ctx, "CreateSagaStep", id, func(ctx context.Context) error {
		if _, err := h.instances.FindByID(ctx, cmd.SagaInstanceID); err != nil {
			return err
		}
		if _, err := h.steps.FindByID(ctx, id); err == nil {
			return domain.Conflict("saga step %s already exists", id)
		} else if !domain.IsNotFound(err) {
			return err
		}

		orders, err := h.steps.Orders(ctx, cmd.SagaInstanceID)
		if err != nil {
			return err
		}
		order := cmd.Order
		if order == 0 {
			order = nextOrder(orders)
		}
		if err := domain.ValidateNextOrder(orders, order); err != nil {
			return err
		}

		step, err := domain.NewSagaStep(domain.NewSagaStepParams{
			ID:             id,
			SagaInstanceID: cmd.SagaInstanceID,
			Name:           cmd.Name,
			Order:          order,
			Payload:        cmd.Payload,
			MaxRetries:     cmd.MaxRetries,
		})
		if err != nil {
			return err
		}
		return h.commit(ctx, step, func(ctx context.Context) error {
			return h.steps.Save(ctx, step)
		})
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// HandleUpdateSagaStep edits a step that has not started
func (h *SagaStepHandler) HandleUpdateSagaStep(ctx context.Context, cmd UpdateSagaStepCommand) error {
	if err := utils.ValidateStruct(cmd); err != nil {
		return err
	}
	return h.run(ctx, "UpdateSagaStep", cmd.ID, func(ctx context.Context) error {
		return h.mutate(ctx, cmd.ID, func(step *domain.SagaStep) error {
			return step.Update(cmd.Name, cmd.Payload)
		})
	})
}

func (h *SagaStepHandler) HandleChangeSagaStepStatus(ctx context.Context, cmd ChangeSagaStepStatusCommand) error {
	if err := utils.ValidateStruct(cmd); err != nil {
		return err
	}
	return h.run(ctx, "ChangeSagaStepStatus", cmd.ID, func(ctx context.Context) error {
		return h.mutate(ctx, cmd.ID, func(step *domain.SagaStep) error {
			return step.ChangeStatus(cmd.Status, cmd.Result, cmd.ErrorMessage)
		})
	})
}

// HandleRetrySagaStep sends a failed step back to PENDING
func (h *SagaStepHandler) HandleRetrySagaStep(ctx context.Context, cmd RetrySagaStepCommand) error {
	if err := utils.ValidateStruct(cmd); err != nil {
		return err
	}
	return h.run(ctx, "RetrySagaStep", cmd.ID, func(ctx context.Context) error {
		return h.mutate(ctx, cmd.ID, func(step *domain.SagaStep) error {
			return step.Retry()
		})
	})
}

func (h *SagaStepHandler) HandleDeleteSagaStep(ctx context.Context, cmd DeleteSagaStepCommand) error {
	if err := utils.ValidateStruct(cmd); err != nil {
		return err
	}
	return h.run(ctx, "DeleteSagaStep", cmd.ID, func(ctx context.Context) error {
		step, err := h.steps.FindByID(ctx, cmd.ID)
		if err != nil {
			return err
		}
		step.Delete()
		return h.commit(ctx, step, func(ctx context.Context) error {
			return h.steps.Delete(ctx, cmd.ID)
		})
	})
}

func (h *SagaStepHandler) mutate(ctx context.Context, id string, change func(*domain.SagaStep) error) error {
	step, err := h.steps.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if _, err := h.instances.FindByID(ctx, step.SagaInstanceID()); err != nil {
		return err
	}
	if err := change(step); err != nil {
		return err
	}
	return h.commit(ctx, step, func(ctx context.Context) error {
		return h.steps.Save(ctx, step)
	})
}

func nextOrder(orders []int) int {
	highest := 0
	for _, o := range orders {
		if o > highest {
			highest = o
		}
	}
	return highest + 1
}
