package handlers

import (
	"context"

	"example.com/backstage/services/saga/bus"
	"example.com/backstage/services/saga/domain"
	"example.com/backstage/services/saga/metrics"
	"example.com/backstage/services/saga/repositories"
	"example.com/backstage/services/saga/tracing"
	"example.com/backstage/services/saga/utils"
)

type CreateSagaLogCommand struct {
	ID             string `json:"id"`
	SagaInstanceID string `json:"saga_instance_id" validate:"required_without=SagaStepID"`
	SagaStepID     string `json:"saga_step_id" validate:"required_without=SagaInstanceID"`
	Type           string `json:"type" validate:"required,log_type"`
	Message        string `json:"message" validate:"required"`
}

type DeleteSagaLogCommand struct {
	ID string `json:"id" validate:"required"`
}

// SagaLogHandler handles saga log commands. Entries are never edited.
type SagaLogHandler struct {
	commander
	logs      repositories.SagaLogRepository
	instances repositories.SagaInstanceRepository
	steps     repositories.SagaStepRepository
}

func NewSagaLogHandler(
	logs repositories.SagaLogRepository,
	instances repositories.SagaInstanceRepository,
	steps repositories.SagaStepRepository,
	publisher bus.Publisher,
	m *metrics.Metrics,
	tracer tracing.Tracer,
) *SagaLogHandler {
	return &SagaLogHandler{
		commander: newCommander(publisher, m, tracer),
		logs:      logs,
		instances: instances,
		steps:     steps,
	}
}

// HandleCreateSagaLog records an entry against an existing instance or step
func (h *SagaLogHandler) HandleCreateSagaLog(ctx context.Context, cmd CreateSagaLogCommand) (string, error) {
	if err := utils.ValidateStruct(cmd); err != nil {
		return "", err
	}
	id := newID(cmd.ID)

	err := h.run(ctx, "CreateSagaLog", id, func(ctx context.Context) error {
		if cmd.SagaInstanceID != "" {
			if _, err := h.instances.FindByID(ctx, cmd.SagaInstanceID); err != nil {
				return err
			}
		}
		if cmd.SagaStepID != "" {
			step, err := h.steps.FindByID(ctx, cmd.SagaStepID)
			if err != nil {
				return err
			}
			if cmd.SagaInstanceID != "" && step.SagaInstanceID() != cmd.SagaInstanceID {
				return domain.Validation("saga step %s does not belong to saga instance %s", cmd.SagaStepID, cmd.SagaInstanceID)
			}
		}

		entry, err := domain.NewSagaLog(id, cmd.SagaInstanceID, cmd.SagaStepID, cmd.Type, cmd.Message)
		if err != nil {
			return err
		}
		return h.commit(ctx, entry, func(ctx context.Context) error {
			return h.logs.Save(ctx, entry)
		})
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

// HandleDeleteSagaLog soft-deletes an entry that must exist
func (h *SagaLogHandler) HandleDeleteSagaLog(ctx context.Context, cmd DeleteSagaLogCommand) error {
	if err := utils.ValidateStruct(cmd); err != nil {
		return err
	}
	return h.run(ctx, "DeleteSagaLog", cmd.ID, func(ctx context.Context) error {
		entry, err := h.logs.FindByID(ctx, cmd.ID)
		if err != nil {
			return err
		}
		entry.Delete()
		return h.commit(ctx, entry, func(ctx context.Context) error {
			return h.logs.Delete(ctx, cmd.ID)
		})
	})
}
