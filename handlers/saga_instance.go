package handlers

import (
	"context"

	"example.com/backstage/services/saga/bus"
	"example.com/backstage/services/saga/criteria"
	"example.com/backstage/services/saga/domain"
	"example.com/backstage/services/saga/metrics"
	"example.com/backstage/services/saga/repositories"
	"example.com/backstage/services/saga/tracing"
	"example.com/backstage/services/saga/utils"
)

// Command structs
type CreateSagaInstanceCommand struct {
	ID   string `json:"id"`
	Name string `json:"name" validate:"required"`
}

type UpdateSagaInstanceCommand struct {
	ID   string `json:"id" validate:"required"`
	Name string `json:"name" validate:"required"`
}

type ChangeSagaInstanceStatusCommand struct {
	ID     string `json:"id" validate:"required"`
	Status string `json:"status" validate:"required"`
}

type DeleteSagaInstanceCommand struct {
	ID string `json:"id" validate:"required"`
}

// SagaInstanceHandler handles all saga instance commands
type SagaInstanceHandler struct {
	commander
	instances repositories.SagaInstanceRepository
	steps     repositories.SagaStepRepository
}

func NewSagaInstanceHandler(
	instances repositories.SagaInstanceRepository,
	steps repositories.SagaStepRepository,
	publisher bus.Publisher,
	m *metrics.Metrics,
	tracer tracing.Tracer,
) *SagaInstanceHandler {
	return &SagaInstanceHandler{
		commander: newCommander(publisher, m, tracer),
		instances: instances,
		steps:     steps,
	}
}

// HandleCreateSagaInstance creates a PENDING instance and returns its id
func (h *SagaInstanceHandler) HandleCreateSagaInstance(ctx context.Context, cmd CreateSagaInstanceCommand) (string, error) {
	if err := utils.ValidateStruct(cmd); err != nil {
		return "", err
	}
	id := newID(cmd.ID)

	err := h.run(ctx, "CreateSagaInstance", id, func(ctx context.Context) error {
		if _, err := h.instances.FindByID(ctx, id); err == nil {
			return domain.Conflict("saga instance %s already exists", id)
		} else if !domain.IsNotFound(err) {
			return err
		}

		instance, err := domain.NewSagaInstance(id, cmd.Name)
		if err != nil {
			return err
		}
		return h.commit(ctx, instance, func(ctx context.Context) error {
			return h.instances.Save(ctx, instance)
		})
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (h *SagaInstanceHandler) HandleUpdateSagaInstance(ctx context.Context, cmd UpdateSagaInstanceCommand) error {
	if err := utils.ValidateStruct(cmd); err != nil {
		return err
	}
	return h.run(ctx, "UpdateSagaInstance", cmd.ID, func(ctx context.Context) error {
		return h.mutate(ctx, cmd.ID, func(instance *domain.SagaInstance) error {
			return instance.Update(cmd.Name)
		})
	})
}

// HandleChangeSagaInstanceStatus moves the instance along its state machine
func (h *SagaInstanceHandler) HandleChangeSagaInstanceStatus(ctx context.Context, cmd ChangeSagaInstanceStatusCommand) error {
	if err := utils.ValidateStruct(cmd); err != nil {
		return err
	}
	return h.run(ctx, "ChangeSagaInstanceStatus", cmd.ID, func(ctx context.Context) error {
		return h.mutate(ctx, cmd.ID, func(instance *domain.SagaInstance) error {
			return instance.ChangeStatus(cmd.Status)
		})
	})
}

// HandleDeleteSagaInstance soft-deletes the live steps of the instance, then
// the instance itself. Each removal raises its own deleted event.
func (h *SagaInstanceHandler) HandleDeleteSagaInstance(ctx context.Context, cmd DeleteSagaInstanceCommand) error {
	if err := utils.ValidateStruct(cmd); err != nil {
		return err
	}
	return h.run(ctx, "DeleteSagaInstance", cmd.ID, func(ctx context.Context) error {
		instance, err := h.instances.FindByID(ctx, cmd.ID)
		if err != nil {
			return err
		}

		steps, err := h.liveSteps(ctx, cmd.ID)
		if err != nil {
			return err
		}
		for _, step := range steps {
			step.Delete()
			if err := h.commit(ctx, step, func(ctx context.Context) error {
				return h.steps.Delete(ctx, step.GetID())
			}); err != nil {
				return err
			}
		}

		instance.Delete()
		return h.commit(ctx, instance, func(ctx context.Context) error {
			return h.instances.Delete(ctx, cmd.ID)
		})
	})
}

// mutate loads the instance, applies change and commits the result
func (h *SagaInstanceHandler) mutate(ctx context.Context, id string, change func(*domain.SagaInstance) error) error {
	instance, err := h.instances.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if err := change(instance); err != nil {
		return err
	}
	return h.commit(ctx, instance, func(ctx context.Context) error {
		return h.instances.Save(ctx, instance)
	})
}

// liveSteps collects every non-deleted step of an instance across all pages
func (h *SagaInstanceHandler) liveSteps(ctx context.Context, instanceID string) ([]*domain.SagaStep, error) {
	var steps []*domain.SagaStep
	for page := 1; ; page++ {
		result, err := h.steps.FindByCriteria(ctx, criteria.Criteria{
			Filters:    []criteria.Filter{criteria.Eq("sagaInstanceId", instanceID)},
			Pagination: criteria.Pagination{Page: page, PerPage: criteria.MaxPerPage},
		})
		if err != nil {
			return nil, err
		}
		steps = append(steps, result.Items...)
		if page >= result.TotalPages {
			return steps, nil
		}
	}
}
