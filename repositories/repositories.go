package repositories

import (
	"context"
	stdErrors "errors"

	"github.com/pkg/errors"

	"example.com/backstage/services/saga/criteria"
	"example.com/backstage/services/saga/domain"
)

// SagaInstanceRepository is the write side for saga instances
type SagaInstanceRepository interface {
	Save(ctx context.Context, instance *domain.SagaInstance) error
	FindByID(ctx context.Context, id string) (*domain.SagaInstance, error)
	FindByCriteria(ctx context.Context, c criteria.Criteria) (criteria.Page[*domain.SagaInstance], error)
	Delete(ctx context.Context, id string) error
}

// SagaInstanceViewRepository is the read side for saga instances
type SagaInstanceViewRepository interface {
	Save(ctx context.Context, view domain.SagaInstanceView) error
	FindByID(ctx context.Context, id string) (*domain.SagaInstanceView, error)
	FindByCriteria(ctx context.Context, c criteria.Criteria) (criteria.Page[domain.SagaInstanceView], error)
	Delete(ctx context.Context, id string) error
}

// SagaStepRepository is the write side for saga steps. Save rejects a stale
// revision with a conflict error.
type SagaStepRepository interface {
	Save(ctx context.Context, step *domain.SagaStep) error
	FindByID(ctx context.Context, id string) (*domain.SagaStep, error)
	FindByCriteria(ctx context.Context, c criteria.Criteria) (criteria.Page[*domain.SagaStep], error)
	Orders(ctx context.Context, sagaInstanceID string) ([]int, error)
	Delete(ctx context.Context, id string) error
}

// SagaStepViewRepository is the read side for saga steps
type SagaStepViewRepository interface {
	Save(ctx context.Context, view domain.SagaStepView) error
	FindByID(ctx context.Context, id string) (*domain.SagaStepView, error)
	FindByCriteria(ctx context.Context, c criteria.Criteria) (criteria.Page[domain.SagaStepView], error)
	Delete(ctx context.Context, id string) error
}

// SagaLogRepository is the write side for saga logs
type SagaLogRepository interface {
	Save(ctx context.Context, entry *domain.SagaLog) error
	FindByID(ctx context.Context, id string) (*domain.SagaLog, error)
	FindByCriteria(ctx context.Context, c criteria.Criteria) (criteria.Page[*domain.SagaLog], error)
	Delete(ctx context.Context, id string) error
}

// SagaLogViewRepository is the read side for saga logs
type SagaLogViewRepository interface {
	Save(ctx context.Context, view domain.SagaLogView) error
	FindByID(ctx context.Context, id string) (*domain.SagaLogView, error)
	FindByCriteria(ctx context.Context, c criteria.Criteria) (criteria.Page[domain.SagaLogView], error)
	Delete(ctx context.Context, id string) error
}

var (
	instanceColumns = criteria.Columns{
		"id":        "id",
		"name":      "name",
		"status":    "status",
		"startDate": "start_date",
		"endDate":   "end_date",
		"createdAt": "created_at",
	}
	stepColumns = criteria.Columns{
		"id":             "id",
		"sagaInstanceId": "saga_instance_id",
		"name":           "name",
		"order":          "step_order",
		"status":         "status",
		"retryCount":     "retry_count",
		"createdAt":      "created_at",
	}
	logColumns = criteria.Columns{
		"id":             "id",
		"sagaInstanceId": "saga_instance_id",
		"sagaStepId":     "saga_step_id",
		"type":           "type",
		"createdAt":      "created_at",
	}
)

func queryError(err error, message string) error {
	if stdErrors.Is(err, criteria.ErrInvalid) {
		return domain.Validation("%s", err.Error())
	}
	return domain.Persistence(errors.Wrap(err, message), "%s", message)
}
