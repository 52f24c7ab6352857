package repositories

import (
	"context"
	stdErrors "errors"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"example.com/backstage/services/saga/criteria"
	"example.com/backstage/services/saga/domain"
	"example.com/backstage/services/saga/models"
)

var (
	stepUpdateColumns = []string{
		"name", "status", "start_date", "end_date", "error_message",
		"retry_count", "max_retries", "payload", "result", "revision", "updated_at",
	}
	stepViewUpdateColumns = []string{
		"saga_instance_id", "name", "step_order", "status", "start_date", "end_date", "error_message",
		"retry_count", "max_retries", "payload", "result", "updated_at",
	}
)

// GormSagaStepRepository implements SagaStepRepository with optimistic
// concurrency on the revision column
type GormSagaStepRepository struct {
	db *gorm.DB
}

func NewGormSagaStepRepository(db *gorm.DB) *GormSagaStepRepository {
	return &GormSagaStepRepository{db: db}
}

// Save inserts a new step at revision 1 or updates an existing one only if
// its stored revision still matches the loaded one
func (r *GormSagaStepRepository) Save(ctx context.Context, step *domain.SagaStep) error {
	p := step.ToPrimitives()
	row := stepRow(p)
	row.UpdatedAt = time.Now().UTC()

	if p.Revision == 0 {
		row.Revision = 1
		err := r.db.WithContext(ctx).Create(&row).Error
		if stdErrors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.Conflict("saga step %s or order %d already exists in saga instance %s", p.ID, p.Order, p.SagaInstanceID)
		}
		if err != nil {
			return domain.Persistence(errors.Wrap(err, "failed to insert saga step"), "failed to save saga step %s", p.ID)
		}
		step.MarkPersisted(row.Revision)
		return nil
	}

	row.Revision = p.Revision + 1
	result := r.db.WithContext(ctx).
		Model(&models.SagaStep{}).
		Where("id = ? AND revision = ?", p.ID, p.Revision).
		Select(stepUpdateColumns).
		Updates(&row)
	if result.Error != nil {
		return domain.Persistence(errors.Wrap(result.Error, "failed to update saga step"), "failed to save saga step %s", p.ID)
	}
	if result.RowsAffected == 0 {
		return domain.Conflict("saga step %s was modified concurrently (revision %d)", p.ID, p.Revision)
	}
	step.MarkPersisted(row.Revision)
	return nil
}

func (r *GormSagaStepRepository) FindByID(ctx context.Context, id string) (*domain.SagaStep, error) {
	var row models.SagaStep
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if stdErrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NotFound("saga step", id)
	}
	if err != nil {
		return nil, domain.Persistence(errors.Wrap(err, "failed to get saga step by ID"), "failed to load saga step %s", id)
	}
	return domain.SagaStepFromPrimitives(stepPrimitives(row)), nil
}

func (r *GormSagaStepRepository) FindByCriteria(ctx context.Context, c criteria.Criteria) (criteria.Page[*domain.SagaStep], error) {
	rows, total, err := criteria.Find[models.SagaStep](r.db.WithContext(ctx), c, stepColumns, "id")
	if err != nil {
		return criteria.Page[*domain.SagaStep]{}, queryError(err, "failed to query saga steps")
	}
	items := make([]*domain.SagaStep, len(rows))
	for i, row := range rows {
		items[i] = domain.SagaStepFromPrimitives(stepPrimitives(row))
	}
	return criteria.NewPage(items, total, c.Pagination), nil
}

// Orders lists every order ever assigned in an instance, deleted steps included
func (r *GormSagaStepRepository) Orders(ctx context.Context, sagaInstanceID string) ([]int, error) {
	var orders []int
	err := r.db.WithContext(ctx).
		Unscoped().
		Model(&models.SagaStep{}).
		Where("saga_instance_id = ?", sagaInstanceID).
		Order("step_order ASC").
		Pluck("step_order", &orders).Error
	if err != nil {
		return nil, domain.Persistence(errors.Wrap(err, "failed to list saga step orders"), "failed to list step orders of saga instance %s", sagaInstanceID)
	}
	return orders, nil
}

func (r *GormSagaStepRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.SagaStep{}).Error; err != nil {
		return domain.Persistence(errors.Wrap(err, "failed to delete saga step"), "failed to delete saga step %s", id)
	}
	return nil
}

func stepRow(p domain.SagaStepPrimitives) models.SagaStep {
	return models.SagaStep{
		ID:             p.ID,
		SagaInstanceID: p.SagaInstanceID,
		Name:           p.Name,
		Order:          p.Order,
		Status:         string(p.Status),
		StartDate:      p.StartDate,
		EndDate:        p.EndDate,
		ErrorMessage:   p.ErrorMessage,
		RetryCount:     p.RetryCount,
		MaxRetries:     p.MaxRetries,
		Payload:        p.Payload,
		Result:         p.Result,
		Revision:       p.Revision,
	}
}

func stepPrimitives(row models.SagaStep) domain.SagaStepPrimitives {
	return domain.SagaStepPrimitives{
		ID:             row.ID,
		SagaInstanceID: row.SagaInstanceID,
		Name:           row.Name,
		Order:          row.Order,
		Status:         domain.Status(row.Status),
		StartDate:      row.StartDate,
		EndDate:        row.EndDate,
		ErrorMessage:   row.ErrorMessage,
		RetryCount:     row.RetryCount,
		MaxRetries:     row.MaxRetries,
		Payload:        row.Payload,
		Result:         row.Result,
		Revision:       row.Revision,
	}
}

// GormSagaStepViewRepository implements SagaStepViewRepository
type GormSagaStepViewRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

func NewGormSagaStepViewRepository(db *gorm.DB, readOnlyDB *gorm.DB) *GormSagaStepViewRepository {
	return &GormSagaStepViewRepository{db: db, readOnlyDB: readDB(db, readOnlyDB)}
}

func (r *GormSagaStepViewRepository) Save(ctx context.Context, view domain.SagaStepView) error {
	row := models.SagaStepView{
		ID:             view.ID,
		SagaInstanceID: view.SagaInstanceID,
		Name:           view.Name,
		Order:          view.Order,
		Status:         string(view.Status),
		StartDate:      view.StartDate,
		EndDate:        view.EndDate,
		ErrorMessage:   view.ErrorMessage,
		RetryCount:     view.RetryCount,
		MaxRetries:     view.MaxRetries,
		Payload:        view.Payload,
		Result:         view.Result,
		CreatedAt:      view.CreatedAt,
		UpdatedAt:      view.UpdatedAt,
	}
	if err := upsert(ctx, r.db, &row, stepViewUpdateColumns); err != nil {
		return domain.Persistence(errors.Wrap(err, "failed to upsert saga step view"), "failed to save saga step view %s", view.ID)
	}
	return nil
}

func (r *GormSagaStepViewRepository) FindByID(ctx context.Context, id string) (*domain.SagaStepView, error) {
	var row models.SagaStepView
	err := r.readOnlyDB.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if stdErrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NotFound("saga step view", id)
	}
	if err != nil {
		return nil, domain.Persistence(errors.Wrap(err, "failed to get saga step view by ID"), "failed to load saga step view %s", id)
	}
	view := stepView(row)
	return &view, nil
}

func (r *GormSagaStepViewRepository) FindByCriteria(ctx context.Context, c criteria.Criteria) (criteria.Page[domain.SagaStepView], error) {
	rows, total, err := criteria.Find[models.SagaStepView](r.readOnlyDB.WithContext(ctx), c, stepColumns, "id")
	if err != nil {
		return criteria.Page[domain.SagaStepView]{}, queryError(err, "failed to query saga step views")
	}
	items := make([]domain.SagaStepView, len(rows))
	for i, row := range rows {
		items[i] = stepView(row)
	}
	return criteria.NewPage(items, total, c.Pagination), nil
}

func (r *GormSagaStepViewRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.SagaStepView{}).Error; err != nil {
		return domain.Persistence(errors.Wrap(err, "failed to delete saga step view"), "failed to delete saga step view %s", id)
	}
	return nil
}

func stepView(row models.SagaStepView) domain.SagaStepView {
	return domain.SagaStepView{
		ID:             row.ID,
		SagaInstanceID: row.SagaInstanceID,
		Name:           row.Name,
		Order:          row.Order,
		Status:         domain.Status(row.Status),
		StartDate:      row.StartDate,
		EndDate:        row.EndDate,
		ErrorMessage:   row.ErrorMessage,
		RetryCount:     row.RetryCount,
		MaxRetries:     row.MaxRetries,
		Payload:        row.Payload,
		Result:         row.Result,
		CreatedAt:      row.CreatedAt,
		UpdatedAt:      row.UpdatedAt,
	}
}
