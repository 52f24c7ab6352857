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

// GormSagaLogRepository implements SagaLogRepository. Entries are inserted
// once and only ever soft-deleted afterwards.
type GormSagaLogRepository struct {
	db *gorm.DB
}

func NewGormSagaLogRepository(db *gorm.DB) *GormSagaLogRepository {
	return &GormSagaLogRepository{db: db}
}

func (r *GormSagaLogRepository) Save(ctx context.Context, entry *domain.SagaLog) error {
	p := entry.ToPrimitives()
	row := models.SagaLog{
		ID:             p.ID,
		SagaInstanceID: p.SagaInstanceID,
		SagaStepID:     p.SagaStepID,
		Type:           string(p.Type),
		Message:        p.Message,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	err := r.db.WithContext(ctx).Create(&row).Error
	if stdErrors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.Conflict("saga log %s already exists", p.ID)
	}
	if err != nil {
		return domain.Persistence(errors.Wrap(err, "failed to insert saga log"), "failed to save saga log %s", p.ID)
	}
	return nil
}

func (r *GormSagaLogRepository) FindByID(ctx context.Context, id string) (*domain.SagaLog, error) {
	var row models.SagaLog
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if stdErrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NotFound("saga log", id)
	}
	if err != nil {
		return nil, domain.Persistence(errors.Wrap(err, "failed to get saga log by ID"), "failed to load saga log %s", id)
	}
	return domain.SagaLogFromPrimitives(logPrimitives(row.ID, row.SagaInstanceID, row.SagaStepID, row.Type, row.Message, row.CreatedAt, row.UpdatedAt)), nil
}

func (r *GormSagaLogRepository) FindByCriteria(ctx context.Context, c criteria.Criteria) (criteria.Page[*domain.SagaLog], error) {
	rows, total, err := criteria.Find[models.SagaLog](r.db.WithContext(ctx), c, logColumns, "id")
	if err != nil {
		return criteria.Page[*domain.SagaLog]{}, queryError(err, "failed to query saga logs")
	}
	items := make([]*domain.SagaLog, len(rows))
	for i, row := range rows {
		items[i] = domain.SagaLogFromPrimitives(logPrimitives(row.ID, row.SagaInstanceID, row.SagaStepID, row.Type, row.Message, row.CreatedAt, row.UpdatedAt))
	}
	return criteria.NewPage(items, total, c.Pagination), nil
}

// Delete soft-deletes the entry
func (r *GormSagaLogRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.SagaLog{}).Error; err != nil {
		return domain.Persistence(errors.Wrap(err, "failed to delete saga log"), "failed to delete saga log %s", id)
	}
	return nil
}

// GormSagaLogViewRepository implements SagaLogViewRepository
type GormSagaLogViewRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

func NewGormSagaLogViewRepository(db *gorm.DB, readOnlyDB *gorm.DB) *GormSagaLogViewRepository {
	return &GormSagaLogViewRepository{db: db, readOnlyDB: readDB(db, readOnlyDB)}
}

func (r *GormSagaLogViewRepository) Save(ctx context.Context, view domain.SagaLogView) error {
	row := models.SagaLogView{
		ID:             view.ID,
		SagaInstanceID: view.SagaInstanceID,
		SagaStepID:     view.SagaStepID,
		Type:           string(view.Type),
		Message:        view.Message,
		CreatedAt:      view.CreatedAt,
		UpdatedAt:      view.UpdatedAt,
	}
	columns := []string{"saga_instance_id", "saga_step_id", "type", "message", "updated_at"}
	if err := upsert(ctx, r.db, &row, columns); err != nil {
		return domain.Persistence(errors.Wrap(err, "failed to upsert saga log view"), "failed to save saga log view %s", view.ID)
	}
	return nil
}

func (r *GormSagaLogViewRepository) FindByID(ctx context.Context, id string) (*domain.SagaLogView, error) {
	var row models.SagaLogView
	err := r.readOnlyDB.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if stdErrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NotFound("saga log view", id)
	}
	if err != nil {
		return nil, domain.Persistence(errors.Wrap(err, "failed to get saga log view by ID"), "failed to load saga log view %s", id)
	}
	view := domain.SagaLogView{SagaLogPrimitives: logPrimitives(row.ID, row.SagaInstanceID, row.SagaStepID, row.Type, row.Message, row.CreatedAt, row.UpdatedAt)}
	return &view, nil
}

func (r *GormSagaLogViewRepository) FindByCriteria(ctx context.Context, c criteria.Criteria) (criteria.Page[domain.SagaLogView], error) {
	rows, total, err := criteria.Find[models.SagaLogView](r.readOnlyDB.WithContext(ctx), c, logColumns, "id")
	if err != nil {
		return criteria.Page[domain.SagaLogView]{}, queryError(err, "failed to query saga log views")
	}
	items := make([]domain.SagaLogView, len(rows))
	for i, row := range rows {
		items[i] = domain.SagaLogView{SagaLogPrimitives: logPrimitives(row.ID, row.SagaInstanceID, row.SagaStepID, row.Type, row.Message, row.CreatedAt, row.UpdatedAt)}
	}
	return criteria.NewPage(items, total, c.Pagination), nil
}

// Delete removes exactly the view with this id
func (r *GormSagaLogViewRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.SagaLogView{}).Error; err != nil {
		return domain.Persistence(errors.Wrap(err, "failed to delete saga log view"), "failed to delete saga log view %s", id)
	}
	return nil
}

func logPrimitives(id, sagaInstanceID, sagaStepID, logType, message string, createdAt, updatedAt time.Time) domain.SagaLogPrimitives {
	return domain.SagaLogPrimitives{
		ID:             id,
		SagaInstanceID: sagaInstanceID,
		SagaStepID:     sagaStepID,
		Type:           domain.LogType(logType),
		Message:        message,
		CreatedAt:      createdAt,
		UpdatedAt:      updatedAt,
	}
}
