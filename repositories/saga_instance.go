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
	instanceUpdateColumns     = []string{"name", "status", "start_date", "end_date", "revision", "updated_at"}
	instanceViewUpdateColumns = []string{"name", "status", "start_date", "end_date", "updated_at"}
)

// GormSagaInstanceRepository implements SagaInstanceRepository with
// optimistic concurrency on the revision column
type GormSagaInstanceRepository struct {
	db *gorm.DB
}

func NewGormSagaInstanceRepository(db *gorm.DB) *GormSagaInstanceRepository {
	return &GormSagaInstanceRepository{db: db}
}

// Save inserts a new instance at revision 1 or updates an existing one only
// if its stored revision still matches the loaded one
func (r *GormSagaInstanceRepository) Save(ctx context.Context, instance *domain.SagaInstance) error {
	p := instance.ToPrimitives()
	row := models.SagaInstance{
		ID:        p.ID,
		Name:      p.Name,
		Status:    string(p.Status),
		StartDate: p.StartDate,
		EndDate:   p.EndDate,
		UpdatedAt: time.Now().UTC(),
	}

	if p.Revision == 0 {
		row.Revision = 1
		err := r.db.WithContext(ctx).Create(&row).Error
		if stdErrors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.Conflict("saga instance %s already exists", p.ID)
		}
		if err != nil {
			return domain.Persistence(errors.Wrap(err, "failed to insert saga instance"), "failed to save saga instance %s", p.ID)
		}
		instance.MarkPersisted(row.Revision)
		return nil
	}

	row.Revision = p.Revision + 1
	result := r.db.WithContext(ctx).
		Model(&models.SagaInstance{}).
		Where("id = ? AND revision = ?", p.ID, p.Revision).
		Select(instanceUpdateColumns).
		Updates(&row)
	if result.Error != nil {
		return domain.Persistence(errors.Wrap(result.Error, "failed to update saga instance"), "failed to save saga instance %s", p.ID)
	}
	if result.RowsAffected == 0 {
		return domain.Conflict("saga instance %s was modified concurrently (revision %d)", p.ID, p.Revision)
	}
	instance.MarkPersisted(row.Revision)
	return nil
}

func (r *GormSagaInstanceRepository) FindByID(ctx context.Context, id string) (*domain.SagaInstance, error) {
	var row models.SagaInstance
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if stdErrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NotFound("saga instance", id)
	}
	if err != nil {
		return nil, domain.Persistence(errors.Wrap(err, "failed to get saga instance by ID"), "failed to load saga instance %s", id)
	}
	return domain.SagaInstanceFromPrimitives(instancePrimitives(row)), nil
}

func (r *GormSagaInstanceRepository) FindByCriteria(ctx context.Context, c criteria.Criteria) (criteria.Page[*domain.SagaInstance], error) {
	rows, total, err := criteria.Find[models.SagaInstance](r.db.WithContext(ctx), c, instanceColumns, "id")
	if err != nil {
		return criteria.Page[*domain.SagaInstance]{}, queryError(err, "failed to query saga instances")
	}
	items := make([]*domain.SagaInstance, len(rows))
	for i, row := range rows {
		items[i] = domain.SagaInstanceFromPrimitives(instancePrimitives(row))
	}
	return criteria.NewPage(items, total, c.Pagination), nil
}

// Delete soft-deletes the row
func (r *GormSagaInstanceRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.SagaInstance{}).Error; err != nil {
		return domain.Persistence(errors.Wrap(err, "failed to delete saga instance"), "failed to delete saga instance %s", id)
	}
	return nil
}

func instancePrimitives(row models.SagaInstance) domain.SagaInstancePrimitives {
	return domain.SagaInstancePrimitives{
		ID:        row.ID,
		Name:      row.Name,
		Status:    domain.Status(row.Status),
		StartDate: row.StartDate,
		EndDate:   row.EndDate,
		Revision:  row.Revision,
	}
}

// GormSagaInstanceViewRepository implements SagaInstanceViewRepository
type GormSagaInstanceViewRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

func NewGormSagaInstanceViewRepository(db *gorm.DB, readOnlyDB *gorm.DB) *GormSagaInstanceViewRepository {
	return &GormSagaInstanceViewRepository{db: db, readOnlyDB: readDB(db, readOnlyDB)}
}

func (r *GormSagaInstanceViewRepository) Save(ctx context.Context, view domain.SagaInstanceView) error {
	row := models.SagaInstanceView{
		ID:        view.ID,
		Name:      view.Name,
		Status:    string(view.Status),
		StartDate: view.StartDate,
		EndDate:   view.EndDate,
		CreatedAt: view.CreatedAt,
		UpdatedAt: view.UpdatedAt,
	}
	if err := upsert(ctx, r.db, &row, instanceViewUpdateColumns); err != nil {
		return domain.Persistence(errors.Wrap(err, "failed to upsert saga instance view"), "failed to save saga instance view %s", view.ID)
	}
	return nil
}

func (r *GormSagaInstanceViewRepository) FindByID(ctx context.Context, id string) (*domain.SagaInstanceView, error) {
	var row models.SagaInstanceView
	err := r.readOnlyDB.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if stdErrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NotFound("saga instance view", id)
	}
	if err != nil {
		return nil, domain.Persistence(errors.Wrap(err, "failed to get saga instance view by ID"), "failed to load saga instance view %s", id)
	}
	view := instanceView(row)
	return &view, nil
}

func (r *GormSagaInstanceViewRepository) FindByCriteria(ctx context.Context, c criteria.Criteria) (criteria.Page[domain.SagaInstanceView], error) {
	rows, total, err := criteria.Find[models.SagaInstanceView](r.readOnlyDB.WithContext(ctx), c, instanceColumns, "id")
	if err != nil {
		return criteria.Page[domain.SagaInstanceView]{}, queryError(err, "failed to query saga instance views")
	}
	items := make([]domain.SagaInstanceView, len(rows))
	for i, row := range rows {
		items[i] = instanceView(row)
	}
	return criteria.NewPage(items, total, c.Pagination), nil
}

func (r *GormSagaInstanceViewRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.SagaInstanceView{}).Error; err != nil {
		return domain.Persistence(errors.Wrap(err, "failed to delete saga instance view"), "failed to delete saga instance view %s", id)
	}
	return nil
}

func instanceView(row models.SagaInstanceView) domain.SagaInstanceView {
	return domain.SagaInstanceView{
		SagaInstancePrimitives: domain.SagaInstancePrimitives{
			ID:        row.ID,
			Name:      row.Name,
			Status:    domain.Status(row.Status),
			StartDate: row.StartDate,
			EndDate:   row.EndDate,
		},
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}
