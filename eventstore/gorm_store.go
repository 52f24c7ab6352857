package eventstore

import (
	"context"
	stdErrors "errors"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"example.com/backstage/services/saga/criteria"
	"example.com/backstage/services/saga/domain"
	"example.com/backstage/services/saga/models"
)

const eventEntity = "event"

// viewUpdateColumns are rewritten when a view row is rebuilt; created_at is kept
var viewUpdateColumns = []string{"aggregate_id", "aggregate_type", "event_type", "payload", "timestamp", "updated_at"}

// GormEventRepository implements EventRepository using GORM
type GormEventRepository struct {
	db *gorm.DB
}

// NewGormEventRepository creates a new GORM event repository
func NewGormEventRepository(db *gorm.DB) *GormEventRepository {
	return &GormEventRepository{db: db}
}

// Save appends one event row
func (r *GormEventRepository) Save(ctx context.Context, event *domain.Event) error {
	row := toEventRow(event.ToPrimitives())
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return domain.Persistence(errors.Wrap(err, "failed to insert event"), "failed to append event %s", event.GetID())
	}

	log.Debug().
		Str("eventID", row.ID).
		Str("aggregateID", row.AggregateID).
		Str("eventType", row.EventType).
		Msg("Event appended")
	return nil
}

func (r *GormEventRepository) FindByID(ctx context.Context, id string) (*domain.Event, error) {
	var row models.Event
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if stdErrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NotFound(eventEntity, id)
	}
	if err != nil {
		return nil, domain.Persistence(errors.Wrap(err, "failed to get event by ID"), "failed to load event %s", id)
	}
	return domain.EventFromPrimitives(fromEventRow(row)), nil
}

func (r *GormEventRepository) FindByCriteria(ctx context.Context, c criteria.Criteria) (criteria.Page[*domain.Event], error) {
	rows, total, err := criteria.Find[models.Event](r.db.WithContext(ctx), c, columns, "id")
	if err != nil {
		return criteria.Page[*domain.Event]{}, queryError(err, "failed to query events")
	}

	events := make([]*domain.Event, len(rows))
	for i, row := range rows {
		events[i] = domain.EventFromPrimitives(fromEventRow(row))
	}
	return criteria.NewPage(events, total, c.Pagination), nil
}

// Delete soft-deletes an event row
func (r *GormEventRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.Event{}).Error; err != nil {
		return domain.Persistence(errors.Wrap(err, "failed to delete event"), "failed to delete event %s", id)
	}
	return nil
}

// GormEventViewRepository implements EventViewRepository. Writes go to db,
// queries to readOnlyDB.
type GormEventViewRepository struct {
	db         *gorm.DB
	readOnlyDB *gorm.DB
}

// NewGormEventViewRepository creates a new GORM event view repository
func NewGormEventViewRepository(db *gorm.DB, readOnlyDB *gorm.DB) *GormEventViewRepository {
	if readOnlyDB == nil {
		readOnlyDB = db
	}
	return &GormEventViewRepository{db: db, readOnlyDB: readOnlyDB}
}

// Save inserts or overwrites the view row
func (r *GormEventViewRepository) Save(ctx context.Context, view domain.EventView) error {
	row := toEventViewRow(view)
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(viewUpdateColumns),
		}).
		Create(&row).Error
	if err != nil {
		return domain.Persistence(errors.Wrap(err, "failed to upsert event view"), "failed to save event view %s", view.ID)
	}
	return nil
}

func (r *GormEventViewRepository) FindByID(ctx context.Context, id string) (*domain.EventView, error) {
	var row models.EventView
	err := r.readOnlyDB.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if stdErrors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.NotFound("event view", id)
	}
	if err != nil {
		return nil, domain.Persistence(errors.Wrap(err, "failed to get event view by ID"), "failed to load event view %s", id)
	}
	view := fromEventViewRow(row)
	return &view, nil
}

func (r *GormEventViewRepository) FindByCriteria(ctx context.Context, c criteria.Criteria) (criteria.Page[domain.EventView], error) {
	rows, total, err := criteria.Find[models.EventView](r.readOnlyDB.WithContext(ctx), c, columns, "id")
	if err != nil {
		return criteria.Page[domain.EventView]{}, queryError(err, "failed to query event views")
	}

	views := make([]domain.EventView, len(rows))
	for i, row := range rows {
		views[i] = fromEventViewRow(row)
	}
	return criteria.NewPage(views, total, c.Pagination), nil
}

func (r *GormEventViewRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.EventView{}).Error; err != nil {
		return domain.Persistence(errors.Wrap(err, "failed to delete event view"), "failed to delete event view %s", id)
	}
	return nil
}

func queryError(err error, message string) error {
	if stdErrors.Is(err, criteria.ErrInvalid) {
		return domain.Validation("%s", err.Error())
	}
	return domain.Persistence(errors.Wrap(err, message), "%s", message)
}

func toEventRow(p domain.EventPrimitives) models.Event {
	return models.Event{
		ID:            p.ID,
		AggregateID:   p.AggregateID,
		AggregateType: p.AggregateType,
		EventType:     p.EventType,
		Payload:       p.Payload,
		Timestamp:     p.Timestamp,
	}
}

func fromEventRow(row models.Event) domain.EventPrimitives {
	return domain.EventPrimitives{
		ID:            row.ID,
		AggregateID:   row.AggregateID,
		AggregateType: row.AggregateType,
		EventType:     row.EventType,
		Payload:       row.Payload,
		Timestamp:     row.Timestamp,
	}
}

func toEventViewRow(v domain.EventView) models.EventView {
	return models.EventView{
		ID:            v.ID,
		AggregateID:   v.AggregateID,
		AggregateType: v.AggregateType,
		EventType:     v.EventType,
		Payload:       v.Payload,
		Timestamp:     v.Timestamp,
		CreatedAt:     v.CreatedAt,
		UpdatedAt:     v.UpdatedAt,
	}
}

func fromEventViewRow(row models.EventView) domain.EventView {
	return domain.EventView{
		EventPrimitives: fromEventRow(models.Event{
			ID:            row.ID,
			AggregateID:   row.AggregateID,
			AggregateType: row.AggregateType,
			EventType:     row.EventType,
			Payload:       row.Payload,
			Timestamp:     row.Timestamp,
		}),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}
