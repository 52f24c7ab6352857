package eventstore

import (
	"context"
	"time"

	"example.com/backstage/services/saga/criteria"
	"example.com/backstage/services/saga/domain"
)

// EventRepository is the write side of the event store. Rows are appended,
// never updated.
type EventRepository interface {
	Save(ctx context.Context, event *domain.Event) error
	FindByID(ctx context.Context, id string) (*domain.Event, error)
	FindByCriteria(ctx context.Context, c criteria.Criteria) (criteria.Page[*domain.Event], error)
	Delete(ctx context.Context, id string) error
}

// EventViewRepository is the read side of the event store
type EventViewRepository interface {
	Save(ctx context.Context, view domain.EventView) error
	FindByID(ctx context.Context, id string) (*domain.EventView, error)
	FindByCriteria(ctx context.Context, c criteria.Criteria) (criteria.Page[domain.EventView], error)
	Delete(ctx context.Context, id string) error
}

// Filters narrows event store queries. From and To compare against the
// event's own timestamp.
type Filters struct {
	ID            string     `json:"id" form:"id"`
	EventType     string     `json:"eventType" form:"eventType"`
	AggregateID   string     `json:"aggregateId" form:"aggregateId"`
	AggregateType string     `json:"aggregateType" form:"aggregateType"`
	From          *time.Time `json:"from" form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To            *time.Time `json:"to" form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
}

// Criteria converts the filters into a query sorted oldest first
func (f Filters) Criteria(p criteria.Pagination) criteria.Criteria {
	var filters []criteria.Filter
	if f.ID != "" {
		filters = append(filters, criteria.Eq("id", f.ID))
	}
	if f.EventType != "" {
		filters = append(filters, criteria.Eq("eventType", f.EventType))
	}
	if f.AggregateID != "" {
		filters = append(filters, criteria.Eq("aggregateId", f.AggregateID))
	}
	if f.AggregateType != "" {
		filters = append(filters, criteria.Eq("aggregateType", f.AggregateType))
	}
	if f.From != nil {
		filters = append(filters, criteria.Filter{Field: "timestamp", Operator: criteria.OpGreaterEqual, Value: *f.From})
	}
	if f.To != nil {
		filters = append(filters, criteria.Filter{Field: "timestamp", Operator: criteria.OpLessEqual, Value: *f.To})
	}

	return criteria.Criteria{
		Filters:    filters,
		Sorts:      []criteria.Sort{{Field: "timestamp", Direction: criteria.Asc}},
		Pagination: p,
	}
}

// columns are the fields callers may filter and sort events on
var columns = criteria.Columns{
	"id":            "id",
	"eventType":     "event_type",
	"aggregateId":   "aggregate_id",
	"aggregateType": "aggregate_type",
	"timestamp":     "timestamp",
	"createdAt":     "created_at",
}
