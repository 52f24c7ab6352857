package eventstore

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"example.com/backstage/services/saga/criteria"
	"example.com/backstage/services/saga/database"
	"example.com/backstage/services/saga/domain"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String()))
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

var base = time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)

func appendEvent(t *testing.T, repo *GormEventRepository, id, aggregateID, eventType string, hoursAfterBase int) {
	t.Helper()
	event, err := domain.NewEvent(domain.EventPrimitives{
		ID:            id,
		AggregateID:   aggregateID,
		AggregateType: domain.SagaInstanceAggregateType,
		EventType:     eventType,
		Payload:       json.RawMessage(`{"id":"` + aggregateID + `"}`),
		Timestamp:     base.Add(time.Duration(hoursAfterBase) * time.Hour),
	})
	require.NoError(t, err)
	require.NoError(t, repo.Save(context.Background(), event))
}

func TestEventRepositorySaveAndFind(t *testing.T) {
	repo := NewGormEventRepository(newTestDB(t))
	ctx := context.Background()

	appendEvent(t, repo, "E1", "A1", domain.SagaInstanceCreated, 0)

	event, err := repo.FindByID(ctx, "E1")
	require.NoError(t, err)
	require.Equal(t, "A1", event.AggregateID())
	require.Equal(t, domain.SagaInstanceCreated, event.EventType())
	require.JSONEq(t, `{"id":"A1"}`, string(event.Payload()))
	require.True(t, base.Equal(event.Timestamp()))
	require.Empty(t, event.GetUncommittedEvents())

	_, err = repo.FindByID(ctx, "missing")
	require.True(t, domain.IsNotFound(err))
}

func TestEventRepositoryRejectsDuplicateID(t *testing.T) {
	repo := NewGormEventRepository(newTestDB(t))
	appendEvent(t, repo, "E1", "A1", domain.SagaInstanceCreated, 0)

	event, err := domain.NewEvent(domain.EventPrimitives{ID: "E1", AggregateID: "A2", AggregateType: domain.SagaInstanceAggregateType, EventType: domain.SagaInstanceCreated})
	require.NoError(t, err)
	require.True(t, domain.IsPersistence(repo.Save(context.Background(), event)))
}

func TestFiltersSelectEventsOldestFirst(t *testing.T) {
	repo := NewGormEventRepository(newTestDB(t))
	ctx := context.Background()

	appendEvent(t, repo, "E3", "A1", domain.SagaInstanceStatusChanged, 2)
	appendEvent(t, repo, "E1", "A1", domain.SagaInstanceCreated, 0)
	appendEvent(t, repo, "E2", "A2", domain.SagaInstanceCreated, 1)
	appendEvent(t, repo, "E4", "A2", domain.SagaInstanceDeleted, 3)

	ids := func(filters Filters) []string {
		page, err := repo.FindByCriteria(ctx, filters.Criteria(criteria.Pagination{}))
		require.NoError(t, err)
		out := make([]string, len(page.Items))
		for i, event := range page.Items {
			out[i] = event.GetID()
		}
		return out
	}

	require.Equal(t, []string{"E1", "E2", "E3", "E4"}, ids(Filters{}))
	require.Equal(t, []string{"E1", "E3"}, ids(Filters{AggregateID: "A1"}))
	require.Equal(t, []string{"E1", "E2"}, ids(Filters{EventType: domain.SagaInstanceCreated}))

	from := base.Add(time.Hour)
	to := base.Add(2 * time.Hour)
	require.Equal(t, []string{"E2", "E3"}, ids(Filters{From: &from, To: &to}))
	require.Equal(t, []string{"E4"}, ids(Filters{AggregateID: "A2", From: &to}))
	require.Empty(t, ids(Filters{AggregateType: domain.SagaStepAggregateType}))
}

func TestFindByCriteriaPaginates(t *testing.T) {
	repo := NewGormEventRepository(newTestDB(t))
	for i := 0; i < 5; i++ {
		appendEvent(t, repo, fmt.Sprintf("E%d", i), "A1", domain.SagaInstanceUpdated, i)
	}

	page, err := repo.FindByCriteria(context.Background(), Filters{}.Criteria(criteria.Pagination{Page: 2, PerPage: 2}))
	require.NoError(t, err)
	require.Equal(t, int64(5), page.Total)
	require.Equal(t, 3, page.TotalPages)
	require.Len(t, page.Items, 2)
	require.Equal(t, "E2", page.Items[0].GetID())
}

func TestFindByCriteriaRejectsUnknownField(t *testing.T) {
	repo := NewGormEventRepository(newTestDB(t))

	_, err := repo.FindByCriteria(context.Background(), criteria.Criteria{
		Filters: []criteria.Filter{criteria.Eq("payload", "x")},
	})
	require.True(t, domain.IsValidation(err))
}

func TestEventViewSaveOverwrites(t *testing.T) {
	db := newTestDB(t)
	views := NewGormEventViewRepository(db, nil)
	ctx := context.Background()

	view := domain.EventView{EventPrimitives: domain.EventPrimitives{
		ID:            "E1",
		AggregateID:   "A1",
		AggregateType: domain.SagaInstanceAggregateType,
		EventType:     domain.SagaInstanceCreated,
		Payload:       json.RawMessage(`{"name":"order"}`),
		Timestamp:     base,
	}}
	require.NoError(t, views.Save(ctx, view))

	view.Payload = json.RawMessage(`{"name":"refund"}`)
	require.NoError(t, views.Save(ctx, view))

	found, err := views.FindByID(ctx, "E1")
	require.NoError(t, err)
	require.JSONEq(t, `{"name":"refund"}`, string(found.Payload))

	page, err := views.FindByCriteria(ctx, Filters{}.Criteria(criteria.Pagination{}))
	require.NoError(t, err)
	require.Equal(t, int64(1), page.Total)

	require.NoError(t, views.Delete(ctx, "E1"))
	_, err = views.FindByID(ctx, "E1")
	require.True(t, domain.IsNotFound(err))
}
