package projections

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"example.com/backstage/services/saga/bus"
	"example.com/backstage/services/saga/cache"
	"example.com/backstage/services/saga/database"
	"example.com/backstage/services/saga/domain"
	"example.com/backstage/services/saga/eventstore"
	"example.com/backstage/services/saga/repositories"
)

type recordingIndexer struct {
	indexed []string
	deleted []string
	fail    bool
}

func (r *recordingIndexer) IndexEvent(_ context.Context, view domain.EventView) error {
	r.indexed = append(r.indexed, view.ID)
	return r.err()
}

func (r *recordingIndexer) DeleteEvent(_ context.Context, id string) error {
	r.deleted = append(r.deleted, id)
	return r.err()
}

func (r *recordingIndexer) IndexSagaInstance(_ context.Context, view domain.SagaInstanceView) error {
	r.indexed = append(r.indexed, view.ID)
	return r.err()
}

func (r *recordingIndexer) DeleteSagaInstance(_ context.Context, id string) error {
	r.deleted = append(r.deleted, id)
	return r.err()
}

func (r *recordingIndexer) err() error {
	if r.fail {
		return errors.New("elasticsearch unavailable")
	}
	return nil
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.New().String()))
	require.NoError(t, err)
	require.NoError(t, database.AutoMigrate(db))
	t.Cleanup(func() { _ = database.Close(db) })
	return db
}

func TestSagaInstanceProjectorLifecycle(t *testing.T) {
	views := repositories.NewGormSagaInstanceViewRepository(newTestDB(t), nil)
	indexer := &recordingIndexer{}
	projector := NewSagaInstanceProjector(views, cache.Disabled(), indexer)
	ctx := context.Background()

	instance, err := domain.NewSagaInstance("A1", "order")
	require.NoError(t, err)
	require.NoError(t, instance.MarkAsStarted())

	events := instance.GetUncommittedEvents()
	events[0].OccurredAt = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, event := range events {
		require.NoError(t, projector.Project(ctx, event))
	}

	view, err := views.FindByID(ctx, "A1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusStarted, view.Status)
	require.Equal(t, 2024, view.CreatedAt.Year())
	require.Equal(t, []string{"A1", "A1"}, indexer.indexed)

	instance.Commit()
	instance.Delete()
	require.NoError(t, projector.Project(ctx, instance.GetUncommittedEvents()[0]))

	_, err = views.FindByID(ctx, "A1")
	require.True(t, domain.IsNotFound(err))
	require.Equal(t, []string{"A1"}, indexer.deleted)
}

func TestIndexFailureDoesNotFailProjection(t *testing.T) {
	views := repositories.NewGormSagaInstanceViewRepository(newTestDB(t), nil)
	projector := NewSagaInstanceProjector(views, cache.Disabled(), &recordingIndexer{fail: true})

	instance, err := domain.NewSagaInstance("A1", "order")
	require.NoError(t, err)
	require.NoError(t, projector.Project(context.Background(), instance.GetUncommittedEvents()[0]))

	_, err = views.FindByID(context.Background(), "A1")
	require.NoError(t, err)
}

func TestSagaStepProjectorFollowsRetries(t *testing.T) {
	views := repositories.NewGormSagaStepViewRepository(newTestDB(t), nil)
	projector := NewSagaStepProjector(views, cache.Disabled())
	ctx := context.Background()

	maxRetries := 1
	step, err := domain.NewSagaStep(domain.NewSagaStepParams{
		ID:             "S1",
		SagaInstanceID: "A1",
		Name:           "pay",
		Order:          1,
		Payload:        json.RawMessage(`{"amount":5}`),
		MaxRetries:     &maxRetries,
	})
	require.NoError(t, err)
	require.NoError(t, step.MarkAsFailed("declined"))

	for _, event := range step.GetUncommittedEvents() {
		require.NoError(t, projector.Project(ctx, event))
	}
	view, err := views.FindByID(ctx, "S1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusFailed, view.Status)
	require.Equal(t, "declined", *view.ErrorMessage)

	step.Commit()
	require.NoError(t, step.Retry())
	require.NoError(t, projector.Project(ctx, step.GetUncommittedEvents()[0]))

	view, err = views.FindByID(ctx, "S1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusPending, view.Status)
	require.Equal(t, 1, view.RetryCount)
	require.Nil(t, view.ErrorMessage)

	step.Commit()
	step.Delete()
	require.NoError(t, projector.Project(ctx, step.GetUncommittedEvents()[0]))
	_, err = views.FindByID(ctx, "S1")
	require.True(t, domain.IsNotFound(err))
}

func TestSagaLogProjectorDeletesOnlyTheEntry(t *testing.T) {
	views := repositories.NewGormSagaLogViewRepository(newTestDB(t), nil)
	projector := NewSagaLogProjector(views)
	ctx := context.Background()

	var entries []*domain.SagaLog
	for _, id := range []string{"L1", "L2"} {
		entry, err := domain.NewSagaLog(id, "A1", "", "INFO", "step "+id)
		require.NoError(t, err)
		require.NoError(t, projector.Project(ctx, entry.GetUncommittedEvents()[0]))
		entry.Commit()
		entries = append(entries, entry)
	}

	entries[0].Delete()
	require.NoError(t, projector.Project(ctx, entries[0].GetUncommittedEvents()[0]))

	_, err := views.FindByID(ctx, "L1")
	require.True(t, domain.IsNotFound(err))
	kept, err := views.FindByID(ctx, "L2")
	require.NoError(t, err)
	require.Equal(t, "step L2", kept.Message)
}

func TestRegisterRoutesEventsToProjectors(t *testing.T) {
	db := newTestDB(t)
	eventViews := eventstore.NewGormEventViewRepository(db, nil)
	indexer := &recordingIndexer{}
	b := bus.NewInProcessBus()
	Register(b, NewEventProjector(eventViews, indexer))

	ctx := context.Background()
	stored, err := domain.NewEvent(domain.EventPrimitives{
		ID:            "E1",
		AggregateID:   "A1",
		AggregateType: domain.SagaInstanceAggregateType,
		EventType:     domain.SagaInstanceCreated,
		Payload:       json.RawMessage(`{"id":"A1"}`),
	})
	require.NoError(t, err)
	require.NoError(t, b.PublishAll(ctx, stored.GetUncommittedEvents()))

	view, err := eventViews.FindByID(ctx, "E1")
	require.NoError(t, err)
	require.Equal(t, domain.SagaInstanceCreated, view.EventType)
	require.Equal(t, []string{"E1"}, indexer.indexed)

	instance, err := domain.NewSagaInstance("A2", "ignored")
	require.NoError(t, err)
	require.NoError(t, b.PublishAll(ctx, instance.GetUncommittedEvents()))
	require.Len(t, indexer.indexed, 1)
}
