package tracking

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/saga/criteria"
	"example.com/backstage/services/saga/domain"
)

type mockEventRepository struct {
	mock.Mock
}

func (m *mockEventRepository) Save(ctx context.Context, event *domain.Event) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *mockEventRepository) FindByID(ctx context.Context, id string) (*domain.Event, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Event), args.Error(1)
}

func (m *mockEventRepository) FindByCriteria(ctx context.Context, c criteria.Criteria) (criteria.Page[*domain.Event], error) {
	args := m.Called(ctx, c)
	return args.Get(0).(criteria.Page[*domain.Event]), args.Error(1)
}

func (m *mockEventRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) Publish(ctx context.Context, event domain.DomainEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *mockPublisher) PublishAll(ctx context.Context, events []domain.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

func instanceCreated(t *testing.T) domain.DomainEvent {
	t.Helper()
	instance, err := domain.NewSagaInstance("A1", "order-fulfilment")
	require.NoError(t, err)
	events := instance.GetUncommittedEvents()
	require.Len(t, events, 1)
	return events[0]
}

func TestHandleSavesThenPublishesThenCommits(t *testing.T) {
	repo := new(mockEventRepository)
	publisher := new(mockPublisher)
	svc := NewService(repo, publisher, nil)

	var calls []string
	var stored *domain.Event

	repo.On("Save", mock.Anything, mock.AnythingOfType("*domain.Event")).
		Run(func(args mock.Arguments) {
			calls = append(calls, "save")
			stored = args.Get(1).(*domain.Event)
			require.Len(t, stored.GetUncommittedEvents(), 1)
		}).
		Return(nil).Once()

	publisher.On("PublishAll", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			calls = append(calls, "publishAll")
			events := args.Get(1).([]domain.DomainEvent)
			require.Len(t, events, 1)
			require.Equal(t, domain.EventCreated, events[0].EventType)
			require.Equal(t, domain.EventAggregateType, events[0].AggregateType)
			// not committed yet
			require.Len(t, stored.GetUncommittedEvents(), 1)
		}).
		Return(nil).Once()

	event := instanceCreated(t)
	require.NoError(t, svc.Handle(context.Background(), event))

	calls = append(calls, "commit")
	require.Equal(t, []string{"save", "publishAll", "commit"}, calls)
	require.Empty(t, stored.GetUncommittedEvents())

	require.Equal(t, "A1", stored.AggregateID())
	require.Equal(t, domain.SagaInstanceAggregateType, stored.AggregateType())
	require.Equal(t, domain.SagaInstanceCreated, stored.EventType())
	require.Equal(t, event.OccurredAt, stored.Timestamp())
	require.NotEqual(t, event.EventID, stored.GetID())
	require.JSONEq(t, `"order-fulfilment"`, mustField(t, stored.Payload(), "name"))

	repo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestHandleSkipsReplayedEvents(t *testing.T) {
	repo := new(mockEventRepository)
	publisher := new(mockPublisher)
	svc := NewService(repo, publisher, nil)

	event := instanceCreated(t)
	event.IsReplay = true

	require.NoError(t, svc.Handle(context.Background(), event))
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	publisher.AssertNotCalled(t, "PublishAll", mock.Anything, mock.Anything)
}

func TestHandleSkipsEventStoreNotifications(t *testing.T) {
	repo := new(mockEventRepository)
	publisher := new(mockPublisher)
	svc := NewService(repo, publisher, nil)

	stored, err := domain.NewEvent(domain.EventPrimitives{ID: "e-1", AggregateID: "A1", AggregateType: "x", EventType: "X"})
	require.NoError(t, err)

	require.NoError(t, svc.Handle(context.Background(), stored.GetUncommittedEvents()[0]))
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestHandleDoesNotPublishWhenSaveFails(t *testing.T) {
	repo := new(mockEventRepository)
	publisher := new(mockPublisher)
	svc := NewService(repo, publisher, nil)

	repo.On("Save", mock.Anything, mock.Anything).
		Return(domain.Persistence(errors.New("disk full"), "failed to append event")).Once()

	err := svc.Handle(context.Background(), instanceCreated(t))
	require.Error(t, err)
	require.True(t, domain.IsPersistence(err))
	publisher.AssertNotCalled(t, "PublishAll", mock.Anything, mock.Anything)
}

func TestHandleDoesNotCommitWhenPublishFails(t *testing.T) {
	repo := new(mockEventRepository)
	publisher := new(mockPublisher)
	svc := NewService(repo, publisher, nil)

	var stored *domain.Event
	repo.On("Save", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) { stored = args.Get(1).(*domain.Event) }).
		Return(nil).Once()
	publisher.On("PublishAll", mock.Anything, mock.Anything).Return(errors.New("bus down")).Once()

	require.Error(t, svc.Handle(context.Background(), instanceCreated(t)))
	require.Len(t, stored.GetUncommittedEvents(), 1)
}
