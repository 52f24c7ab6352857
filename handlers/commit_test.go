package handlers

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/backstage/services/saga/criteria"
	"example.com/backstage/services/saga/domain"
)

type mockSagaInstanceRepository struct {
	mock.Mock
}

func (m *mockSagaInstanceRepository) Save(ctx context.Context, instance *domain.SagaInstance) error {
	args := m.Called(ctx, instance)
	return args.Error(0)
}

func (m *mockSagaInstanceRepository) FindByID(ctx context.Context, id string) (*domain.SagaInstance, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SagaInstance), args.Error(1)
}

func (m *mockSagaInstanceRepository) FindByCriteria(ctx context.Context, c criteria.Criteria) (criteria.Page[*domain.SagaInstance], error) {
	args := m.Called(ctx, c)
	return args.Get(0).(criteria.Page[*domain.SagaInstance]), args.Error(1)
}

func (m *mockSagaInstanceRepository) Delete(ctx context.Context, id string) error {
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

func TestCommandPublishesNothingWhenSaveFails(t *testing.T) {
	repo := new(mockSagaInstanceRepository)
	publisher := new(mockPublisher)
	handler := NewSagaInstanceHandler(repo, nil, publisher, nil, nil)

	repo.On("FindByID", mock.Anything, "A1").Return(nil, domain.NotFound("saga instance", "A1")).Once()
	repo.On("Save", mock.Anything, mock.AnythingOfType("*domain.SagaInstance")).
		Return(domain.Persistence(errors.New("disk full"), "failed to save saga instance A1")).Once()

	_, err := handler.HandleCreateSagaInstance(context.Background(), CreateSagaInstanceCommand{ID: "A1", Name: "order"})
	require.True(t, domain.IsPersistence(err))

	repo.AssertExpectations(t)
	publisher.AssertNotCalled(t, "PublishAll", mock.Anything, mock.Anything)
}

func TestCommandKeepsBufferWhenPublishFails(t *testing.T) {
	repo := new(mockSagaInstanceRepository)
	publisher := new(mockPublisher)
	handler := NewSagaInstanceHandler(repo, nil, publisher, nil, nil)

	instance := domain.SagaInstanceFromPrimitives(domain.SagaInstancePrimitives{ID: "A1", Name: "order", Status: domain.StatusPending})

	var calls []string
	repo.On("FindByID", mock.Anything, "A1").Return(instance, nil).Once()
	repo.On("Save", mock.Anything, instance).
		Run(func(mock.Arguments) { calls = append(calls, "save") }).
		Return(nil).Once()
	publisher.On("PublishAll", mock.Anything, mock.MatchedBy(func(events []domain.DomainEvent) bool {
		return len(events) == 1 && events[0].EventType == domain.SagaInstanceStatusChanged
	})).
		Run(func(mock.Arguments) { calls = append(calls, "publish") }).
		Return(errors.New("bus down")).Once()

	err := handler.HandleChangeSagaInstanceStatus(context.Background(), ChangeSagaInstanceStatusCommand{ID: "A1", Status: "STARTED"})
	require.EqualError(t, err, "bus down")

	require.Equal(t, []string{"save", "publish"}, calls)
	require.Len(t, instance.GetUncommittedEvents(), 1)
	repo.AssertExpectations(t)
	publisher.AssertExpectations(t)
}

func TestCommandCommitsAfterPublish(t *testing.T) {
	repo := new(mockSagaInstanceRepository)
	publisher := new(mockPublisher)
	handler := NewSagaInstanceHandler(repo, nil, publisher, nil, nil)

	instance := domain.SagaInstanceFromPrimitives(domain.SagaInstancePrimitives{ID: "A1", Name: "order", Status: domain.StatusPending})

	repo.On("FindByID", mock.Anything, "A1").Return(instance, nil).Once()
	repo.On("Save", mock.Anything, instance).Return(nil).Once()
	publisher.On("PublishAll", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) {
			require.Len(t, instance.GetUncommittedEvents(), 1)
		}).
		Return(nil).Once()

	require.NoError(t, handler.HandleUpdateSagaInstance(context.Background(), UpdateSagaInstanceCommand{ID: "A1", Name: "refund"}))
	require.Empty(t, instance.GetUncommittedEvents())
}

func TestInvalidCommandNeverReachesRepository(t *testing.T) {
	repo := new(mockSagaInstanceRepository)
	publisher := new(mockPublisher)
	handler := NewSagaInstanceHandler(repo, nil, publisher, nil, nil)

	err := handler.HandleChangeSagaInstanceStatus(context.Background(), ChangeSagaInstanceStatusCommand{ID: "A1"})
	require.True(t, domain.IsValidation(err))
	require.Contains(t, err.Error(), "Status is required")

	repo.AssertNotCalled(t, "FindByID", mock.Anything, mock.Anything)
}
