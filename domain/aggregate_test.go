package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUncommittedEventsAreBufferedUntilCommit(t *testing.T) {
	instance, err := NewSagaInstance("A1", "order")
	require.NoError(t, err)
	require.NoError(t, instance.MarkAsStarted())

	events := instance.GetUncommittedEvents()
	require.Len(t, events, 2)
	require.Equal(t, SagaInstanceCreated, events[0].EventType)
	require.Equal(t, SagaInstanceStatusChanged, events[1].EventType)

	for _, event := range events {
		require.Equal(t, "A1", event.AggregateID)
		require.Equal(t, SagaInstanceAggregateType, event.AggregateType)
		require.NotEmpty(t, event.EventID)
		require.False(t, event.IsReplay)
	}

	instance.Commit()
	require.Empty(t, instance.GetUncommittedEvents())
}

func TestGetUncommittedEventsReturnsCopy(t *testing.T) {
	instance, err := NewSagaInstance("A1", "order")
	require.NoError(t, err)

	events := instance.GetUncommittedEvents()
	events[0].EventType = "tampered"
	_ = append(events, DomainEvent{})

	again := instance.GetUncommittedEvents()
	require.Len(t, again, 1)
	require.Equal(t, SagaInstanceCreated, again[0].EventType)
}

func TestFromPrimitivesRaisesNothing(t *testing.T) {
	instance := SagaInstanceFromPrimitives(SagaInstancePrimitives{ID: "A1", Name: "order", Status: StatusRunning})
	require.Empty(t, instance.GetUncommittedEvents())
	require.Equal(t, 0, instance.Revision())
}

func TestErrorKinds(t *testing.T) {
	cause := errors.New("connection reset")
	wrapped := fmt.Errorf("saving: %w", Persistence(cause, "failed to save %s", "A1"))

	require.True(t, IsPersistence(wrapped))
	require.ErrorIs(t, wrapped, cause)
	require.Equal(t, "PERSISTENCE: failed to save A1: connection reset", Persistence(cause, "failed to save %s", "A1").Error())

	require.True(t, IsNotFound(NotFound("saga step", "S1")))
	require.Equal(t, "NOT_FOUND: saga step S1 not found", NotFound("saga step", "S1").Error())
	require.True(t, IsConflict(Conflict("taken")))
	require.True(t, IsValidation(Validation("bad %d", 1)))
	require.True(t, IsInvalidTransition(InvalidTransition("saga instance", StatusPending, StatusCompleted)))

	require.Equal(t, Kind(""), KindOf(cause))
	require.Equal(t, Kind(""), KindOf(nil))
}
