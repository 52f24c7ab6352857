package domain

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func newRunningInstance(t *testing.T) *SagaInstance {
	t.Helper()
	instance, err := NewSagaInstance("A1", "order")
	require.NoError(t, err)
	require.NoError(t, instance.MarkAsStarted())
	require.NoError(t, instance.MarkAsRunning())
	instance.Commit()
	return instance
}

func TestNewSagaInstance(t *testing.T) {
	instance, err := NewSagaInstance("A1", "order")
	require.NoError(t, err)
	require.Equal(t, StatusPending, instance.Status())
	require.Nil(t, instance.StartDate())
	require.Nil(t, instance.EndDate())

	payload, ok := instance.GetUncommittedEvents()[0].Data.(SagaInstanceCreatedPayload)
	require.True(t, ok)
	require.Equal(t, "order", payload.Name)

	_, err = NewSagaInstance("A1", " ")
	require.True(t, IsValidation(err))
	_, err = NewSagaInstance("", "order")
	require.True(t, IsValidation(err))
}

func TestSagaInstanceHappyPath(t *testing.T) {
	instance, err := NewSagaInstance("A1", "order")
	require.NoError(t, err)

	require.NoError(t, instance.MarkAsStarted())
	require.NotNil(t, instance.StartDate())
	require.NoError(t, instance.MarkAsRunning())
	require.NoError(t, instance.MarkAsCompleted())

	require.Equal(t, StatusCompleted, instance.Status())
	require.NotNil(t, instance.EndDate())
	require.False(t, instance.EndDate().Before(*instance.StartDate()))
	require.Len(t, instance.GetUncommittedEvents(), 4)
}

func TestSagaInstanceTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    Status
		to      string
		allowed bool
	}{
		{"pending to started", StatusPending, "STARTED", true},
		{"pending to running", StatusPending, "RUNNING", false},
		{"pending to completed", StatusPending, "COMPLETED", false},
		{"pending to failed", StatusPending, "FAILED", true},
		{"started to running", StatusStarted, "RUNNING", true},
		{"started to completed", StatusStarted, "COMPLETED", false},
		{"running to completed", StatusRunning, "COMPLETED", true},
		{"running to failed", StatusRunning, "FAILED", true},
		{"completed to failed", StatusCompleted, "FAILED", false},
		{"failed to started", StatusFailed, "STARTED", false},
		{"lowercase accepted", StatusPending, "started", true},
		{"back to pending", StatusStarted, "PENDING", false},
		{"unknown status", StatusPending, "PAUSED", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			instance := SagaInstanceFromPrimitives(SagaInstancePrimitives{ID: "A1", Name: "order", Status: tt.from})

			err := instance.ChangeStatus(tt.to)
			if tt.allowed {
				require.NoError(t, err)
				require.Len(t, instance.GetUncommittedEvents(), 1)
				return
			}
			require.True(t, IsInvalidTransition(err), "got %v", err)
			require.Equal(t, tt.from, instance.Status())
			require.Empty(t, instance.GetUncommittedEvents())
		})
	}
}

func TestTerminalSagaInstanceIsFrozen(t *testing.T) {
	instance := newRunningInstance(t)
	require.NoError(t, instance.MarkAsFailed())
	endDate := instance.EndDate()
	instance.Commit()

	require.True(t, IsInvalidTransition(instance.MarkAsCompleted()))
	require.True(t, IsInvalidTransition(instance.MarkAsFailed()))
	require.Equal(t, endDate, instance.EndDate())
	require.Empty(t, instance.GetUncommittedEvents())
}

func TestSagaInstanceUpdateAndDelete(t *testing.T) {
	instance := newRunningInstance(t)

	require.NoError(t, instance.Update("refund"))
	require.Equal(t, "refund", instance.Name())
	require.True(t, IsValidation(instance.Update("")))

	instance.Delete()
	events := instance.GetUncommittedEvents()
	require.Len(t, events, 2)
	require.Equal(t, SagaInstanceUpdated, events[0].EventType)
	require.Equal(t, SagaInstanceDeleted, events[1].EventType)
}
