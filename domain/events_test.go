package domain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodePayloadRestoresTypedPayload(t *testing.T) {
	instance, err := NewSagaInstance("A1", "order")
	require.NoError(t, err)
	event := instance.GetUncommittedEvents()[0]

	raw, err := MarshalPayload(event.Data)
	require.NoError(t, err)

	decoded, err := DecodePayload(event.EventType, raw)
	require.NoError(t, err)
	payload, ok := decoded.(SagaInstanceCreatedPayload)
	require.True(t, ok)
	require.Equal(t, "A1", payload.ID)
	require.Equal(t, StatusPending, payload.Status)
}

func TestDecodePayloadKeepsUnknownBodies(t *testing.T) {
	decoded, err := DecodePayload("V1_SOMETHING_ELSE", []byte(`{"a":1}`))
	require.NoError(t, err)
	require.Equal(t, "V1_SOMETHING_ELSE", decoded.EventType())

	raw, err := MarshalPayload(decoded)
	require.NoError(t, err)
	require.JSONEq(t, `{"a":1}`, string(raw))

	empty, err := DecodePayload(SagaStepCreated, nil)
	require.NoError(t, err)
	body, err := json.Marshal(empty)
	require.NoError(t, err)
	require.Equal(t, "null", string(body))
}

func TestDecodePayloadRejectsBrokenBody(t *testing.T) {
	_, err := DecodePayload(SagaStepCreated, []byte(`{"order":"first"}`))
	require.Error(t, err)
}

func TestNewEventRequiresAggregate(t *testing.T) {
	_, err := NewEvent(EventPrimitives{ID: "E1", EventType: SagaLogCreated})
	require.True(t, IsValidation(err))

	event, err := NewEvent(EventPrimitives{ID: "E1", AggregateID: "A1", AggregateType: SagaInstanceAggregateType, EventType: SagaInstanceCreated})
	require.NoError(t, err)
	require.False(t, event.Timestamp().IsZero())

	events := event.GetUncommittedEvents()
	require.Len(t, events, 1)
	require.Equal(t, EventAggregateType, events[0].AggregateType)
	require.Equal(t, EventCreated, events[0].EventType)
}

func TestReplayedEventIsTagged(t *testing.T) {
	original, err := NewSagaInstance("A1", "order")
	require.NoError(t, err)
	source := original.GetUncommittedEvents()[0]

	replayed := NewReplayedEvent(source.AggregateID, source.AggregateType, source.EventType, source.OccurredAt, source.Data)
	require.True(t, replayed.IsReplay)
	require.NotEqual(t, source.EventID, replayed.EventID)
	require.Equal(t, source.OccurredAt, replayed.OccurredAt)
}
