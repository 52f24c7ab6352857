package tracing

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/backstage/services/saga/config"
)

func TestDisabledTracerIsSafe(t *testing.T) {
	tracer, err := NewTracer(config.TracingConfig{AppName: "saga"})
	require.NoError(t, err)

	txn := tracer.StartTransaction("replay")
	require.Nil(t, txn)
	require.Nil(t, tracer.Application())

	require.NotPanics(t, func() {
		tracer.EndSpan(tracer.StartSpan("batch", txn))
		tracer.AddAttribute(txn, "batch", 1)
		tracer.RecordError(txn, errors.New("boom"))
		tracer.EndTransaction(txn)
		tracer.Close()
	})
}
