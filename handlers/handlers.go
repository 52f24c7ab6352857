package handlers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"example.com/backstage/services/saga/bus"
	"example.com/backstage/services/saga/domain"
	"example.com/backstage/services/saga/metrics"
	"example.com/backstage/services/saga/tracing"
)

// commander carries what every command handler needs to persist, announce
// and observe a change
type commander struct {
	publisher bus.Publisher
	metrics   *metrics.Metrics
	tracer    tracing.Tracer
}

func newCommander(publisher bus.Publisher, m *metrics.Metrics, tracer tracing.Tracer) commander {
	if tracer == nil {
		tracer = tracing.Noop()
	}
	return commander{publisher: publisher, metrics: m, tracer: tracer}
}

// run wraps a command in a transaction and records its outcome
func (c commander) run(ctx context.Context, command, aggregateID string, fn func(ctx context.Context) error) error {
	start := time.Now()
	txn := c.tracer.StartTransaction(command)
	defer c.tracer.EndTransaction(txn)
	c.tracer.AddAttribute(txn, "aggregateID", aggregateID)

	log.Info().Str("aggregateID", aggregateID).Msgf("Handling %s command", command)

	err := fn(ctx)
	kind := ""
	if err != nil {
		c.tracer.RecordError(txn, err)
		kind = string(domain.KindOf(err))
		if kind == "" {
			kind = "UNKNOWN"
		}
		log.Error().Err(err).Str("aggregateID", aggregateID).Str("command", command).Msg("Command failed")
	}
	c.metrics.ObserveCommand(command, time.Since(start), kind)
	return err
}

// commit persists the aggregate, publishes what it buffered and only then
// clears the buffer. Nothing is published when save fails, and the buffer
// survives a failed publish.
func (c commander) commit(ctx context.Context, aggregate domain.Aggregate, save func(ctx context.Context) error) error {
	if err := save(ctx); err != nil {
		return err
	}
	if err := c.publisher.PublishAll(ctx, aggregate.GetUncommittedEvents()); err != nil {
		return err
	}
	aggregate.Commit()
	return nil
}

func newID(id string) string {
	if id != "" {
		return id
	}
	return uuid.New().String()
}
