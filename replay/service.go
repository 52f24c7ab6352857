package replay

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"example.com/backstage/services/saga/bus"
	"example.com/backstage/services/saga/config"
	"example.com/backstage/services/saga/criteria"
	"example.com/backstage/services/saga/domain"
	"example.com/backstage/services/saga/eventstore"
	"example.com/backstage/services/saga/metrics"
	"example.com/backstage/services/saga/tracing"
)

// DefaultBatchSize is used when neither the request nor the config sets one
const DefaultBatchSize = 500

// Request selects the stored events to replay
type Request struct {
	Filters   eventstore.Filters `json:"filters"`
	BatchSize int                `json:"batchSize"`
}

// Service re-publishes stored events tagged as replays and rebuilds their
// view rows. It reads the write side only and never appends.
type Service struct {
	events    eventstore.EventRepository
	views     eventstore.EventViewRepository
	publisher bus.Publisher
	batchSize int
	delay     time.Duration
	metrics   *metrics.Metrics
	tracer    tracing.Tracer
	wait      func(ctx context.Context, d time.Duration) error
}

func NewService(
	events eventstore.EventRepository,
	views eventstore.EventViewRepository,
	publisher bus.Publisher,
	cfg config.ReplayConfig,
	m *metrics.Metrics,
	tracer tracing.Tracer,
) *Service {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if tracer == nil {
		tracer = tracing.Noop()
	}
	return &Service{
		events:    events,
		views:     views,
		publisher: publisher,
		batchSize: batchSize,
		delay:     cfg.Delay,
		metrics:   m,
		tracer:    tracer,
		wait:      sleep,
	}
}

// Replay walks the matching events oldest first in pages of BatchSize and
// returns how many were replayed. It stops at the first short page, and
// checks ctx between batches and while throttling.
func (s *Service) Replay(ctx context.Context, req Request) (int, error) {
	batchSize := req.BatchSize
	if batchSize <= 0 {
		batchSize = s.batchSize
	}
	if batchSize > criteria.MaxPerPage {
		return 0, domain.Validation("replay batch size %d exceeds %d", batchSize, criteria.MaxPerPage)
	}

	txn := s.tracer.StartTransaction("event-replay")
	defer s.tracer.EndTransaction(txn)
	s.tracer.AddAttribute(txn, "batchSize", batchSize)

	logger := log.With().
		Str("eventType", req.Filters.EventType).
		Str("aggregateID", req.Filters.AggregateID).
		Str("aggregateType", req.Filters.AggregateType).
		Int("batchSize", batchSize).
		Logger()
	logger.Info().Msg("Starting event replay")

	total := 0
	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			logger.Warn().Int("total", total).Msg("Event replay cancelled")
			return total, err
		}

		segment := s.tracer.StartSpan("replay-batch", txn)
		count, err := s.replayBatch(ctx, req.Filters, page, batchSize)
		s.tracer.EndSpan(segment)
		total += count
		if err != nil {
			s.tracer.RecordError(txn, err)
			logger.Error().Err(err).Int("page", page).Int("total", total).Msg("Event replay failed")
			return total, err
		}

		logger.Debug().Int("page", page).Int("count", count).Msg("Replayed batch")
		if count < batchSize {
			break
		}
	}

	s.tracer.AddAttribute(txn, "total", total)
	logger.Info().Int("total", total).Msg("Event replay finished")
	return total, nil
}

// replayBatch replays one page and returns how many events it replayed
func (s *Service) replayBatch(ctx context.Context, filters eventstore.Filters, page, batchSize int) (int, error) {
	batch, err := s.events.FindByCriteria(ctx, filters.Criteria(criteria.Pagination{Page: page, PerPage: batchSize}))
	if err != nil {
		return 0, err
	}
	s.metrics.ReplayBatch()

	count := 0
	for _, stored := range batch.Items {
		if err := s.replayOne(ctx, stored); err != nil {
			return count, err
		}
		count++
		if err := s.wait(ctx, s.delay); err != nil {
			return count, err
		}
	}
	return count, nil
}

func (s *Service) replayOne(ctx context.Context, stored *domain.Event) error {
	p := stored.ToPrimitives()

	data, err := domain.DecodePayload(p.EventType, p.Payload)
	if err != nil {
		log.Warn().Err(err).Str("eventID", p.ID).Msg("Replaying undecodable payload as raw")
		data = domain.RawPayload{Type: p.EventType, Raw: p.Payload}
	}

	event := domain.NewReplayedEvent(p.AggregateID, p.AggregateType, p.EventType, p.Timestamp, data)
	if err := s.publisher.Publish(ctx, event); err != nil {
		return err
	}
	if err := s.views.Save(ctx, domain.EventView{EventPrimitives: p, UpdatedAt: time.Now().UTC()}); err != nil {
		return err
	}

	s.metrics.EventReplayed(p.EventType)
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
