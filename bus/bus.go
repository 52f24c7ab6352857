package bus

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
	"go.uber.org/multierr"

	"example.com/backstage/services/saga/domain"
)

// AllEvents subscribes a handler to every event type
const AllEvents = "*"

// Handler reacts to one published domain event
type Handler func(ctx context.Context, event domain.DomainEvent) error

// Publisher is what command handlers depend on
type Publisher interface {
	Publish(ctx context.Context, event domain.DomainEvent) error
	PublishAll(ctx context.Context, events []domain.DomainEvent) error
}

// Bus is a Publisher that handlers can subscribe to
type Bus interface {
	Publisher
	Subscribe(eventType string, handler Handler)
}

// InProcessBus delivers events synchronously to subscribers in registration
// order. Exact-type subscribers run before wildcard ones.
type InProcessBus struct {
	mu       sync.RWMutex
	handlers map[string][]Handler
}

// NewInProcessBus creates an empty bus
func NewInProcessBus() *InProcessBus {
	return &InProcessBus{handlers: make(map[string][]Handler)}
}

// Subscribe registers handler for eventType, or for everything with AllEvents
func (b *InProcessBus) Subscribe(eventType string, handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish runs every matching handler. All handlers run even if one fails;
// their errors are combined.
func (b *InProcessBus) Publish(ctx context.Context, event domain.DomainEvent) error {
	b.mu.RLock()
	handlers := make([]Handler, 0, len(b.handlers[event.EventType])+len(b.handlers[AllEvents]))
	handlers = append(handlers, b.handlers[event.EventType]...)
	handlers = append(handlers, b.handlers[AllEvents]...)
	b.mu.RUnlock()

	var err error
	for _, handler := range handlers {
		if herr := handler(ctx, event); herr != nil {
			log.Error().
				Err(herr).
				Str("eventID", event.EventID).
				Str("eventType", event.EventType).
				Bool("isReplay", event.IsReplay).
				Msg("Event handler failed")
			err = multierr.Append(err, herr)
		}
	}
	return err
}

// PublishAll publishes events in order and stops at the first event whose
// handlers failed
func (b *InProcessBus) PublishAll(ctx context.Context, events []domain.DomainEvent) error {
	for _, event := range events {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := b.Publish(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
