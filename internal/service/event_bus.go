package service

import (
	"context"
	"sync"

	"seller-payout-service/internal/core/domain"
	"seller-payout-service/internal/core/ports"

	"github.com/rs/zerolog"
)

// EventBus implements ports.EventPublisher with synchronous in-process fan-out.
// Handlers run in subscription order on the publisher's goroutine; a failing
// handler is logged and does not stop the others.
type EventBus struct {
	mu       sync.RWMutex
	handlers map[string][]ports.EventHandler
	log      zerolog.Logger
}

// NewEventBus creates an empty bus.
func NewEventBus(log zerolog.Logger) *EventBus {
	return &EventBus{handlers: make(map[string][]ports.EventHandler), log: log}
}

// Subscribe registers handler for events named eventName.
func (b *EventBus) Subscribe(eventName string, handler ports.EventHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventName] = append(b.handlers[eventName], handler)
}

// Publish delivers event to every handler subscribed to its name.
func (b *EventBus) Publish(ctx context.Context, event domain.Event) {
	b.mu.RLock()
	handlers := append([]ports.EventHandler(nil), b.handlers[event.EventName()]...)
	b.mu.RUnlock()

	for _, h := range handlers {
		if err := h(ctx, event); err != nil {
			b.log.Error().Err(err).Str("event", event.EventName()).Msg("event handler failed")
		}
	}
}
