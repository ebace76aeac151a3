package events

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Publisher emits change events. Command handlers depend on this interface.
type Publisher interface {
	Publish(ctx context.Context, event *ChangeEvent)
}

// Bus is a synchronous in-process event bus. Handlers run on the publishing
// goroutine in registration order, so events emitted one after another by the
// same caller reach each handler in that order.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Kind][]Handler
	logger   *zap.Logger
}

// NewBus creates a new event bus.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		handlers: make(map[Kind][]Handler),
		logger:   logger,
	}
}

// Register registers a handler for the kinds it handles.
func (b *Bus) Register(handler Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, kind := range handler.Handles() {
		b.handlers[kind] = append(b.handlers[kind], handler)
		b.logger.Debug("registered event handler",
			zap.String("event_kind", string(kind)),
		)
	}
}

// Publish dispatches an event to all registered handlers.
// A failing handler is logged and does not stop the others.
func (b *Bus) Publish(ctx context.Context, event *ChangeEvent) {
	b.mu.RLock()
	handlers := b.handlers[event.Kind]
	b.mu.RUnlock()

	if len(handlers) == 0 {
		b.logger.Debug("no handlers registered for event",
			zap.String("event_kind", string(event.Kind)),
			zap.String("event_id", event.ID.String()),
		)
		return
	}

	b.logger.Debug("publishing event",
		zap.String("event_kind", string(event.Kind)),
		zap.String("event_id", event.ID.String()),
		zap.String("project_id", event.ProjectID.String()),
		zap.Int("handler_count", len(handlers)),
	)

	for _, handler := range handlers {
		if err := handler.Handle(ctx, event); err != nil {
			b.logger.Error("event handler failed",
				zap.String("event_kind", string(event.Kind)),
				zap.String("event_id", event.ID.String()),
				zap.Error(err),
			)
		}
	}
}
