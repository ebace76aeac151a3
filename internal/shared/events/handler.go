package events

import "context"

// Handler is the interface for change event handlers.
type Handler interface {
	// Handles returns the event kinds this handler processes.
	Handles() []Kind

	// Handle processes the given event. It must not block on slow consumers.
	Handle(ctx context.Context, event *ChangeEvent) error
}

// HandlerFunc adapts a function to Handler for a fixed set of kinds.
type HandlerFunc struct {
	kinds []Kind
	fn    func(context.Context, *ChangeEvent) error
}

// NewHandlerFunc creates a new HandlerFunc.
func NewHandlerFunc(kinds []Kind, fn func(context.Context, *ChangeEvent) error) *HandlerFunc {
	return &HandlerFunc{
		kinds: kinds,
		fn:    fn,
	}
}

// Handles returns the kinds this handler processes.
func (h *HandlerFunc) Handles() []Kind {
	return h.kinds
}

// Handle processes the given event.
func (h *HandlerFunc) Handle(ctx context.Context, event *ChangeEvent) error {
	return h.fn(ctx, event)
}
