// Package consumer decodes audit events read back from Kafka.
package consumer

import (
	"context"
	"encoding/json"
	"log/slog"

	"civicid/internal/platform/kafka"
	audit "civicid/pkg/platform/audit"
)

// EventHandler receives decoded events.
type EventHandler interface {
	HandleEvent(ctx context.Context, event audit.Event) error
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(ctx context.Context, event audit.Event) error

func (f EventHandlerFunc) HandleEvent(ctx context.Context, event audit.Event) error {
	return f(ctx, event)
}

// Router decodes messages and dispatches them by event type.
type Router struct {
	handlers map[audit.EventType]EventHandler
	fallback EventHandler
	logger   *slog.Logger
}

// NewRouter creates a router with an optional fallback handler.
func NewRouter(logger *slog.Logger, fallback EventHandler) *Router {
	return &Router{
		handlers: make(map[audit.EventType]EventHandler),
		fallback: fallback,
		logger:   logger,
	}
}

// Register adds a handler for one event type.
func (r *Router) Register(eventType audit.EventType, handler EventHandler) {
	r.handlers[eventType] = handler
}

// Handle satisfies kafka.Handler. Undecodable messages are skipped so one
// bad record cannot wedge the consumer.
func (r *Router) Handle(ctx context.Context, msg *kafka.Message) error {
	var event audit.Event
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		r.logger.WarnContext(ctx, "skipping undecodable event",
			"topic", msg.Topic,
			"offset", msg.Offset,
			"error", err,
		)
		return nil
	}
	handler, ok := r.handlers[event.Type]
	if !ok {
		if r.fallback != nil {
			return r.fallback.HandleEvent(ctx, event)
		}
		r.logger.DebugContext(ctx, "no handler for event type", "type", event.Type)
		return nil
	}
	return handler.HandleEvent(ctx, event)
}
