// Package logstore writes audit events to the structured log. It backs the
// publisher when no broker is configured.
package logstore

import (
	"context"
	"log/slog"

	audit "civicid/pkg/platform/audit"
)

type Store struct {
	logger *slog.Logger
}

func New(logger *slog.Logger) *Store {
	return &Store{logger: logger}
}

func (s *Store) Append(ctx context.Context, event audit.Event) error {
	attrs := []any{
		"event_id", event.ID,
		"type", event.Type,
		"category", event.Category,
		"subject", event.Subject,
		"request_id", event.RequestID,
	}
	if !event.UserID.IsNil() {
		attrs = append(attrs, "user_id", event.UserID.String())
	}
	if event.From != "" || event.To != "" {
		attrs = append(attrs, "from", event.From, "to", event.To)
	}
	if event.Reason != "" {
		attrs = append(attrs, "reason", event.Reason)
	}
	for k, v := range event.Attrs {
		attrs = append(attrs, "attr_"+k, v)
	}
	s.logger.InfoContext(ctx, "audit event", attrs...)
	return nil
}
