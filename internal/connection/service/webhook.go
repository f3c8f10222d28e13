package service

import (
	"context"
	"errors"

	"civicid/internal/connection/models"
	"civicid/pkg/domain"
	dErrors "civicid/pkg/domain-errors"
	"civicid/pkg/platform/sentinel"
	"civicid/pkg/requestcontext"
)

// WebhookResult summarizes one webhook delivery.
type WebhookResult struct {
	// Processed counts messages that were handled, including no-op transitions.
	Processed  int
	Duplicates int
	Dropped    int
	Failed     int
}

// ProcessWebhook applies every message in an agent delivery. Only an
// unreadable body is an error. Unknown exchanges are dropped; an invalid
// message moves its connection to error.
func (s *Service) ProcessWebhook(ctx context.Context, body []byte) (WebhookResult, error) {
	var result WebhookResult
	msgs, err := models.ParseEnvelope(body)
	if err != nil {
		return result, err
	}

	for _, msg := range msgs {
		if !s.claim(ctx, msg) {
			result.Duplicates++
			s.metrics.RecordWebhookMessage(kindOf(msg), "duplicate")
			continue
		}

		outcome := s.handleMessage(ctx, msg)
		s.metrics.RecordWebhookMessage(kindOf(msg), outcome)
		switch outcome {
		case "processed":
			result.Processed++
		case "dropped":
			result.Dropped++
		default:
			result.Failed++
			s.release(ctx, msg)
		}
	}
	return result, nil
}

func (s *Service) handleMessage(ctx context.Context, msg models.Message) string {
	requestID := requestcontext.RequestID(ctx)
	switch m := msg.(type) {
	case models.ConnectionMessage:
		return s.handleConnectionMessage(ctx, m)
	case models.CredentialMessage:
		s.logger.InfoContext(ctx, "credential exchange update",
			"request_id", requestID,
			"kind", m.Kind,
			"record_id", m.RecordID,
			"state", m.State,
		)
		return "processed"
	case models.UnknownMessage:
		s.logger.WarnContext(ctx, "dropping unrecognised webhook message",
			"request_id", requestID,
			"reason", m.Reason,
		)
		return "dropped"
	default:
		return "dropped"
	}
}

func (s *Service) handleConnectionMessage(ctx context.Context, m models.ConnectionMessage) string {
	requestID := requestcontext.RequestID(ctx)
	conn, err := s.findByKeys(ctx, m.Keys)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeNotFound) {
			s.logger.WarnContext(ctx, "webhook for unknown exchange dropped",
				"request_id", requestID,
				"kind", m.Kind,
				"keys", m.Keys,
			)
			return "dropped"
		}
		s.logger.ErrorContext(ctx, "failed to look up connection for webhook",
			"request_id", requestID,
			"error", err,
		)
		return "failed"
	}

	var theirDID domain.DID
	if m.TheirDID != "" {
		theirDID, err = domain.ParseDID(m.TheirDID)
		if err != nil {
			s.fail(ctx, conn, "invalid sender DID: "+err.Error())
			return "failed"
		}
		if theirDID == conn.MyDID {
			theirDID = ""
		}
	}

	updated, err := s.Advance(ctx, conn.ExchangeID, m.Target, theirDID, m.Kind)
	if err != nil {
		return s.advanceFailed(ctx, conn, err)
	}

	if updated.State == models.StateRequestReceived {
		if !s.policy.ShouldAccept(ctx, updated) {
			s.logger.InfoContext(ctx, "connection request awaits manual acceptance",
				"request_id", requestID,
				"connection_id", updated.ID.String(),
			)
			return "processed"
		}
		if _, err := s.Advance(ctx, conn.ExchangeID, models.StateActive, "", "auto-accepted"); err != nil {
			return s.advanceFailed(ctx, conn, err)
		}
	}
	return "processed"
}

// findByKeys tries each correlation key in order.
func (s *Service) findByKeys(ctx context.Context, keys []string) (*models.Connection, error) {
	for _, key := range keys {
		conn, err := s.store.FindByExchangeID(ctx, key)
		if err == nil {
			return conn, nil
		}
		if !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load connection")
		}
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "no connection for exchange")
}

// advanceFailed records err against the connection. A lost race or a store
// outage leaves the state alone; the released claim lets a redelivery retry.
func (s *Service) advanceFailed(ctx context.Context, conn *models.Connection, err error) string {
	if dErrors.HasCode(err, dErrors.CodeConflict) || dErrors.HasCode(err, dErrors.CodeInternal) {
		s.logger.WarnContext(ctx, "connection update not applied",
			"request_id", requestcontext.RequestID(ctx),
			"connection_id", conn.ID.String(),
			"exchange_id", conn.ExchangeID,
			"error", err,
		)
		return "failed"
	}
	s.fail(ctx, conn, err.Error())
	return "failed"
}

// fail records a processing failure as state error. The webhook itself still succeeds.
func (s *Service) fail(ctx context.Context, conn *models.Connection, reason string) {
	s.logger.WarnContext(ctx, "webhook processing failed",
		"request_id", requestcontext.RequestID(ctx),
		"connection_id", conn.ID.String(),
		"exchange_id", conn.ExchangeID,
		"reason", reason,
	)
	if _, err := s.Advance(ctx, conn.ExchangeID, models.StateError, "", reason); err != nil {
		s.logger.ErrorContext(ctx, "failed to record connection error",
			"connection_id", conn.ID.String(),
			"error", err,
		)
	}
}

func (s *Service) claim(ctx context.Context, msg models.Message) bool {
	if s.deduper == nil {
		return true
	}
	ok, err := s.deduper.Claim(ctx, msg.Raw())
	if err != nil {
		s.logger.WarnContext(ctx, "webhook de-duplication unavailable", "error", err)
		return true
	}
	return ok
}

func (s *Service) release(ctx context.Context, msg models.Message) {
	if s.deduper == nil {
		return
	}
	if err := s.deduper.Release(ctx, msg.Raw()); err != nil {
		s.logger.WarnContext(ctx, "failed to release webhook message", "error", err)
	}
}

func kindOf(msg models.Message) string {
	switch msg.(type) {
	case models.ConnectionMessage:
		return "connection"
	case models.CredentialMessage:
		return "credential"
	default:
		return "unknown"
	}
}
