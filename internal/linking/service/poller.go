package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"civicid/internal/linking/models"
	"civicid/pkg/domain"
	dErrors "civicid/pkg/domain-errors"
)

// ErrPollTimeout means the connection never became ready within the attempt
// budget. The connection is left as it was.
var ErrPollTimeout = errors.New("linking did not complete in time")

// Completer attempts a link completion. *Service satisfies it, and so does a
// remote HTTP client.
type Completer interface {
	Complete(ctx context.Context, userID domain.UserID, connectionID domain.ConnectionID) (*models.LinkResult, error)
}

// Poller retries Complete at a fixed interval while the connection is not
// ready yet. Any other failure ends the wait immediately.
type Poller struct {
	completer   Completer
	interval    time.Duration
	maxAttempts int
	logger      *slog.Logger
}

type PollerOption func(*Poller)

func WithPollerLogger(logger *slog.Logger) PollerOption {
	return func(p *Poller) { p.logger = logger }
}

func NewPoller(completer Completer, interval time.Duration, maxAttempts int, opts ...PollerOption) *Poller {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	p := &Poller{
		completer:   completer,
		interval:    interval,
		maxAttempts: maxAttempts,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Wait blocks until the link is created, a permanent error occurs, ctx ends
// or the attempts run out (ErrPollTimeout).
func (p *Poller) Wait(ctx context.Context, userID domain.UserID, connectionID domain.ConnectionID) (*models.LinkResult, error) {
	var (
		result   *models.LinkResult
		attempts int
	)
	op := func() error {
		attempts++
		res, err := p.completer.Complete(ctx, userID, connectionID)
		if err == nil {
			result = res
			return nil
		}
		if dErrors.HasCode(err, dErrors.CodeInvalidState) {
			return err
		}
		return backoff.Permanent(err)
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(p.interval), uint64(p.maxAttempts-1)),
		ctx,
	)
	notify := func(err error, next time.Duration) {
		p.logger.DebugContext(ctx, "link not ready, polling again",
			"connection_id", connectionID.String(),
			"attempt", attempts,
			"next_in", next,
			"reason", err.Error(),
		)
	}

	err := backoff.RetryNotify(op, policy, notify)
	switch {
	case err == nil:
		return result, nil
	case ctx.Err() != nil:
		return nil, ctx.Err()
	case dErrors.HasCode(err, dErrors.CodeInvalidState):
		p.logger.WarnContext(ctx, "gave up waiting for link",
			"connection_id", connectionID.String(),
			"attempts", attempts,
		)
		return nil, ErrPollTimeout
	default:
		return nil, err
	}
}
