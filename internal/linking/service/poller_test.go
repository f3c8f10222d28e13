package service

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civicid/internal/linking/models"
	"civicid/pkg/domain"
	dErrors "civicid/pkg/domain-errors"
)

type completerFunc func(ctx context.Context, userID domain.UserID, connectionID domain.ConnectionID) (*models.LinkResult, error)

func (f completerFunc) Complete(ctx context.Context, userID domain.UserID, connectionID domain.ConnectionID) (*models.LinkResult, error) {
	return f(ctx, userID, connectionID)
}

func notReady() error {
	return dErrors.New(dErrors.CodeInvalidState, "connection is not ready yet")
}

func TestPollerWait(t *testing.T) {
	connID := domain.NewConnectionID()

	t.Run("retries until the connection is ready", func(t *testing.T) {
		var calls atomic.Int32
		p := NewPoller(completerFunc(func(context.Context, domain.UserID, domain.ConnectionID) (*models.LinkResult, error) {
			if calls.Add(1) < 3 {
				return nil, notReady()
			}
			return &models.LinkResult{DID: "did:peer:abc"}, nil
		}), time.Millisecond, 5)

		res, err := p.Wait(context.Background(), "u1", connID)
		require.NoError(t, err)
		assert.Equal(t, domain.DID("did:peer:abc"), res.DID)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("gives up after the attempt budget", func(t *testing.T) {
		var calls atomic.Int32
		p := NewPoller(completerFunc(func(context.Context, domain.UserID, domain.ConnectionID) (*models.LinkResult, error) {
			calls.Add(1)
			return nil, notReady()
		}), time.Millisecond, 4)

		_, err := p.Wait(context.Background(), "u1", connID)
		assert.ErrorIs(t, err, ErrPollTimeout)
		assert.Equal(t, int32(4), calls.Load())
	})

	t.Run("stops on a failed connection", func(t *testing.T) {
		var calls atomic.Int32
		p := NewPoller(completerFunc(func(context.Context, domain.UserID, domain.ConnectionID) (*models.LinkResult, error) {
			if calls.Add(1) == 1 {
				return nil, notReady()
			}
			return nil, dErrors.New(dErrors.CodeAgentError, "connection failed")
		}), time.Millisecond, 10)

		_, err := p.Wait(context.Background(), "u1", connID)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeAgentError))
		assert.Equal(t, int32(2), calls.Load())
	})

	t.Run("already linked is terminal", func(t *testing.T) {
		var calls atomic.Int32
		p := NewPoller(completerFunc(func(context.Context, domain.UserID, domain.ConnectionID) (*models.LinkResult, error) {
			calls.Add(1)
			return nil, dErrors.New(dErrors.CodeConflict, "user is already linked")
		}), time.Millisecond, 10)

		_, err := p.Wait(context.Background(), "u1", connID)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict))
		assert.Equal(t, int32(1), calls.Load())
	})

	t.Run("honours cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		p := NewPoller(completerFunc(func(context.Context, domain.UserID, domain.ConnectionID) (*models.LinkResult, error) {
			cancel()
			return nil, notReady()
		}), time.Hour, 60)

		_, err := p.Wait(ctx, "u1", connID)
		assert.True(t, errors.Is(err, context.Canceled))
	})
}
