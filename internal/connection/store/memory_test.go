package store

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"civicid/internal/connection/models"
	"civicid/pkg/domain"
	"civicid/pkg/platform/sentinel"
)

type InMemoryStoreSuite struct {
	suite.Suite
	store *InMemory
	ctx   context.Context
}

func TestInMemoryStoreSuite(t *testing.T) {
	suite.Run(t, new(InMemoryStoreSuite))
}

func (s *InMemoryStoreSuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func (s *InMemoryStoreSuite) newConnection(exchangeID string, userID domain.UserID, created time.Time) *models.Connection {
	conn, err := models.NewInvitation(domain.NewConnectionID(), exchangeID, userID, "did:peer:me",
		"https://agent/oob", []byte(`{"id":"`+exchangeID+`"}`), nil, created)
	s.Require().NoError(err)
	return conn
}

func (s *InMemoryStoreSuite) TestCreateAndFind() {
	conn := s.newConnection("t1", "u1", time.Now())
	s.Require().NoError(s.store.Create(s.ctx, conn))

	byID, err := s.store.FindByID(s.ctx, conn.ID)
	s.Require().NoError(err)
	s.Equal("t1", byID.ExchangeID)

	byExchange, err := s.store.FindByExchangeID(s.ctx, "t1")
	s.Require().NoError(err)
	s.Equal(conn.ID, byExchange.ID)

	_, err = s.store.FindByExchangeID(s.ctx, "missing")
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.Run("duplicate exchange id", func() {
		err := s.store.Create(s.ctx, s.newConnection("t1", "u2", time.Now()))
		s.ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("returned records are copies", func() {
		byID.Metadata["x"] = "y"
		again, err := s.store.FindByID(s.ctx, conn.ID)
		s.Require().NoError(err)
		s.NotContains(again.Metadata, "x")
	})
}

func (s *InMemoryStoreSuite) TestFindLatestForUser() {
	base := time.Unix(1000, 0)
	older := s.newConnection("old", "u1", base)
	newer := s.newConnection("new", "u1", base.Add(time.Minute))
	other := s.newConnection("other", "u2", base.Add(time.Hour))
	for _, c := range []*models.Connection{older, newer, other} {
		s.Require().NoError(s.store.Create(s.ctx, c))
	}

	latest, err := s.store.FindLatestForUser(s.ctx, "u1")
	s.Require().NoError(err)
	s.Equal("new", latest.ExchangeID)

	_, err = s.store.FindLatestForUser(s.ctx, "u1", models.StateActive)
	s.ErrorIs(err, sentinel.ErrNotFound)

	list, err := s.store.ListForUser(s.ctx, "u1")
	s.Require().NoError(err)
	s.Len(list, 2)
}

func (s *InMemoryStoreSuite) TestCompareAndSwapState() {
	conn := s.newConnection("t1", "u1", time.Now())
	s.Require().NoError(s.store.Create(s.ctx, conn))

	next, _, err := conn.Transition(models.StateUpdate{To: models.StateRequestReceived, TheirDID: "did:peer:abc"})
	s.Require().NoError(err)

	s.Require().NoError(s.store.CompareAndSwapState(s.ctx, "t1", models.StateInvitation, next))
	stored, err := s.store.FindByExchangeID(s.ctx, "t1")
	s.Require().NoError(err)
	s.Equal(models.StateRequestReceived, stored.State)
	s.Equal(domain.DID("did:peer:abc"), stored.TheirDID)
	s.JSONEq(`{"id":"t1"}`, string(stored.InvitationPayload))

	s.Run("stale from state conflicts", func() {
		err := s.store.CompareAndSwapState(s.ctx, "t1", models.StateInvitation, next)
		s.ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("unknown exchange", func() {
		err := s.store.CompareAndSwapState(s.ctx, "nope", models.StateInvitation, next)
		s.ErrorIs(err, sentinel.ErrNotFound)
	})
}

// TestConcurrentCompareAndSwap verifies only one of many racing writers wins.
func (s *InMemoryStoreSuite) TestConcurrentCompareAndSwap() {
	conn := s.newConnection("race", "u1", time.Now())
	s.Require().NoError(s.store.Create(s.ctx, conn))
	next, _, err := conn.Transition(models.StateUpdate{To: models.StateRequestReceived, TheirDID: "did:peer:abc"})
	s.Require().NoError(err)

	const goroutines = 50
	var wg sync.WaitGroup
	var wins, conflicts atomic.Int32
	for range goroutines {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := s.store.CompareAndSwapState(s.ctx, "race", models.StateInvitation, next)
			switch {
			case err == nil:
				wins.Add(1)
			case errors.Is(err, sentinel.ErrConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), wins.Load())
	s.Equal(int32(goroutines-1), conflicts.Load())
}
