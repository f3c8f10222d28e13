package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"civicid/internal/linking/models"
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

func link(userID domain.UserID, did domain.DID) *models.UserDIDLink {
	return models.NewUserDIDLink(userID, did, domain.NewConnectionID(), time.Now())
}

func (s *InMemoryStoreSuite) TestUniqueness() {
	s.Require().NoError(s.store.Create(s.ctx, link("u1", "did:peer:a")))

	s.Run("same user, other DID", func() {
		err := s.store.Create(s.ctx, link("u1", "did:peer:b"))
		s.ErrorIs(err, ErrUserAlreadyLinked)
		s.ErrorIs(err, sentinel.ErrAlreadyUsed)
	})

	s.Run("same DID, other user", func() {
		err := s.store.Create(s.ctx, link("u2", "did:peer:a"))
		s.ErrorIs(err, ErrDIDAlreadyLinked)
	})

	s.Run("lookups", func() {
		byUser, err := s.store.FindByUser(s.ctx, "u1")
		s.Require().NoError(err)
		s.Equal(domain.DID("did:peer:a"), byUser.DID)

		byDID, err := s.store.FindByDID(s.ctx, "did:peer:a")
		s.Require().NoError(err)
		s.Equal(domain.UserID("u1"), byDID.UserID)
	})
}

func (s *InMemoryStoreSuite) TestDeleteByUser() {
	s.Require().NoError(s.store.Create(s.ctx, link("u1", "did:peer:a")))

	removed, err := s.store.DeleteByUser(s.ctx, "u1")
	s.Require().NoError(err)
	s.Equal(domain.DID("did:peer:a"), removed.DID)

	_, err = s.store.FindByDID(s.ctx, "did:peer:a")
	s.ErrorIs(err, sentinel.ErrNotFound)

	_, err = s.store.DeleteByUser(s.ctx, "u1")
	s.ErrorIs(err, sentinel.ErrNotFound)

	s.NoError(s.store.Create(s.ctx, link("u2", "did:peer:a")), "DID is free again after unlink")
}

// TestConcurrentCreate verifies at most one link per DID and per user under contention.
func (s *InMemoryStoreSuite) TestConcurrentCreate() {
	const goroutines = 50
	var wg sync.WaitGroup
	var sameDIDWins, sameUserWins, conflicts atomic.Int32

	for i := range goroutines {
		wg.Add(2)
		go func() {
			defer wg.Done()
			err := s.store.Create(s.ctx, link(domain.UserID(fmt.Sprintf("user-%d", i)), "did:peer:contested"))
			if err == nil {
				sameDIDWins.Add(1)
			} else if errors.Is(err, sentinel.ErrAlreadyUsed) {
				conflicts.Add(1)
			}
		}()
		go func() {
			defer wg.Done()
			err := s.store.Create(s.ctx, link("contested-user", domain.DID(fmt.Sprintf("did:peer:x%d", i))))
			if err == nil {
				sameUserWins.Add(1)
			} else if errors.Is(err, sentinel.ErrAlreadyUsed) {
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), sameDIDWins.Load())
	s.Equal(int32(1), sameUserWins.Load())
	s.Equal(int32(2*goroutines-2), conflicts.Load())
}
