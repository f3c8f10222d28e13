//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"civicid/internal/did/models"
	"civicid/internal/did/store"
	"civicid/pkg/platform/sentinel"
	"civicid/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *store.PostgresStore
	ctx      context.Context
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.postgres.DB)
	s.ctx = context.Background()
}

func (s *PostgresStoreSuite) SetupTest() {
	s.Require().NoError(s.postgres.TruncateTables(s.ctx, "user_prism_dids"))
}

func (s *PostgresStoreSuite) TestCreateAndFind() {
	rec := &models.UserDID{UserID: "u1", DID: "did:prism:a", Fallback: true, CreatedAt: time.Now().UTC().Truncate(time.Microsecond)}
	s.Require().NoError(s.store.Create(s.ctx, rec))

	found, err := s.store.FindByUser(s.ctx, "u1")
	s.Require().NoError(err)
	s.Equal(rec.DID, found.DID)
	s.True(found.Fallback)
	s.True(rec.CreatedAt.Equal(found.CreatedAt))

	s.ErrorIs(s.store.Create(s.ctx, &models.UserDID{UserID: "u1", DID: "did:prism:b", CreatedAt: time.Now()}), sentinel.ErrAlreadyUsed)
	s.ErrorIs(s.store.Create(s.ctx, &models.UserDID{UserID: "u2", DID: "did:prism:a", CreatedAt: time.Now()}), sentinel.ErrAlreadyUsed)

	_, err = s.store.FindByUser(s.ctx, "nobody")
	s.ErrorIs(err, sentinel.ErrNotFound)
}
