package store

import (
	"context"
	"sync"

	"civicid/internal/did/models"
	"civicid/pkg/domain"
	"civicid/pkg/platform/sentinel"
)

// InMemory is the user to PRISM DID directory for tests and single-node runs.
type InMemory struct {
	mu     sync.RWMutex
	byUser map[domain.UserID]models.UserDID
	dids   map[domain.DID]struct{}
}

func NewInMemory() *InMemory {
	return &InMemory{
		byUser: make(map[domain.UserID]models.UserDID),
		dids:   make(map[domain.DID]struct{}),
	}
}

// Create stores rec. Either key already taken is sentinel.ErrAlreadyUsed.
func (s *InMemory) Create(_ context.Context, rec *models.UserDID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byUser[rec.UserID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	if _, ok := s.dids[rec.DID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.byUser[rec.UserID] = *rec
	s.dids[rec.DID] = struct{}{}
	return nil
}

func (s *InMemory) FindByUser(_ context.Context, userID domain.UserID) (*models.UserDID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.byUser[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return &rec, nil
}
