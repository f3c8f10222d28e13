package store

import (
	"context"
	"sync"

	"civicid/internal/linking/models"
	"civicid/pkg/domain"
	"civicid/pkg/platform/sentinel"
)

// InMemory keeps links in two indexes guarded by one mutex, so both
// uniqueness checks and the insert are a single atomic step.
type InMemory struct {
	mu     sync.RWMutex
	byUser map[domain.UserID]*models.UserDIDLink
	byDID  map[domain.DID]domain.UserID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byUser: make(map[domain.UserID]*models.UserDIDLink),
		byDID:  make(map[domain.DID]domain.UserID),
	}
}

func (s *InMemory) Create(_ context.Context, link *models.UserDIDLink) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byUser[link.UserID]; ok {
		return ErrUserAlreadyLinked
	}
	if _, ok := s.byDID[link.DID]; ok {
		return ErrDIDAlreadyLinked
	}
	stored := *link
	s.byUser[link.UserID] = &stored
	s.byDID[link.DID] = link.UserID
	return nil
}

func (s *InMemory) FindByUser(_ context.Context, userID domain.UserID) (*models.UserDIDLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	link, ok := s.byUser[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *link
	return &out, nil
}

func (s *InMemory) FindByDID(_ context.Context, did domain.DID) (*models.UserDIDLink, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID, ok := s.byDID[did]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	out := *s.byUser[userID]
	return &out, nil
}

// DeleteByUser removes the user's link and returns it.
func (s *InMemory) DeleteByUser(_ context.Context, userID domain.UserID) (*models.UserDIDLink, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	link, ok := s.byUser[userID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	delete(s.byUser, userID)
	delete(s.byDID, link.DID)
	return link, nil
}
