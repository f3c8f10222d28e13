package store

import (
	"context"
	"slices"
	"sync"

	"civicid/internal/connection/models"
	"civicid/pkg/domain"
	"civicid/pkg/platform/sentinel"
)

// InMemory is a process-local connection store. Used when no database is
// configured and in tests.
type InMemory struct {
	mu         sync.RWMutex
	byID       map[domain.ConnectionID]*models.Connection
	byExchange map[string]domain.ConnectionID
}

func NewInMemory() *InMemory {
	return &InMemory{
		byID:       make(map[domain.ConnectionID]*models.Connection),
		byExchange: make(map[string]domain.ConnectionID),
	}
}

func (s *InMemory) Create(_ context.Context, conn *models.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[conn.ID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	if _, ok := s.byExchange[conn.ExchangeID]; ok {
		return sentinel.ErrAlreadyUsed
	}
	s.byID[conn.ID] = conn.Clone()
	s.byExchange[conn.ExchangeID] = conn.ID
	return nil
}

func (s *InMemory) FindByID(_ context.Context, id domain.ConnectionID) (*models.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conn, ok := s.byID[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return conn.Clone(), nil
}

func (s *InMemory) FindByExchangeID(_ context.Context, exchangeID string) (*models.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byExchange[exchangeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.byID[id].Clone(), nil
}

// FindLatestForUser returns the newest connection of userID, optionally
// restricted to states.
func (s *InMemory) FindLatestForUser(ctx context.Context, userID domain.UserID, states ...models.State) (*models.Connection, error) {
	conns, err := s.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, conn := range conns {
		if len(states) == 0 || slices.Contains(states, conn.State) {
			return conn, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

// ListForUser returns the user's connections, newest first.
func (s *InMemory) ListForUser(_ context.Context, userID domain.UserID) ([]*models.Connection, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.Connection
	for _, conn := range s.byID {
		if conn.UserID == userID {
			out = append(out, conn.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *models.Connection) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	return out, nil
}

// CompareAndSwapState replaces the mutable fields of the connection at
// exchangeID with next, but only while it is still in state from.
func (s *InMemory) CompareAndSwapState(_ context.Context, exchangeID string, from models.State, next *models.Connection) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byExchange[exchangeID]
	if !ok {
		return sentinel.ErrNotFound
	}
	current := s.byID[id]
	if current.State != from {
		return sentinel.ErrConflict
	}
	updated := current.Clone()
	updated.State = next.State
	updated.TheirDID = next.TheirDID
	updated.Metadata = next.Clone().Metadata
	updated.UpdatedAt = next.UpdatedAt
	s.byID[id] = updated
	return nil
}
