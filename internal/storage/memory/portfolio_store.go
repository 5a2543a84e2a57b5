package memory

import (
	"context"
	"sort"
	"sync"

	"stock-gateway/internal/domain"
	"stock-gateway/internal/storage"
)

// PortfolioStore is an in-memory implementation of storage.PortfolioStore.
type PortfolioStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Portfolio // keyed by portfolio id
}

// NewPortfolioStore creates a new in-memory portfolio store.
func NewPortfolioStore() *PortfolioStore {
	return &PortfolioStore{
		data: make(map[string]*domain.Portfolio),
	}
}

// Create adds a new portfolio. Returns ErrDuplicateKey if the ID exists.
func (s *PortfolioStore) Create(_ context.Context, p *domain.Portfolio) (*domain.Portfolio, error) {
	if p == nil || p.ID == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[p.ID]; exists {
		return nil, storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	portfolioCopy := *p
	s.data[p.ID] = &portfolioCopy
	return p, nil
}

// FindByID retrieves a portfolio by its ID. Returns ErrNotFound if not exists.
func (s *PortfolioStore) FindByID(_ context.Context, id string) (*domain.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	// Return a copy
	portfolioCopy := *p
	return &portfolioCopy, nil
}

// FindByUserID retrieves all portfolios owned by a user.
func (s *PortfolioStore) FindByUserID(_ context.Context, userID string) ([]*domain.Portfolio, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Portfolio
	for _, p := range s.data {
		if p.UserID == userID {
			portfolioCopy := *p
			result = append(result, &portfolioCopy)
		}
	}

	// Sort by created_at ASC
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.PortfolioStore = (*PortfolioStore)(nil)
