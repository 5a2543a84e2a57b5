package memory

import (
	"context"
	"sort"
	"sync"

	"stock-gateway/internal/domain"
	"stock-gateway/internal/storage"
)

// TransactionStore is an in-memory implementation of storage.TransactionStore.
type TransactionStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Transaction // keyed by transaction id
}

// NewTransactionStore creates a new in-memory transaction store.
func NewTransactionStore() *TransactionStore {
	return &TransactionStore{
		data: make(map[string]*domain.Transaction),
	}
}

// Create adds a new transaction. Returns ErrDuplicateKey if the ID exists.
func (s *TransactionStore) Create(_ context.Context, t *domain.Transaction) (*domain.Transaction, error) {
	if t == nil || t.ID == "" {
		return nil, storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.ID]; exists {
		return nil, storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	transactionCopy := *t
	s.data[t.ID] = &transactionCopy
	return t, nil
}

// FindByID retrieves a transaction by its ID. Returns ErrNotFound if not exists.
func (s *TransactionStore) FindByID(_ context.Context, id string) (*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, exists := s.data[id]
	if !exists {
		return nil, storage.ErrNotFound
	}

	// Return a copy
	transactionCopy := *t
	return &transactionCopy, nil
}

// FindByPortfolioID retrieves all transactions for a portfolio, ordered
// by date ASC.
func (s *TransactionStore) FindByPortfolioID(_ context.Context, portfolioID string) ([]*domain.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Transaction
	for _, t := range s.data {
		if t.PortfolioID == portfolioID {
			transactionCopy := *t
			result = append(result, &transactionCopy)
		}
	}

	// Sort by date ASC
	sort.Slice(result, func(i, j int) bool {
		if result[i].Date.Equal(result[j].Date) {
			return result[i].ID < result[j].ID
		}
		return result[i].Date.Before(result[j].Date)
	})

	return result, nil
}

// Verify interface compliance at compile time.
var _ storage.TransactionStore = (*TransactionStore)(nil)
