package memory

import (
	"context"
	"sync"

	"stock-gateway/internal/domain"
	"stock-gateway/internal/storage"
)

// QuoteObservationStore is an in-memory implementation of
// storage.QuoteObservationStore.
type QuoteObservationStore struct {
	mu   sync.RWMutex
	data []*domain.QuoteObservation // append-only, insertion order
}

// NewQuoteObservationStore creates a new in-memory observation store.
func NewQuoteObservationStore() *QuoteObservationStore {
	return &QuoteObservationStore{}
}

// InsertBulk adds multiple observations.
func (s *QuoteObservationStore) InsertBulk(_ context.Context, obs []*domain.QuoteObservation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, o := range obs {
		if o == nil {
			return storage.ErrInvalidInput
		}
		observationCopy := *o
		s.data = append(s.data, &observationCopy)
	}
	return nil
}

// GetLatestBySymbol retrieves the most recent observation of symbol.
// Returns ErrNotFound if the symbol was never observed.
func (s *QuoteObservationStore) GetLatestBySymbol(_ context.Context, symbol string) (*domain.QuoteObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var latest *domain.QuoteObservation
	for _, o := range s.data {
		if o.Symbol != symbol {
			continue
		}
		if latest == nil || o.ObservedAt.After(latest.ObservedAt) {
			latest = o
		}
	}
	if latest == nil {
		return nil, storage.ErrNotFound
	}

	// Return a copy
	observationCopy := *latest
	return &observationCopy, nil
}

// CountByRun returns the number of observations recorded by one rebuild run.
func (s *QuoteObservationStore) CountByRun(_ context.Context, runID string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count uint64
	for _, o := range s.data {
		if o.RunID == runID {
			count++
		}
	}
	return count, nil
}

// Verify interface compliance at compile time.
var _ storage.QuoteObservationStore = (*QuoteObservationStore)(nil)
