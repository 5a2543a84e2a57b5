package storage

import (
	"context"

	"stock-gateway/internal/domain"
)

// PortfolioStore provides access to portfolio storage.
type PortfolioStore interface {
	// Create adds a new portfolio. Returns ErrDuplicateKey if the ID exists.
	Create(ctx context.Context, p *domain.Portfolio) (*domain.Portfolio, error)

	// FindByID retrieves a portfolio by its ID. Returns ErrNotFound if not exists.
	FindByID(ctx context.Context, id string) (*domain.Portfolio, error)

	// FindByUserID retrieves all portfolios owned by a user.
	FindByUserID(ctx context.Context, userID string) ([]*domain.Portfolio, error)
}

// TransactionStore provides access to transaction storage. Transactions
// are append-only audit records; failed attempts are stored too.
type TransactionStore interface {
	// Create adds a new transaction. Returns ErrDuplicateKey if the ID exists.
	Create(ctx context.Context, t *domain.Transaction) (*domain.Transaction, error)

	// FindByID retrieves a transaction by its ID. Returns ErrNotFound if not exists.
	FindByID(ctx context.Context, id string) (*domain.Transaction, error)

	// FindByPortfolioID retrieves all transactions for a portfolio,
	// ordered by date ASC.
	FindByPortfolioID(ctx context.Context, portfolioID string) ([]*domain.Transaction, error)
}

// QuoteObservationStore provides access to quote observation history
// appended by full catalog walks.
type QuoteObservationStore interface {
	// InsertBulk adds multiple observations.
	InsertBulk(ctx context.Context, obs []*domain.QuoteObservation) error

	// GetLatestBySymbol retrieves the most recent observation of symbol.
	// Returns ErrNotFound if the symbol was never observed.
	GetLatestBySymbol(ctx context.Context, symbol string) (*domain.QuoteObservation, error)

	// CountByRun returns the number of observations recorded by one
	// rebuild run.
	CountByRun(ctx context.Context, runID string) (uint64, error)
}
