package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"stock-gateway/internal/domain"
	"stock-gateway/internal/observability"
	"stock-gateway/internal/storage"
)

// PortfolioStore implements storage.PortfolioStore using PostgreSQL.
type PortfolioStore struct {
	pool *Pool
}

// NewPortfolioStore creates a new PortfolioStore.
func NewPortfolioStore(pool *Pool) *PortfolioStore {
	return &PortfolioStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PortfolioStore = (*PortfolioStore)(nil)

// Create adds a new portfolio. Returns ErrDuplicateKey if the ID exists.
func (s *PortfolioStore) Create(ctx context.Context, p *domain.Portfolio) (*domain.Portfolio, error) {
	query := `
		INSERT INTO portfolios (id, user_id, name, created_at)
		VALUES ($1, $2, $3, $4)
	`

	start := time.Now()
	_, err := s.pool.Exec(ctx, query, p.ID, p.UserID, p.Name, p.CreatedAt)
	observability.RecordDBQuery("postgres", "portfolio_create", time.Since(start).Seconds(), err)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, storage.ErrDuplicateKey
		}
		return nil, fmt.Errorf("insert portfolio: %w", err)
	}
	return p, nil
}

// FindByID retrieves a portfolio by its ID. Returns ErrNotFound if not exists.
func (s *PortfolioStore) FindByID(ctx context.Context, id string) (*domain.Portfolio, error) {
	query := `
		SELECT id, user_id, name, created_at
		FROM portfolios
		WHERE id = $1
	`

	start := time.Now()
	row := s.pool.QueryRow(ctx, query, id)
	p, err := scanPortfolio(row)
	observability.RecordDBQuery("postgres", "portfolio_find_by_id", time.Since(start).Seconds(), err)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("find portfolio by id: %w", err)
	}
	return p, nil
}

// FindByUserID retrieves all portfolios owned by a user.
func (s *PortfolioStore) FindByUserID(ctx context.Context, userID string) ([]*domain.Portfolio, error) {
	query := `
		SELECT id, user_id, name, created_at
		FROM portfolios
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC
	`

	start := time.Now()
	rows, err := s.pool.Query(ctx, query, userID)
	observability.RecordDBQuery("postgres", "portfolio_find_by_user", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("find portfolios by user: %w", err)
	}
	defer rows.Close()

	return scanPortfolios(rows)
}

// scanPortfolio scans a single row into a Portfolio.
func scanPortfolio(row pgx.Row) (*domain.Portfolio, error) {
	var p domain.Portfolio
	if err := row.Scan(&p.ID, &p.UserID, &p.Name, &p.CreatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// scanPortfolios scans multiple rows into a slice of Portfolio.
func scanPortfolios(rows pgx.Rows) ([]*domain.Portfolio, error) {
	var portfolios []*domain.Portfolio

	for rows.Next() {
		var p domain.Portfolio
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan portfolio row: %w", err)
		}
		portfolios = append(portfolios, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate portfolio rows: %w", err)
	}

	return portfolios, nil
}
