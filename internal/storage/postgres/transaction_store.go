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

// TransactionStore implements storage.TransactionStore using PostgreSQL.
type TransactionStore struct {
	pool *Pool
}

// NewTransactionStore creates a new TransactionStore.
func NewTransactionStore(pool *Pool) *TransactionStore {
	return &TransactionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TransactionStore = (*TransactionStore)(nil)

// Create adds a new transaction. Returns ErrDuplicateKey if the ID exists.
func (s *TransactionStore) Create(ctx context.Context, t *domain.Transaction) (*domain.Transaction, error) {
	query := `
		INSERT INTO transactions (
			id, portfolio_id, symbol, type, quantity, price, status, reason, order_id, date
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	start := time.Now()
	_, err := s.pool.Exec(ctx, query,
		t.ID,
		t.PortfolioID,
		t.Symbol,
		t.Type,
		t.Quantity,
		t.Price,
		t.Status,
		t.Reason,
		t.OrderID,
		t.Date,
	)
	observability.RecordDBQuery("postgres", "transaction_create", time.Since(start).Seconds(), err)
	if err != nil {
		if isDuplicateKeyError(err) {
			return nil, storage.ErrDuplicateKey
		}
		return nil, fmt.Errorf("insert transaction: %w", err)
	}
	return t, nil
}

// FindByID retrieves a transaction by its ID. Returns ErrNotFound if not exists.
func (s *TransactionStore) FindByID(ctx context.Context, id string) (*domain.Transaction, error) {
	query := `
		SELECT id, portfolio_id, symbol, type, quantity, price, status, reason, order_id, date
		FROM transactions
		WHERE id = $1
	`

	start := time.Now()
	row := s.pool.QueryRow(ctx, query, id)
	t, err := scanTransaction(row)
	observability.RecordDBQuery("postgres", "transaction_find_by_id", time.Since(start).Seconds(), err)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("find transaction by id: %w", err)
	}
	return t, nil
}

// FindByPortfolioID retrieves all transactions for a portfolio, ordered
// by date ASC.
func (s *TransactionStore) FindByPortfolioID(ctx context.Context, portfolioID string) ([]*domain.Transaction, error) {
	query := `
		SELECT id, portfolio_id, symbol, type, quantity, price, status, reason, order_id, date
		FROM transactions
		WHERE portfolio_id = $1
		ORDER BY date ASC, id ASC
	`

	start := time.Now()
	rows, err := s.pool.Query(ctx, query, portfolioID)
	observability.RecordDBQuery("postgres", "transaction_find_by_portfolio", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("find transactions by portfolio: %w", err)
	}
	defer rows.Close()

	return scanTransactions(rows)
}

// scanTransaction scans a single row into a Transaction.
func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	err := row.Scan(
		&t.ID,
		&t.PortfolioID,
		&t.Symbol,
		&t.Type,
		&t.Quantity,
		&t.Price,
		&t.Status,
		&t.Reason,
		&t.OrderID,
		&t.Date,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// scanTransactions scans multiple rows into a slice of Transaction.
func scanTransactions(rows pgx.Rows) ([]*domain.Transaction, error) {
	var transactions []*domain.Transaction

	for rows.Next() {
		var t domain.Transaction
		err := rows.Scan(
			&t.ID,
			&t.PortfolioID,
			&t.Symbol,
			&t.Type,
			&t.Quantity,
			&t.Price,
			&t.Status,
			&t.Reason,
			&t.OrderID,
			&t.Date,
		)
		if err != nil {
			return nil, fmt.Errorf("scan transaction row: %w", err)
		}
		transactions = append(transactions, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transaction rows: %w", err)
	}

	return transactions, nil
}
