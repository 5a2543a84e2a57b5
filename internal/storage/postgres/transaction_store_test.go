package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stock-gateway/internal/domain"
	"stock-gateway/internal/storage"
)

func TestTransactionStore_CreateAndFindByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTransactionStore(pool)
	ctx := context.Background()

	tx := &domain.Transaction{
		ID:          "tx-001",
		PortfolioID: "pf-1",
		Symbol:      "AAPL",
		Type:        domain.TransactionTypeBuy,
		Quantity:    10,
		Price:       151.0,
		Status:      domain.TransactionStatusCompleted,
		OrderID:     "ord-1",
		Date:        time.Now().UTC().Truncate(time.Millisecond),
	}

	_, err := store.Create(ctx, tx)
	require.NoError(t, err)

	retrieved, err := store.FindByID(ctx, "tx-001")
	require.NoError(t, err)

	assert.Equal(t, tx.PortfolioID, retrieved.PortfolioID)
	assert.Equal(t, tx.Symbol, retrieved.Symbol)
	assert.Equal(t, tx.Type, retrieved.Type)
	assert.Equal(t, tx.Quantity, retrieved.Quantity)
	assert.Equal(t, tx.Price, retrieved.Price)
	assert.Equal(t, tx.Status, retrieved.Status)
	assert.Equal(t, tx.OrderID, retrieved.OrderID)
	assert.WithinDuration(t, tx.Date, retrieved.Date, time.Second)
}

func TestTransactionStore_FailedAttemptStored(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTransactionStore(pool)
	ctx := context.Background()

	tx := &domain.Transaction{
		ID:          "tx-failed",
		PortfolioID: "pf-1",
		Symbol:      "AAPL",
		Type:        domain.TransactionTypeBuy,
		Quantity:    10,
		Price:       160.0,
		Status:      domain.TransactionStatusFailed,
		Reason:      "requested price 160.00 for AAPL outside valid band $147.00–$153.00",
		Date:        time.Now().UTC(),
	}

	_, err := store.Create(ctx, tx)
	require.NoError(t, err)

	retrieved, err := store.FindByID(ctx, "tx-failed")
	require.NoError(t, err)
	assert.Equal(t, domain.TransactionStatusFailed, retrieved.Status)
	assert.Equal(t, tx.Reason, retrieved.Reason)
	assert.Empty(t, retrieved.OrderID)
}

func TestTransactionStore_CreateDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTransactionStore(pool)
	ctx := context.Background()

	tx := &domain.Transaction{ID: "tx-dup", PortfolioID: "pf", Symbol: "A", Type: "BUY", Date: time.Now()}

	_, err := store.Create(ctx, tx)
	require.NoError(t, err)

	_, err = store.Create(ctx, tx)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
}

func TestTransactionStore_FindByIDNotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTransactionStore(pool)

	_, err := store.FindByID(context.Background(), "nonexistent")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTransactionStore_FindByPortfolioIDOrdered(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTransactionStore(pool)
	ctx := context.Background()

	base := time.Now().UTC()
	// Insert out of chronological order
	txs := []*domain.Transaction{
		{ID: "tx-2", PortfolioID: "pf-1", Symbol: "B", Type: "BUY", Date: base.Add(2 * time.Minute)},
		{ID: "tx-0", PortfolioID: "pf-1", Symbol: "A", Type: "BUY", Date: base},
		{ID: "tx-1", PortfolioID: "pf-1", Symbol: "C", Type: "BUY", Date: base.Add(time.Minute)},
		{ID: "tx-other", PortfolioID: "pf-2", Symbol: "D", Type: "BUY", Date: base},
	}
	for _, tx := range txs {
		_, err := store.Create(ctx, tx)
		require.NoError(t, err)
	}

	result, err := store.FindByPortfolioID(ctx, "pf-1")
	require.NoError(t, err)
	require.Len(t, result, 3)

	assert.Equal(t, "tx-0", result[0].ID)
	assert.Equal(t, "tx-1", result[1].ID)
	assert.Equal(t, "tx-2", result[2].ID)
}
