package domain

import (
	"time"

	"github.com/google/uuid"
)

// Transaction types.
const (
	TransactionTypeBuy  = "BUY"
	TransactionTypeSell = "SELL"
)

// Transaction statuses.
const (
	TransactionStatusPending   = "PENDING"
	TransactionStatusCompleted = "COMPLETED"
	TransactionStatusFailed    = "FAILED"
)

// Transaction is the audit record of one purchase or sale attempt.
// A row is written for failed attempts too, with Reason set, so every
// attempt stays auditable.
type Transaction struct {
	ID          string    `json:"id"`
	PortfolioID string    `json:"portfolio_id"`
	Symbol      string    `json:"symbol"`
	Type        string    `json:"type"`               // BUY | SELL
	Quantity    int       `json:"quantity"`
	Price       float64   `json:"price"`              // requested price
	Status      string    `json:"status"`             // PENDING | COMPLETED | FAILED
	Reason      string    `json:"reason,omitempty"`
	OrderID     string    `json:"order_id,omitempty"` // vendor order reference
	Date        time.Time `json:"date"`
}

// NewTransaction creates a transaction record with a generated ID and
// the current timestamp.
func NewTransaction(portfolioID, symbol, txType string, quantity int, price float64) *Transaction {
	return &Transaction{
		ID:          uuid.NewString(),
		PortfolioID: portfolioID,
		Symbol:      symbol,
		Type:        txType,
		Quantity:    quantity,
		Price:       price,
		Status:      TransactionStatusPending,
		Date:        time.Now().UTC(),
	}
}
