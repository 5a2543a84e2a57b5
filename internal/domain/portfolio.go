package domain

import (
	"time"

	"github.com/google/uuid"
)

// Portfolio groups a user's holdings. Storage of positions and valuation
// lives behind PortfolioStore; this service only references portfolios.
type Portfolio struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// NewPortfolio creates a portfolio with a generated ID.
func NewPortfolio(userID, name string) *Portfolio {
	return &Portfolio{
		ID:        uuid.NewString(),
		UserID:    userID,
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
}
