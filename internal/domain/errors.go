package domain

import "errors"

// Not-found conditions. These describe absent entities, not upstream
// failures, and are never retried.
var (
	// ErrPortfolioNotFound is returned when the referenced portfolio does not exist.
	ErrPortfolioNotFound = errors.New("portfolio not found")

	// ErrSymbolNotFound is returned when the symbol is absent from the vendor catalog.
	ErrSymbolNotFound = errors.New("symbol not found")
)
