package domain

import "time"

// Quote is an immutable snapshot of a symbol's market state as reported
// by the vendor catalog. A newer Quote for the same symbol supersedes it;
// quotes are never mutated in place.
type Quote struct {
	Symbol     string    `json:"symbol"`
	Name       string    `json:"name"`
	Price      float64   `json:"price"`
	Exchange   string    `json:"exchange"`
	ObservedAt time.Time `json:"observed_at"`
}

// QuoteObservation is one catalog sighting of a symbol during a full
// catalog walk. Appended per rebuild run for later analysis.
type QuoteObservation struct {
	RunID      string // rebuild run identifier
	Symbol     string
	Name       string
	Price      float64
	Exchange   string
	Page       int    // zero-based page index within the walk
	ObservedAt time.Time
}
