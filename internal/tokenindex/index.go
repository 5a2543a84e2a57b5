// Package tokenindex maps catalog symbols to the pagination token of the
// page where each symbol was last found, so a lookup can resume fetching
// there instead of re-scanning the catalog from the start. The index is
// an optimization, never a correctness requirement: the catalog is always
// re-derivable by scanning from page one.
package tokenindex

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"stock-gateway/internal/cache"
)

// DefaultTTL is how long a stored token survives without being refreshed
// by a scan. A stale token costs at most one wasted page fetch.
const DefaultTTL = 7 * 24 * time.Hour

const keyPrefix = "tokenindex:"

// Entry is one stored symbol-to-token mapping.
type Entry struct {
	Symbol      string    `json:"symbol"`
	Token       string    `json:"token"`
	LastUpdated time.Time `json:"last_updated"`
}

// Index is the persistent symbol-to-token map.
type Index struct {
	backend cache.Backend
	ttl     time.Duration
	logger  *log.Logger
}

// New creates an index over backend. A non-positive ttl applies DefaultTTL.
func New(backend cache.Backend, ttl time.Duration, logger *log.Logger) *Index {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = log.New(os.Stdout, "[tokenindex] ", log.LstdFlags)
	}
	return &Index{backend: backend, ttl: ttl, logger: logger}
}

// GetToken returns the stored pagination token for symbol. A read error
// is treated identically to "no token known": the caller falls back to a
// full scan.
func (i *Index) GetToken(ctx context.Context, symbol string) (string, bool) {
	data, err := i.backend.Get(ctx, keyPrefix+symbol)
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			i.logger.Printf("get token for %s: %v (treated as unknown)", symbol, err)
		}
		return "", false
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		i.logger.Printf("decode token entry for %s: %v (treated as unknown)", symbol, err)
		return "", false
	}

	return e.Token, true
}

// SaveToken upserts the token for symbol and stamps LastUpdated. The
// token is stored verbatim; its contents are never parsed.
func (i *Index) SaveToken(ctx context.Context, symbol, token string) error {
	if symbol == "" {
		return fmt.Errorf("save token: symbol must not be empty")
	}

	e := Entry{
		Symbol:      symbol,
		Token:       token,
		LastUpdated: time.Now().UTC(),
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode token entry for %s: %w", symbol, err)
	}

	if err := i.backend.Set(ctx, keyPrefix+symbol, data, i.ttl); err != nil {
		return fmt.Errorf("save token for %s: %w", symbol, err)
	}
	return nil
}
