// Package resolver resolves a symbol to a current quote. Lookup order,
// short-circuiting on the first hit:
//
//  1. in-process memo cache (fresh entries only)
//  2. join an in-flight resolution for the same symbol (single flight)
//  3. one page fetch at the symbol's stored pagination token
//  4. full catalog scan, bounded by MaxPages
//
// A symbol absent from the catalog resolves to (nil, nil); only transport
// and circuit failures produce errors.
package resolver

import (
	"context"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"stock-gateway/internal/domain"
	"stock-gateway/internal/observability"
	"stock-gateway/internal/vendorapi"
)

// Default configuration values.
const (
	DefaultMemoTTL    = 5 * time.Minute
	DefaultRefreshTTL = 4 * time.Minute
	DefaultMaxPages   = 50
)

// Gateway fetches catalog pages from the vendor.
type Gateway interface {
	ListCatalogPage(ctx context.Context, token string) (*vendorapi.CatalogPage, error)
}

// TokenIndex stores the pagination token a symbol was last found under.
type TokenIndex interface {
	GetToken(ctx context.Context, symbol string) (string, bool)
	SaveToken(ctx context.Context, symbol, token string) error
}

// Config holds resolver tuning. The freshness thresholds are deployment
// policy, not load-bearing constants.
type Config struct {
	// MemoTTL is how long a memoized quote is served without any fetch.
	MemoTTL time.Duration

	// RefreshTTL extends MemoTTL: a memo entry older than MemoTTL but
	// within MemoTTL+RefreshTTL may still be served when the upstream is
	// unavailable, instead of surfacing the transport error.
	RefreshTTL time.Duration

	// MaxPages caps a full catalog scan.
	MaxPages int
}

// DefaultConfig returns standard resolver tuning.
func DefaultConfig() Config {
	return Config{
		MemoTTL:    DefaultMemoTTL,
		RefreshTTL: DefaultRefreshTTL,
		MaxPages:   DefaultMaxPages,
	}
}

type memoEntry struct {
	quote    domain.Quote
	storedAt time.Time
}

// Resolver resolves symbols to quotes with memoization, in-flight
// de-duplication and token-index shortcuts.
type Resolver struct {
	gateway Gateway
	index   TokenIndex
	cfg     Config
	logger  *log.Logger

	group singleflight.Group

	mu   sync.RWMutex
	memo map[string]memoEntry
}

// New creates a Resolver.
func New(gateway Gateway, index TokenIndex, cfg Config, logger *log.Logger) *Resolver {
	if cfg.MemoTTL <= 0 {
		cfg.MemoTTL = DefaultMemoTTL
	}
	if cfg.RefreshTTL <= 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}
	if cfg.MaxPages <= 0 {
		cfg.MaxPages = DefaultMaxPages
	}
	if logger == nil {
		logger = log.New(os.Stdout, "[resolver] ", log.LstdFlags)
	}
	return &Resolver{
		gateway: gateway,
		index:   index,
		cfg:     cfg,
		logger:  logger,
		memo:    make(map[string]memoEntry),
	}
}

// Resolve returns the current quote for symbol, or (nil, nil) if the
// symbol is unknown to the vendor catalog. Concurrent calls for the same
// symbol converge on one upstream fetch sequence.
func (r *Resolver) Resolve(ctx context.Context, symbol string) (*domain.Quote, error) {
	if symbol == "" {
		return nil, fmt.Errorf("%w: symbol must not be empty", vendorapi.ErrInvalidInput)
	}

	if q, ok := r.memoGet(symbol, r.cfg.MemoTTL); ok {
		observability.RecordResolve("memo")
		return q, nil
	}

	v, err, _ := r.group.Do(symbol, func() (interface{}, error) {
		// Another goroutine may have completed a lookup while this one
		// waited on the flight slot.
		if q, ok := r.memoGet(symbol, r.cfg.MemoTTL); ok {
			observability.RecordResolve("memo")
			return q, nil
		}
		return r.lookup(ctx, symbol)
	})
	if err != nil {
		// Serve a stale-but-recent memo entry rather than failing the
		// caller while the upstream is down.
		if q, ok := r.memoGet(symbol, r.cfg.MemoTTL+r.cfg.RefreshTTL); ok {
			r.logger.Printf("lookup %s failed (%v), serving stale memo", symbol, err)
			observability.RecordResolve("stale")
			return q, nil
		}
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return v.(*domain.Quote), nil
}

// lookup performs the upstream resolution: token shortcut, then full scan.
func (r *Resolver) lookup(ctx context.Context, symbol string) (*domain.Quote, error) {
	if token, ok := r.index.GetToken(ctx, symbol); ok {
		page, err := r.gateway.ListCatalogPage(ctx, token)
		if err != nil {
			// A failed shortcut fetch falls through to the full scan;
			// a stale token costs at most this one wasted page.
			r.logger.Printf("token shortcut for %s failed: %v", symbol, err)
		} else if q := findSymbol(page.Items, symbol); q != nil {
			r.memoSet(symbol, *q)
			observability.RecordResolve("token")
			return q, nil
		}
	}

	return r.fullScan(ctx, symbol)
}

// fullScan walks the catalog from the start until the symbol is found,
// the listing ends, or MaxPages is reached. On a hit, the token that was
// passed into the call returning the page is persisted so the next
// lookup resumes there directly.
func (r *Resolver) fullScan(ctx context.Context, symbol string) (*domain.Quote, error) {
	token := ""
	for page := 0; page < r.cfg.MaxPages; page++ {
		pg, err := r.gateway.ListCatalogPage(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("scan page %d: %w", page, err)
		}

		if q := findSymbol(pg.Items, symbol); q != nil {
			if err := r.index.SaveToken(ctx, symbol, token); err != nil {
				r.logger.Printf("save token for %s: %v (ignored)", symbol, err)
			}
			r.memoSet(symbol, *q)
			observability.RecordResolve("scan")
			return q, nil
		}

		if pg.NextToken == "" {
			break
		}
		token = pg.NextToken
	}

	observability.RecordResolve("miss")
	return nil, nil
}

// memoGet returns a copy of the memoized quote if it is younger than maxAge.
func (r *Resolver) memoGet(symbol string, maxAge time.Duration) (*domain.Quote, bool) {
	r.mu.RLock()
	e, ok := r.memo[symbol]
	r.mu.RUnlock()

	if !ok || time.Since(e.storedAt) > maxAge {
		return nil, false
	}
	q := e.quote
	return &q, true
}

func (r *Resolver) memoSet(symbol string, q domain.Quote) {
	r.mu.Lock()
	r.memo[symbol] = memoEntry{quote: q, storedAt: time.Now()}
	r.mu.Unlock()
}

func findSymbol(items []domain.Quote, symbol string) *domain.Quote {
	for i := range items {
		if items[i].Symbol == symbol {
			q := items[i]
			return &q
		}
	}
	return nil
}
