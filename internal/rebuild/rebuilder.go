// Package rebuild walks the full vendor catalog and refreshes the token
// index so resolver lookups start from a warm page position.
package rebuild

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"stock-gateway/internal/domain"
	"stock-gateway/internal/observability"
	"stock-gateway/internal/storage"
	"stock-gateway/internal/vendorapi"
)

// DefaultMaxPages bounds a rebuild walk. A full catalog is expected to be
// far smaller; the bound only guards against a vendor paginator that never
// terminates.
const DefaultMaxPages = 1000

// ErrAlreadyRunning is returned when a rebuild is requested while another
// run is still in progress.
var ErrAlreadyRunning = errors.New("rebuild already running")

// Gateway fetches catalog pages from the vendor.
type Gateway interface {
	ListCatalogPage(ctx context.Context, token string) (*vendorapi.CatalogPage, error)
}

// TokenIndex persists symbol to pagination token mappings.
type TokenIndex interface {
	SaveToken(ctx context.Context, symbol, token string) error
}

// Result summarizes one rebuild run.
type Result struct {
	RunID     string        `json:"run_id"`
	Pages     int           `json:"pages"`
	Symbols   int           `json:"symbols"`
	Errors    int           `json:"errors"`
	Duration  time.Duration `json:"duration"`
	StartedAt time.Time     `json:"started_at"`
}

// Rebuilder runs full catalog walks. At most one run is in flight at a
// time; overlapping requests fail fast with ErrAlreadyRunning.
type Rebuilder struct {
	gateway      Gateway
	index        TokenIndex
	observations storage.QuoteObservationStore
	maxPages     int
	logger       *log.Logger

	mu      sync.Mutex
	running bool
	last    *Result
}

// Options for creating Rebuilder.
type Options struct {
	Gateway Gateway
	Index   TokenIndex

	// Observations, when set, receives every quote seen during the walk.
	// Writes are best effort and never fail the run.
	Observations storage.QuoteObservationStore

	MaxPages int
	Logger   *log.Logger
}

// New creates a Rebuilder.
func New(opts Options) *Rebuilder {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[rebuild] ", log.LstdFlags)
	}
	maxPages := opts.MaxPages
	if maxPages <= 0 {
		maxPages = DefaultMaxPages
	}
	return &Rebuilder{
		gateway:      opts.Gateway,
		index:        opts.Index,
		observations: opts.Observations,
		maxPages:     maxPages,
		logger:       logger,
	}
}

// Running reports whether a rebuild is currently in flight.
func (r *Rebuilder) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// LastResult returns the most recent completed run, or nil if no run has
// finished yet.
func (r *Rebuilder) LastResult() *Result {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.last == nil {
		return nil
	}
	res := *r.last
	return &res
}

// Run walks the whole catalog, saving each symbol's page token along the
// way. Token save failures are counted and logged but do not stop the
// walk; a page fetch failure aborts the run.
func (r *Rebuilder) Run(ctx context.Context) (*Result, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil, ErrAlreadyRunning
	}
	r.running = true
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	res := &Result{
		RunID:     uuid.NewString(),
		StartedAt: time.Now(),
	}
	r.logger.Printf("rebuild %s started", res.RunID)

	token := ""
	for res.Pages < r.maxPages {
		page, err := r.gateway.ListCatalogPage(ctx, token)
		if err != nil {
			res.Duration = time.Since(res.StartedAt)
			r.finish(res, "failed")
			return nil, fmt.Errorf("rebuild %s: page %d: %w", res.RunID, res.Pages, err)
		}
		res.Pages++

		for i := range page.Items {
			if err := r.index.SaveToken(ctx, page.Items[i].Symbol, token); err != nil {
				res.Errors++
				r.logger.Printf("rebuild %s: save token for %s: %v", res.RunID, page.Items[i].Symbol, err)
				continue
			}
			res.Symbols++
		}

		r.observe(ctx, res, page.Items)

		if page.NextToken == "" {
			break
		}
		token = page.NextToken
	}

	res.Duration = time.Since(res.StartedAt)
	r.finish(res, "completed")
	r.logger.Printf("rebuild %s completed: pages=%d symbols=%d errors=%d in %s",
		res.RunID, res.Pages, res.Symbols, res.Errors, res.Duration)
	return res, nil
}

// observe appends the page's quotes to the observation history.
func (r *Rebuilder) observe(ctx context.Context, res *Result, items []domain.Quote) {
	if r.observations == nil || len(items) == 0 {
		return
	}

	obs := make([]*domain.QuoteObservation, 0, len(items))
	for i := range items {
		q := items[i]
		obs = append(obs, &domain.QuoteObservation{
			RunID:      res.RunID,
			Symbol:     q.Symbol,
			Name:       q.Name,
			Price:      q.Price,
			Exchange:   q.Exchange,
			Page:       res.Pages - 1,
			ObservedAt: q.ObservedAt,
		})
	}
	if err := r.observations.InsertBulk(ctx, obs); err != nil {
		res.Errors++
		r.logger.Printf("rebuild %s: record observations: %v", res.RunID, err)
	}
}

func (r *Rebuilder) finish(res *Result, status string) {
	r.mu.Lock()
	r.last = res
	r.mu.Unlock()
	observability.RecordRebuildRun(status, res.Duration.Seconds(), res.Pages)
}
