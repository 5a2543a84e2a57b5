// Package orchestrator executes purchases as one logically atomic unit:
// quote resolution, price-band validation, the vendor trade call, the
// transaction audit record and portfolio cache invalidation.
//
// Every attempt, successful or not, produces exactly one transaction
// record. The record is written before any error is surfaced, so a failed
// purchase is always auditable.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sync"

	"stock-gateway/internal/cache"
	"stock-gateway/internal/domain"
	"stock-gateway/internal/observability"
	"stock-gateway/internal/pricing"
	"stock-gateway/internal/storage"
	"stock-gateway/internal/vendorapi"
)

// QuoteResolver resolves a symbol to its current quote.
type QuoteResolver interface {
	Resolve(ctx context.Context, symbol string) (*domain.Quote, error)
}

// Trader executes trades against the vendor.
type Trader interface {
	ExecuteTrade(ctx context.Context, symbol string, price float64, quantity int) (*domain.TradeResult, error)
}

// Orchestrator coordinates the purchase flow.
type Orchestrator struct {
	portfolios     storage.PortfolioStore
	transactions   storage.TransactionStore
	resolver       QuoteResolver
	trader         Trader
	portfolioCache *cache.Cache[domain.Portfolio]
	pricing        pricing.Config
	logger         *log.Logger
}

// Options for creating Orchestrator.
type Options struct {
	Portfolios   storage.PortfolioStore
	Transactions storage.TransactionStore
	Resolver     QuoteResolver
	Trader       Trader

	// PortfolioCache fronts portfolio reads and is invalidated after a
	// successful purchase. Keys: "<portfolioID>" and "user:<userID>".
	PortfolioCache *cache.Cache[domain.Portfolio]

	Pricing pricing.Config
	Logger  *log.Logger
}

// New creates a new Orchestrator.
func New(opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stdout, "[orchestrator] ", log.LstdFlags)
	}
	cfg := opts.Pricing
	if cfg.ThresholdPct <= 0 {
		cfg = pricing.DefaultConfig()
	}
	return &Orchestrator{
		portfolios:     opts.Portfolios,
		transactions:   opts.Transactions,
		resolver:       opts.Resolver,
		trader:         opts.Trader,
		portfolioCache: opts.PortfolioCache,
		pricing:        cfg,
		logger:         logger,
	}
}

// GetPortfolio returns the portfolio by ID, serving from cache when
// possible. Returns (nil, nil) when the portfolio does not exist.
func (o *Orchestrator) GetPortfolio(ctx context.Context, id string) (*domain.Portfolio, error) {
	if o.portfolioCache != nil {
		if p, ok := o.portfolioCache.Get(ctx, id); ok {
			return &p, nil
		}
	}

	p, err := o.portfolios.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find portfolio %s: %w", id, err)
	}

	if o.portfolioCache != nil {
		o.portfolioCache.Set(ctx, id, *p, 0)
	}
	return p, nil
}

// ExecutePurchase runs one purchase attempt for quantity units of symbol
// at requestedPrice against the given portfolio.
//
// Terminal states: a COMPLETED transaction (returned), or a FAILED
// transaction recorded before the error is returned. Cache invalidation
// failures never revert a terminal state; they are logged only.
func (o *Orchestrator) ExecutePurchase(ctx context.Context, portfolioID, symbol string, quantity int, requestedPrice float64) (*domain.Transaction, error) {
	if portfolioID == "" || symbol == "" {
		return nil, fmt.Errorf("%w: portfolio ID and symbol must not be empty", vendorapi.ErrInvalidInput)
	}
	if quantity <= 0 || requestedPrice <= 0 {
		return nil, fmt.Errorf("%w: quantity and price must be positive", vendorapi.ErrInvalidInput)
	}

	// Portfolio fetch and quote resolution are independent I/O; issue
	// them concurrently and join.
	var (
		wg        sync.WaitGroup
		portfolio *domain.Portfolio
		pErr      error
		quote     *domain.Quote
		qErr      error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		portfolio, pErr = o.GetPortfolio(ctx, portfolioID)
	}()
	go func() {
		defer wg.Done()
		quote, qErr = o.resolver.Resolve(ctx, symbol)
	}()
	wg.Wait()

	if pErr != nil {
		return o.fail(ctx, portfolioID, symbol, quantity, requestedPrice,
			fmt.Sprintf("portfolio lookup failed: %v", pErr), pErr)
	}
	if portfolio == nil {
		return o.fail(ctx, portfolioID, symbol, quantity, requestedPrice,
			"portfolio not found", domain.ErrPortfolioNotFound)
	}
	if qErr != nil {
		return o.fail(ctx, portfolioID, symbol, quantity, requestedPrice,
			fmt.Sprintf("quote resolution failed: %v", qErr), qErr)
	}
	if quote == nil {
		return o.fail(ctx, portfolioID, symbol, quantity, requestedPrice,
			"symbol not found", domain.ErrSymbolNotFound)
	}

	if !o.pricing.IsValidPrice(quote.Price, requestedPrice) {
		bandErr := o.pricing.NewBandError(symbol, quote.Price, requestedPrice)
		return o.fail(ctx, portfolioID, symbol, quantity, requestedPrice, bandErr.Error(), bandErr)
	}

	result, err := o.trader.ExecuteTrade(ctx, symbol, requestedPrice, quantity)
	if err != nil {
		return o.fail(ctx, portfolioID, symbol, quantity, requestedPrice,
			fmt.Sprintf("trade execution failed: %v", err), err)
	}
	if result.Status != domain.TradeStatusFilled {
		tradeErr := fmt.Errorf("vendor rejected trade: status %s", result.Status)
		return o.fail(ctx, portfolioID, symbol, quantity, requestedPrice, tradeErr.Error(), tradeErr)
	}

	tx := domain.NewTransaction(portfolioID, symbol, domain.TransactionTypeBuy, quantity, requestedPrice)
	tx.Status = domain.TransactionStatusCompleted
	tx.OrderID = result.OrderID

	created, err := o.transactions.Create(ctx, tx)
	if err != nil {
		o.logger.Printf("record completed transaction for %s/%s: %v", portfolioID, symbol, err)
		return nil, fmt.Errorf("record transaction: %w", err)
	}

	o.invalidate(ctx, portfolio)
	observability.RecordPurchase(domain.TransactionStatusCompleted)
	o.logger.Printf("purchase completed: portfolio=%s symbol=%s qty=%d price=%.2f order=%s",
		portfolioID, symbol, quantity, requestedPrice, result.OrderID)

	return created, nil
}

// fail records a FAILED transaction with reason and returns cause. A
// failed audit write is logged but must not mask the original error.
func (o *Orchestrator) fail(ctx context.Context, portfolioID, symbol string, quantity int, price float64, reason string, cause error) (*domain.Transaction, error) {
	tx := domain.NewTransaction(portfolioID, symbol, domain.TransactionTypeBuy, quantity, price)
	tx.Status = domain.TransactionStatusFailed
	tx.Reason = reason

	if _, err := o.transactions.Create(ctx, tx); err != nil {
		o.logger.Printf("record failed transaction for %s/%s: %v", portfolioID, symbol, err)
	}
	observability.RecordPurchase(domain.TransactionStatusFailed)
	return nil, cause
}

// invalidate clears the portfolio's cache entry and the owner's
// aggregate-summary entry so the next read recomputes from the source of
// truth. The deletes are independent and issued concurrently.
func (o *Orchestrator) invalidate(ctx context.Context, p *domain.Portfolio) {
	if o.portfolioCache == nil {
		return
	}

	var wg sync.WaitGroup
	for _, key := range []string{p.ID, "user:" + p.UserID} {
		wg.Add(1)
		go func(k string) {
			defer wg.Done()
			o.portfolioCache.Delete(ctx, k)
		}(key)
	}
	wg.Wait()
}
