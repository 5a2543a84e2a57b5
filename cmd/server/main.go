// Package main runs the quote gateway service:
// - HTTP API: quote lookup, purchase execution, portfolio management
// - Rebuild (scheduled): full catalog walk refreshing the token index
// - Observability: /health, /metrics, /status
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"stock-gateway/internal/cache"
	cachememory "stock-gateway/internal/cache/memory"
	cacheredis "stock-gateway/internal/cache/redis"
	"stock-gateway/internal/domain"
	"stock-gateway/internal/observability"
	"stock-gateway/internal/orchestrator"
	"stock-gateway/internal/pricing"
	"stock-gateway/internal/rebuild"
	"stock-gateway/internal/resolver"
	"stock-gateway/internal/storage"
	chstore "stock-gateway/internal/storage/clickhouse"
	"stock-gateway/internal/storage/memory"
	"stock-gateway/internal/storage/migrations"
	pgstore "stock-gateway/internal/storage/postgres"
	"stock-gateway/internal/tokenindex"
	"stock-gateway/internal/vendorapi"
)

const portfolioCacheTTL = 10 * time.Minute

// Server holds all components of the gateway service.
type Server struct {
	resolver     *resolver.Resolver
	orchestrator *orchestrator.Orchestrator
	rebuilder    *rebuild.Rebuilder
	portfolios   storage.PortfolioStore
	transactions storage.TransactionStore
	logger       *log.Logger

	mu          sync.Mutex
	startedAt   time.Time
	rebuildRuns int
}

// allStores holds all storage implementations.
type allStores struct {
	portfolioStore   storage.PortfolioStore
	transactionStore storage.TransactionStore
	observationStore storage.QuoteObservationStore
	cacheBackend     cache.Backend
}

func main() {
	// Load .env file if exists; system env vars win.
	_ = godotenv.Load()

	// Parse flags (env vars as defaults)
	vendorEndpoint := flag.String("vendor-endpoint", os.Getenv("VENDOR_ENDPOINT"), "Vendor catalog/trade API base URL")
	vendorAPIKey := flag.String("vendor-api-key", os.Getenv("VENDOR_API_KEY"), "Vendor API key")
	postgresDSN := flag.String("postgres-dsn", os.Getenv("POSTGRES_DSN"), "PostgreSQL connection string")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (optional, quote observation history)")
	redisAddr := flag.String("redis-addr", os.Getenv("REDIS_ADDR"), "Redis address for caches and token index")
	useMemory := flag.Bool("use-memory", false, "Use in-memory storage and cache backends")
	httpAddr := flag.String("http-addr", ":8080", "HTTP listen address")
	rebuildInterval := flag.Duration("rebuild-interval", 6*time.Hour, "Token index rebuild interval")
	memoTTL := flag.Duration("memo-ttl", resolver.DefaultMemoTTL, "Resolver memo freshness window")
	maxPages := flag.Int("max-pages", resolver.DefaultMaxPages, "Resolver full-scan page cap")

	flag.Parse()

	// Setup logger
	logger := log.New(os.Stdout, "[server] ", log.LstdFlags|log.Lshortfile)

	// Validate required flags
	if *vendorEndpoint == "" {
		logger.Fatal("--vendor-endpoint is required")
	}
	if !*useMemory && *postgresDSN == "" {
		logger.Fatal("--postgres-dsn is required (use --use-memory for in-memory storage)")
	}
	if !*useMemory && *redisAddr == "" {
		logger.Fatal("--redis-addr is required (use --use-memory for in-memory caches)")
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())

	// Create stores and cache backend
	stores, cleanup, err := createStores(ctx, *postgresDSN, *clickhouseDSN, *redisAddr, *useMemory)
	if err != nil {
		logger.Fatalf("Failed to create stores: %v", err)
	}
	defer cleanup()

	// Vendor client
	client := vendorapi.NewClient(*vendorEndpoint, *vendorAPIKey,
		vendorapi.WithLogger(log.New(os.Stdout, "[vendor] ", log.LstdFlags)),
	)

	// Token index and resolver
	index := tokenindex.New(stores.cacheBackend, tokenindex.DefaultTTL,
		log.New(os.Stdout, "[tokenindex] ", log.LstdFlags))
	res := resolver.New(client, index, resolver.Config{
		MemoTTL:  *memoTTL,
		MaxPages: *maxPages,
	}, log.New(os.Stdout, "[resolver] ", log.LstdFlags))

	// Portfolio cache and purchase orchestrator
	portfolioCache := cache.New[domain.Portfolio](stores.cacheBackend, "portfolio",
		portfolioCacheTTL, log.New(os.Stdout, "[cache] ", log.LstdFlags))
	orch := orchestrator.New(orchestrator.Options{
		Portfolios:     stores.portfolioStore,
		Transactions:   stores.transactionStore,
		Resolver:       res,
		Trader:         client,
		PortfolioCache: portfolioCache,
		Pricing:        pricing.DefaultConfig(),
		Logger:         log.New(os.Stdout, "[orchestrator] ", log.LstdFlags),
	})

	// Rebuilder
	rebuilder := rebuild.New(rebuild.Options{
		Gateway:      client,
		Index:        index,
		Observations: stores.observationStore,
		Logger:       log.New(os.Stdout, "[rebuild] ", log.LstdFlags),
	})

	server := &Server{
		resolver:     res,
		orchestrator: orch,
		rebuilder:    rebuilder,
		portfolios:   stores.portfolioStore,
		transactions: stores.transactionStore,
		logger:       logger,
		startedAt:    time.Now(),
	}

	// Channel to signal completion
	done := make(chan error, 1)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, initiating graceful shutdown...", sig)
		cancel()

		// Wait for second signal for immediate shutdown
		select {
		case sig := <-sigCh:
			logger.Printf("Received second signal %v, forcing immediate shutdown", sig)
			os.Exit(1)
		case <-time.After(30 * time.Second):
			logger.Println("Graceful shutdown timed out after 30s, forcing exit")
			os.Exit(1)
		case <-done:
			// Normal shutdown completed
		}
	}()

	// Start HTTP server
	go server.startHTTPServer(ctx, *httpAddr)

	// Run rebuild scheduler in the foreground
	err = server.runRebuildScheduler(ctx, *rebuildInterval)
	done <- err
	cancel()

	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatalf("Server error: %v", err)
	}

	logger.Println("Shutdown complete")
}

// createStores creates storage and cache backends. With useMemory set,
// everything runs in-process and nothing external is required.
func createStores(ctx context.Context, postgresDSN, clickhouseDSN, redisAddr string, useMemory bool) (*allStores, func(), error) {
	if useMemory {
		stores := &allStores{
			portfolioStore:   memory.NewPortfolioStore(),
			transactionStore: memory.NewTransactionStore(),
			observationStore: memory.NewQuoteObservationStore(),
			cacheBackend:     cachememory.NewBackend(),
		}
		return stores, func() {}, nil
	}

	// PostgreSQL
	pool, err := pgstore.NewPool(ctx, postgresDSN)
	if err != nil {
		return nil, nil, fmt.Errorf("connect to postgres: %w", err)
	}
	if err := migrations.RunPostgresMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("run postgres migrations: %w", err)
	}

	// Redis
	redisBackend, err := cacheredis.Connect(ctx, redisAddr, os.Getenv("REDIS_PASSWORD"), redisDB())
	if err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("connect to redis: %w", err)
	}

	stores := &allStores{
		portfolioStore:   pgstore.NewPortfolioStore(pool),
		transactionStore: pgstore.NewTransactionStore(pool),
		cacheBackend:     redisBackend,
	}

	// ClickHouse (optional): quote observation history
	var chConn *chstore.Conn
	if clickhouseDSN != "" {
		chConn, err = migrations.RunClickhouseMigrations(ctx, clickhouseDSN)
		if err != nil {
			redisBackend.Close()
			pool.Close()
			return nil, nil, fmt.Errorf("connect to clickhouse: %w", err)
		}
		stores.observationStore = chstore.NewQuoteObservationStore(chConn)
	}

	cleanup := func() {
		if chConn != nil {
			chConn.Close()
		}
		redisBackend.Close()
		pool.Close()
	}

	return stores, cleanup, nil
}

func redisDB() int {
	if v := os.Getenv("REDIS_DB"); v != "" {
		if db, err := strconv.Atoi(v); err == nil {
			return db
		}
	}
	return 0
}

// runRebuildScheduler runs the token index rebuild on an interval, with
// an immediate run on start.
func (s *Server) runRebuildScheduler(ctx context.Context, interval time.Duration) error {
	s.logger.Printf("Starting rebuild scheduler (interval: %v)...", interval)

	// Run immediately on start
	s.runRebuild(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.runRebuild(ctx)
		}
	}
}

// runRebuild executes one rebuild. Overlap is rejected by the rebuilder
// itself; an interval shorter than a walk just skips ticks.
func (s *Server) runRebuild(ctx context.Context) {
	result, err := s.rebuilder.Run(ctx)
	if err != nil {
		if errors.Is(err, rebuild.ErrAlreadyRunning) {
			s.logger.Println("Rebuild already running, skipping...")
			return
		}
		s.logger.Printf("Rebuild error: %v", err)
		return
	}

	s.mu.Lock()
	s.rebuildRuns++
	s.mu.Unlock()

	s.logger.Printf("Rebuild completed: %d pages, %d symbols in %v",
		result.Pages, result.Symbols, result.Duration)
}

// startHTTPServer starts the HTTP server for the API and observability
// endpoints, shutting it down when ctx is canceled.
func (s *Server) startHTTPServer(ctx context.Context, addr string) {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	mux.Handle("/metrics", observability.Handler())

	// Status endpoint
	mux.HandleFunc("/status", s.handleStatus)

	// API
	mux.HandleFunc("/quote", s.handleQuote)
	mux.HandleFunc("/purchase", s.handlePurchase)
	mux.HandleFunc("/portfolios", s.handlePortfolios)
	mux.HandleFunc("/transactions", s.handleTransactions)

	srv := &http.Server{Addr: addr, Handler: mux}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.logger.Printf("Starting HTTP server on %s", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.logger.Printf("HTTP server error: %v", err)
	}
}

// StatusResponse is the JSON response for /status endpoint.
type StatusResponse struct {
	Status         string          `json:"status"`
	Uptime         string          `json:"uptime"`
	StartedAt      time.Time       `json:"started_at"`
	RebuildRunning bool            `json:"rebuild_running"`
	RebuildRuns    int             `json:"rebuild_runs"`
	LastRebuild    *rebuild.Result `json:"last_rebuild,omitempty"`
}

// handleStatus returns server status as JSON.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	runs := s.rebuildRuns
	startedAt := s.startedAt
	s.mu.Unlock()

	resp := StatusResponse{
		Status:         "running",
		Uptime:         time.Since(startedAt).String(),
		StartedAt:      startedAt,
		RebuildRunning: s.rebuilder.Running(),
		RebuildRuns:    runs,
		LastRebuild:    s.rebuilder.LastResult(),
	}

	writeJSON(w, http.StatusOK, resp)
}

// handleQuote serves GET /quote?symbol=XYZ.
func (s *Server) handleQuote(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	symbol := r.URL.Query().Get("symbol")
	if symbol == "" {
		writeError(w, http.StatusBadRequest, "symbol query parameter is required")
		return
	}

	quote, err := s.resolver.Resolve(r.Context(), symbol)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if quote == nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("symbol %s not found", symbol))
		return
	}

	writeJSON(w, http.StatusOK, quote)
}

// purchaseRequest is the body for POST /purchase.
type purchaseRequest struct {
	PortfolioID string  `json:"portfolio_id"`
	Symbol      string  `json:"symbol"`
	Quantity    int     `json:"quantity"`
	Price       float64 `json:"price"`
}

// handlePurchase serves POST /purchase.
func (s *Server) handlePurchase(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req purchaseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	tx, err := s.orchestrator.ExecutePurchase(r.Context(), req.PortfolioID, req.Symbol, req.Quantity, req.Price)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, tx)
}

// portfolioRequest is the body for POST /portfolios.
type portfolioRequest struct {
	UserID string `json:"user_id"`
	Name   string `json:"name"`
}

// handlePortfolios serves POST /portfolios and GET /portfolios?user_id=.
func (s *Server) handlePortfolios(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		var req portfolioRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		if req.UserID == "" || req.Name == "" {
			writeError(w, http.StatusBadRequest, "user_id and name are required")
			return
		}
		p, err := s.portfolios.Create(r.Context(), domain.NewPortfolio(req.UserID, req.Name))
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, p)

	case http.MethodGet:
		userID := r.URL.Query().Get("user_id")
		if userID == "" {
			writeError(w, http.StatusBadRequest, "user_id query parameter is required")
			return
		}
		list, err := s.portfolios.FindByUserID(r.Context(), userID)
		if err != nil {
			writeDomainError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)

	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// handleTransactions serves GET /transactions?portfolio_id=.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	portfolioID := r.URL.Query().Get("portfolio_id")
	if portfolioID == "" {
		writeError(w, http.StatusBadRequest, "portfolio_id query parameter is required")
		return
	}

	list, err := s.transactions.FindByPortfolioID(r.Context(), portfolioID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

// writeDomainError maps error classes to HTTP status codes. Handlers only
// translate; classification lives in the core packages.
func writeDomainError(w http.ResponseWriter, err error) {
	var bandErr *pricing.BandError
	var apiErr *vendorapi.APIError

	switch {
	case errors.Is(err, vendorapi.ErrInvalidInput), errors.Is(err, storage.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrPortfolioNotFound), errors.Is(err, domain.ErrSymbolNotFound),
		errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.As(err, &bandErr):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, vendorapi.ErrCircuitOpen):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case errors.As(err, &apiErr):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
