// Package main runs one full catalog walk that refreshes the token index
// and appends quote observations, then exits. Intended for cron or manual
// runs; the server schedules the same job internally.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"stock-gateway/internal/cache"
	cachememory "stock-gateway/internal/cache/memory"
	cacheredis "stock-gateway/internal/cache/redis"
	"stock-gateway/internal/rebuild"
	"stock-gateway/internal/storage"
	chstore "stock-gateway/internal/storage/clickhouse"
	"stock-gateway/internal/storage/memory"
	"stock-gateway/internal/storage/migrations"
	"stock-gateway/internal/tokenindex"
	"stock-gateway/internal/vendorapi"
)

func main() {
	_ = godotenv.Load()

	vendorEndpoint := flag.String("vendor-endpoint", os.Getenv("VENDOR_ENDPOINT"), "Vendor catalog/trade API base URL")
	vendorAPIKey := flag.String("vendor-api-key", os.Getenv("VENDOR_API_KEY"), "Vendor API key")
	redisAddr := flag.String("redis-addr", os.Getenv("REDIS_ADDR"), "Redis address for the token index")
	clickhouseDSN := flag.String("clickhouse-dsn", os.Getenv("CLICKHOUSE_DSN"), "ClickHouse connection string (optional, quote observation history)")
	useMemory := flag.Bool("use-memory", false, "Use in-memory backends (dry run)")
	maxPages := flag.Int("max-pages", rebuild.DefaultMaxPages, "Walk page cap")
	timeout := flag.Duration("timeout", 30*time.Minute, "Overall run timeout")

	flag.Parse()

	logger := log.New(os.Stdout, "[rebuild] ", log.LstdFlags|log.Lshortfile)

	if *vendorEndpoint == "" {
		logger.Fatal("--vendor-endpoint is required")
	}
	if !*useMemory && *redisAddr == "" {
		logger.Fatal("--redis-addr is required (use --use-memory for a dry run)")
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// First signal cancels the walk; the deferred cancel handles cleanup.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Printf("Received signal %v, canceling run...", sig)
		cancel()
	}()

	var backend cache.Backend
	if *useMemory {
		backend = cachememory.NewBackend()
	} else {
		redisBackend, err := cacheredis.Connect(ctx, *redisAddr, os.Getenv("REDIS_PASSWORD"), 0)
		if err != nil {
			logger.Fatalf("Failed to connect to redis: %v", err)
		}
		defer redisBackend.Close()
		backend = redisBackend
	}

	var observations storage.QuoteObservationStore
	switch {
	case *useMemory:
		observations = memory.NewQuoteObservationStore()
	case *clickhouseDSN != "":
		conn, err := migrations.RunClickhouseMigrations(ctx, *clickhouseDSN)
		if err != nil {
			logger.Fatalf("Failed to connect to clickhouse: %v", err)
		}
		defer conn.Close()
		observations = chstore.NewQuoteObservationStore(conn)
	}

	client := vendorapi.NewClient(*vendorEndpoint, *vendorAPIKey,
		vendorapi.WithLogger(log.New(os.Stdout, "[vendor] ", log.LstdFlags)),
	)
	index := tokenindex.New(backend, tokenindex.DefaultTTL,
		log.New(os.Stdout, "[tokenindex] ", log.LstdFlags))

	rebuilder := rebuild.New(rebuild.Options{
		Gateway:      client,
		Index:        index,
		Observations: observations,
		MaxPages:     *maxPages,
		Logger:       logger,
	})

	result, err := rebuilder.Run(ctx)
	if err != nil {
		logger.Fatalf("Rebuild failed: %v", err)
	}

	logger.Printf("Done: run=%s pages=%d symbols=%d errors=%d duration=%v",
		result.RunID, result.Pages, result.Symbols, result.Errors, result.Duration)
}
