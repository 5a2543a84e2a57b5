package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"stock-gateway/internal/domain"
	"stock-gateway/internal/storage"
)

func TestQuoteObservationStore_InsertBulkAndCount(t *testing.T) {
	store := NewQuoteObservationStore()
	ctx := context.Background()

	now := time.Now().UTC()
	obs := []*domain.QuoteObservation{
		{RunID: "run-1", Symbol: "AAPL", Price: 150, Page: 0, ObservedAt: now},
		{RunID: "run-1", Symbol: "MSFT", Price: 370, Page: 0, ObservedAt: now},
		{RunID: "run-2", Symbol: "AAPL", Price: 151, Page: 0, ObservedAt: now.Add(time.Hour)},
	}
	if err := store.InsertBulk(ctx, obs); err != nil {
		t.Fatalf("InsertBulk: %v", err)
	}

	count, err := store.CountByRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("CountByRun: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 observations for run-1, got %d", count)
	}
}

func TestQuoteObservationStore_GetLatestBySymbol(t *testing.T) {
	store := NewQuoteObservationStore()
	ctx := context.Background()

	now := time.Now().UTC()
	obs := []*domain.QuoteObservation{
		{RunID: "run-1", Symbol: "AAPL", Price: 150, ObservedAt: now},
		{RunID: "run-2", Symbol: "AAPL", Price: 155, ObservedAt: now.Add(time.Hour)},
		{RunID: "run-1", Symbol: "MSFT", Price: 370, ObservedAt: now},
	}
	if err := store.InsertBulk(ctx, obs); err != nil {
		t.Fatalf("InsertBulk: %v", err)
	}

	latest, err := store.GetLatestBySymbol(ctx, "AAPL")
	if err != nil {
		t.Fatalf("GetLatestBySymbol: %v", err)
	}
	if latest.Price != 155 || latest.RunID != "run-2" {
		t.Errorf("expected latest observation from run-2 at 155, got %+v", latest)
	}
}

func TestQuoteObservationStore_GetLatestNotFound(t *testing.T) {
	store := NewQuoteObservationStore()

	_, err := store.GetLatestBySymbol(context.Background(), "UNSEEN")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestQuoteObservationStore_EmptyBulk(t *testing.T) {
	store := NewQuoteObservationStore()

	if err := store.InsertBulk(context.Background(), nil); err != nil {
		t.Fatalf("InsertBulk(nil): %v", err)
	}
}
