package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"stock-gateway/internal/domain"
	"stock-gateway/internal/storage"
)

func TestPortfolioStore_CreateAndFindByID(t *testing.T) {
	store := NewPortfolioStore()
	ctx := context.Background()

	p := &domain.Portfolio{
		ID:        "pf-1",
		UserID:    "user-1",
		Name:      "growth",
		CreatedAt: time.Now().UTC(),
	}

	created, err := store.Create(ctx, p)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if created.ID != "pf-1" {
		t.Errorf("expected pf-1, got %s", created.ID)
	}

	retrieved, err := store.FindByID(ctx, "pf-1")
	if err != nil {
		t.Fatalf("FindByID: %v", err)
	}
	if retrieved.UserID != "user-1" || retrieved.Name != "growth" {
		t.Errorf("unexpected portfolio: %+v", retrieved)
	}
}

func TestPortfolioStore_CreateDuplicate(t *testing.T) {
	store := NewPortfolioStore()
	ctx := context.Background()

	p := &domain.Portfolio{ID: "pf-dup", UserID: "u", Name: "n", CreatedAt: time.Now()}

	if _, err := store.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := store.Create(ctx, p); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("expected ErrDuplicateKey, got %v", err)
	}
}

func TestPortfolioStore_FindByIDNotFound(t *testing.T) {
	store := NewPortfolioStore()

	_, err := store.FindByID(context.Background(), "nonexistent")
	if !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestPortfolioStore_CreateInvalid(t *testing.T) {
	store := NewPortfolioStore()
	ctx := context.Background()

	if _, err := store.Create(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for nil, got %v", err)
	}
	if _, err := store.Create(ctx, &domain.Portfolio{}); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty ID, got %v", err)
	}
}

func TestPortfolioStore_FindByUserID(t *testing.T) {
	store := NewPortfolioStore()
	ctx := context.Background()

	base := time.Now().UTC()
	for i, id := range []string{"pf-b", "pf-a", "pf-c"} {
		p := &domain.Portfolio{
			ID:        id,
			UserID:    "user-1",
			Name:      id,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}
		if _, err := store.Create(ctx, p); err != nil {
			t.Fatalf("Create %s: %v", id, err)
		}
	}
	other := &domain.Portfolio{ID: "pf-x", UserID: "user-2", Name: "x", CreatedAt: base}
	if _, err := store.Create(ctx, other); err != nil {
		t.Fatalf("Create pf-x: %v", err)
	}

	result, err := store.FindByUserID(ctx, "user-1")
	if err != nil {
		t.Fatalf("FindByUserID: %v", err)
	}
	if len(result) != 3 {
		t.Fatalf("expected 3 portfolios, got %d", len(result))
	}

	// Sorted by created_at ASC
	want := []string{"pf-b", "pf-a", "pf-c"}
	for i, p := range result {
		if p.ID != want[i] {
			t.Errorf("position %d: expected %s, got %s", i, want[i], p.ID)
		}
	}
}

func TestPortfolioStore_ReturnsCopies(t *testing.T) {
	store := NewPortfolioStore()
	ctx := context.Background()

	p := &domain.Portfolio{ID: "pf-1", UserID: "u", Name: "original", CreatedAt: time.Now()}
	if _, err := store.Create(ctx, p); err != nil {
		t.Fatalf("Create: %v", err)
	}

	got, _ := store.FindByID(ctx, "pf-1")
	got.Name = "mutated"

	again, _ := store.FindByID(ctx, "pf-1")
	if again.Name != "original" {
		t.Errorf("stored portfolio mutated through returned value: %s", again.Name)
	}
}
