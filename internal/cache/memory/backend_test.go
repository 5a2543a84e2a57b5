package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"stock-gateway/internal/cache"
)

func TestBackend_SetGetRoundtrip(t *testing.T) {
	b := NewBackend()
	ctx := context.Background()

	if err := b.Set(ctx, "k1", []byte("v1"), time.Minute); err != nil {
		t.Fatalf("Set: %v", err)
	}

	got, err := b.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "v1" {
		t.Errorf("expected v1, got %q", got)
	}
}

func TestBackend_MissOnAbsentKey(t *testing.T) {
	b := NewBackend()

	_, err := b.Get(context.Background(), "nope")
	if !errors.Is(err, cache.ErrMiss) {
		t.Fatalf("expected ErrMiss, got %v", err)
	}
}

func TestBackend_Expiry(t *testing.T) {
	b := NewBackend()
	ctx := context.Background()

	if err := b.Set(ctx, "k1", []byte("v1"), 10*time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(20 * time.Millisecond)

	_, err := b.Get(ctx, "k1")
	if !errors.Is(err, cache.ErrMiss) {
		t.Fatalf("expected ErrMiss after expiry, got %v", err)
	}

	// Expired entry is purged on read
	if b.Len() != 0 {
		t.Errorf("expected lazy purge, %d entries left", b.Len())
	}
}

func TestBackend_Overwrite(t *testing.T) {
	b := NewBackend()
	ctx := context.Background()

	b.Set(ctx, "k1", []byte("old"), time.Minute)
	b.Set(ctx, "k1", []byte("new"), time.Minute)

	got, err := b.Get(ctx, "k1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got) != "new" {
		t.Errorf("expected new, got %q", got)
	}
}

func TestBackend_Delete(t *testing.T) {
	b := NewBackend()
	ctx := context.Background()

	b.Set(ctx, "k1", []byte("v1"), time.Minute)
	if err := b.Delete(ctx, "k1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := b.Get(ctx, "k1"); !errors.Is(err, cache.ErrMiss) {
		t.Fatalf("expected ErrMiss after delete, got %v", err)
	}

	// Deleting an absent key is not an error
	if err := b.Delete(ctx, "absent"); err != nil {
		t.Fatalf("Delete absent: %v", err)
	}
}

func TestBackend_GetReturnsCopy(t *testing.T) {
	b := NewBackend()
	ctx := context.Background()

	b.Set(ctx, "k1", []byte("v1"), time.Minute)
	got, _ := b.Get(ctx, "k1")
	got[0] = 'X'

	again, _ := b.Get(ctx, "k1")
	if string(again) != "v1" {
		t.Errorf("stored value mutated through returned slice: %q", again)
	}
}
