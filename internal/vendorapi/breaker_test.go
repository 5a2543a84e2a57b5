package vendorapi

import (
	"errors"
	"testing"
	"time"
)

func TestCircuitBreaker_OpensAtThreshold(t *testing.T) {
	b := NewCircuitBreaker(3, time.Minute)

	for i := 0; i < 2; i++ {
		if err := b.Allow(); err != nil {
			t.Fatalf("Allow before threshold: %v", err)
		}
		b.OnFailure()
	}
	if b.IsOpen() {
		t.Fatal("breaker open before threshold")
	}

	b.OnFailure()
	if !b.IsOpen() {
		t.Fatal("breaker not open at threshold")
	}
}

func TestCircuitBreaker_FailFastWhileOpen(t *testing.T) {
	b := NewCircuitBreaker(1, time.Minute)
	b.OnFailure()

	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
}

func TestCircuitBreaker_HalfOpenSingleTrial(t *testing.T) {
	b := NewCircuitBreaker(1, 10*time.Millisecond)
	b.OnFailure()

	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen within cooldown, got %v", err)
	}

	time.Sleep(20 * time.Millisecond)

	// One trial call passes after the cooldown
	if err := b.Allow(); err != nil {
		t.Fatalf("expected trial call to pass, got %v", err)
	}
	// A second concurrent call keeps failing fast until the trial resolves
	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen while trial in flight, got %v", err)
	}

	b.OnSuccess()
	if b.IsOpen() {
		t.Fatal("breaker still open after successful trial")
	}
	if err := b.Allow(); err != nil {
		t.Fatalf("Allow after reset: %v", err)
	}
}

func TestCircuitBreaker_FailedTrialReopens(t *testing.T) {
	b := NewCircuitBreaker(1, 10*time.Millisecond)
	b.OnFailure()
	time.Sleep(20 * time.Millisecond)

	if err := b.Allow(); err != nil {
		t.Fatalf("expected trial call to pass, got %v", err)
	}
	b.OnFailure()

	if err := b.Allow(); !errors.Is(err, ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen after failed trial, got %v", err)
	}
}

func TestCircuitBreaker_ReleasedTrialAllowsNextCall(t *testing.T) {
	b := NewCircuitBreaker(1, 10*time.Millisecond)
	b.OnFailure()
	time.Sleep(20 * time.Millisecond)

	if err := b.Allow(); err != nil {
		t.Fatalf("expected trial call to pass, got %v", err)
	}
	// The trial never reached the upstream; give the slot back.
	b.ReleaseTrial()

	if err := b.Allow(); err != nil {
		t.Fatalf("expected released trial slot to admit the next call, got %v", err)
	}
}

func TestCircuitBreaker_SuccessResetsCount(t *testing.T) {
	b := NewCircuitBreaker(2, time.Minute)
	b.OnFailure()
	b.OnSuccess()
	b.OnFailure()

	if b.IsOpen() {
		t.Fatal("breaker open although failures were not consecutive")
	}
}
