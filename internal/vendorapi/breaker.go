package vendorapi

import (
	"sync"
	"time"
)

// Default circuit breaker configuration.
const (
	DefaultBreakerThreshold = 5
	DefaultBreakerCooldown  = 30 * time.Second
)

// CircuitBreaker accounts vendor failures and fails calls fast while the
// upstream is considered down. State is process-local and never persisted;
// it resets on a successful call or after the cooldown window elapses.
type CircuitBreaker struct {
	threshold int
	cooldown  time.Duration

	mu            sync.Mutex
	failureCount  int
	lastFailure   time.Time
	open          bool
	trialInFlight bool
}

// NewCircuitBreaker creates a breaker that opens after threshold
// consecutive retryable failures and half-opens after cooldown.
func NewCircuitBreaker(threshold int, cooldown time.Duration) *CircuitBreaker {
	if threshold <= 0 {
		threshold = DefaultBreakerThreshold
	}
	if cooldown <= 0 {
		cooldown = DefaultBreakerCooldown
	}
	return &CircuitBreaker{threshold: threshold, cooldown: cooldown}
}

// Allow reports whether a call may proceed. While open and within the
// cooldown it returns ErrCircuitOpen. Once the cooldown has elapsed a
// single trial call is let through (half-open); further calls keep
// failing fast until the trial resolves.
func (b *CircuitBreaker) Allow() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.open {
		return nil
	}
	if time.Since(b.lastFailure) < b.cooldown {
		return ErrCircuitOpen
	}
	if b.trialInFlight {
		return ErrCircuitOpen
	}
	b.trialInFlight = true
	return nil
}

// ReleaseTrial returns the half-open trial slot without recording an
// outcome, so a later call can run the trial instead. No-op when no
// trial is in flight.
func (b *CircuitBreaker) ReleaseTrial() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.trialInFlight = false
}

// OnSuccess resets all failure accounting and closes the circuit.
func (b *CircuitBreaker) OnSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount = 0
	b.open = false
	b.trialInFlight = false
}

// OnFailure records a retryable failure; reaching the threshold opens
// the circuit.
func (b *CircuitBreaker) OnFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failureCount++
	b.lastFailure = time.Now()
	b.trialInFlight = false
	if b.failureCount >= b.threshold {
		b.open = true
	}
}

// IsOpen reports the current breaker state.
func (b *CircuitBreaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.open
}
