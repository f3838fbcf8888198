package resilience

import (
	"context"
	"errors"
	"sync"
	"time"
)

// State is the lifecycle state of a CircuitBreaker.
type State string

const (
	// StateClosed means calls pass through normally.
	StateClosed State = "closed"

	// StateOpen means calls are rejected immediately without invoking fn.
	StateOpen State = "open"

	// StateHalfOpen means a single probe call is allowed through to test
	// whether the upstream has recovered.
	StateHalfOpen State = "half_open"
)

// ErrCircuitOpen is returned by Execute when the breaker is open.
var ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

// CircuitBreaker trips to the open state after a run of consecutive
// failures and rejects calls until resetTimeout elapses, at which point it
// allows a single half-open probe to decide whether to close or reopen.
type CircuitBreaker struct {
	mu sync.Mutex

	failureThreshold int
	resetTimeout     time.Duration

	state       State
	failures    int
	openedAt    time.Time
	halfOpenTry bool
}

// NewCircuitBreaker creates a CircuitBreaker. A zero failureThreshold
// defaults to 5; a zero resetTimeout defaults to 30s.
func NewCircuitBreaker(failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		state:            StateClosed,
	}
}

// State returns the breaker's current state, transitioning from open to
// half-open as a side effect if resetTimeout has elapsed.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.maybeHalfOpenLocked()
	return cb.state
}

func (cb *CircuitBreaker) maybeHalfOpenLocked() {
	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.resetTimeout {
		cb.state = StateHalfOpen
		cb.halfOpenTry = false
	}
}

// Execute invokes fn if the breaker allows it, and records the outcome.
// When the breaker is open, fn is not called and ErrCircuitOpen is returned.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) (any, error)) (any, error) {
	cb.mu.Lock()
	cb.maybeHalfOpenLocked()

	switch cb.state {
	case StateOpen:
		cb.mu.Unlock()
		return nil, ErrCircuitOpen
	case StateHalfOpen:
		if cb.halfOpenTry {
			cb.mu.Unlock()
			return nil, ErrCircuitOpen
		}
		cb.halfOpenTry = true
	}
	cb.mu.Unlock()

	result, err := fn(ctx)

	cb.mu.Lock()
	defer cb.mu.Unlock()
	if err != nil {
		cb.failures++
		if cb.state == StateHalfOpen || cb.failures >= cb.failureThreshold {
			cb.state = StateOpen
			cb.openedAt = time.Now()
		}
		return result, err
	}

	cb.failures = 0
	cb.state = StateClosed
	return result, nil
}

// Reset forces the breaker back to the closed state with a clean failure
// count, regardless of its current state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failures = 0
	cb.halfOpenTry = false
}
