package tarangerr

import (
	"sync"
	"time"
)

// State is a circuit breaker's current disposition toward new requests.
type State int

const (
	// StateClosed allows requests; failures are being counted.
	StateClosed State = iota
	// StateOpen blocks requests until the reset timeout elapses.
	StateOpen
	// StateHalfOpen lets probe requests through after the reset timeout;
	// one success closes the circuit again, one failure reopens it.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker fails fast against an endpoint that keeps refusing: the
// stream client consults one before opening a task stream, so a dead
// reasoning endpoint is reported immediately instead of hanging every
// retry on a full network timeout.
type CircuitBreaker struct {
	name         string
	maxFailures  int
	resetTimeout time.Duration

	mu          sync.RWMutex
	state       State
	failures    int
	lastFailure time.Time
}

// CircuitBreakerOption configures a CircuitBreaker.
type CircuitBreakerOption func(*CircuitBreaker)

// WithMaxFailures sets the consecutive-failure count that opens the circuit.
func WithMaxFailures(n int) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.maxFailures = n
	}
}

// WithResetTimeout sets how long the circuit stays open before probing.
func WithResetTimeout(d time.Duration) CircuitBreakerOption {
	return func(cb *CircuitBreaker) {
		cb.resetTimeout = d
	}
}

// NewCircuitBreaker creates a breaker named for the endpoint it guards.
// Default: 5 failures, 30 second reset timeout.
func NewCircuitBreaker(name string, opts ...CircuitBreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:         name,
		maxFailures:  5,
		resetTimeout: 30 * time.Second,
		state:        StateClosed,
	}
	for _, opt := range opts {
		opt(cb)
	}
	return cb
}

// Name returns the breaker's endpoint name.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// State returns the current state, accounting for an open circuit whose
// reset timeout has elapsed (reported as half-open).
func (cb *CircuitBreaker) State() State {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.currentState()
}

// currentState must be called with at least a read lock held.
func (cb *CircuitBreaker) currentState() State {
	if cb.state == StateOpen && time.Since(cb.lastFailure) > cb.resetTimeout {
		return StateHalfOpen
	}
	return cb.state
}

// Failures returns the consecutive-failure count.
func (cb *CircuitBreaker) Failures() int {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.failures
}

// Allow reports whether a request may proceed. Closed and half-open both
// allow; the caller reports the outcome via RecordSuccess/RecordFailure,
// which is what moves a half-open probe back to closed or open.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.RLock()
	defer cb.mu.RUnlock()
	return cb.currentState() != StateOpen
}

// RecordSuccess resets the failure count and closes the circuit.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures = 0
	cb.state = StateClosed
}

// RecordFailure counts a failure, opening the circuit at the threshold.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failures++
	cb.lastFailure = time.Now()
	if cb.failures >= cb.maxFailures {
		cb.state = StateOpen
	}
}

// CircuitOpen is the error a caller surfaces when a breaker refuses a
// request: the endpoint has failed repeatedly and the circuit has not
// yet timed out into a probe.
func CircuitOpen(name string) *Error {
	return New(ErrNetwork, "endpoint "+name+" is unavailable after repeated failures", nil).
		WithDetail("circuit", name).
		WithSuggestion("wait for the endpoint to recover, or check its address and credentials")
}
