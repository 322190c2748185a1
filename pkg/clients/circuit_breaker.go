package clients

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/quarrylabs/harvester/pkg/errors"
	"go.uber.org/zap"
)

// CircuitState represents the state of a circuit breaker
type CircuitState int32

const (
	// StateClosed allows all requests to pass through
	StateClosed CircuitState = iota
	// StateOpen blocks all requests
	StateOpen
	// StateHalfOpen allows a limited number of probe requests
	StateHalfOpen
)

func (s CircuitState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	}
	return "unknown"
}

// CircuitBreakerConfig configures failure thresholds and recovery timing.
type CircuitBreakerConfig struct {
	FailureThreshold int           // Consecutive failures before opening
	SuccessThreshold int           // Consecutive successes before closing
	Timeout          time.Duration // Open duration before probing
}

// CircuitBreaker implements the circuit breaker pattern for collector
// adapters, preventing a blocked or broken backend from being hammered.
type CircuitBreaker struct {
	config CircuitBreakerConfig
	logger *zap.Logger

	state         int32
	nextRetryTime time.Time

	consecutiveFailures  int32
	consecutiveSuccesses int32
	halfOpenLimit        int32
	halfOpenCounter      int32

	mu sync.Mutex
}

// NewCircuitBreaker creates a circuit breaker in the closed state.
func NewCircuitBreaker(config CircuitBreakerConfig, logger *zap.Logger) *CircuitBreaker {
	if config.FailureThreshold <= 0 {
		config.FailureThreshold = 5
	}
	if config.SuccessThreshold <= 0 {
		config.SuccessThreshold = 3
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	return &CircuitBreaker{
		config:        config,
		logger:        logger.With(zap.String("component", "circuit_breaker")),
		state:         int32(StateClosed),
		halfOpenLimit: 5,
	}
}

// Execute runs fn with circuit breaker protection. If the circuit is open
// it returns a rate_limit error without calling fn.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.Allow() {
		return errors.New(errors.ErrorTypeRateLimit, "circuit breaker is open")
	}

	err := fn()
	if err != nil {
		cb.RecordFailure()
		return err
	}

	cb.RecordSuccess()
	return nil
}

// Allow determines if a request may proceed in the current state.
func (cb *CircuitBreaker) Allow() bool {
	switch CircuitState(atomic.LoadInt32(&cb.state)) {
	case StateClosed:
		return true

	case StateOpen:
		cb.mu.Lock()
		defer cb.mu.Unlock()
		if time.Now().After(cb.nextRetryTime) {
			cb.transitionTo(StateHalfOpen)
			atomic.StoreInt32(&cb.halfOpenCounter, 1)
			return true
		}
		return false

	case StateHalfOpen:
		return atomic.AddInt32(&cb.halfOpenCounter, 1) <= cb.halfOpenLimit

	default:
		return false
	}
}

// RecordSuccess records a successful call, closing the circuit once the
// success threshold is reached in the half-open state.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveFailures = 0
	cb.consecutiveSuccesses++

	if CircuitState(atomic.LoadInt32(&cb.state)) == StateHalfOpen &&
		cb.consecutiveSuccesses >= int32(cb.config.SuccessThreshold) {
		cb.transitionTo(StateClosed)
	}
}

// RecordFailure records a failed call, opening the circuit at the failure
// threshold or immediately when half-open.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.consecutiveSuccesses = 0
	cb.consecutiveFailures++

	state := CircuitState(atomic.LoadInt32(&cb.state))
	if state == StateHalfOpen || (state == StateClosed &&
		cb.consecutiveFailures >= int32(cb.config.FailureThreshold)) {
		cb.nextRetryTime = time.Now().Add(cb.config.Timeout)
		cb.transitionTo(StateOpen)
	}
}

// State returns the current circuit state.
func (cb *CircuitBreaker) State() CircuitState {
	return CircuitState(atomic.LoadInt32(&cb.state))
}

// Reset forces the circuit back to the closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.consecutiveFailures = 0
	cb.consecutiveSuccesses = 0
	cb.transitionTo(StateClosed)
}

// transitionTo must be called with cb.mu held.
func (cb *CircuitBreaker) transitionTo(state CircuitState) {
	old := CircuitState(atomic.SwapInt32(&cb.state, int32(state)))
	if old != state {
		cb.consecutiveSuccesses = 0
		cb.logger.Info("circuit state changed",
			zap.String("from", old.String()),
			zap.String("to", state.String()))
	}
}
