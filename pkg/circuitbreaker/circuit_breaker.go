package circuitbreaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// State represents the state of a circuit breaker
type State int

const (
	StateClosed State = iota
	StateOpen
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Config tunes a circuit breaker
type Config struct {
	// MaxFailures consecutive failures open the circuit.
	MaxFailures uint32
	// ResetTimeout is how long the circuit stays open before probing.
	ResetTimeout time.Duration
	// HalfOpenProbes successful probes close the circuit again.
	HalfOpenProbes uint32
	// IsFailure decides which errors count against the circuit. Nil counts all.
	IsFailure func(error) bool
}

// CircuitBreaker guards calls to a remote dependency
type CircuitBreaker struct {
	name   string
	config Config
	now    func() time.Time

	mu        sync.Mutex
	state     State
	failures  uint32
	probes    uint32
	successes uint32
	openedAt  time.Time
	requests  uint64

	logger *logrus.Logger
}

func New(name string, config Config, logger *logrus.Logger) *CircuitBreaker {
	if config.MaxFailures == 0 {
		config.MaxFailures = 5
	}
	if config.ResetTimeout <= 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.HalfOpenProbes == 0 {
		config.HalfOpenProbes = 1
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &CircuitBreaker{name: name, config: config, now: time.Now, state: StateClosed, logger: logger}
}

// Execute runs fn unless the circuit is open.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := cb.acquire(); err != nil {
		return err
	}

	err := fn(ctx)
	if err != nil && (cb.config.IsFailure == nil || cb.config.IsFailure(err)) {
		cb.onFailure()
		return err
	}
	cb.onSuccess()
	return err
}

func (cb *CircuitBreaker) acquire() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.requests++
	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.config.ResetTimeout {
			return &CircuitBreakerError{Name: cb.name, State: StateOpen}
		}
		cb.transition(StateHalfOpen)
		cb.probes = 1
	case StateHalfOpen:
		if cb.probes >= cb.config.HalfOpenProbes {
			return &CircuitBreakerError{Name: cb.name, State: StateHalfOpen}
		}
		cb.probes++
	}
	return nil
}

func (cb *CircuitBreaker) onSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failures = 0
	case StateHalfOpen:
		cb.successes++
		if cb.successes >= cb.config.HalfOpenProbes {
			cb.transition(StateClosed)
		}
	}
}

func (cb *CircuitBreaker) onFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		cb.failures++
		if cb.failures >= cb.config.MaxFailures {
			cb.transition(StateOpen)
		}
	case StateHalfOpen:
		cb.transition(StateOpen)
	}
}

// transition must be called with mu held.
func (cb *CircuitBreaker) transition(to State) {
	from := cb.state
	cb.state = to
	cb.failures = 0
	cb.probes = 0
	cb.successes = 0
	if to == StateOpen {
		cb.openedAt = cb.now()
	}

	entry := cb.logger.WithFields(logrus.Fields{
		"circuit_breaker": cb.name,
		"from":            from.String(),
		"to":              to.String(),
	})
	if to == StateOpen {
		entry.Warn("Circuit breaker opened")
		return
	}
	entry.Info("Circuit breaker state changed")
}

// GetState returns the current state without changing it
func (cb *CircuitBreaker) GetState() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Stats is a snapshot for health reporting
type Stats struct {
	Name     string `json:"name"`
	State    string `json:"state"`
	Failures uint32 `json:"failures"`
	Requests uint64 `json:"requests"`
}

func (cb *CircuitBreaker) GetStats() Stats {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return Stats{Name: cb.name, State: cb.state.String(), Failures: cb.failures, Requests: cb.requests}
}

// CircuitBreakerError is returned while the circuit rejects calls
type CircuitBreakerError struct {
	Name  string
	State State
}

func (e *CircuitBreakerError) Error() string {
	return fmt.Sprintf("circuit breaker '%s' is %s", e.Name, e.State)
}

// IsCircuitBreakerError checks if an error is a circuit breaker error
func IsCircuitBreakerError(err error) bool {
	_, ok := err.(*CircuitBreakerError)
	return ok
}
