package resilience

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrCircuitOpen is returned by Execute while the breaker is open.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// BreakerState is the current state of a CircuitBreaker.
type BreakerState int

const (
	StateClosed BreakerState = iota
	StateOpen
	StateHalfOpen
)

func (s BreakerState) String() string {
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

// BreakerConfig tunes the failure thresholds and recovery window.
type BreakerConfig struct {
	FailureThreshold int
	SuccessThreshold int
	OpenTimeout      time.Duration
}

// CircuitBreaker trips after consecutive failures and probes recovery
// through a half-open state.
type CircuitBreaker struct {
	name string
	cfg  BreakerConfig

	mu        sync.Mutex
	state     BreakerState
	failures  int
	successes int
	openedAt  time.Time

	onStateChange func(from, to BreakerState)
}

// NewCircuitBreaker builds a breaker in the closed state. Zero config
// fields take sensible defaults.
func NewCircuitBreaker(name string, cfg BreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = 2
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	return &CircuitBreaker{name: name, cfg: cfg, state: StateClosed}
}

// OnStateChange registers a callback fired on every state transition.
// It is invoked outside the breaker lock.
func (cb *CircuitBreaker) OnStateChange(fn func(from, to BreakerState)) {
	cb.mu.Lock()
	cb.onStateChange = fn
	cb.mu.Unlock()
}

// Execute runs fn if the breaker allows it, recording the outcome.
func (cb *CircuitBreaker) Execute(fn func() error) error {
	if !cb.allow() {
		return ErrCircuitOpen
	}
	err := fn()
	cb.record(err == nil)
	return err
}

// State reports the breaker state, accounting for open-timeout expiry.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == StateOpen && time.Since(cb.openedAt) >= cb.cfg.OpenTimeout {
		return StateHalfOpen
	}
	return cb.state
}

func (cb *CircuitBreaker) allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if time.Since(cb.openedAt) >= cb.cfg.OpenTimeout {
			cb.transition(StateHalfOpen)
			return true
		}
		return false
	case StateHalfOpen:
		return true
	}
	return false
}

func (cb *CircuitBreaker) record(success bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case StateClosed:
		if success {
			cb.failures = 0
			return
		}
		cb.failures++
		if cb.failures >= cb.cfg.FailureThreshold {
			cb.openedAt = time.Now()
			cb.transition(StateOpen)
		}
	case StateHalfOpen:
		if !success {
			cb.openedAt = time.Now()
			cb.transition(StateOpen)
			return
		}
		cb.successes++
		if cb.successes >= cb.cfg.SuccessThreshold {
			cb.transition(StateClosed)
		}
	}
}

// transition must be called with cb.mu held.
func (cb *CircuitBreaker) transition(to BreakerState) {
	from := cb.state
	cb.state = to
	cb.failures = 0
	cb.successes = 0
	slog.Default().Info("circuit breaker state change",
		"component", "circuit_breaker",
		"name", cb.name,
		"from", from.String(),
		"to", to.String(),
	)
	if cb.onStateChange != nil {
		fn := cb.onStateChange
		go fn(from, to)
	}
}
