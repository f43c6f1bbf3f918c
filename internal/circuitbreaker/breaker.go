package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/apiconduit/conduit/internal/observability"
)

// State represents the state of a circuit breaker.
type State int

const (
	// StateClosed indicates the circuit is closed and calls pass through.
	StateClosed State = iota

	// StateOpen indicates the circuit is open and calls are rejected.
	StateOpen

	// StateHalfOpen indicates the breaker is probing upstream health.
	StateHalfOpen
)

// String returns the string representation of the state.
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

// ErrCircuitOpen is returned when the circuit breaker rejects a call
// without dialing the upstream.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Breaker is the failure-isolation state machine for one connector.
//
// CLOSED: calls pass through; FailureThreshold failures inside the
// sampling window open the circuit, any success resets the counter.
// OPEN: calls are rejected until the reset timeout elapses, then a trial
// call is admitted by moving to HALF_OPEN first.
// HALF_OPEN: up to HalfOpenMax trial calls are admitted; any failure
// reopens the circuit, SuccessThreshold consecutive successes close it.
type Breaker struct {
	name   string
	config *Config
	logger observability.Logger

	mu    sync.Mutex
	state State

	failures    int
	successes   int
	windowStart time.Time

	halfOpenCalls int

	lastFailure time.Time
	openedAt    time.Time
	nextRetry   time.Time
}

// NewBreaker creates a breaker for the named connector.
func NewBreaker(name string, config *Config, logger observability.Logger) *Breaker {
	if config == nil {
		config = DefaultConfig()
	} else {
		config = config.withDefaults()
	}
	if logger == nil {
		logger = observability.NopLogger()
	}

	return &Breaker{
		name:        name,
		config:      config,
		logger:      logger,
		state:       StateClosed,
		windowStart: time.Now(),
	}
}

// Execute runs fn under breaker protection. When the circuit is open the
// call is rejected with ErrCircuitOpen and fn is never invoked. A
// context.Canceled result is counted as neither success nor failure: the
// inbound client went away, which says nothing about upstream health.
func (b *Breaker) Execute(ctx context.Context, fn func() error) error {
	if !b.Allow() {
		return ErrCircuitOpen
	}

	err := fn()

	switch {
	case err == nil:
		b.RecordSuccess()
	case errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded):
		b.recordAbandoned()
	default:
		b.RecordFailure()
	}

	return err
}

// Allow reports whether a call may proceed, performing the OPEN to
// HALF_OPEN transition when the reset timeout has elapsed.
func (b *Breaker) Allow() bool {
	if b.config.Disabled {
		return true
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	var allowed bool
	switch b.state {
	case StateClosed:
		allowed = true

	case StateOpen:
		if !time.Now().Before(b.nextRetry) {
			b.transitionTo(StateHalfOpen)
			b.halfOpenCalls = 1
			allowed = true
		}

	case StateHalfOpen:
		if b.halfOpenCalls < b.config.HalfOpenMax {
			b.halfOpenCalls++
			allowed = true
		}
	}

	recordCall(b.name, allowed)
	return allowed
}

// RecordSuccess records a successful upstream call.
func (b *Breaker) RecordSuccess() {
	if b.config.Disabled {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	recordSuccess(b.name)

	switch b.state {
	case StateClosed:
		// A success proves the upstream healthy; forget accumulated failures.
		b.failures = 0
		b.windowStart = time.Now()

	case StateHalfOpen:
		b.successes++
		if b.successes >= b.config.SuccessThreshold {
			b.transitionTo(StateClosed)
		}
	}
}

// RecordFailure records a failed upstream call.
func (b *Breaker) RecordFailure() {
	if b.config.Disabled {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	recordFailure(b.name)
	now := time.Now()
	b.lastFailure = now

	switch b.state {
	case StateClosed:
		if now.Sub(b.windowStart) >= b.config.Window {
			b.failures = 0
			b.windowStart = now
		}
		b.failures++
		if b.failures >= b.config.FailureThreshold {
			b.open(now)
		}

	case StateHalfOpen:
		// Any half-open failure reopens immediately.
		b.open(now)
	}
}

// recordAbandoned accounts a call whose outcome is unknowable because
// the inbound client disconnected. A half-open trial slot is released so
// the next caller can probe again.
func (b *Breaker) recordAbandoned() {
	if b.config.Disabled {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.state == StateHalfOpen && b.halfOpenCalls > 0 {
		b.halfOpenCalls--
	}
}

// open moves to OPEN and schedules the next trial. Caller holds b.mu.
func (b *Breaker) open(now time.Time) {
	b.transitionTo(StateOpen)
	b.openedAt = now
	b.nextRetry = now.Add(b.config.ResetTimeout)
}

// transitionTo changes state and clears counters. Caller holds b.mu.
func (b *Breaker) transitionTo(newState State) {
	oldState := b.state
	b.state = newState
	b.failures = 0
	b.successes = 0
	b.halfOpenCalls = 0
	b.windowStart = time.Now()

	recordStateChange(b.name, oldState, newState)

	b.logger.Info("circuit breaker state changed",
		observability.String("connector", b.name),
		observability.String("from", oldState.String()),
		observability.String("to", newState.String()),
	)

	if b.config.OnStateChange != nil {
		go b.config.OnStateChange(b.name, oldState, newState)
	}
}

// State returns the current state.
func (b *Breaker) State() State {
	if b.config.Disabled {
		return StateClosed
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces the breaker to CLOSED with cleared counters. Used for
// manual admin recovery.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.failures = 0
	b.successes = 0
	b.halfOpenCalls = 0
	b.windowStart = time.Now()
	b.nextRetry = time.Time{}

	b.logger.Info("circuit breaker reset",
		observability.String("connector", b.name),
	)
}

// Name returns the connector name this breaker guards.
func (b *Breaker) Name() string {
	return b.name
}

// Stats holds a snapshot of breaker state for the admin surface.
type Stats struct {
	State       State     `json:"state"`
	Failures    int       `json:"failures"`
	Successes   int       `json:"successes"`
	LastFailure time.Time `json:"last_failure,omitempty"`
	OpenedAt    time.Time `json:"opened_at,omitempty"`
	NextRetry   time.Time `json:"next_retry,omitempty"`
	Disabled    bool      `json:"disabled"`
}

// Stats returns the current statistics of the breaker.
func (b *Breaker) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()

	return Stats{
		State:       b.state,
		Failures:    b.failures,
		Successes:   b.successes,
		LastFailure: b.lastFailure,
		OpenedAt:    b.openedAt,
		NextRetry:   b.nextRetry,
		Disabled:    b.config.Disabled,
	}
}
