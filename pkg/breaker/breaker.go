// Package breaker implements a consecutive-failure circuit breaker with a
// named registry, forced transitions, and stats snapshots for ops
// tooling.
package breaker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State is the circuit breaker state.
type State int

// Circuit breaker states.
const (
	// StateClosed admits all executions.
	StateClosed State = iota

	// StateOpen rejects all executions until the reset timeout elapses.
	StateOpen

	// StateHalfOpen admits trial executions to probe recovery.
	StateHalfOpen
)

// String returns the lowercase state name.
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

// Options holds configuration for a circuit.
type Options struct {
	// FailureThreshold is the number of consecutive failures in the
	// closed state that opens the circuit.
	// Default: 5
	FailureThreshold int

	// ResetTimeout is how long the circuit stays open before the next
	// execution is admitted as a half-open trial.
	// Default: 30 seconds
	ResetTimeout time.Duration

	// SuccessThreshold is the number of consecutive successes in the
	// half-open state that closes the circuit.
	// Default: 2
	SuccessThreshold int

	// Logger receives one event per state transition.
	Logger zerolog.Logger
}

// DefaultOptions returns the standard circuit configuration.
func DefaultOptions() Options {
	return Options{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		SuccessThreshold: 2,
	}
}

// Stats is a point-in-time snapshot of a circuit.
type Stats struct {
	// Name is the circuit identifier.
	Name string

	// State is the state at snapshot time. A circuit past its reset
	// timeout still reports open until an execution admits the trial.
	State State

	// FailureCount is the consecutive failure count in the closed state.
	FailureCount int

	// SuccessCount is the consecutive success count in the half-open state.
	SuccessCount int

	// LastFailureAt is the timestamp of the most recent recorded failure.
	LastFailureAt *time.Time

	// LastSuccessAt is the timestamp of the most recent recorded success.
	LastSuccessAt *time.Time

	// OpenedAt is when the circuit last entered the open state. Cleared
	// when the circuit closes.
	OpenedAt *time.Time

	// LastError is the most recent failure message, if any.
	LastError string
}

// IsHealthy returns true if the circuit is passing traffic normally.
func (s Stats) IsHealthy() bool {
	return s.State == StateClosed
}

// IsDegraded returns true if the circuit is probing recovery.
func (s Stats) IsDegraded() bool {
	return s.State == StateHalfOpen
}

// IsUnhealthy returns true if the circuit is rejecting executions.
func (s Stats) IsUnhealthy() bool {
	return s.State == StateOpen
}

// Circuit is a three-state breaker guarding one logical dependency.
// Executions are admitted or rejected under a short critical section; the
// wrapped operation itself runs unlocked, so executions through the same
// circuit overlap freely.
type Circuit struct {
	name string
	opts Options

	mu            sync.Mutex
	state         State
	failureCount  int
	successCount  int
	openedAt      time.Time
	lastFailureAt time.Time
	lastSuccessAt time.Time
	lastErr       string

	nowFn func() time.Time
}

// NewCircuit creates a circuit with the given name. Zero option fields
// take their defaults.
func NewCircuit(name string, opts Options) *Circuit {
	if opts.FailureThreshold <= 0 {
		opts.FailureThreshold = 5
	}
	if opts.ResetTimeout <= 0 {
		opts.ResetTimeout = 30 * time.Second
	}
	if opts.SuccessThreshold <= 0 {
		opts.SuccessThreshold = 2
	}

	return &Circuit{
		name:  name,
		opts:  opts,
		state: StateClosed,
		nowFn: time.Now,
	}
}

// Name returns the circuit identifier.
func (c *Circuit) Name() string {
	return c.name
}

// Execute runs op through the circuit. If the circuit is open and the
// reset timeout has not elapsed, op is not invoked and a *CircuitOpenError
// carrying the remaining cooldown is returned. Otherwise op runs and its
// outcome is recorded; op's error is returned unchanged.
func (c *Circuit) Execute(ctx context.Context, op func(context.Context) error) error {
	if err := c.admit(); err != nil {
		return err
	}

	err := op(ctx)
	c.record(err)
	return err
}

// Do executes op through the circuit and returns its typed result. On
// rejection or failure the zero value of T is returned alongside the
// error.
func Do[T any](ctx context.Context, c *Circuit, op func(context.Context) (T, error)) (T, error) {
	var result T
	err := c.Execute(ctx, func(ctx context.Context) error {
		v, err := op(ctx)
		if err != nil {
			return err
		}
		result = v
		return nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}

// ForceOpen trips the circuit regardless of its current state. Idempotent
// when already open.
func (c *Circuit) ForceOpen() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transitionLocked(StateOpen)
}

// ForceClose resets the circuit to closed and clears its counters.
// Idempotent when already closed.
func (c *Circuit) ForceClose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.transitionLocked(StateClosed)
}

// State returns the stored state. An open circuit past its reset timeout
// still reports open; the half-open transition happens on the next
// execution.
func (c *Circuit) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Stats returns a snapshot of the circuit.
func (c *Circuit) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{
		Name:         c.name,
		State:        c.state,
		FailureCount: c.failureCount,
		SuccessCount: c.successCount,
		LastError:    c.lastErr,
	}
	if !c.lastFailureAt.IsZero() {
		t := c.lastFailureAt
		s.LastFailureAt = &t
	}
	if !c.lastSuccessAt.IsZero() {
		t := c.lastSuccessAt
		s.LastSuccessAt = &t
	}
	if !c.openedAt.IsZero() {
		t := c.openedAt
		s.OpenedAt = &t
	}
	return s
}

// SetClock overrides the circuit's time source. Test use only.
func (c *Circuit) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.nowFn = now
}

// admit decides whether an execution may proceed, performing the lazy
// open to half-open transition first.
func (c *Circuit) admit() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateOpen {
		elapsed := c.nowFn().Sub(c.openedAt)
		if elapsed >= c.opts.ResetTimeout {
			c.transitionLocked(StateHalfOpen)
		} else {
			remaining := c.opts.ResetTimeout - elapsed
			return &CircuitOpenError{Name: c.name, RetryAfter: remaining}
		}
	}
	return nil
}

// record applies an execution outcome as a single atomic state update.
func (c *Circuit) record(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.nowFn()
	if err == nil {
		c.lastSuccessAt = now
		c.recordSuccessLocked()
	} else {
		c.lastFailureAt = now
		c.lastErr = err.Error()
		c.recordFailureLocked()
	}
}

func (c *Circuit) recordSuccessLocked() {
	switch c.state {
	case StateClosed:
		c.failureCount = 0
	case StateHalfOpen:
		c.successCount++
		if c.successCount >= c.opts.SuccessThreshold {
			c.transitionLocked(StateClosed)
		}
	case StateOpen:
		// Late result from an execution admitted before the circuit
		// opened. The open state stands until the reset timeout.
	}
}

func (c *Circuit) recordFailureLocked() {
	switch c.state {
	case StateClosed:
		c.failureCount++
		if c.failureCount >= c.opts.FailureThreshold {
			c.transitionLocked(StateOpen)
		}
	case StateHalfOpen:
		// A single trial failure re-trips the circuit.
		c.transitionLocked(StateOpen)
	case StateOpen:
		// Late failure from an execution admitted before the trip.
	}
}

// transitionLocked moves the circuit to a new state and applies the
// per-state counter resets. All transitions, forced or organic, pass
// through here. No-op when the state is unchanged.
func (c *Circuit) transitionLocked(to State) {
	if c.state == to {
		return
	}

	from := c.state
	failures, successes := c.failureCount, c.successCount
	c.state = to

	switch to {
	case StateOpen:
		c.openedAt = c.nowFn()
		c.successCount = 0
	case StateClosed:
		c.failureCount = 0
		c.successCount = 0
		c.openedAt = time.Time{}
	case StateHalfOpen:
		c.successCount = 0
	}

	c.opts.Logger.Info().
		Str("circuit", c.name).
		Str("old_state", from.String()).
		Str("new_state", to.String()).
		Int("failures", failures).
		Int("successes", successes).
		Msg("circuit state changed")
}
