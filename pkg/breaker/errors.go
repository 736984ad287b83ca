package breaker

import (
	"errors"
	"fmt"
	"time"
)

// ErrCircuitOpen is returned when an execution is rejected because the
// circuit is open.
var ErrCircuitOpen = errors.New("circuit open")

// CircuitOpenError reports a rejected execution and how long the circuit
// remains open.
type CircuitOpenError struct {
	// Name is the circuit that rejected the execution.
	Name string

	// RetryAfter is the remaining cooldown. Zero means the next execution
	// will be admitted as a half-open trial.
	RetryAfter time.Duration
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("circuit %q open, retry after %s", e.Name, e.RetryAfter)
}

// Is matches the ErrCircuitOpen sentinel so callers can test with
// errors.Is without unpacking the struct.
func (e *CircuitOpenError) Is(target error) bool {
	return target == ErrCircuitOpen
}
