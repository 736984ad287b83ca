// Package retry executes operations with exponential backoff, bounded
// attempts, and pluggable error classification.
package retry

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// Options holds configuration for a retried operation.
type Options struct {
	// MaxRetries is the number of retry attempts after the initial call,
	// so an operation runs at most MaxRetries+1 times.
	// Default: 3
	MaxRetries uint64

	// InitialDelay is the delay before the first retry.
	// Default: 100ms
	InitialDelay time.Duration

	// MaxDelay caps the exponentially growing delay between attempts.
	// Default: 5 seconds
	MaxDelay time.Duration

	// Multiplier is the growth factor applied to the delay after each
	// attempt.
	// Default: 2
	Multiplier float64

	// Jitter randomizes each delay by a uniform factor in [0.5, 1.5).
	// Default: false
	Jitter bool

	// RetryIf decides whether an error is worth another attempt.
	// If nil, uses DefaultRetryIf.
	RetryIf func(error) bool

	// Logger receives one debug event per retried attempt.
	Logger zerolog.Logger
}

func (o Options) withDefaults() Options {
	if o.MaxRetries == 0 {
		o.MaxRetries = 3
	}
	if o.InitialDelay == 0 {
		o.InitialDelay = 100 * time.Millisecond
	}
	if o.MaxDelay == 0 {
		o.MaxDelay = 5 * time.Second
	}
	if o.Multiplier == 0 {
		o.Multiplier = 2
	}
	if o.RetryIf == nil {
		o.RetryIf = DefaultRetryIf
	}
	return o
}

// Do runs op until it succeeds, a non-retryable error occurs, the retry
// budget is exhausted, or ctx is done. The final error is returned
// unchanged; a context cancellation during a backoff wait returns the
// context's error.
func Do(ctx context.Context, op func(context.Context) error, opts Options) error {
	_, err := DoValue(ctx, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, opts)
	return err
}

// DoValue is Do for operations that produce a value. On failure the last
// attempt's value and error are returned.
func DoValue[T any](ctx context.Context, op func(context.Context) (T, error), opts Options) (T, error) {
	opts = opts.withDefaults()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = opts.InitialDelay
	bo.MaxInterval = opts.MaxDelay
	bo.Multiplier = opts.Multiplier
	bo.MaxElapsedTime = 0 // attempts are bounded by MaxRetries, not wall time
	if opts.Jitter {
		bo.RandomizationFactor = 0.5
	} else {
		bo.RandomizationFactor = 0
	}

	operation := func() (T, error) {
		v, err := op(ctx)
		if err != nil && !opts.RetryIf(err) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}

	attempt := 0
	notify := func(err error, delay time.Duration) {
		attempt++
		opts.Logger.Debug().
			Err(err).
			Int("attempt", attempt).
			Dur("delay", delay).
			Msg("retrying after transient failure")
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(bo, opts.MaxRetries), ctx)
	return backoff.RetryNotifyWithData(operation, policy, notify)
}
