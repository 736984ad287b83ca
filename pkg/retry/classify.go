package retry

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"syscall"

	"github.com/fusebox/fusebox/pkg/breaker"
)

// retryableStatuses are upstream HTTP statuses worth another attempt:
// request timeout, rate limiting, and transient server failures.
var retryableStatuses = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

// StatusError carries an upstream HTTP status code so retry and circuit
// breaking logic can classify the failure.
type StatusError struct {
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// Retryable reports whether the status indicates a transient condition.
func (e *StatusError) Retryable() bool {
	return retryableStatuses[e.StatusCode]
}

// DefaultRetryIf classifies transient failures as retryable: connection
// resets and refusals, broken pipes, DNS resolution failures, network
// timeouts, and upstream HTTP statuses 408, 429, 500, 502, 503 and 504.
// Circuit-open rejections and context errors are terminal.
func DefaultRetryIf(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, breaker.ErrCircuitOpen) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return false
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Retryable()
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsNotFound || dnsErr.IsTemporary || dnsErr.IsTimeout
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	return os.IsTimeout(err)
}
