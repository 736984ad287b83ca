// Package httpclient provides an HTTP client that layers retries over a
// named circuit breaker for calls to external services.
package httpclient

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/fusebox/fusebox/pkg/breaker"
	"github.com/fusebox/fusebox/pkg/retry"
)

// Config holds configuration for the resilient HTTP client.
type Config struct {
	// Name identifies this client; its circuit is registered under it.
	Name string

	// Timeout is the request timeout for individual HTTP calls.
	// Default: 10 seconds
	Timeout time.Duration

	// Retry controls the retry loop.
	// If nil, uses retry.ProfileExternalAPI.
	Retry *retry.Options

	// Breaker configures the circuit on first registration.
	// If nil, uses breaker.DefaultOptions.
	Breaker *breaker.Options

	// Registry supplies the named circuit, so multiple clients can share
	// circuit state. If nil, the client creates a private registry.
	Registry *breaker.Registry

	// Logger receives retry and circuit transition events.
	Logger zerolog.Logger
}

// Client is an HTTP client protected by retries and a circuit breaker.
// Retries wrap the circuit, so an open circuit fails fast instead of
// burning the retry budget.
type Client struct {
	httpClient *http.Client
	circuit    *breaker.Circuit
	retryOpts  retry.Options
}

// New creates a resilient HTTP client.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	retryOpts := retry.ProfileExternalAPI()
	if cfg.Retry != nil {
		retryOpts = *cfg.Retry
	}
	retryOpts.Logger = cfg.Logger

	breakerOpts := breaker.DefaultOptions()
	if cfg.Breaker != nil {
		breakerOpts = *cfg.Breaker
	}

	registry := cfg.Registry
	if registry == nil {
		registry = breaker.NewRegistry(cfg.Logger)
	}

	return &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		circuit:    registry.GetCircuit(cfg.Name, breakerOpts),
		retryOpts:  retryOpts,
	}
}

// Do executes req with retries layered over the circuit. Responses with
// 5xx statuses count as failures for both layers and surface as a
// *retry.StatusError once the retry budget is exhausted; other statuses
// are returned as-is. The response body is the caller's to close.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	return c.DoWithContext(req.Context(), req)
}

// DoWithContext executes req under ctx.
func (c *Client) DoWithContext(ctx context.Context, req *http.Request) (*http.Response, error) {
	var lastResp *http.Response

	err := retry.Do(ctx, func(ctx context.Context) error {
		return c.circuit.Execute(ctx, func(ctx context.Context) error {
			// Clone per attempt; requests with bodies need GetBody set to
			// retry safely
			resp, err := c.httpClient.Do(req.Clone(ctx))
			if err != nil {
				return err
			}

			if resp.StatusCode >= 500 {
				// Drain so the connection can be reused before retrying
				_, _ = io.Copy(io.Discard, resp.Body)
				_ = resp.Body.Close()
				return &retry.StatusError{StatusCode: resp.StatusCode}
			}

			lastResp = resp
			return nil
		})
	}, c.retryOpts)
	if err != nil {
		return nil, err
	}

	return lastResp, nil
}

// Name returns the client identifier.
func (c *Client) Name() string {
	return c.circuit.Name()
}

// CircuitStats returns a snapshot of the client's circuit.
func (c *Client) CircuitStats() breaker.Stats {
	return c.circuit.Stats()
}
