// Package worker executes cache invalidation jobs delivered over Pub/Sub.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/fusebox/fusebox/pkg/cache"
	"github.com/fusebox/fusebox/pkg/retry"
)

// ErrNoTarget reports a purge message carrying neither a pattern nor a
// tenant.
var ErrNoTarget = errors.New("purge message has no pattern or tenant")

// PurgeMessage is the payload of a cache purge job.
type PurgeMessage struct {
	// Pattern is the glob of keys to remove, e.g. "catalog:*".
	Pattern string `json:"pattern,omitempty"`

	// Tenant scopes the purge to one tenant's keyspace when Pattern is
	// empty.
	Tenant string `json:"tenant,omitempty"`

	// Reason is free-form operator context carried into the logs.
	Reason string `json:"reason,omitempty"`
}

// TargetPattern resolves the key pattern this message purges. An explicit
// pattern wins; a message naming only a tenant purges that tenant's whole
// keyspace. The second return value is false when the message targets
// nothing.
func (m PurgeMessage) TargetPattern() (string, bool) {
	if m.Pattern != "" {
		return m.Pattern, true
	}
	if m.Tenant != "" {
		return "tenant:" + m.Tenant + ":*", true
	}
	return "", false
}

// Purger executes purge jobs against the cache store.
type Purger struct {
	store     cache.Store
	retryOpts retry.Options
	logger    zerolog.Logger

	metrics *PurgeMetrics
}

// PurgeMetrics tracks purge job statistics.
type PurgeMetrics struct {
	mu sync.RWMutex

	// Counters
	TotalPurges      int64
	SuccessfulPurges int64
	FailedPurges     int64
	DroppedMessages  int64
	KeysDeleted      int64

	// Timings
	LastPurgeAt       time.Time
	LastPurgeDuration time.Duration
}

// PurgerConfig holds configuration for creating a Purger.
type PurgerConfig struct {
	// Store is the cache store purges run against.
	Store cache.Store

	// Retry controls the retry loop around store calls.
	// If nil, uses retry.ProfileQueue.
	Retry *retry.Options

	// Logger receives purge outcomes.
	Logger zerolog.Logger
}

// NewPurger creates a purge job processor.
func NewPurger(cfg PurgerConfig) *Purger {
	retryOpts := retry.ProfileQueue()
	if cfg.Retry != nil {
		retryOpts = *cfg.Retry
	}
	retryOpts.Logger = cfg.Logger

	return &Purger{
		store:     cfg.Store,
		retryOpts: retryOpts,
		logger:    cfg.Logger,
		metrics:   &PurgeMetrics{},
	}
}

// PurgeResult contains the result of one purge job.
type PurgeResult struct {
	Pattern  string
	Deleted  int
	Duration time.Duration
}

// Run executes one purge job. Transient store errors are retried; the
// returned error is the final store error once the retry budget is spent.
func (p *Purger) Run(ctx context.Context, msg PurgeMessage) (*PurgeResult, error) {
	pattern, ok := msg.TargetPattern()
	if !ok {
		return nil, ErrNoTarget
	}

	startTime := time.Now()

	deleted, err := retry.DoValue(ctx, func(ctx context.Context) (int, error) {
		return p.store.DeleteByPattern(ctx, pattern)
	}, p.retryOpts)

	duration := time.Since(startTime)
	p.updateMetrics(deleted, duration, err == nil)

	if err != nil {
		p.logger.Error().
			Err(err).
			Str("pattern", pattern).
			Str("reason", msg.Reason).
			Msg("cache purge failed")
		return nil, err
	}

	p.logger.Info().
		Str("pattern", pattern).
		Str("tenant", msg.Tenant).
		Str("reason", msg.Reason).
		Int("deleted", deleted).
		Dur("duration", duration).
		Msg("cache purge completed")

	return &PurgeResult{
		Pattern:  pattern,
		Deleted:  deleted,
		Duration: duration,
	}, nil
}

// Process handles one raw purge payload and reports whether the message is
// finished. Malformed and empty payloads are finished immediately because
// redelivery cannot fix them; store failures are not, so those messages
// come back.
func (p *Purger) Process(ctx context.Context, data []byte) bool {
	var msg PurgeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		p.logger.Warn().Err(err).Msg("malformed purge message, dropping")
		p.recordDrop()
		return true
	}

	_, err := p.Run(ctx, msg)
	if errors.Is(err, ErrNoTarget) {
		p.logger.Warn().Msg("purge message targets nothing, dropping")
		p.recordDrop()
		return true
	}
	return err == nil
}

func (p *Purger) updateMetrics(deleted int, duration time.Duration, succeeded bool) {
	p.metrics.mu.Lock()
	defer p.metrics.mu.Unlock()

	p.metrics.TotalPurges++
	if succeeded {
		p.metrics.SuccessfulPurges++
		p.metrics.KeysDeleted += int64(deleted)
	} else {
		p.metrics.FailedPurges++
	}
	p.metrics.LastPurgeAt = time.Now()
	p.metrics.LastPurgeDuration = duration
}

func (p *Purger) recordDrop() {
	p.metrics.mu.Lock()
	defer p.metrics.mu.Unlock()

	p.metrics.DroppedMessages++
}

// GetMetrics returns a copy of the current metrics.
func (p *Purger) GetMetrics() PurgeMetrics {
	p.metrics.mu.RLock()
	defer p.metrics.mu.RUnlock()

	return PurgeMetrics{
		TotalPurges:       p.metrics.TotalPurges,
		SuccessfulPurges:  p.metrics.SuccessfulPurges,
		FailedPurges:      p.metrics.FailedPurges,
		DroppedMessages:   p.metrics.DroppedMessages,
		KeysDeleted:       p.metrics.KeysDeleted,
		LastPurgeAt:       p.metrics.LastPurgeAt,
		LastPurgeDuration: p.metrics.LastPurgeDuration,
	}
}

// MetricsSnapshot returns a snapshot of the current metrics as a map.
func (p *Purger) MetricsSnapshot() map[string]interface{} {
	m := p.GetMetrics()
	return map[string]interface{}{
		"total_purges":        m.TotalPurges,
		"successful_purges":   m.SuccessfulPurges,
		"failed_purges":       m.FailedPurges,
		"dropped_messages":    m.DroppedMessages,
		"keys_deleted":        m.KeysDeleted,
		"last_purge_at":       m.LastPurgeAt,
		"last_purge_duration": m.LastPurgeDuration.String(),
	}
}
