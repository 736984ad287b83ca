package retry_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/fusebox/fusebox/pkg/retry"
)

func TestProfiles(t *testing.T) {
	tests := []struct {
		name         string
		opts         retry.Options
		maxRetries   uint64
		initialDelay time.Duration
		maxDelay     time.Duration
		jitter       bool
	}{
		{"database", retry.ProfileDatabase(), 3, 100 * time.Millisecond, 2 * time.Second, false},
		{"external api", retry.ProfileExternalAPI(), 3, 500 * time.Millisecond, 10 * time.Second, true},
		{"queue", retry.ProfileQueue(), 5, 200 * time.Millisecond, 5 * time.Second, false},
		{"cache", retry.ProfileCache(), 2, 50 * time.Millisecond, 500 * time.Millisecond, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.maxRetries, tt.opts.MaxRetries)
			assert.Equal(t, tt.initialDelay, tt.opts.InitialDelay)
			assert.Equal(t, tt.maxDelay, tt.opts.MaxDelay)
			assert.Equal(t, float64(2), tt.opts.Multiplier)
			assert.Equal(t, tt.jitter, tt.opts.Jitter)
		})
	}
}
