package breaker

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog"
)

// Registry lazily creates and tracks named circuits. All circuits created
// through a registry log their transitions with the registry logger.
type Registry struct {
	logger zerolog.Logger

	mu       sync.RWMutex
	circuits map[string]*Circuit
}

// NewRegistry creates an empty circuit registry.
func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		logger:   logger,
		circuits: make(map[string]*Circuit),
	}
}

// GetCircuit returns the circuit registered under name, creating it on
// first use. Options are honored only by the creating call; later calls
// for the same name return the existing circuit unchanged. The effective
// thresholds are logged at creation so a conflicting caller is visible in
// the logs.
func (r *Registry) GetCircuit(name string, opts ...Options) *Circuit {
	r.mu.RLock()
	c, ok := r.circuits[name]
	r.mu.RUnlock()
	if ok {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Another goroutine may have created the circuit between the read
	// unlock and the write lock.
	if c, ok := r.circuits[name]; ok {
		return c
	}

	o := DefaultOptions()
	if len(opts) > 0 {
		o = opts[0]
	}
	o.Logger = r.logger

	c = NewCircuit(name, o)
	r.circuits[name] = c

	r.logger.Info().
		Str("circuit", name).
		Int("failure_threshold", c.opts.FailureThreshold).
		Dur("reset_timeout", c.opts.ResetTimeout).
		Int("success_threshold", c.opts.SuccessThreshold).
		Msg("circuit created")

	return c
}

// Execute runs op through the named circuit, creating it with default
// options if absent.
func (r *Registry) Execute(ctx context.Context, name string, op func(context.Context) error) error {
	return r.GetCircuit(name).Execute(ctx, op)
}

// ForceOpen trips the named circuit, creating it first if absent.
func (r *Registry) ForceOpen(name string) {
	r.GetCircuit(name).ForceOpen()
}

// ForceClose resets the named circuit to closed, creating it first if
// absent.
func (r *Registry) ForceClose(name string) {
	r.GetCircuit(name).ForceClose()
}

// Stats returns a snapshot of the named circuit. The second return value
// is false if no circuit is registered under name.
func (r *Registry) Stats(name string) (Stats, bool) {
	r.mu.RLock()
	c, ok := r.circuits[name]
	r.mu.RUnlock()
	if !ok {
		return Stats{}, false
	}
	return c.Stats(), true
}

// AllStats returns snapshots of every registered circuit, sorted by name.
func (r *Registry) AllStats() []Stats {
	r.mu.RLock()
	circuits := make([]*Circuit, 0, len(r.circuits))
	for _, c := range r.circuits {
		circuits = append(circuits, c)
	}
	r.mu.RUnlock()

	stats := make([]Stats, 0, len(circuits))
	for _, c := range circuits {
		stats = append(stats, c.Stats())
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })
	return stats
}

// Names returns the names of all registered circuits.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.circuits))
	for name := range r.circuits {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of registered circuits.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.circuits)
}
