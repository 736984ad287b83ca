package admin

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/fusebox/fusebox/pkg/breaker"
	"github.com/fusebox/fusebox/pkg/cache"
)

// circuitsCacheTTL keeps the circuit list fresh enough for dashboards
// polling every few seconds without snapshotting the registry each time.
const circuitsCacheTTL = 2 * time.Second

var circuitsKey = cache.MustKeyTemplate("admin:circuits")

// circuitView is the wire representation of a circuit snapshot.
type circuitView struct {
	Name          string     `json:"name"`
	State         string     `json:"state"`
	FailureCount  int        `json:"failureCount"`
	SuccessCount  int        `json:"successCount"`
	LastFailureAt *time.Time `json:"lastFailureAt,omitempty"`
	LastSuccessAt *time.Time `json:"lastSuccessAt,omitempty"`
	OpenedAt      *time.Time `json:"openedAt,omitempty"`
	LastError     string     `json:"lastError,omitempty"`
	Healthy       bool       `json:"healthy"`
}

type circuitListResponse struct {
	Circuits []circuitView `json:"circuits"`
	Count    int           `json:"count"`
}

func newCircuitView(s breaker.Stats) circuitView {
	return circuitView{
		Name:          s.Name,
		State:         s.State.String(),
		FailureCount:  s.FailureCount,
		SuccessCount:  s.SuccessCount,
		LastFailureAt: s.LastFailureAt,
		LastSuccessAt: s.LastSuccessAt,
		OpenedAt:      s.OpenedAt,
		LastError:     s.LastError,
		Healthy:       s.IsHealthy(),
	}
}

func circuitViews(all []breaker.Stats) []circuitView {
	views := make([]circuitView, 0, len(all))
	for _, s := range all {
		views = append(views, newCircuitView(s))
	}
	return views
}

// circuitHandler serves circuit inspection and forced transitions.
type circuitHandler struct {
	registry *breaker.Registry
	cache    *cache.Interceptor
	logger   zerolog.Logger
}

// List handles GET /v1/circuits. The response is served through the cache
// interceptor and evicted whenever a transition is forced.
func (h *circuitHandler) List(w http.ResponseWriter, r *http.Request) {
	views, err := cache.Cached(r.Context(), h.cache, callContextFrom(r), cache.CacheableOptions{
		Key:    circuitsKey,
		Target: "admin:circuits",
		TTL:    circuitsCacheTTL,
	}, func(context.Context) ([]circuitView, error) {
		return circuitViews(h.registry.AllStats()), nil
	})
	if err != nil {
		internalError(w, r, "listing circuits failed")
		return
	}

	writeJSON(w, r, http.StatusOK, circuitListResponse{Circuits: views, Count: len(views)})
}

// Get handles GET /v1/circuits/{name}.
func (h *circuitHandler) Get(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	stats, ok := h.registry.Stats(name)
	if !ok {
		notFound(w, r, fmt.Sprintf("no circuit named %q", name))
		return
	}

	writeJSON(w, r, http.StatusOK, newCircuitView(stats))
}

// ForceOpen handles POST /v1/circuits/{name}:force-open.
func (h *circuitHandler) ForceOpen(w http.ResponseWriter, r *http.Request) {
	h.force(w, r, true)
}

// ForceClose handles POST /v1/circuits/{name}:force-close.
func (h *circuitHandler) ForceClose(w http.ResponseWriter, r *http.Request) {
	h.force(w, r, false)
}

// force applies the transition and evicts the cached circuit list so the
// next read reflects it. Forcing an unknown name creates the circuit.
func (h *circuitHandler) force(w http.ResponseWriter, r *http.Request, open bool) {
	name := chi.URLParam(r, "name")

	stats, err := cache.Evict(r.Context(), h.cache, callContextFrom(r), cache.EvictOptions{
		Keys: []*cache.KeyTemplate{circuitsKey},
	}, func(context.Context) (breaker.Stats, error) {
		if open {
			h.registry.ForceOpen(name)
		} else {
			h.registry.ForceClose(name)
		}
		st, _ := h.registry.Stats(name)
		return st, nil
	})
	if err != nil {
		internalError(w, r, "forcing circuit transition failed")
		return
	}

	h.logger.Info().
		Str("circuit", name).
		Bool("forced_open", open).
		Str("subject", GetSubject(r.Context())).
		Msg("circuit transition forced")

	writeJSON(w, r, http.StatusOK, newCircuitView(stats))
}
