package admin

import (
	"net/http"
	"time"

	"github.com/fusebox/fusebox/pkg/breaker"
	"github.com/fusebox/fusebox/pkg/cache"
)

type healthResponse struct {
	Status    string    `json:"status"`
	Time      time.Time `json:"time"`
	Version   string    `json:"version,omitempty"`
	BuildTime string    `json:"buildTime,omitempty"`
}

type readyCircuits struct {
	Total    int `json:"total"`
	Open     int `json:"open"`
	HalfOpen int `json:"halfOpen"`
}

type readyResponse struct {
	Status   string        `json:"status"`
	Time     time.Time     `json:"time"`
	Circuits readyCircuits `json:"circuits"`
}

// opsHandler serves liveness and readiness probes.
type opsHandler struct {
	version   string
	buildTime string
	store     cache.Store
	registry  *breaker.Registry
}

// Health handles GET /v1/ops/health.
func (h *opsHandler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, healthResponse{
		Status:    "ok",
		Time:      time.Now().UTC(),
		Version:   h.version,
		BuildTime: h.buildTime,
	})
}

// Ready handles GET /v1/ops/ready. The cache store must answer a probe
// read. Open circuits do not fail readiness: they signal upstream trouble
// while this process itself keeps serving, so they only degrade the status.
func (h *opsHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if _, _, err := h.store.Get(r.Context(), "ops:ready-probe"); err != nil {
		serviceUnavailable(w, r, "cache store unreachable")
		return
	}

	circuits := readyCircuits{}
	for _, s := range h.registry.AllStats() {
		circuits.Total++
		switch {
		case s.IsUnhealthy():
			circuits.Open++
		case s.IsDegraded():
			circuits.HalfOpen++
		}
	}

	status := "ok"
	if circuits.Open > 0 {
		status = "degraded"
	}

	writeJSON(w, r, http.StatusOK, readyResponse{
		Status:   status,
		Time:     time.Now().UTC(),
		Circuits: circuits,
	})
}
