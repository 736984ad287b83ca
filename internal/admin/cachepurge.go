package admin

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/fusebox/fusebox/pkg/cache"
)

type purgeResponse struct {
	Pattern string `json:"pattern"`
	Deleted int    `json:"deleted"`
}

// cacheHandler serves manual cache purges.
type cacheHandler struct {
	store  cache.Store
	logger zerolog.Logger
}

// Purge handles DELETE /v1/cache?pattern=<glob>. The pattern is required
// so a bare DELETE cannot wipe the whole keyspace by accident; purging
// everything takes an explicit pattern=*.
func (h *cacheHandler) Purge(w http.ResponseWriter, r *http.Request) {
	pattern := r.URL.Query().Get("pattern")
	if pattern == "" {
		badRequest(w, r, "pattern query parameter is required")
		return
	}

	deleted, err := h.store.DeleteByPattern(r.Context(), pattern)
	if err != nil {
		if errors.Is(err, cache.ErrBadPattern) {
			badRequest(w, r, "malformed pattern")
			return
		}
		h.logger.Error().Err(err).Str("pattern", pattern).Msg("cache purge failed")
		internalError(w, r, "cache purge failed")
		return
	}

	h.logger.Info().
		Str("pattern", pattern).
		Int("deleted", deleted).
		Str("subject", GetSubject(r.Context())).
		Msg("cache purged")

	writeJSON(w, r, http.StatusOK, purgeResponse{Pattern: pattern, Deleted: deleted})
}
