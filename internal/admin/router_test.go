package admin_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fusebox/fusebox/internal/admin"
	"github.com/fusebox/fusebox/pkg/breaker"
	"github.com/fusebox/fusebox/pkg/cache"
	"github.com/fusebox/fusebox/pkg/token"
)

// failingStore wraps a MemoryStore and fails reads on demand.
type failingStore struct {
	*cache.MemoryStore
	getErr error
}

func (s *failingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	return s.MemoryStore.Get(ctx, key)
}

// testEnv wires a full admin router against in-memory dependencies.
type testEnv struct {
	router   http.Handler
	registry *breaker.Registry
	store    *cache.MemoryStore
	cache    *cache.Interceptor
	tokens   *token.Service
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := zerolog.New(io.Discard)
	store := cache.NewMemoryStore()
	registry := breaker.NewRegistry(logger)
	interceptor := cache.New(store, cache.Options{Logger: logger})
	tokens := token.New(token.Config{
		SigningKey: []byte("test-secret-key-for-testing-only"),
		Issuer:     "https://auth.fusebox.test",
		Audience:   "fusebox-admin",
		Store:      store,
	})

	router := admin.NewRouter(admin.Config{
		Version:   "test",
		BuildTime: "2026-01-01T00:00:00Z",
		Logger:    logger,
		Registry:  registry,
		Store:     store,
		Cache:     interceptor,
		Tokens:    tokens,
	})

	return &testEnv{
		router:   router,
		registry: registry,
		store:    store,
		cache:    interceptor,
		tokens:   tokens,
	}
}

// authHeader issues a valid bearer token for the admin subject.
func (e *testEnv) authHeader(t *testing.T) string {
	t.Helper()
	signed, _, err := e.tokens.Issue("ops-admin", "acme")
	require.NoError(t, err)
	return "Bearer " + signed
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func TestRouter_Health(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.NotEmpty(t, w.Header().Get("X-Request-Id"))

	var health struct {
		Status    string `json:"status"`
		Version   string `json:"version"`
		BuildTime string `json:"buildTime"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "test", health.Version)
	assert.Equal(t, "2026-01-01T00:00:00Z", health.BuildTime)
}

func TestRouter_Ready(t *testing.T) {
	env := newTestEnv(t)
	env.registry.GetCircuit("healthy-one")
	env.registry.ForceOpen("broken-one")

	w := env.do(httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody))

	assert.Equal(t, http.StatusOK, w.Code)

	var ready struct {
		Status   string `json:"status"`
		Circuits struct {
			Total int `json:"total"`
			Open  int `json:"open"`
		} `json:"circuits"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ready))
	assert.Equal(t, "degraded", ready.Status)
	assert.Equal(t, 2, ready.Circuits.Total)
	assert.Equal(t, 1, ready.Circuits.Open)
}

func TestRouter_Ready_StoreUnreachable(t *testing.T) {
	logger := zerolog.New(io.Discard)
	store := &failingStore{MemoryStore: cache.NewMemoryStore(), getErr: assert.AnError}
	registry := breaker.NewRegistry(logger)

	router := admin.NewRouter(admin.Config{
		Logger:   logger,
		Registry: registry,
		Store:    store,
		Cache:    cache.New(store, cache.Options{Logger: logger}),
		Tokens:   token.New(token.Config{SigningKey: []byte("k")}),
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody))

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "cache store unreachable")
}

func TestRouter_RequestIDPropagated(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody)
	req.Header.Set("X-Request-Id", "req_incoming-id")

	w := env.do(req)

	assert.Equal(t, "req_incoming-id", w.Header().Get("X-Request-Id"))
}
