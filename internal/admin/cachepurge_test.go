package admin_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedStore(t *testing.T, env *testEnv, keys ...string) {
	t.Helper()
	for _, key := range keys {
		require.NoError(t, env.store.Set(context.Background(), key, []byte(`"x"`), 0))
	}
}

func TestCachePurge(t *testing.T) {
	env := newTestEnv(t)
	seedStore(t, env, "user:1:profile", "user:2:profile", "catalog:1")

	req := httptest.NewRequest(http.MethodDelete, "/v1/cache?pattern=user:*", http.NoBody)
	req.Header.Set("Authorization", env.authHeader(t))
	w := env.do(req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"pattern":"user:*","deleted":2}`, w.Body.String())

	_, found, err := env.store.Get(context.Background(), "catalog:1")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestCachePurge_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(httptest.NewRequest(http.MethodDelete, "/v1/cache?pattern=user:*", http.NoBody))

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCachePurge_RequiresPattern(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodDelete, "/v1/cache", http.NoBody)
	req.Header.Set("Authorization", env.authHeader(t))
	w := env.do(req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "pattern query parameter is required")
}

func TestCachePurge_MalformedPattern(t *testing.T) {
	env := newTestEnv(t)
	seedStore(t, env, "user:1:profile")

	req := httptest.NewRequest(http.MethodDelete, "/v1/cache?pattern=%5B", http.NoBody)
	req.Header.Set("Authorization", env.authHeader(t))
	w := env.do(req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "malformed pattern")
}

func TestCachePurge_Everything(t *testing.T) {
	env := newTestEnv(t)
	seedStore(t, env, "user:1:profile", "catalog:1")

	req := httptest.NewRequest(http.MethodDelete, "/v1/cache?pattern=*", http.NoBody)
	req.Header.Set("Authorization", env.authHeader(t))
	w := env.do(req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, env.store.Len())
}
