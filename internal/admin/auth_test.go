package admin_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fusebox/fusebox/internal/admin"
	"github.com/fusebox/fusebox/pkg/cache"
	"github.com/fusebox/fusebox/pkg/token"
)

func newTestTokenService() *token.Service {
	return token.New(token.Config{
		SigningKey: []byte("test-secret-key-for-testing-only"),
		Issuer:     "https://auth.fusebox.test",
		Audience:   "fusebox-admin",
		Store:      cache.NewMemoryStore(),
	})
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuth_MissingAuthorizationHeader(t *testing.T) {
	handler := admin.Auth(newTestTokenService())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing authorization header")
}

func TestAuth_InvalidAuthorizationFormat(t *testing.T) {
	handler := admin.Auth(newTestTokenService())(okHandler())

	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "token123"},
		{"basic auth", "Basic dXNlcjpwYXNz"},
		{"empty bearer", "Bearer "},
		{"just bearer", "Bearer"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	}
}

func TestAuth_InvalidToken(t *testing.T) {
	handler := admin.Auth(newTestTokenService())(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Authorization", "Bearer invalid.jwt.token")
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "invalid token")
}

func TestAuth_ValidToken(t *testing.T) {
	tokens := newTestTokenService()
	signed, _, err := tokens.Issue("ops-admin", "acme")
	require.NoError(t, err)

	var capturedSubject, capturedTenant string
	handler := admin.Auth(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedSubject = admin.GetSubject(r.Context())
		capturedTenant = admin.GetTenant(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ops-admin", capturedSubject)
	assert.Equal(t, "acme", capturedTenant)
}

func TestAuth_CaseInsensitiveBearer(t *testing.T) {
	tokens := newTestTokenService()
	signed, _, err := tokens.Issue("ops-admin", "")
	require.NoError(t, err)

	handler := admin.Auth(tokens)(okHandler())

	for _, prefix := range []string{"Bearer ", "bearer ", "BEARER "} {
		t.Run(prefix, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
			req.Header.Set("Authorization", prefix+signed)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestAuth_RevokedToken(t *testing.T) {
	tokens := newTestTokenService()
	signed, _, err := tokens.Issue("ops-admin", "acme")
	require.NoError(t, err)
	require.NoError(t, tokens.Revoke(context.Background(), signed))

	handler := admin.Auth(tokens)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "revoked")
}

func TestGetSubject_NoAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	assert.Empty(t, admin.GetSubject(req.Context()))
	assert.Empty(t, admin.GetTenant(req.Context()))
}
