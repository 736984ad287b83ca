package admin

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/fusebox/fusebox/pkg/token"
)

// subjectKey is the context key for the authenticated token subject.
type subjectKey struct{}

// tenantKey is the context key for the authenticated token tenant.
type tenantKey struct{}

// Auth creates authentication middleware that validates bearer tokens and
// places the subject and tenant claims on the request context.
func Auth(tokens *token.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				unauthorized(w, r, "missing authorization header")
				return
			}

			const bearerPrefix = "Bearer "
			if len(authHeader) < len(bearerPrefix) ||
				!strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
				unauthorized(w, r, "invalid authorization header format")
				return
			}

			tokenString := authHeader[len(bearerPrefix):]
			if tokenString == "" {
				unauthorized(w, r, "missing bearer token")
				return
			}

			claims, err := tokens.Verify(r.Context(), tokenString)
			if err != nil {
				switch {
				case errors.Is(err, token.ErrTokenExpired):
					unauthorized(w, r, "token has expired")
				case errors.Is(err, token.ErrTokenRevoked):
					unauthorized(w, r, "token has been revoked")
				case errors.Is(err, token.ErrInvalidToken):
					unauthorized(w, r, "invalid token")
				default:
					unauthorized(w, r, "authentication failed")
				}
				return
			}

			ctx := context.WithValue(r.Context(), subjectKey{}, claims.Subject)
			if claims.Tenant != "" {
				ctx = context.WithValue(ctx, tenantKey{}, claims.Tenant)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetSubject retrieves the authenticated token subject from the context.
// Returns an empty string if not authenticated.
func GetSubject(ctx context.Context) string {
	if subject, ok := ctx.Value(subjectKey{}).(string); ok {
		return subject
	}
	return ""
}

// GetTenant retrieves the authenticated token tenant from the context.
// Returns an empty string if the token carries no tenant.
func GetTenant(ctx context.Context) string {
	if tenant, ok := ctx.Value(tenantKey{}).(string); ok {
		return tenant
	}
	return ""
}
