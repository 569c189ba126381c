package auth

import (
	"context"
	"net/http"
	"strings"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const (
	// APIKeyHeader is the HTTP header for API key authentication
	APIKeyHeader = "X-API-Key"

	// claimsContextKey is the context key for storing validated claims
	claimsContextKey contextKey = "claims"
)

// Middleware validates requests using either a static API key or a bearer
// JWT issued by the token endpoint. When apiKey is empty, authentication is
// disabled entirely (local development mode).
type Middleware struct {
	apiKey     string
	jwtManager *JWTManager
	skipPaths  map[string]bool
}

// NewMiddleware creates an authentication middleware.
func NewMiddleware(apiKey string, jwtManager *JWTManager) *Middleware {
	return &Middleware{
		apiKey:     apiKey,
		jwtManager: jwtManager,
		skipPaths: map[string]bool{
			"/healthz":       true,
			"/readyz":        true,
			"/v1/auth/token": true,
		},
	}
}

// WithSkipPaths adds paths that bypass authentication.
func (m *Middleware) WithSkipPaths(paths ...string) *Middleware {
	for _, p := range paths {
		m.skipPaths[p] = true
	}
	return m
}

// Handler wraps an http.Handler with authentication.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.apiKey == "" || m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		// Static API key
		if key := strings.TrimSpace(r.Header.Get(APIKeyHeader)); key != "" {
			if key != m.apiKey {
				http.Error(w, "invalid API key", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
			return
		}

		// Bearer JWT
		authz := r.Header.Get("Authorization")
		if token, ok := strings.CutPrefix(authz, "Bearer "); ok {
			claims, err := m.jwtManager.ValidateToken(strings.TrimSpace(token))
			if err != nil {
				http.Error(w, "invalid token", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(withClaims(r.Context(), claims)))
			return
		}

		http.Error(w, "missing credentials", http.StatusUnauthorized)
	})
}

func withClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsContextKey, claims)
}

// ClaimsFromContext extracts validated JWT claims from the request context.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	return claims, ok
}
