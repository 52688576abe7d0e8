// Package auth carries the verified tenant identity through context. Tenant
// ids are never accepted as plain request parameters; they come from the
// authenticated caller's token.
package auth

import (
	"context"
	"net/http"

	"github.com/rotisserie/eris"
)

type contextKey struct{}

// ErrNoTenant means the context carries no verified tenant identity.
var ErrNoTenant = eris.New("auth: no tenant in context")

// WithTenant returns a context carrying the verified tenant id.
func WithTenant(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, contextKey{}, tenantID)
}

// TenantFrom extracts the verified tenant id from the context.
func TenantFrom(ctx context.Context) (string, error) {
	tenantID, ok := ctx.Value(contextKey{}).(string)
	if !ok || tenantID == "" {
		return "", ErrNoTenant
	}
	return tenantID, nil
}

// Middleware authenticates requests with a bearer token and resolves it to a
// tenant through the token map. Unknown tokens get 401.
func Middleware(tokenTenants map[string]string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := bearerToken(r)
			tenantID, ok := tokenTenants[token]
			if token == "" || !ok {
				http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithTenant(r.Context(), tenantID)))
		})
	}
}

func bearerToken(r *http.Request) string {
	const prefix = "Bearer "
	h := r.Header.Get("Authorization")
	if len(h) > len(prefix) && h[:len(prefix)] == prefix {
		return h[len(prefix):]
	}
	return ""
}
