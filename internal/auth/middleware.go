package auth

import (
	"context"
	"net/http"

	"github.com/go-pkgz/auth/v2/token"
)

type contextKey string

const principalContextKey contextKey = "vestibule-principal"

// WithPrincipal soft-attaches the session Principal (if any) to the
// request context, never rejecting the request itself — equivalent to
// the teacher's JWTMiddleware (internal/auth/middleware.go), adapted
// from a database-backed user lookup to a self-contained signed-cookie
// claim.
func WithPrincipal(svc *token.Service) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if p, ok := SessionFromRequest(svc, r); ok {
				ctx := context.WithValue(r.Context(), principalContextKey, &p)
				r = r.WithContext(ctx)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// FromContext returns the Principal attached by WithPrincipal, or nil
// if the request carries no valid session.
func FromContext(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalContextKey).(*Principal)
	return p
}

// RequireAdmin wraps a handler, responding 401 when unauthenticated
// and 403 when authenticated but missing the ADMINS role — grounded in
// the teacher's RequireAdmin (internal/auth/middleware.go), adapted to
// the role-set model of §4.1 rather than a boolean IsAdmin column.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := FromContext(r.Context())
		if p == nil {
			http.Error(w, "authentication required", http.StatusUnauthorized)
			return
		}
		if !IsAdmin(p.Roles) {
			http.Error(w, "admin privileges required", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
