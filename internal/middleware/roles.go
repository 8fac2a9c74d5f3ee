package middleware

import (
	"net/http"

	"boostmarket/internal/auth"
)

// RequireRole lets the request through when the caller holds one of roles. Admins always pass.
func RequireRole(roles ...auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := UserIDFromContext(r.Context()); !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			role, _ := RoleFromContext(r.Context())
			if role == auth.RoleAdmin {
				next.ServeHTTP(w, r)
				return
			}
			for _, allowed := range roles {
				if role == allowed {
					next.ServeHTTP(w, r)
					return
				}
			}
			http.Error(w, "missing required role", http.StatusForbidden)
		})
	}
}
