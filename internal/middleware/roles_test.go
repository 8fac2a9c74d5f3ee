package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"boostmarket/internal/auth"
)

func serveWithRole(t *testing.T, ctx context.Context, roles ...auth.Role) int {
	t.Helper()
	handler := RequireRole(roles...)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil).WithContext(ctx)
	handler.ServeHTTP(rr, req)
	return rr.Code
}

func TestRequireRoleUnauthenticated(t *testing.T) {
	if code := serveWithRole(t, context.Background(), auth.RoleReviewer); code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestRequireRoleForbidden(t *testing.T) {
	ctx := WithIdentity(context.Background(), "user-1", auth.RoleClient)
	if code := serveWithRole(t, ctx, auth.RoleReviewer); code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestRequireRoleAllowed(t *testing.T) {
	ctx := WithIdentity(context.Background(), "user-1", auth.RoleReviewer)
	if code := serveWithRole(t, ctx, auth.RoleBooster, auth.RoleReviewer); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireRoleAdminBypass(t *testing.T) {
	ctx := WithIdentity(context.Background(), "admin-1", auth.RoleAdmin)
	if code := serveWithRole(t, ctx, auth.RoleBooster); code != http.StatusOK {
		t.Fatalf("expected 200, got %d", code)
	}
}
