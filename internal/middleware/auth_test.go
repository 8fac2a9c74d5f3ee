package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"boostmarket/internal/auth"
)

func TestAuthRejects(t *testing.T) {
	expired, err := auth.GenerateToken("secret", "user-1", auth.RoleClient, -time.Minute)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	foreign, err := auth.GenerateToken("other-secret", "user-1", auth.RoleClient, time.Minute)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	cases := map[string]string{
		"missing header":    "",
		"wrong scheme":      "Token abc",
		"empty bearer":      "Bearer ",
		"garbage token":     "Bearer not-a-jwt",
		"expired token":     "Bearer " + expired,
		"foreign signature": "Bearer " + foreign,
	}
	handler := Auth("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler should not be called")
	}))
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rr.Code)
			}
		})
	}
}

func TestAuthStoresIdentity(t *testing.T) {
	token, err := auth.GenerateToken("secret", "user-1", auth.RoleBooster, time.Minute)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	handler := Auth("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserIDFromContext(r.Context())
		if !ok || userID != "user-1" {
			t.Fatalf("expected user-1 in context")
		}
		if role, _ := RoleFromContext(r.Context()); role != auth.RoleBooster {
			t.Fatalf("expected booster role in context, got %q", role)
		}
		w.WriteHeader(http.StatusOK)
	}))
	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer "+token)
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestAuthWebsocketQueryToken(t *testing.T) {
	token, err := auth.GenerateToken("secret", "user-2", auth.RoleClient, time.Minute)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	handler := Auth("secret")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if userID, _ := UserIDFromContext(r.Context()); userID != "user-2" {
			t.Fatalf("expected user-2 in context")
		}
		w.WriteHeader(http.StatusOK)
	}))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ws?token="+token, nil)
	req.Header.Set("Upgrade", "websocket")
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/wallet?token="+token, nil)
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for query token outside websocket upgrade, got %d", rr.Code)
	}
}
