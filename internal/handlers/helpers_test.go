package handlers

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"boostmarket/internal/auth"
	"boostmarket/internal/config"
	"boostmarket/internal/events"
	"boostmarket/internal/services"
	"boostmarket/internal/store"
	"boostmarket/internal/websocket"

	"go.uber.org/zap"
)

const testSecret = "secret"

type testApp struct {
	handler *Handler
	router  http.Handler
	hub     *websocket.Hub
}

func newTestConfig() config.Config {
	return config.Config{
		AppEnv:         "development",
		JWTSecret:      testSecret,
		TokenTTL:       time.Minute,
		AllowedOrigins: "*",
		ExchangeRates: map[string]string{
			"gold:usd":  "10",
			"usd:toman": "50000",
		},
		ConversionFees: map[string]string{"usd": "0.05"},
		QuoteTTL:       time.Minute,
	}
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	cfg := newTestConfig()
	kv := store.NewMemoryKV()
	auditStore := store.NewAuditStore(kv)
	hub := websocket.NewHub()
	publisher := events.NopPublisher{}
	logger := zap.NewNop()

	wallets := services.NewWalletService(store.NewWalletStore(kv), store.NewLedgerStore(kv), auditStore, hub, publisher, logger)
	conversion, err := services.NewConversionService(wallets, store.NewExchangeStore(kv), store.NewExchangeQuoteStore(kv), auditStore, publisher, logger, services.ConversionConfig{
		Rates:    cfg.ExchangeRates,
		Fees:     cfg.ConversionFees,
		QuoteTTL: cfg.QuoteTTL,
	})
	if err != nil {
		t.Fatalf("conversion service: %v", err)
	}
	catalog := services.NewCatalogService(store.NewCatalogStore(kv), auditStore, logger)
	orders := services.NewOrderService(store.NewOrderStore(kv), catalog, wallets, auditStore, hub, publisher, logger, "")

	handler := New(cfg, wallets, conversion, catalog, orders, auditStore, hub, logger)
	return &testApp{handler: handler, router: handler.Routes(), hub: hub}
}

func tokenFor(t *testing.T, userID string, role auth.Role) string {
	t.Helper()
	token, err := auth.GenerateToken(testSecret, userID, role, time.Minute)
	if err != nil {
		t.Fatalf("failed to generate token: %v", err)
	}
	return token
}

// do sends a JSON request as userID; an empty userID sends no token.
func (a *testApp) do(t *testing.T, method, path, userID string, role auth.Role, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("Authorization", "Bearer "+tokenFor(t, userID, role))
	}
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func expectStatus(t *testing.T, rr *httptest.ResponseRecorder, status int) {
	t.Helper()
	if rr.Code != status {
		t.Fatalf("expected %d, got %d: %s", status, rr.Code, rr.Body.String())
	}
}

func expectError(t *testing.T, rr *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	expectStatus(t, rr, status)
	var body map[string]string
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if body["error"] != code {
		t.Fatalf("expected error %q, got %q", code, body["error"])
	}
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return out
}

type walletResponse struct {
	StaticWallets []struct {
		Currency string `json:"currency"`
		Balance  string `json:"balance"`
	} `json:"static_wallets"`
	GoldWallets []struct {
		RealmID          string `json:"realm_id"`
		WithdrawableGold string `json:"withdrawable_gold"`
		SuspendedGold    string `json:"suspended_gold"`
	} `json:"gold_wallets"`
}

func (w walletResponse) static(currency string) string {
	for _, s := range w.StaticWallets {
		if s.Currency == currency {
			return s.Balance
		}
	}
	return ""
}

func (a *testApp) staticBalance(t *testing.T, userID, currency string) string {
	t.Helper()
	rr := a.do(t, http.MethodGet, "/wallet", userID, auth.RoleClient, nil)
	expectStatus(t, rr, http.StatusOK)
	return decodeBody[walletResponse](t, rr).static(currency)
}

func (a *testApp) deposit(t *testing.T, userID string, body map[string]string) {
	t.Helper()
	expectStatus(t, a.do(t, http.MethodPost, "/wallet/deposit", userID, auth.RoleClient, body), http.StatusCreated)
}
