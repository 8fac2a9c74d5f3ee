package handlers

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"boostmarket/internal/auth"
)

func (a *testApp) createListing(t *testing.T, boosterID string, prices map[string]string) string {
	t.Helper()
	rr := a.do(t, http.MethodPost, "/services", boosterID, auth.RoleBooster, map[string]any{
		"game_id":         "wow",
		"service_type_id": "raid",
		"title":           "Mythic raid carry",
		"description":     "Full clear",
		"prices":          prices,
	})
	expectStatus(t, rr, http.StatusCreated)
	return decodeBody[map[string]any](t, rr)["id"].(string)
}

func (a *testApp) placeOrder(t *testing.T, buyerID, serviceID, currency string) string {
	t.Helper()
	rr := a.do(t, http.MethodPost, "/orders", buyerID, auth.RoleClient, map[string]string{
		"service_id": serviceID,
		"currency":   currency,
	})
	expectStatus(t, rr, http.StatusCreated)
	return decodeBody[map[string]any](t, rr)["id"].(string)
}

func (a *testApp) uploadEvidence(t *testing.T, orderID, userID string, role auth.Role, content string) *httptest.ResponseRecorder {
	t.Helper()
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", "screenshot.png")
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatalf("write form file: %v", err)
	}
	if err := form.WriteField("notes", "  cleared on heroic  "); err != nil {
		t.Fatalf("write notes: %v", err)
	}
	if err := form.Close(); err != nil {
		t.Fatalf("close form: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, "/orders/"+orderID+"/evidence", &body)
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+tokenFor(t, userID, role))
	rr := httptest.NewRecorder()
	a.router.ServeHTTP(rr, req)
	return rr
}

func TestOrderLifecycle(t *testing.T) {
	app := newTestApp(t)
	serviceID := app.createListing(t, "booster-1", map[string]string{"usd": "25"})
	app.deposit(t, "client-1", map[string]string{"currency": "usd", "amount": "30"})

	orderID := app.placeOrder(t, "client-1", serviceID, "usd")
	if balance := app.staticBalance(t, "client-1", "usd"); balance != "5.00" {
		t.Fatalf("expected buyer debited to 5.00, got %q", balance)
	}

	expectStatus(t, app.do(t, http.MethodPost, "/orders/"+orderID+"/assign", "booster-1", auth.RoleBooster, nil), http.StatusOK)
	expectStatus(t, app.do(t, http.MethodPost, "/orders/"+orderID+"/start", "booster-1", auth.RoleBooster, nil), http.StatusOK)

	rr := app.uploadEvidence(t, orderID, "booster-1", auth.RoleBooster, "png-bytes")
	expectStatus(t, rr, http.StatusOK)
	order := decodeBody[map[string]any](t, rr)
	evidence := order["evidence"].(map[string]any)
	file := evidence["file"].(map[string]any)
	if !strings.HasPrefix(file["ref"].(string), "blake2b:") || file["size"].(float64) != 9 {
		t.Fatalf("unexpected evidence file %v", file)
	}
	if evidence["notes"] != "  cleared on heroic  " {
		t.Fatalf("expected notes stored verbatim, got %q", evidence["notes"])
	}

	expectStatus(t, app.do(t, http.MethodPost, "/orders/"+orderID+"/review/begin", "reviewer-1", auth.RoleReviewer, nil), http.StatusOK)
	rr = app.do(t, http.MethodPost, "/orders/"+orderID+"/review", "reviewer-1", auth.RoleReviewer, map[string]any{"approve": true})
	expectStatus(t, rr, http.StatusOK)
	if order := decodeBody[map[string]any](t, rr); order["status"] != "completed" || order["earnings_paid"] != true {
		t.Fatalf("expected completed and paid order, got %v", order)
	}
	if balance := app.staticBalance(t, "booster-1", "usd"); balance != "25.00" {
		t.Fatalf("expected booster earnings 25.00, got %q", balance)
	}

	rr = app.do(t, http.MethodPost, "/orders/"+orderID+"/review", "reviewer-1", auth.RoleReviewer, map[string]any{"approve": true})
	expectError(t, rr, http.StatusConflict, "invalid_transition")
	if balance := app.staticBalance(t, "booster-1", "usd"); balance != "25.00" {
		t.Fatalf("expected earnings paid once, got %q", balance)
	}
}

func TestPurchaseWithoutFundsCreatesNoOrder(t *testing.T) {
	app := newTestApp(t)
	serviceID := app.createListing(t, "booster-1", map[string]string{"usd": "25"})
	rr := app.do(t, http.MethodPost, "/orders", "client-1", auth.RoleClient, map[string]string{"service_id": serviceID, "currency": "usd"})
	expectError(t, rr, http.StatusBadRequest, "insufficient_funds")

	rr = app.do(t, http.MethodGet, "/orders", "client-1", auth.RoleClient, nil)
	expectStatus(t, rr, http.StatusOK)
	if orders := decodeBody[[]map[string]any](t, rr); len(orders) != 0 {
		t.Fatalf("expected no orders, got %v", orders)
	}
}

func TestPurchaseUnknownService(t *testing.T) {
	app := newTestApp(t)
	rr := app.do(t, http.MethodPost, "/orders", "client-1", auth.RoleClient, map[string]string{"service_id": "missing", "currency": "usd"})
	expectError(t, rr, http.StatusNotFound, "service_not_found")
}

func TestReviewRequiresReviewerRole(t *testing.T) {
	app := newTestApp(t)
	rr := app.do(t, http.MethodPost, "/orders/any/review", "booster-1", auth.RoleBooster, map[string]any{"approve": true})
	expectStatus(t, rr, http.StatusForbidden)
}

func TestRejectNeedsReason(t *testing.T) {
	app := newTestApp(t)
	serviceID := app.createListing(t, "booster-1", map[string]string{"usd": "5"})
	app.deposit(t, "client-1", map[string]string{"currency": "usd", "amount": "5"})
	orderID := app.placeOrder(t, "client-1", serviceID, "usd")
	expectStatus(t, app.do(t, http.MethodPost, "/orders/"+orderID+"/assign", "booster-1", auth.RoleBooster, nil), http.StatusOK)
	expectStatus(t, app.do(t, http.MethodPost, "/orders/"+orderID+"/start", "booster-1", auth.RoleBooster, nil), http.StatusOK)
	expectStatus(t, app.uploadEvidence(t, orderID, "booster-1", auth.RoleBooster, "x"), http.StatusOK)

	rr := app.do(t, http.MethodPost, "/orders/"+orderID+"/review", "reviewer-1", auth.RoleReviewer, map[string]any{"approve": false})
	expectError(t, rr, http.StatusBadRequest, "validation_failed")

	rr = app.do(t, http.MethodPost, "/orders/"+orderID+"/review", "reviewer-1", auth.RoleReviewer, map[string]any{"approve": false, "reason": "blurry"})
	expectStatus(t, rr, http.StatusOK)
	if order := decodeBody[map[string]any](t, rr); order["status"] != "rejected" || order["rejection_reason"] != "blurry" {
		t.Fatalf("unexpected rejected order %v", order)
	}
}

func TestEvidenceOnlyFromAssignedBooster(t *testing.T) {
	app := newTestApp(t)
	serviceID := app.createListing(t, "booster-1", map[string]string{"usd": "5"})
	app.deposit(t, "client-1", map[string]string{"currency": "usd", "amount": "5"})
	orderID := app.placeOrder(t, "client-1", serviceID, "usd")
	expectStatus(t, app.do(t, http.MethodPost, "/orders/"+orderID+"/assign", "booster-1", auth.RoleBooster, nil), http.StatusOK)
	expectStatus(t, app.do(t, http.MethodPost, "/orders/"+orderID+"/start", "booster-1", auth.RoleBooster, nil), http.StatusOK)

	expectError(t, app.uploadEvidence(t, orderID, "booster-2", auth.RoleBooster, "x"), http.StatusForbidden, "forbidden")
}

func TestAssignOtherBoosterNeedsAdmin(t *testing.T) {
	app := newTestApp(t)
	serviceID := app.createListing(t, "booster-1", map[string]string{"usd": "5"})
	app.deposit(t, "client-1", map[string]string{"currency": "usd", "amount": "5"})
	orderID := app.placeOrder(t, "client-1", serviceID, "usd")

	rr := app.do(t, http.MethodPost, "/orders/"+orderID+"/assign", "booster-1", auth.RoleBooster, map[string]string{"booster_id": "booster-2"})
	expectError(t, rr, http.StatusForbidden, "forbidden")

	rr = app.do(t, http.MethodPost, "/orders/"+orderID+"/assign", "admin-1", auth.RoleAdmin, map[string]string{"booster_id": "booster-2"})
	expectStatus(t, rr, http.StatusOK)
	if order := decodeBody[map[string]any](t, rr); order["booster_id"] != "booster-2" {
		t.Fatalf("expected booster-2 assigned, got %v", order)
	}
}

func TestCancelRefundsBuyer(t *testing.T) {
	app := newTestApp(t)
	serviceID := app.createListing(t, "booster-1", map[string]string{"usd": "5"})
	app.deposit(t, "client-1", map[string]string{"currency": "usd", "amount": "5"})
	orderID := app.placeOrder(t, "client-1", serviceID, "usd")

	expectError(t, app.do(t, http.MethodPost, "/orders/"+orderID+"/cancel", "client-2", auth.RoleClient, nil), http.StatusForbidden, "forbidden")
	expectStatus(t, app.do(t, http.MethodPost, "/orders/"+orderID+"/cancel", "client-1", auth.RoleClient, nil), http.StatusOK)
	if balance := app.staticBalance(t, "client-1", "usd"); balance != "5.00" {
		t.Fatalf("expected refund to 5.00, got %q", balance)
	}
}

func TestGetOrderVisibility(t *testing.T) {
	app := newTestApp(t)
	serviceID := app.createListing(t, "booster-1", map[string]string{"usd": "5"})
	app.deposit(t, "client-1", map[string]string{"currency": "usd", "amount": "5"})
	orderID := app.placeOrder(t, "client-1", serviceID, "usd")

	expectStatus(t, app.do(t, http.MethodGet, "/orders/"+orderID, "client-1", auth.RoleClient, nil), http.StatusOK)
	expectStatus(t, app.do(t, http.MethodGet, "/orders/"+orderID, "reviewer-1", auth.RoleReviewer, nil), http.StatusOK)
	expectError(t, app.do(t, http.MethodGet, "/orders/"+orderID, "client-2", auth.RoleClient, nil), http.StatusNotFound, "order_not_found")
	expectError(t, app.do(t, http.MethodGet, "/orders/missing", "client-1", auth.RoleClient, nil), http.StatusNotFound, "order_not_found")
}

func TestListOrdersScopedToCaller(t *testing.T) {
	app := newTestApp(t)
	serviceID := app.createListing(t, "booster-1", map[string]string{"usd": "5"})
	app.deposit(t, "client-1", map[string]string{"currency": "usd", "amount": "5"})
	app.deposit(t, "client-2", map[string]string{"currency": "usd", "amount": "5"})
	app.placeOrder(t, "client-1", serviceID, "usd")
	app.placeOrder(t, "client-2", serviceID, "usd")

	rr := app.do(t, http.MethodGet, "/orders", "client-1", auth.RoleClient, nil)
	if orders := decodeBody[[]map[string]any](t, rr); len(orders) != 1 || orders[0]["buyer_id"] != "client-1" {
		t.Fatalf("expected only client-1 order, got %v", orders)
	}
	rr = app.do(t, http.MethodGet, "/orders?status=pending", "reviewer-1", auth.RoleReviewer, nil)
	if orders := decodeBody[[]map[string]any](t, rr); len(orders) != 2 {
		t.Fatalf("expected reviewer to see both orders, got %d", len(orders))
	}
}
