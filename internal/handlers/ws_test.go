package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"boostmarket/internal/auth"

	gorillaws "github.com/gorilla/websocket"
)

func TestWSRequiresToken(t *testing.T) {
	app := newTestApp(t)
	expectStatus(t, app.do(t, http.MethodGet, "/ws", "", "", nil), http.StatusUnauthorized)
}

func TestWSPushesBalanceUpdates(t *testing.T) {
	app := newTestApp(t)
	server := httptest.NewServer(app.router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=" + tokenFor(t, "user-1", auth.RoleClient)
	conn, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for app.hub.Connected("user-1") == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	app.deposit(t, "user-1", map[string]string{"currency": "usd", "amount": "3"})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg struct {
		Type    string            `json:"type"`
		Payload map[string]string `json:"payload"`
	}
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if msg.Type != "balance" || msg.Payload["balance"] != "3.00" || msg.Payload["currency"] != "usd" {
		t.Fatalf("unexpected message %s", data)
	}
}

func TestWSSubscribeFiltersFrames(t *testing.T) {
	app := newTestApp(t)
	server := httptest.NewServer(app.router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?token=" + tokenFor(t, "user-1", auth.RoleClient)
	conn, _, err := gorillaws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	readType := func() string {
		t.Helper()
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg struct {
			Type string `json:"type"`
		}
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v", err)
		}
		return msg.Type
	}

	if err := conn.WriteJSON(map[string][]string{"subscribe": {"order"}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := readType(); got != "subscribed" {
		t.Fatalf("expected subscribed ack, got %s", got)
	}

	app.deposit(t, "user-1", map[string]string{"currency": "usd", "amount": "3"})
	if err := conn.WriteJSON(map[string][]string{"subscribe": {"balance"}}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if got := readType(); got != "subscribed" {
		t.Fatalf("balance frame leaked through an order-only subscription: %s", got)
	}

	app.deposit(t, "user-1", map[string]string{"currency": "usd", "amount": "1"})
	if got := readType(); got != "balance" {
		t.Fatalf("expected balance frame, got %s", got)
	}
}
