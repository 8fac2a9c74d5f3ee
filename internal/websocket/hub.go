package websocket

import (
	"sync"
	"time"
)

const (
	MessageBalance = "balance"
	MessageOrder   = "order"
)

// Message is the envelope every push frame is wrapped in.
type Message struct {
	Type    string `json:"type"`
	Payload any    `json:"payload"`
}

type BalanceUpdate struct {
	WalletID   string `json:"wallet_id"`
	Wallet     string `json:"wallet"`
	SubBalance string `json:"sub_balance,omitempty"`
	Balance    string `json:"balance"`
	Currency   string `json:"currency"`
}

type OrderUpdate struct {
	OrderID   string    `json:"order_id"`
	Status    string    `json:"status"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
	}
}

func (h *Hub) Register(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		h.clients[userID] = make(map[*Client]struct{})
	}
	h.clients[userID][client] = struct{}{}
}

func (h *Hub) Unregister(userID string, client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[userID] == nil {
		return
	}
	delete(h.clients[userID], client)
	if len(h.clients[userID]) == 0 {
		delete(h.clients, userID)
	}
}

// Connected reports how many sockets the user has open.
func (h *Hub) Connected(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[userID])
}

func (h *Hub) BroadcastBalance(userID string, update BalanceUpdate) {
	h.send(userID, Message{Type: MessageBalance, Payload: update})
}

func (h *Hub) BroadcastOrder(userIDs []string, update OrderUpdate) {
	seen := make(map[string]struct{}, len(userIDs))
	for _, userID := range userIDs {
		if _, dup := seen[userID]; dup || userID == "" {
			continue
		}
		seen[userID] = struct{}{}
		h.send(userID, Message{Type: MessageOrder, Payload: update})
	}
}

// send drops the frame for clients whose buffer is full.
func (h *Hub) send(userID string, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[userID] {
		client.deliver(msg)
	}
}
