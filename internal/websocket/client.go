package websocket

import (
	"encoding/json"
	"net/http"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingPeriod   = 50 * time.Second
	sendBuffer   = 16
	maxFrameSize = 1024
)

const (
	// MessageError is pushed back when a client sends a frame the server cannot use.
	MessageError      = "error"
	MessageSubscribed = "subscribed"
)

// controlFrame is the only thing a client may send: the message types it wants pushed.
// An empty list restores the default of every type.
type controlFrame struct {
	Subscribe []string `json:"subscribe"`
}

type subscribedAck struct {
	Subscribed []string `json:"subscribed"`
}

// Client is one socket of a user. Frames are queued on send and written by writePump.
type Client struct {
	hub    *Hub
	userID string
	conn   *websocket.Conn
	send   chan Message

	mu     sync.RWMutex
	topics map[string]struct{}
}

func newClient(hub *Hub, userID string, conn *websocket.Conn) *Client {
	return &Client{
		hub:    hub,
		userID: userID,
		conn:   conn,
		send:   make(chan Message, sendBuffer),
	}
}

// NewUpgrader accepts any origin when allowed is empty or "*".
func NewUpgrader(allowed []string) websocket.Upgrader {
	return websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				return true
			}
			for _, candidate := range allowed {
				if candidate == "*" || strings.EqualFold(candidate, origin) {
					return true
				}
			}
			return len(allowed) == 0
		},
	}
}

// ServeWS upgrades the request and pushes the user's balance and order updates until the socket closes.
func ServeWS(w http.ResponseWriter, r *http.Request, upgrader websocket.Upgrader, hub *Hub, userID string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		return
	}
	client := newClient(hub, userID, conn)
	hub.Register(userID, client)
	go client.writePump()
	client.readPump()
}

// wants reports whether frames of msgType should reach this client.
func (c *Client) wants(msgType string) bool {
	if msgType == MessageError {
		return true
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.topics) == 0 {
		return true
	}
	_, ok := c.topics[msgType]
	return ok
}

// deliver queues msg unless the client filtered it out or its buffer is full.
func (c *Client) deliver(msg Message) bool {
	if !c.wants(msg.Type) {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

// handleControl applies a subscribe frame and returns the reply to push.
func (c *Client) handleControl(data []byte) Message {
	var frame controlFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return Message{Type: MessageError, Payload: "invalid control frame"}
	}
	topics := make(map[string]struct{}, len(frame.Subscribe))
	for _, topic := range frame.Subscribe {
		switch topic {
		case MessageBalance, MessageOrder:
			topics[topic] = struct{}{}
		default:
			return Message{Type: MessageError, Payload: "unknown message type " + topic}
		}
	}
	c.mu.Lock()
	c.topics = topics
	c.mu.Unlock()

	ack := make([]string, 0, len(topics))
	for topic := range topics {
		ack = append(ack, topic)
	}
	slices.Sort(ack)
	return Message{Type: MessageSubscribed, Payload: subscribedAck{Subscribed: ack}}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c.userID, c)
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		kind, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.TextMessage {
			continue
		}
		reply := c.handleControl(data)
		select {
		case c.send <- reply:
		default:
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.hub.Unregister(c.userID, c)
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
