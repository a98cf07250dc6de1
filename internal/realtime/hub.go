package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

// Message is the wire envelope pushed to subscribed clients.
type Message struct {
	Type    string          `json:"type"`
	CoinID  int64           `json:"coin_id,omitempty"`
	Payload json.RawMessage `json:"payload"`
	SentAt  time.Time       `json:"sent_at"`
}

type client struct {
	conn   *websocket.Conn
	userID int64
	coins  map[int64]bool
	send   chan []byte
}

// Hub fans out job results and alert notifications to websocket clients.
// Clients subscribe per coin; alert deliveries target a user id.
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]bool
	log     zerolog.Logger
	closed  bool
}

func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		clients: make(map[*client]bool),
		log:     log.With().Str("component", "realtime").Logger(),
	}
}

// subscribeRequest is the only inbound message type clients send.
type subscribeRequest struct {
	Action string `json:"action"` // "subscribe" or "unsubscribe"
	CoinID int64  `json:"coin_id"`
}

// ServeHTTP upgrades the request and pumps messages until the client
// disconnects or the hub closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("Websocket accept failed")
		return
	}

	c := &client{
		conn:   conn,
		userID: userIDFromRequest(r),
		coins:  make(map[int64]bool),
		send:   make(chan []byte, 64),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		conn.Close(websocket.StatusGoingAway, "shutting down")
		return
	}
	h.clients[c] = true
	h.mu.Unlock()

	ctx := r.Context()
	go h.writePump(ctx, c)
	h.readPump(ctx, c)

	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	close(c.send)
	conn.Close(websocket.StatusNormalClosure, "")
}

func (h *Hub) readPump(ctx context.Context, c *client) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}
		var req subscribeRequest
		if err := json.Unmarshal(data, &req); err != nil {
			continue
		}
		h.mu.Lock()
		switch req.Action {
		case "subscribe":
			c.coins[req.CoinID] = true
		case "unsubscribe":
			delete(c.coins, req.CoinID)
		}
		h.mu.Unlock()
	}
}

func (h *Hub) writePump(ctx context.Context, c *client) {
	for data := range c.send {
		writeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := c.conn.Write(writeCtx, websocket.MessageText, data)
		cancel()
		if err != nil {
			return
		}
	}
}

// BroadcastToCoin delivers a message to every client subscribed to the coin.
func (h *Hub) BroadcastToCoin(coinID int64, msgType string, payload any) {
	data, err := h.encode(msgType, coinID, payload)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.coins[coinID] {
			h.deliver(c, data)
		}
	}
}

// BroadcastToUser delivers a message to every connection of the user.
func (h *Hub) BroadcastToUser(userID int64, msgType string, payload any) {
	data, err := h.encode(msgType, 0, payload)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.userID == userID {
			h.deliver(c, data)
		}
	}
}

func (h *Hub) encode(msgType string, coinID int64, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		h.log.Error().Err(err).Str("type", msgType).Msg("Failed to encode broadcast payload")
		return nil, err
	}
	return json.Marshal(Message{
		Type:    msgType,
		CoinID:  coinID,
		Payload: body,
		SentAt:  time.Now().UTC(),
	})
}

// deliver drops the message if the client's buffer is full rather than
// blocking the broadcaster.
func (h *Hub) deliver(c *client, data []byte) {
	select {
	case c.send <- data:
	default:
		h.log.Debug().Int64("user_id", c.userID).Msg("Dropping message for slow websocket client")
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client and rejects new connections.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		c.conn.Close(websocket.StatusGoingAway, "shutting down")
	}
}

func userIDFromRequest(r *http.Request) int64 {
	// Single-user deployment; a reverse proxy can inject X-User-ID later.
	if v := r.Header.Get("X-User-ID"); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			return id
		}
	}
	return 1
}
