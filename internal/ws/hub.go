package ws

import (
	"encoding/json"
	"sync"
)

// Client represents a single WebSocket connection of an account.
type Client struct {
	AccountID string
	Send      chan []byte
	Hub       *Hub // set so Close() can unregister
	mu        sync.Mutex
	closed    bool
}

func NewClient(accountID string) *Client {
	return &Client{AccountID: accountID, Send: make(chan []byte, 256)}
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.Hub != nil {
		c.Hub.unregister(c)
	}
	close(c.Send)
}

// Hub maintains the set of active clients per account and fans events out to them.
type Hub struct {
	mu sync.RWMutex
	// accountID -> clients (one account can have multiple connections)
	byAccount map[string]map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{byAccount: make(map[string]map[*Client]struct{})}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.Hub = h
	if h.byAccount[c.AccountID] == nil {
		h.byAccount[c.AccountID] = make(map[*Client]struct{})
	}
	h.byAccount[c.AccountID][c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if m := h.byAccount[c.AccountID]; m != nil {
		delete(m, c)
		if len(m) == 0 {
			delete(h.byAccount, c.AccountID)
		}
	}
}

// BroadcastToAccount queues payload for every connection of the account. Slow clients
// with a full buffer miss the event.
func (h *Hub) BroadcastToAccount(accountID string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.byAccount[accountID] {
		select {
		case c.Send <- data:
		default:
		}
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, m := range h.byAccount {
		n += len(m)
	}
	return n
}
