package notification

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

type client struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *client) writeJSON(v interface{}, wait time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(wait))
	return c.conn.WriteJSON(v)
}

// Hub holds one live socket per user and pushes events to whoever is online.
// A peer that stops reading is dropped once a write exceeds writeWait.
type Hub struct {
	clients   map[int64]*client
	mutex     sync.RWMutex
	writeWait time.Duration
}

func NewHub() *Hub {
	return &Hub{clients: make(map[int64]*client), writeWait: writeWait}
}

// Register replaces any socket the user already had open.
func (h *Hub) Register(userID int64, conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if old, ok := h.clients[userID]; ok && old.conn != conn {
		_ = old.conn.Close()
	}
	h.clients[userID] = &client{conn: conn}
}

// Unregister drops conn if it is still the user's current socket.
func (h *Hub) Unregister(userID int64, conn *websocket.Conn) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if c, ok := h.clients[userID]; ok && c.conn == conn {
		_ = c.conn.Close()
		delete(h.clients, userID)
	}
}

func (h *Hub) SendToUser(userID int64, message interface{}) bool {
	h.mutex.RLock()
	c, ok := h.clients[userID]
	h.mutex.RUnlock()
	if !ok {
		return false
	}

	if err := c.writeJSON(message, h.writeWait); err != nil {
		h.Unregister(userID, c.conn)
		return false
	}
	return true
}

func (h *Hub) IsOnline(userID int64) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	_, ok := h.clients[userID]
	return ok
}

func (h *Hub) OnlineCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *Hub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	for userID, c := range h.clients {
		_ = c.conn.Close()
		delete(h.clients, userID)
	}
}

func (h *Hub) ping(userID int64) bool {
	h.mutex.RLock()
	c, ok := h.clients[userID]
	h.mutex.RUnlock()
	if !ok {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(h.writeWait))
	return c.conn.WriteMessage(websocket.PingMessage, nil) == nil
}
