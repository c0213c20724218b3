package hub

import (
	"encoding/json"
	"sync"
	"time"

	pkglog "github.com/weiawesome/live-relay/pkg/log"

	"github.com/weiawesome/live-relay/internal/config"
)

// Hub manages all WebSocket connections.
//
// Register and Unregister run synchronously under the hub lock, and every
// enqueue onto a client's Send channel happens under the read lock while the
// client is still registered, so Send is never written after it is closed.
type Hub struct {
	clients map[string]*Client
	mu      sync.RWMutex
	config  config.WebSocketConfig
}

// NewHub creates a new Hub.
func NewHub(cfg config.WebSocketConfig) *Hub {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 25 * time.Second
	}
	if cfg.PongWait <= 0 {
		cfg.PongWait = 60 * time.Second
	}
	if cfg.WriteWait <= 0 {
		cfg.WriteWait = 10 * time.Second
	}
	return &Hub{
		clients: make(map[string]*Client),
		config:  cfg,
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	n := len(h.clients)
	h.mu.Unlock()

	l := pkglog.L()
	l.Debug().Str(pkglog.FieldConnID, client.ID).Int("connections", n).Msg("client registered")
}

// Unregister removes a client and closes its send queue. Safe to call more
// than once.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client.ID]
	if ok {
		delete(h.clients, client.ID)
		close(client.Send)
	}
	h.mu.Unlock()

	if ok {
		l := pkglog.L()
		l.Debug().Str(pkglog.FieldConnID, client.ID).Msg("client unregistered")
	}
}

// Broadcast sends message to every registered client. A client whose buffer is
// full is evicted; the others still receive the message.
func (h *Hub) Broadcast(message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, client := range h.clients {
		h.enqueueLocked(client, data)
	}
	return nil
}

// SendToClient sends a message to a specific client. Unknown ids are ignored.
func (h *Hub) SendToClient(clientID string, message interface{}) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	if client, ok := h.clients[clientID]; ok {
		h.enqueueLocked(client, data)
	}
	return nil
}

// Count returns the number of open connections (joined or not).
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Shutdown unregisters every client. Each WritePump then sends a close frame
// and tears its connection down.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	for _, c := range clients {
		h.Unregister(c)
	}
}

// enqueueLocked must be called with h.mu held.
func (h *Hub) enqueueLocked(client *Client, data []byte) {
	select {
	case client.Send <- data:
	default:
		// Client's send buffer is full
		l := pkglog.L()
		l.Warn().Str(pkglog.FieldConnID, client.ID).Msg("send buffer full, evicting client")
		go h.Unregister(client)
	}
}
