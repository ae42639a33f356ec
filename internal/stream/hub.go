// Package stream pushes live price updates to websocket clients.
package stream

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"dinar-ticker/internal/domain"
	"dinar-ticker/internal/simulator"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	MessageSnapshot = "snapshot"
	MessageUpdate   = "update"
)

// Message is the JSON frame sent to clients.
type Message struct {
	Type   string             `json:"type"`
	Quote  *domain.LiveQuote  `json:"quote,omitempty"`
	Quotes []domain.LiveQuote `json:"quotes,omitempty"`
}

// Hub tracks connected clients and fans updates out to them. A client whose
// buffer is full misses the update rather than stalling the others.
type Hub struct {
	logger   *zap.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[string]*client
	closed  bool
}

func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		logger: logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		clients: make(map[string]*client),
	}
}

// Serve upgrades the request and registers the connection. The snapshot is
// sent before any update.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, snapshot []domain.LiveQuote) error {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{
		id:   uuid.NewString(),
		hub:  h,
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	if data, err := json.Marshal(Message{Type: MessageSnapshot, Quotes: snapshot}); err == nil {
		c.send <- data
	}

	if !h.add(c) {
		close(c.send)
		go c.writePump()
		return nil
	}

	go c.writePump()
	go c.readPump()
	return nil
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends one live quote to every client.
func (h *Hub) Broadcast(q domain.LiveQuote) {
	data, err := json.Marshal(Message{Type: MessageUpdate, Quote: &q})
	if err != nil {
		h.logger.Error("marshal live update", zap.String("asset", q.ID), zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if !c.offer(data) {
			h.logger.Debug("client send buffer full", zap.String("client_id", c.id))
		}
	}
}

// Run relays simulator updates until ctx is cancelled or updates is closed,
// then disconnects every client.
func (h *Hub) Run(ctx context.Context, updates <-chan simulator.Update) {
	defer h.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			h.Broadcast(domain.NewLiveQuote(u.ID, u.State))
		}
	}
}

// Close disconnects all clients. Later connections are closed immediately.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for id, c := range h.clients {
		close(c.send)
		delete(h.clients, id)
	}
	h.logger.Info("Live stream hub closed")
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c.id] = c
	h.logger.Debug("websocket client connected", zap.String("client_id", c.id), zap.Int("clients", len(h.clients)))
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c.id]; !ok {
		return
	}
	delete(h.clients, c.id)
	close(c.send)
	h.logger.Debug("websocket client disconnected", zap.String("client_id", c.id), zap.Int("clients", len(h.clients)))
}
