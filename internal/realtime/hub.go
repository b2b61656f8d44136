// Package realtime pushes grievance events to connected dashboards over
// WebSockets. With a Bus configured, events published on any instance reach
// clients connected to every instance.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/noah-isme/grievance-api/internal/models"
)

// Bus carries encoded events between API instances.
type Bus interface {
	Publish(ctx context.Context, payload []byte) error
	Subscribe(ctx context.Context) (<-chan []byte, error)
}

// Hub tracks connected clients and fans events out to them.
type Hub struct {
	bus    Bus
	logger *zap.Logger

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}

	mu      sync.RWMutex
	clients map[*Client]struct{}
}

// NewHub builds a hub. bus may be nil for single-instance deployments.
func NewHub(bus Bus, logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		bus:        bus,
		logger:     logger,
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
		clients:    make(map[*Client]struct{}),
	}
}

// Run services the hub until ctx is cancelled, then closes all clients.
func (h *Hub) Run(ctx context.Context) error {
	defer close(h.done)
	var remote <-chan []byte
	if h.bus != nil {
		ch, err := h.bus.Subscribe(ctx)
		if err != nil {
			return fmt.Errorf("subscribe realtime bus: %w", err)
		}
		remote = ch
	}

	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return nil
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug("realtime client connected", zap.String("user_id", c.userID))
		case c := <-h.unregister:
			h.drop(c)
		case payload := <-h.broadcast:
			h.fanOut(payload)
		case payload, ok := <-remote:
			if !ok {
				remote = nil
				h.logger.Warn("realtime bus subscription closed")
				continue
			}
			h.fanOut(payload)
		}
	}
}

// Publish delivers evt to every connected client, via the bus when present.
func (h *Hub) Publish(ctx context.Context, evt models.NotificationEvent) error {
	payload, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("encode realtime event: %w", err)
	}
	if h.bus != nil {
		return h.bus.Publish(ctx, payload)
	}
	select {
	case h.broadcast <- payload:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Count reports connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) fanOut(payload []byte) {
	h.mu.RLock()
	var slow []*Client
	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()
	for _, c := range slow {
		h.logger.Warn("dropping slow realtime client", zap.String("user_id", c.userID))
		h.drop(c)
	}
}

func (h *Hub) drop(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
}
