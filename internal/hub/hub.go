package hub

import (
	"sync"

	"go.uber.org/zap"

	"classpoll/internal/domain"
)

// Hub tracks connected clients and delivers events to them. Per
// recipient, events are delivered in the order they were enqueued; no
// total order across recipients is guaranteed. A client that cannot
// keep up is dropped so it never stalls the sender.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	logger  *zap.Logger
}

// New creates an empty hub
func New(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

// Register adds a client to the hub
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	n := len(h.clients)
	h.mu.Unlock()

	h.logger.Debug("client registered",
		zap.String("client_id", c.ID),
		zap.Int("connections", n))
}

// Unregister removes a client and closes its send channel; queued
// envelopes are still flushed by the client's write pump. Unknown ids
// are a no-op, so it is safe to call from multiple cleanup paths.
func (h *Hub) Unregister(id string) {
	h.mu.Lock()
	c, ok := h.clients[id]
	if ok {
		delete(h.clients, id)
		close(c.send)
	}
	n := len(h.clients)
	h.mu.Unlock()

	if ok {
		h.logger.Debug("client unregistered",
			zap.String("client_id", id),
			zap.Int("connections", n))
	}
}

// Disconnect flushes and closes a single client. It satisfies the
// coordinator's Dispatcher contract.
func (h *Hub) Disconnect(id string) {
	h.Unregister(id)
}

// Broadcast enqueues an event for every connected client
func (h *Hub) Broadcast(event string, data interface{}) {
	env := domain.OutboundEnvelope{Event: event, Data: data}

	var stale []string
	h.mu.RLock()
	for id, c := range h.clients {
		if !c.trySend(env) {
			stale = append(stale, id)
		}
	}
	h.mu.RUnlock()

	for _, id := range stale {
		h.logger.Warn("dropping slow client",
			zap.String("client_id", id),
			zap.String("event", event))
		h.Unregister(id)
	}
}

// Send enqueues an event for a single client; unknown ids are ignored
func (h *Hub) Send(id string, event string, data interface{}) {
	env := domain.OutboundEnvelope{Event: event, Data: data}

	h.mu.RLock()
	c, ok := h.clients[id]
	full := ok && !c.trySend(env)
	h.mu.RUnlock()

	if full {
		h.logger.Warn("dropping slow client",
			zap.String("client_id", id),
			zap.String("event", event))
		h.Unregister(id)
	}
}

// Count returns the number of connected clients
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
