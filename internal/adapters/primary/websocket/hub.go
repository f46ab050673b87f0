package websocket

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/lorrc/support-chat-gateway/internal/core/domain"
	apperrors "github.com/lorrc/support-chat-gateway/internal/core/errors"
	"github.com/lorrc/support-chat-gateway/internal/core/ports"
)

// Hub maps connection IDs to their live Clients and queues events onto them.
// Routing decisions (who receives what) are made by the core services; the hub
// only knows how to reach a single connection.
type Hub struct {
	// clients maps connection IDs to their client
	clients map[string]*Client

	// mu protects the clients map and closing
	mu      sync.RWMutex
	closing bool

	// serving counts attached clients that have not finished
	serving sync.WaitGroup

	// logger for the hub
	logger *slog.Logger
}

// Ensure Hub implements the EventEmitter interface.
var _ ports.EventEmitter = (*Hub)(nil)

// NewHub creates a new WebSocket hub
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger.With("component", "websocket_hub"),
	}
}

// ErrHubClosed is returned by Attach once CloseAll has run.
var ErrHubClosed = errors.New("websocket hub closed")

// Attach makes the client reachable through Emit. Every attached client must
// be released with Finish.
func (h *Hub) Attach(client *Client) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closing {
		return ErrHubClosed
	}
	h.serving.Add(1)
	h.clients[client.ID] = client

	h.logger.Debug("client attached",
		"connection_id", client.ID,
		"total_connections", len(h.clients),
	)
	return nil
}

// Finish detaches the client and marks it done for Wait. Calls after the
// first have no effect.
func (h *Hub) Finish(client *Client) {
	h.Detach(client)
	client.finished.Do(h.serving.Done)
}

// Wait blocks until every attached client has finished or ctx ends.
func (h *Hub) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		h.serving.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Detach removes the client and closes its send channel. Safe to call more
// than once.
func (h *Hub) Detach(client *Client) {
	h.mu.Lock()
	if current, ok := h.clients[client.ID]; ok && current == client {
		delete(h.clients, client.ID)
	}
	h.mu.Unlock()

	client.CloseSend()
}

// Emit queues the event on the connection without blocking. A client whose
// buffer is full is detached so its write pump closes the socket.
func (h *Hub) Emit(connectionID string, event domain.Event) error {
	h.mu.RLock()
	client, ok := h.clients[connectionID]
	h.mu.RUnlock()
	if !ok {
		return apperrors.ErrConnectionNotFound
	}

	err := client.enqueue(event)
	if !errors.Is(err, apperrors.ErrConnectionSaturated) {
		return err
	}

	h.logger.Warn("client send buffer full, closing connection",
		"connection_id", connectionID,
		"event_type", event.Type,
	)
	h.Detach(client)
	return err
}

// CloseAll detaches every client and refuses new ones. Used on shutdown,
// since hijacked connections are not tracked by http.Server. Follow it with
// Wait to let the clients finish disconnecting.
func (h *Hub) CloseAll() {
	h.mu.Lock()
	h.closing = true
	clients := make([]*Client, 0, len(h.clients))
	for id, client := range h.clients {
		clients = append(clients, client)
		delete(h.clients, id)
	}
	h.mu.Unlock()

	for _, client := range clients {
		client.CloseSend()
	}

	h.logger.Info("all clients closed", "count", len(clients))
}

// GetClientCount returns the total number of attached connections
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsAttached reports whether the connection is currently reachable.
func (h *Hub) IsAttached(connectionID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[connectionID]
	return ok
}
