package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/noah-isme/smart-report-api/internal/models"
)

// Hub tracks connected clients and forwards channel events to them.
type Hub struct {
	channel Channel
	logger  *zap.Logger
	onCount func(int)

	mu      sync.RWMutex
	clients map[*Client]struct{}
	stopped bool
}

// NewHub builds a hub. onCount, when set, is called with the client count after every change.
func NewHub(channel Channel, logger *zap.Logger, onCount func(int)) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{channel: channel, logger: logger, onCount: onCount, clients: make(map[*Client]struct{})}
}

// Publish forwards the event to the channel so every instance's hub broadcasts it.
func (h *Hub) Publish(ctx context.Context, event models.Event) error {
	return h.channel.Publish(ctx, event)
}

// Start subscribes to the channel and forwards events until ctx is done,
// then disconnects every client.
func (h *Hub) Start(ctx context.Context) error {
	events, cancel, err := h.channel.Subscribe(ctx)
	if err != nil {
		return err
	}
	go h.run(ctx, events, cancel)
	return nil
}

func (h *Hub) run(ctx context.Context, events <-chan models.Event, cancel func()) {
	defer cancel()
	defer h.closeAll()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			h.broadcast(event)
		}
	}
}

// Attach registers an upgraded connection for the principal and starts its pumps.
func (h *Hub) Attach(conn *websocket.Conn, principal *models.Principal) {
	client := &Client{
		hub:    h,
		conn:   conn,
		send:   make(chan models.Event, sendBuffer),
		userID: principal.UserID,
		role:   principal.Role,
		logger: h.logger,
	}
	if principal.ClassID != nil {
		client.classID = *principal.ClassID
	}
	if !h.register(client) {
		h.logger.Debug("realtime hub stopped, refusing client", zap.String("user_id", client.userID))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(writeWait))
		_ = conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()
}

// Count returns the number of connected clients.
func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// register adds the client unless the hub has already shut down.
func (h *Hub) register(c *Client) bool {
	h.mu.Lock()
	if h.stopped {
		h.mu.Unlock()
		return false
	}
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("realtime client connected", zap.String("user_id", c.userID), zap.Int("clients", n))
	h.report(n)
	return true
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	close(c.send)
	n := len(h.clients)
	h.mu.Unlock()
	h.report(n)
}

func (h *Hub) broadcast(event models.Event) {
	var slow []*Client
	h.mu.RLock()
	for c := range h.clients {
		if !c.accepts(event) {
			continue
		}
		select {
		case c.send <- event:
		default:
			slow = append(slow, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range slow {
		h.logger.Warn("dropping slow realtime client", zap.String("user_id", c.userID))
		h.unregister(c)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	h.stopped = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	h.mu.Unlock()
	h.report(0)
}

func (h *Hub) report(n int) {
	if h.onCount != nil {
		h.onCount(n)
	}
}
