package realtime

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"teamboard/pkg/metrics"
)

// Client is one connected subscriber. Frames are queued on send; a full
// queue drops the frame.
type Client struct {
	UserID string
	send   chan []byte
	rooms  map[string]struct{}
}

func NewClient(userID string, buffer int) *Client {
	if buffer <= 0 {
		buffer = 64
	}
	return &Client{
		UserID: userID,
		send:   make(chan []byte, buffer),
		rooms:  make(map[string]struct{}),
	}
}

// Send exposes the outbound queue to the transport. It is closed on Unregister.
func (c *Client) Send() <-chan []byte { return c.send }

// Relay forwards frames to other API instances.
type Relay interface {
	Publish(ctx context.Context, room string, frame []byte) error
}

// Hub fans events out to connected clients. Delivery is best-effort and
// at-most-once.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
	rooms   map[string]map[*Client]struct{}

	relay  Relay
	logger *zap.Logger
}

func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		clients: make(map[*Client]struct{}),
		rooms:   make(map[string]map[*Client]struct{}),
		logger:  logger,
	}
}

// SetRelay enables cross-instance fan-out. Call before serving traffic.
func (h *Hub) SetRelay(r Relay) {
	h.relay = r
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()

	metrics.ConnectedClients.Inc()
	h.logger.Debug("Client registered", zap.String("user_id", c.UserID), zap.Int("clients", n))
}

func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	for room := range c.rooms {
		h.removeFromRoom(c, room)
	}
	close(c.send)
	h.mu.Unlock()

	metrics.ConnectedClients.Dec()
	h.logger.Debug("Client unregistered", zap.String("user_id", c.UserID))
}

// Join subscribes c to room. Joining twice is a no-op.
func (h *Hub) Join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	members, ok := h.rooms[room]
	if !ok {
		members = make(map[*Client]struct{})
		h.rooms[room] = members
	}
	members[c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) Leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeFromRoom(c, room)
}

// removeFromRoom requires h.mu held.
func (h *Hub) removeFromRoom(c *Client, room string) {
	delete(c.rooms, room)
	if members, ok := h.rooms[room]; ok {
		delete(members, c)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
}

// Global publishes an event to every connected client.
func (h *Hub) Global(ctx context.Context, event string, data any) {
	h.publish(ctx, "", event, data)
}

// ToRoom publishes an event to the clients joined to room.
func (h *Hub) ToRoom(ctx context.Context, room, event string, data any) {
	h.publish(ctx, room, event, data)
}

func (h *Hub) publish(ctx context.Context, room, event string, data any) {
	frame, err := encodeFrame(event, data)
	if err != nil {
		h.logger.Error("Failed to encode broadcast", zap.String("event", event), zap.Error(err))
		return
	}
	metrics.IncrementBroadcast(event)
	h.Deliver(room, event, frame)

	if h.relay != nil {
		if err := h.relay.Publish(ctx, room, frame); err != nil {
			h.logger.Warn("Failed to relay broadcast",
				zap.String("event", event),
				zap.String("room", room),
				zap.Error(err),
			)
		}
	}
}

// Deliver queues an encoded frame to local clients. An empty room means all.
func (h *Hub) Deliver(room, event string, frame []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	targets := h.clients
	if room != "" {
		targets = h.rooms[room]
	}
	for c := range targets {
		select {
		case c.send <- frame:
		default:
			metrics.IncrementBroadcastDropped(event)
			h.logger.Warn("Dropped broadcast for slow client",
				zap.String("event", event),
				zap.String("user_id", c.UserID),
			)
		}
	}
}

// Stats reports connected clients and active rooms.
func (h *Hub) Stats() (clients, rooms int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients), len(h.rooms)
}
