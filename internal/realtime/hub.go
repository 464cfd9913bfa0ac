// Package realtime pushes queue and playback events to connected streamer
// overlay sessions over WebSocket, with Redis pub/sub fanning events out
// across instances. Push is an optimization; the queue endpoints stay
// authoritative when no session is connected.
package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat (seconds).
	PingInterval = 30
	PongWait     = 60
)

// Hub maintains streamer_id -> set of connections and broadcasts messages.
// Uses Redis pub/sub for horizontal scaling: local broadcast + publish to Redis.
type Hub struct {
	// streamerID -> map[clientID]*Client
	rooms    map[uuid.UUID]map[string]*Client
	subs     map[uuid.UUID]func() // cancel Redis subscription per streamer
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
}

// RedisPublisher is the interface for publishing to Redis (for cross-instance broadcast).
type RedisPublisher interface {
	PublishStreamerEvent(streamerID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber subscribes to streamer channels and invokes handler for incoming events.
type RedisSubscriber interface {
	SubscribeStreamer(streamerID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error)
}

// NewHub creates a new WebSocket hub.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:    make(map[uuid.UUID]map[string]*Client),
		subs:     make(map[uuid.UUID]func()),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Register adds a client to a streamer room. Starts the Redis subscription for
// this streamer on the first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if h.rooms[c.StreamerID] == nil {
		h.rooms[c.StreamerID] = make(map[string]*Client)
		if h.redisSub != nil {
			cancel, err := h.redisSub.SubscribeStreamer(c.StreamerID, func(event string, payload []byte) {
				h.BroadcastToStreamer(c.StreamerID, event, json.RawMessage(payload))
			})
			if err == nil {
				h.subs[c.StreamerID] = cancel
			}
		}
	}
	h.rooms[c.StreamerID][c.ID] = c
	h.mu.Unlock()
	h.logger.Debug("session joined", zap.String("client_id", c.ID), zap.String("streamer_id", c.StreamerID.String()))
}

// Unregister removes a client from a streamer room. Cancels the Redis
// subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if m, ok := h.rooms[c.StreamerID]; ok {
		delete(m, c.ID)
		if len(m) == 0 {
			delete(h.rooms, c.StreamerID)
			if cancel, ok := h.subs[c.StreamerID]; ok {
				cancel()
				delete(h.subs, c.StreamerID)
			}
		}
	}
	h.mu.Unlock()
	h.logger.Debug("session left", zap.String("client_id", c.ID), zap.String("streamer_id", c.StreamerID.String()))
}

// BroadcastToStreamer sends a message to all of a streamer's sessions (local only).
func (h *Hub) BroadcastToStreamer(streamerID uuid.UUID, event string, payload interface{}) {
	var data []byte
	switch v := payload.(type) {
	case []byte:
		data = v
	case json.RawMessage:
		data = v
	default:
		data, _ = json.Marshal(payload)
	}
	msg := WSMessage{Event: event, Data: data}

	h.mu.RLock()
	clients := h.rooms[streamerID]
	h.mu.RUnlock()

	if clients == nil {
		return
	}
	for _, c := range clients {
		select {
		case c.send <- msg:
		default:
			// buffer full, skip
		}
	}
}

// BroadcastToStreamerAndPublish sends to local sessions and publishes to Redis
// for other instances.
func (h *Hub) BroadcastToStreamerAndPublish(streamerID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		return
	}
	h.BroadcastToStreamer(streamerID, event, payload)
	if h.redis != nil {
		_ = h.redis.PublishStreamerEvent(streamerID, event, data)
	}
}

// SessionCount returns the number of connected sessions for a streamer.
func (h *Hub) SessionCount(streamerID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[streamerID])
}
