package realtime

import (
	"github.com/google/uuid"

	"github.com/streamlance/backend/internal/delivery"
)

// QueueNotifier adapts the hub to the delivery queue's notification hook, so
// connected overlay sessions see queue changes without polling.
type QueueNotifier struct {
	hub *Hub
}

// NewQueueNotifier creates the hub-backed queue notifier.
func NewQueueNotifier(hub *Hub) *QueueNotifier {
	return &QueueNotifier{hub: hub}
}

// QueueChanged pushes the fresh queue status to the streamer's sessions.
func (n *QueueNotifier) QueueChanged(streamerID uuid.UUID, status *delivery.QueueStatus) {
	n.hub.BroadcastToStreamerAndPublish(streamerID, "queue_update", status)
}
