package models

import (
	"time"

	"github.com/google/uuid"
)

// Queue item kinds.
const (
	QueueItemVideo    = "video"
	QueueItemDonation = "donation"
)

// QueueItem is one unit of playable content in a streamer's delivery queue.
// It is a flat record (no nested references) so it round-trips through the
// Redis-backed queue as JSON. PlayNumber/TotalPlays track multi-play campaign
// progress; each play is a distinct item.
type QueueItem struct {
	ID          string     `json:"id"`
	StreamerID  uuid.UUID  `json:"streamer_id"`
	Kind        string     `json:"kind"`
	VideoURL    string     `json:"video_url,omitempty"`
	Message     string     `json:"message,omitempty"`
	AmountCents int64      `json:"amount_cents,omitempty"`
	DonationID  *uuid.UUID `json:"donation_id,omitempty"`
	CampaignID  *uuid.UUID `json:"campaign_id,omitempty"`
	PlayNumber  int        `json:"play_number"`
	TotalPlays  int        `json:"total_plays"`
	DueAt       time.Time  `json:"due_at"`
	EnqueuedAt  time.Time  `json:"enqueued_at"`
}
