package models

import (
	"time"

	"github.com/google/uuid"
)

// Streamer is a livestream host selling ad insertion slots.
// ChargeCents is the price for a single play in minor currency units;
// AverageViews feeds the allocator's efficiency ranking.
type Streamer struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	DisplayName  string    `json:"display_name"`
	ChannelURL   string    `json:"channel_url,omitempty"`
	AverageViews int64     `json:"average_views"`
	ChargeCents  int64     `json:"charge_cents"`
	Currency     string    `json:"currency"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
