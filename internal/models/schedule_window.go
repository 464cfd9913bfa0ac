package models

import (
	"time"

	"github.com/google/uuid"
)

// ScheduleWindow is a streamer's declared on-air availability for ad insertion.
// Windows for one streamer never overlap; MaxAdsPerHour caps bookings per
// clock-hour bucket inside the window.
type ScheduleWindow struct {
	ID            uuid.UUID `json:"id"`
	StreamerID    uuid.UUID `json:"streamer_id"`
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	MaxAdsPerHour int       `json:"max_ads_per_hour"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}
