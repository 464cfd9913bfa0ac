package models

import (
	"time"

	"github.com/google/uuid"
)

// Donation statuses. A donation moves PENDING -> SCHEDULED -> PLAYED;
// FAILED is reachable from PENDING or SCHEDULED on validation or payment failure.
const (
	DonationStatusPending   = "pending"
	DonationStatusScheduled = "scheduled"
	DonationStatusPlayed    = "played"
	DonationStatusFailed    = "failed"
)

// Donation is a funded ad/donation play for a streamer. Amounts and expected
// revenue are integer minor currency units.
type Donation struct {
	ID                   uuid.UUID  `json:"id"`
	StreamerID           uuid.UUID  `json:"streamer_id"`
	CompanyID            uuid.UUID  `json:"company_id"`
	CampaignID           *uuid.UUID `json:"campaign_id,omitempty"`
	AmountCents          int64      `json:"amount_cents"`
	Currency             string     `json:"currency"`
	Message              string     `json:"message,omitempty"`
	VideoURL             string     `json:"video_url,omitempty"`
	Status               string     `json:"status"`
	ScheduledFor         *time.Time `json:"scheduled_for,omitempty"`
	PaymentRef           string     `json:"payment_ref,omitempty"`
	ExpectedRevenueCents int64      `json:"expected_revenue_cents"`
	PlayedAt             *time.Time `json:"played_at,omitempty"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}
