package models

import (
	"time"

	"github.com/google/uuid"
)

// Campaign statuses.
const (
	CampaignStatusActive    = "active"
	CampaignStatusPartial   = "partial"
	CampaignStatusCompleted = "completed"
	CampaignStatusFailed    = "failed"
)

// Campaign is a multi-streamer buy for a target view count.
// RemainingViews > 0 records partial fulfillment; it is not an error state.
type Campaign struct {
	ID                 uuid.UUID           `json:"id"`
	CompanyID          uuid.UUID           `json:"company_id"`
	VideoURL           string              `json:"video_url"`
	TargetViews        int64               `json:"target_views"`
	BudgetCeilingCents *int64              `json:"budget_ceiling_cents,omitempty"`
	TotalCostCents     int64               `json:"total_cost_cents"`
	ViewsAchieved      int64               `json:"views_achieved"`
	RemainingViews     int64               `json:"remaining_views"`
	Status             string              `json:"status"`
	Selections         []CampaignSelection `json:"selections,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
}

// CampaignSelection is the per-streamer assignment produced by the allocator.
type CampaignSelection struct {
	ID            uuid.UUID `json:"id"`
	CampaignID    uuid.UUID `json:"campaign_id"`
	StreamerID    uuid.UUID `json:"streamer_id"`
	Plays         int64     `json:"plays"`
	ExpectedViews int64     `json:"expected_views"`
	CostCents     int64     `json:"cost_cents"`
	CreatedAt     time.Time `json:"created_at"`
}
