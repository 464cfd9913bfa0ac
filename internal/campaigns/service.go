// Package campaigns implements multi-streamer campaign booking: the company
// names a view target, the allocator picks streamers and play counts, and
// every funded play lands as a distinct item in its streamer's delivery queue.
package campaigns

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/streamlance/backend/internal/allocator"
	"github.com/streamlance/backend/internal/delivery"
	"github.com/streamlance/backend/internal/models"
	"github.com/streamlance/backend/internal/streamers"
)

// ErrMissingVideo is returned when a campaign has no video to play.
var ErrMissingVideo = errors.New("campaign requires a video URL")

// CreateCampaignInput is the booking request for a campaign.
type CreateCampaignInput struct {
	CompanyID          uuid.UUID
	VideoURL           string
	TargetViews        int64
	BudgetCeilingCents *int64
}

// Service coordinates allocation, persistence and queue fan-out.
type Service struct {
	repo         *Repository
	streamerRepo *streamers.Repository
	alloc        *allocator.Allocator
	queue        *delivery.Queue
	logger       *zap.Logger
}

// NewService creates a campaign service.
func NewService(repo *Repository, streamerRepo *streamers.Repository, alloc *allocator.Allocator,
	queue *delivery.Queue, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, streamerRepo: streamerRepo, alloc: alloc, queue: queue, logger: logger}
}

// CreateCampaign allocates the target across eligible streamers, persists the
// campaign with its selections, then enqueues each selection's plays as
// separate queue items carrying their play counters. Partial fulfillment is a
// normal outcome reported on the campaign, not an error.
func (s *Service) CreateCampaign(ctx context.Context, in CreateCampaignInput) (*models.Campaign, error) {
	if in.VideoURL == "" {
		return nil, ErrMissingVideo
	}
	eligible, err := s.streamerRepo.ListEligible(ctx)
	if err != nil {
		return nil, err
	}
	candidates := make([]allocator.Candidate, 0, len(eligible))
	for _, st := range eligible {
		candidates = append(candidates, allocator.Candidate{
			StreamerID:   st.ID,
			AverageViews: st.AverageViews,
			ChargeCents:  st.ChargeCents,
		})
	}

	result, err := s.alloc.SelectForTargetViews(candidates, in.TargetViews, in.BudgetCeilingCents)
	if err != nil {
		return nil, err
	}

	cp := &models.Campaign{
		CompanyID:          in.CompanyID,
		VideoURL:           in.VideoURL,
		TargetViews:        in.TargetViews,
		BudgetCeilingCents: in.BudgetCeilingCents,
		TotalCostCents:     result.TotalCostCents,
		ViewsAchieved:      result.ViewsAchieved,
		RemainingViews:     result.RemainingViews,
		Status:             models.CampaignStatusActive,
	}
	if result.RemainingViews > 0 {
		cp.Status = models.CampaignStatusPartial
	}
	for _, sel := range result.Selections {
		cp.Selections = append(cp.Selections, models.CampaignSelection{
			StreamerID:    sel.StreamerID,
			Plays:         sel.Plays,
			ExpectedViews: sel.ExpectedViews,
			CostCents:     sel.CostCents,
		})
	}
	if err := s.repo.Create(ctx, cp); err != nil {
		return nil, err
	}

	if err := s.enqueuePlays(ctx, cp); err != nil {
		// The campaign row is already committed; a half-delivered fan-out
		// must not survive as an active campaign. Remove whatever was queued
		// and fail the campaign so the booking is all-or-nothing.
		s.logger.Error("campaign fan-out failed", zap.Error(err), zap.String("campaign_id", cp.ID.String()))
		s.rollbackPlays(ctx, cp)
		if mfErr := s.repo.MarkFailed(ctx, cp.ID); mfErr != nil {
			s.logger.Error("mark campaign failed after fan-out error", zap.Error(mfErr), zap.String("campaign_id", cp.ID.String()))
		} else {
			cp.Status = models.CampaignStatusFailed
		}
		return nil, err
	}
	s.logger.Info("campaign booked",
		zap.String("campaign_id", cp.ID.String()),
		zap.Int64("target_views", cp.TargetViews),
		zap.Int64("views_achieved", cp.ViewsAchieved),
		zap.Int64("total_cost_cents", cp.TotalCostCents),
		zap.Int("streamers", len(cp.Selections)),
	)
	return cp, nil
}

// enqueuePlays inserts one queue item per funded play. Each item is distinct
// and carries its play counter, so the same video plays N separate times.
func (s *Service) enqueuePlays(ctx context.Context, cp *models.Campaign) error {
	campaignID := cp.ID
	now := time.Now()
	for _, sel := range cp.Selections {
		for play := int64(1); play <= sel.Plays; play++ {
			item := &models.QueueItem{
				StreamerID: sel.StreamerID,
				Kind:       models.QueueItemVideo,
				VideoURL:   cp.VideoURL,
				CampaignID: &campaignID,
				PlayNumber: int(play),
				TotalPlays: int(sel.Plays),
				DueAt:      now,
			}
			if err := s.queue.Enqueue(ctx, item); err != nil {
				return err
			}
		}
	}
	return nil
}

// rollbackPlays removes every queue item the failed fan-out managed to
// insert. Best-effort: items that cannot be removed are repaired by nothing
// else, so failures are logged loudly.
func (s *Service) rollbackPlays(ctx context.Context, cp *models.Campaign) {
	for _, sel := range cp.Selections {
		if _, err := s.queue.RemoveCampaign(ctx, sel.StreamerID, cp.ID); err != nil {
			s.logger.Error("fan-out rollback failed",
				zap.Error(err),
				zap.String("campaign_id", cp.ID.String()),
				zap.String("streamer_id", sel.StreamerID.String()),
			)
		}
	}
}

// GetCampaign returns a campaign with selections, or nil when absent.
func (s *Service) GetCampaign(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByCompany returns a company's campaigns.
func (s *Service) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]models.Campaign, error) {
	return s.repo.ListByCompany(ctx, companyID)
}
