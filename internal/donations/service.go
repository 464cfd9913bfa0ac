// Package donations orchestrates the donation/ad-play flow: slot validation,
// persistence, pricing, delivery-queue handoff and the fixed-duration
// playback lifecycle.
package donations

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/streamlance/backend/internal/delivery"
	"github.com/streamlance/backend/internal/models"
	"github.com/streamlance/backend/internal/pricing"
	"github.com/streamlance/backend/internal/streamers"
)

var (
	// ErrInvalidAmount is returned for a non-positive donation amount.
	ErrInvalidAmount = errors.New("donation amount must be positive")
	// ErrStreamerNotFound is returned for an unknown streamer.
	ErrStreamerNotFound = errors.New("streamer not found")
	// ErrPaymentFailed is returned when the payment gateway did not confirm;
	// the donation is persisted as failed and never enqueued.
	ErrPaymentFailed = errors.New("payment not confirmed")
)

// Broadcaster pushes events to a streamer's connected playback sessions.
type Broadcaster interface {
	BroadcastToStreamerAndPublish(streamerID uuid.UUID, event string, payload interface{})
}

// CreateDonationInput is the orchestrator's booking request. PaymentOK and
// PaymentRef come from the external payment service; any non-success means
// the donation is recorded as failed without touching the queue.
type CreateDonationInput struct {
	StreamerID   uuid.UUID
	CompanyID    uuid.UUID
	AmountCents  int64
	Currency     string
	Message      string
	VideoURL     string
	ScheduledFor *time.Time
	PaymentRef   string
	PaymentOK    bool
}

// Service is the donation orchestrator.
type Service struct {
	repo         *Repository
	streamerRepo *streamers.Repository
	viewers      *streamers.ViewerFeed
	queue        *delivery.Queue
	hub          Broadcaster
	timers       *TimerRegistry
	playback     time.Duration
	logger       *zap.Logger
}

// NewService creates a donation orchestrator. hub may be nil (push is an
// optimization; polling stays correct without it).
func NewService(repo *Repository, streamerRepo *streamers.Repository, viewers *streamers.ViewerFeed,
	queue *delivery.Queue, hub Broadcaster, timers *TimerRegistry, playback time.Duration, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:         repo,
		streamerRepo: streamerRepo,
		viewers:      viewers,
		queue:        queue,
		hub:          hub,
		timers:       timers,
		playback:     playback,
		logger:       logger,
	}
}

// CreateDonation validates, persists and enqueues one funded play. Scheduled
// bookings validate the slot inside the same transaction that inserts the
// row, so a rejected booking never leaves a partial record.
func (s *Service) CreateDonation(ctx context.Context, in CreateDonationInput) (*models.Donation, error) {
	if in.AmountCents <= 0 {
		return nil, ErrInvalidAmount
	}
	streamer, err := s.streamerRepo.GetByID(ctx, in.StreamerID)
	if err != nil {
		return nil, err
	}
	if streamer == nil {
		return nil, ErrStreamerNotFound
	}

	currency := in.Currency
	if currency == "" {
		currency = streamer.Currency
	}
	d := &models.Donation{
		StreamerID:   in.StreamerID,
		CompanyID:    in.CompanyID,
		AmountCents:  in.AmountCents,
		Currency:     currency,
		Message:      in.Message,
		VideoURL:     in.VideoURL,
		ScheduledFor: in.ScheduledFor,
		PaymentRef:   in.PaymentRef,
	}

	if !in.PaymentOK {
		d.Status = models.DonationStatusFailed
		if err := s.repo.Create(ctx, d); err != nil {
			return nil, err
		}
		return d, ErrPaymentFailed
	}

	ccv := s.viewers.Current(ctx, streamer.ID, streamer.AverageViews)
	streamerShare, _, err := pricing.IncomeForStream(ccv, 1)
	if err != nil {
		return nil, err
	}
	d.ExpectedRevenueCents = streamerShare

	due := time.Now()
	if in.ScheduledFor != nil {
		d.Status = models.DonationStatusScheduled
		due = *in.ScheduledFor
		if err := s.repo.CreateScheduled(ctx, d); err != nil {
			return nil, err
		}
	} else {
		d.Status = models.DonationStatusPending
		if err := s.repo.Create(ctx, d); err != nil {
			return nil, err
		}
	}

	item := s.buildItem(d, due)
	if err := s.queue.Enqueue(ctx, item); err != nil {
		// The booking exists but can never deliver; fail it rather than
		// leave a phantom record.
		s.logger.Error("enqueue after persist failed", zap.Error(err), zap.String("donation_id", d.ID.String()))
		if mfErr := s.repo.MarkFailed(ctx, d.ID); mfErr != nil {
			s.logger.Error("mark failed after enqueue error", zap.Error(mfErr), zap.String("donation_id", d.ID.String()))
		}
		return nil, err
	}
	s.logger.Info("donation booked",
		zap.String("donation_id", d.ID.String()),
		zap.String("streamer_id", d.StreamerID.String()),
		zap.String("status", d.Status),
		zap.Int64("amount_cents", d.AmountCents),
	)
	return d, nil
}

func (s *Service) buildItem(d *models.Donation, due time.Time) *models.QueueItem {
	kind := models.QueueItemDonation
	if d.VideoURL != "" {
		kind = models.QueueItemVideo
	}
	donationID := d.ID
	return &models.QueueItem{
		StreamerID:  d.StreamerID,
		Kind:        kind,
		VideoURL:    d.VideoURL,
		Message:     d.Message,
		AmountCents: d.AmountCents,
		DonationID:  &donationID,
		CampaignID:  d.CampaignID,
		PlayNumber:  1,
		TotalPlays:  1,
		DueAt:       due,
	}
}

// GetNextForPlayback pops the next due item for the streamer's on-air client
// and arms the playback-completion timer. Returns nil when nothing is due.
func (s *Service) GetNextForPlayback(ctx context.Context, streamerID uuid.UUID) (*models.QueueItem, error) {
	item, err := s.queue.PopDue(ctx, streamerID, time.Now())
	if err != nil || item == nil {
		return nil, err
	}
	s.armPlayback(item)
	return item, nil
}

// armPlayback schedules finalization after the fixed playback duration. The
// timer is fire-and-forget: it never blocks the popping request, and its
// failures are retried by the periodic sweep.
func (s *Service) armPlayback(item *models.QueueItem) {
	s.timers.Arm(item.ID, s.playback, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.finalizeItem(ctx, item)
	})
}

func (s *Service) finalizeItem(ctx context.Context, item *models.QueueItem) {
	if item.DonationID != nil {
		if err := s.repo.MarkPlayed(ctx, *item.DonationID, time.Now()); err != nil {
			// The pop already happened and is irreversible; the sweep picks
			// this donation up on its next cycle.
			s.logger.Error("playback status flip failed",
				zap.Error(err),
				zap.String("donation_id", item.DonationID.String()),
			)
			return
		}
	}
	if s.hub != nil {
		s.hub.BroadcastToStreamerAndPublish(item.StreamerID, "play_done", map[string]interface{}{
			"item_id": item.ID,
		})
	}
}

// Skip cancels the playback timer for an item and finalizes it immediately
// (the streamer cut it short on air).
func (s *Service) Skip(ctx context.Context, streamerID uuid.UUID, itemID string, donationID *uuid.UUID) error {
	cancelled := s.timers.Cancel(itemID)
	if donationID != nil {
		if err := s.repo.MarkPlayed(ctx, *donationID, time.Now()); err != nil {
			return err
		}
	}
	s.logger.Info("playback skipped",
		zap.String("streamer_id", streamerID.String()),
		zap.String("item_id", itemID),
		zap.Bool("timer_cancelled", cancelled),
	)
	return nil
}

// DeliverDue drains every currently-due item for a streamer, pushing each to
// the live session and arming its playback timer. Used by the periodic sweep
// to deliver scheduled items without the client polling every second. Safe to
// re-run: an empty queue is a no-op, and all state is derived from the queue.
func (s *Service) DeliverDue(ctx context.Context, streamerID uuid.UUID) (int, error) {
	delivered := 0
	for {
		item, err := s.queue.PopDue(ctx, streamerID, time.Now())
		if err != nil {
			return delivered, err
		}
		if item == nil {
			return delivered, nil
		}
		if s.hub != nil {
			s.hub.BroadcastToStreamerAndPublish(streamerID, "play_item", item)
		}
		s.armPlayback(item)
		delivered++
	}
}

// RetryStuck finalizes donations that were popped before cutoff but whose
// status flip never landed. A donation still sitting in the queue is left
// alone; the decision derives from the queue, not from in-memory state.
func (s *Service) RetryStuck(ctx context.Context, cutoff time.Time) (int, error) {
	overdue, err := s.repo.ListOverdue(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	fixed := 0
	for _, d := range overdue {
		queued, err := s.queue.Contains(ctx, d.StreamerID, d.ID)
		if err != nil {
			s.logger.Warn("queue scan during retry failed", zap.Error(err), zap.String("donation_id", d.ID.String()))
			continue
		}
		if queued {
			continue
		}
		if err := s.repo.MarkPlayed(ctx, d.ID, time.Now()); err != nil {
			s.logger.Error("stuck donation retry failed", zap.Error(err), zap.String("donation_id", d.ID.String()))
			continue
		}
		fixed++
	}
	return fixed, nil
}

// QueueStatus returns the delivery-queue status view for a streamer.
func (s *Service) QueueStatus(ctx context.Context, streamerID uuid.UUID) (*delivery.QueueStatus, error) {
	return s.queue.Status(ctx, streamerID)
}

// ListQueue returns up to limit pending items for display.
func (s *Service) ListQueue(ctx context.Context, streamerID uuid.UUID, limit int64) ([]models.QueueItem, error) {
	return s.queue.ListFirstN(ctx, streamerID, limit)
}

// ClearQueue drops every pending item for a streamer.
func (s *Service) ClearQueue(ctx context.Context, streamerID uuid.UUID) error {
	return s.queue.Clear(ctx, streamerID)
}
