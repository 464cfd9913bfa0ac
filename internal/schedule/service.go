// Package schedule implements the availability calendar: per-streamer
// schedule windows with a no-overlap invariant, slot validation against the
// hourly ad cap, and the 15-minute slot view for booking UIs.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/streamlance/backend/internal/models"
)

var (
	// ErrInvalidRange is returned when a window's start is not before its end.
	ErrInvalidRange = errors.New("window start must be before end")
	// ErrConflict is returned when a window overlaps another window of the
	// same streamer.
	ErrConflict = errors.New("window overlaps an existing window")
	// ErrWindowNotFound is returned for an unknown window ID.
	ErrWindowNotFound = errors.New("window not found")
)

// Slot rejection reasons surfaced to callers.
const (
	ReasonOutsideAvailability = "outside availability"
	ReasonHourFull            = "Hour slot full"
)

// SlotValidation is the outcome of checking a proposed booking time.
// AvailableSlots is the remaining capacity in the proposed hour.
type SlotValidation struct {
	Valid          bool   `json:"valid"`
	Reason         string `json:"reason,omitempty"`
	AvailableSlots int    `json:"available_slots"`
}

// Store is the persistence surface the calendar rules run against.
// *Repository is the production implementation.
type Store interface {
	Create(ctx context.Context, w *models.ScheduleWindow) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.ScheduleWindow, error)
	ListByStreamer(ctx context.Context, streamerID uuid.UUID) ([]models.ScheduleWindow, error)
	ListOverlapping(ctx context.Context, streamerID uuid.UUID, from, to time.Time) ([]models.ScheduleWindow, error)
	Update(ctx context.Context, w *models.ScheduleWindow) error
	Delete(ctx context.Context, id uuid.UUID) error
	HasConflict(ctx context.Context, streamerID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error)
	FindCovering(ctx context.Context, streamerID uuid.UUID, t time.Time) (*models.ScheduleWindow, error)
	CountScheduledInHour(ctx context.Context, streamerID uuid.UUID, hourStart time.Time) (int, error)
	CountScheduledByHour(ctx context.Context, streamerID uuid.UUID, from, to time.Time) (map[int64]int, error)
}

// Service owns the availability calendar rules.
type Service struct {
	repo   Store
	logger *zap.Logger
}

// NewService creates a calendar service.
func NewService(repo Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{repo: repo, logger: logger}
}

// CreateWindow validates and stores a new availability window.
func (s *Service) CreateWindow(ctx context.Context, w *models.ScheduleWindow) error {
	if !w.StartTime.Before(w.EndTime) {
		return ErrInvalidRange
	}
	if w.MaxAdsPerHour <= 0 {
		return fmt.Errorf("%w: max ads per hour must be positive", ErrInvalidRange)
	}
	conflict, err := s.repo.HasConflict(ctx, w.StreamerID, w.StartTime, w.EndTime, nil)
	if err != nil {
		return fmt.Errorf("conflict check: %w", err)
	}
	if conflict {
		return ErrConflict
	}
	if err := s.repo.Create(ctx, w); err != nil {
		return fmt.Errorf("create window: %w", err)
	}
	s.logger.Info("schedule window created",
		zap.String("streamer_id", w.StreamerID.String()),
		zap.Time("start", w.StartTime),
		zap.Time("end", w.EndTime),
	)
	return nil
}

// UpdateWindow rewrites an existing window, re-checking the no-overlap
// invariant against all other windows of the same streamer.
func (s *Service) UpdateWindow(ctx context.Context, id uuid.UUID, start, end time.Time, maxAdsPerHour int) (*models.ScheduleWindow, error) {
	if !start.Before(end) {
		return nil, ErrInvalidRange
	}
	if maxAdsPerHour <= 0 {
		return nil, fmt.Errorf("%w: max ads per hour must be positive", ErrInvalidRange)
	}
	w, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load window: %w", err)
	}
	if w == nil {
		return nil, ErrWindowNotFound
	}
	conflict, err := s.repo.HasConflict(ctx, w.StreamerID, start, end, &id)
	if err != nil {
		return nil, fmt.Errorf("conflict check: %w", err)
	}
	if conflict {
		return nil, ErrConflict
	}
	w.StartTime, w.EndTime, w.MaxAdsPerHour = start, end, maxAdsPerHour
	if err := s.repo.Update(ctx, w); err != nil {
		return nil, fmt.Errorf("update window: %w", err)
	}
	return w, nil
}

// DeleteWindow removes a window.
func (s *Service) DeleteWindow(ctx context.Context, id uuid.UUID) error {
	return s.repo.Delete(ctx, id)
}

// ListWindows returns a streamer's windows.
func (s *Service) ListWindows(ctx context.Context, streamerID uuid.UUID) ([]models.ScheduleWindow, error) {
	return s.repo.ListByStreamer(ctx, streamerID)
}

// HasConflict reports whether a proposed range would overlap an existing
// window for the streamer.
func (s *Service) HasConflict(ctx context.Context, streamerID uuid.UUID, start, end time.Time) (bool, error) {
	return s.repo.HasConflict(ctx, streamerID, start, end, nil)
}

// ValidateSlot checks a proposed booking time. It fails closed: a time no
// window covers is invalid, and a covered time is invalid once the hour
// bucket has reached the window's cap.
func (s *Service) ValidateSlot(ctx context.Context, streamerID uuid.UUID, at time.Time) (*SlotValidation, error) {
	w, err := s.repo.FindCovering(ctx, streamerID, at)
	if err != nil {
		return nil, fmt.Errorf("find covering window: %w", err)
	}
	if w == nil {
		return &SlotValidation{Valid: false, Reason: ReasonOutsideAvailability}, nil
	}
	booked, err := s.repo.CountScheduledInHour(ctx, streamerID, HourBucket(at))
	if err != nil {
		return nil, fmt.Errorf("count hour bookings: %w", err)
	}
	if booked >= w.MaxAdsPerHour {
		return &SlotValidation{Valid: false, Reason: ReasonHourFull}, nil
	}
	return &SlotValidation{Valid: true, AvailableSlots: w.MaxAdsPerHour - booked}, nil
}

// AvailableSlots enumerates the streamer's 15-minute display buckets for one
// calendar day, marked available/unavailable by the hourly-cap rule.
func (s *Service) AvailableSlots(ctx context.Context, streamerID uuid.UUID, day time.Time) ([]Slot, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.Add(24 * time.Hour)

	windows, err := s.repo.ListOverlapping(ctx, streamerID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("list windows: %w", err)
	}
	if len(windows) == 0 {
		return nil, nil
	}
	counts, err := s.repo.CountScheduledByHour(ctx, streamerID, dayStart, dayEnd)
	if err != nil {
		return nil, fmt.Errorf("count bookings: %w", err)
	}
	return BuildDaySlots(windows, counts, day), nil
}
