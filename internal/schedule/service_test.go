package schedule

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/streamlance/backend/internal/models"
)

// memStore is an in-memory Store for exercising the calendar rules.
type memStore struct {
	windows    []models.ScheduleWindow
	hourCounts map[int64]int
}

func newMemStore() *memStore {
	return &memStore{hourCounts: make(map[int64]int)}
}

func (s *memStore) Create(_ context.Context, w *models.ScheduleWindow) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	s.windows = append(s.windows, *w)
	return nil
}

func (s *memStore) GetByID(_ context.Context, id uuid.UUID) (*models.ScheduleWindow, error) {
	for i := range s.windows {
		if s.windows[i].ID == id {
			w := s.windows[i]
			return &w, nil
		}
	}
	return nil, nil
}

func (s *memStore) ListByStreamer(_ context.Context, streamerID uuid.UUID) ([]models.ScheduleWindow, error) {
	var list []models.ScheduleWindow
	for _, w := range s.windows {
		if w.StreamerID == streamerID {
			list = append(list, w)
		}
	}
	return list, nil
}

func (s *memStore) ListOverlapping(_ context.Context, streamerID uuid.UUID, from, to time.Time) ([]models.ScheduleWindow, error) {
	var list []models.ScheduleWindow
	for _, w := range s.windows {
		if w.StreamerID == streamerID && Overlaps(w.StartTime, w.EndTime, from, to) {
			list = append(list, w)
		}
	}
	return list, nil
}

func (s *memStore) Update(_ context.Context, w *models.ScheduleWindow) error {
	for i := range s.windows {
		if s.windows[i].ID == w.ID {
			s.windows[i] = *w
			return nil
		}
	}
	return ErrWindowNotFound
}

func (s *memStore) Delete(_ context.Context, id uuid.UUID) error {
	for i := range s.windows {
		if s.windows[i].ID == id {
			s.windows = append(s.windows[:i], s.windows[i+1:]...)
			return nil
		}
	}
	return ErrWindowNotFound
}

func (s *memStore) HasConflict(_ context.Context, streamerID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	for _, w := range s.windows {
		if w.StreamerID != streamerID {
			continue
		}
		if excludeID != nil && w.ID == *excludeID {
			continue
		}
		if Overlaps(w.StartTime, w.EndTime, start, end) {
			return true, nil
		}
	}
	return false, nil
}

func (s *memStore) FindCovering(_ context.Context, streamerID uuid.UUID, t time.Time) (*models.ScheduleWindow, error) {
	for i := range s.windows {
		w := s.windows[i]
		if w.StreamerID == streamerID && !w.StartTime.After(t) && w.EndTime.After(t) {
			return &w, nil
		}
	}
	return nil, nil
}

func (s *memStore) CountScheduledInHour(_ context.Context, _ uuid.UUID, hourStart time.Time) (int, error) {
	return s.hourCounts[hourStart.Unix()], nil
}

func (s *memStore) CountScheduledByHour(_ context.Context, _ uuid.UUID, _, _ time.Time) (map[int64]int, error) {
	return s.hourCounts, nil
}

func testWindow(streamerID uuid.UUID, start, end time.Time, cap int) *models.ScheduleWindow {
	return &models.ScheduleWindow{
		StreamerID:    streamerID,
		StartTime:     start,
		EndTime:       end,
		MaxAdsPerHour: cap,
	}
}

func TestValidateSlotOutsideAvailabilityFailsClosed(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil)
	sid := uuid.New()

	// No window covers the time: invalid, never valid-by-default.
	v, err := svc.ValidateSlot(context.Background(), sid, time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, ReasonOutsideAvailability, v.Reason)

	// A window exists but the proposed time falls outside it.
	start := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, svc.CreateWindow(context.Background(), testWindow(sid, start, start.Add(2*time.Hour), 2)))
	v, err = svc.ValidateSlot(context.Background(), sid, start.Add(-time.Minute))
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, ReasonOutsideAvailability, v.Reason)
}

func TestValidateSlotHourlyCapReached(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil)
	sid := uuid.New()
	start := time.Date(2026, 9, 1, 18, 0, 0, 0, time.UTC)
	require.NoError(t, svc.CreateWindow(context.Background(), testWindow(sid, start, start.Add(4*time.Hour), 2)))

	at := start.Add(30 * time.Minute)

	// Empty hour: both slots open.
	v, err := svc.ValidateSlot(context.Background(), sid, at)
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.Equal(t, 2, v.AvailableSlots)

	// One booked: one slot left.
	store.hourCounts[HourBucket(at).Unix()] = 1
	v, err = svc.ValidateSlot(context.Background(), sid, at)
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.Equal(t, 1, v.AvailableSlots)

	// Two booked against a cap of two: the third request is rejected.
	store.hourCounts[HourBucket(at).Unix()] = 2
	v, err = svc.ValidateSlot(context.Background(), sid, at)
	require.NoError(t, err)
	assert.False(t, v.Valid)
	assert.Equal(t, ReasonHourFull, v.Reason)

	// The neighbouring hour is unaffected.
	nextHour := at.Add(time.Hour)
	v, err = svc.ValidateSlot(context.Background(), sid, nextHour)
	require.NoError(t, err)
	assert.True(t, v.Valid)
	assert.Equal(t, 2, v.AvailableSlots)
}

func TestCreateWindowRejectsOverlap(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil)
	sid := uuid.New()
	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, svc.CreateWindow(context.Background(), testWindow(sid, start, start.Add(2*time.Hour), 4)))

	err := svc.CreateWindow(context.Background(), testWindow(sid, start.Add(time.Hour), start.Add(3*time.Hour), 4))
	assert.ErrorIs(t, err, ErrConflict)

	// Touching end-to-start is not an overlap.
	require.NoError(t, svc.CreateWindow(context.Background(), testWindow(sid, start.Add(2*time.Hour), start.Add(3*time.Hour), 4)))

	// Another streamer's windows never conflict.
	require.NoError(t, svc.CreateWindow(context.Background(), testWindow(uuid.New(), start, start.Add(2*time.Hour), 4)))
}

func TestCreateWindowRejectsInvalidRange(t *testing.T) {
	svc := NewService(newMemStore(), nil)
	sid := uuid.New()
	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	err := svc.CreateWindow(context.Background(), testWindow(sid, start, start, 4))
	assert.ErrorIs(t, err, ErrInvalidRange)

	err = svc.CreateWindow(context.Background(), testWindow(sid, start.Add(time.Hour), start, 4))
	assert.ErrorIs(t, err, ErrInvalidRange)

	err = svc.CreateWindow(context.Background(), testWindow(sid, start, start.Add(time.Hour), 0))
	assert.ErrorIs(t, err, ErrInvalidRange)
}

func TestUpdateWindowExcludesItselfFromConflictCheck(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, nil)
	sid := uuid.New()
	start := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)

	w := testWindow(sid, start, start.Add(2*time.Hour), 4)
	require.NoError(t, svc.CreateWindow(context.Background(), w))

	// Shrinking inside its own old range must not self-conflict.
	updated, err := svc.UpdateWindow(context.Background(), w.ID, start.Add(30*time.Minute), start.Add(time.Hour), 6)
	require.NoError(t, err)
	assert.Equal(t, 6, updated.MaxAdsPerHour)

	// But overlapping a sibling window still fails.
	require.NoError(t, svc.CreateWindow(context.Background(), testWindow(sid, start.Add(3*time.Hour), start.Add(4*time.Hour), 4)))
	_, err = svc.UpdateWindow(context.Background(), w.ID, start.Add(3*time.Hour+30*time.Minute), start.Add(5*time.Hour), 4)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = svc.UpdateWindow(context.Background(), uuid.New(), start, start.Add(time.Hour), 4)
	assert.ErrorIs(t, err, ErrWindowNotFound)
}
