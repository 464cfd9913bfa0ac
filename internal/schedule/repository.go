package schedule

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/streamlance/backend/internal/models"
)

// Repository handles schedule window persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a schedule repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new schedule window.
func (r *Repository) Create(ctx context.Context, w *models.ScheduleWindow) error {
	const q = `INSERT INTO schedule_windows (id, streamer_id, start_time, end_time, max_ads_per_hour)
		VALUES (gen_random_uuid(), $1, $2, $3, $4)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, w.StreamerID, w.StartTime, w.EndTime, w.MaxAdsPerHour).
		Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
}

// GetByID returns a window by ID, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.ScheduleWindow, error) {
	const q = `SELECT id, streamer_id, start_time, end_time, max_ads_per_hour, created_at, updated_at
		FROM schedule_windows WHERE id = $1`
	var w models.ScheduleWindow
	err := r.pool.QueryRow(ctx, q, id).Scan(&w.ID, &w.StreamerID, &w.StartTime, &w.EndTime, &w.MaxAdsPerHour, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// ListByStreamer returns all windows for a streamer ordered by start time.
func (r *Repository) ListByStreamer(ctx context.Context, streamerID uuid.UUID) ([]models.ScheduleWindow, error) {
	const q = `SELECT id, streamer_id, start_time, end_time, max_ads_per_hour, created_at, updated_at
		FROM schedule_windows WHERE streamer_id = $1 ORDER BY start_time`
	rows, err := r.pool.Query(ctx, q, streamerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.ScheduleWindow
	for rows.Next() {
		var w models.ScheduleWindow
		if err := rows.Scan(&w.ID, &w.StreamerID, &w.StartTime, &w.EndTime, &w.MaxAdsPerHour, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, w)
	}
	return list, rows.Err()
}

// ListOverlapping returns the streamer's windows intersecting [from, to).
func (r *Repository) ListOverlapping(ctx context.Context, streamerID uuid.UUID, from, to time.Time) ([]models.ScheduleWindow, error) {
	const q = `SELECT id, streamer_id, start_time, end_time, max_ads_per_hour, created_at, updated_at
		FROM schedule_windows
		WHERE streamer_id = $1 AND start_time < $3 AND end_time > $2
		ORDER BY start_time`
	rows, err := r.pool.Query(ctx, q, streamerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.ScheduleWindow
	for rows.Next() {
		var w models.ScheduleWindow
		if err := rows.Scan(&w.ID, &w.StreamerID, &w.StartTime, &w.EndTime, &w.MaxAdsPerHour, &w.CreatedAt, &w.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, w)
	}
	return list, rows.Err()
}

// Update rewrites a window's time range and hourly cap.
func (r *Repository) Update(ctx context.Context, w *models.ScheduleWindow) error {
	const q = `UPDATE schedule_windows SET start_time = $1, end_time = $2, max_ads_per_hour = $3, updated_at = NOW()
		WHERE id = $4 RETURNING updated_at`
	return r.pool.QueryRow(ctx, q, w.StartTime, w.EndTime, w.MaxAdsPerHour, w.ID).Scan(&w.UpdatedAt)
}

// Delete removes a window by ID.
func (r *Repository) Delete(ctx context.Context, id uuid.UUID) error {
	ct, err := r.pool.Exec(ctx, `DELETE FROM schedule_windows WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrWindowNotFound
	}
	return nil
}

// HasConflict reports whether [start, end) overlaps any of the streamer's
// windows, optionally excluding one window (for updates).
func (r *Repository) HasConflict(ctx context.Context, streamerID uuid.UUID, start, end time.Time, excludeID *uuid.UUID) (bool, error) {
	const q = `SELECT EXISTS (
		SELECT 1 FROM schedule_windows
		WHERE streamer_id = $1 AND start_time < $3 AND end_time > $2
		  AND ($4::uuid IS NULL OR id <> $4)
	)`
	var exists bool
	err := r.pool.QueryRow(ctx, q, streamerID, start, end, excludeID).Scan(&exists)
	return exists, err
}

// FindCovering returns the window containing t for the streamer, or nil.
// Windows never overlap, so at most one row matches.
func (r *Repository) FindCovering(ctx context.Context, streamerID uuid.UUID, t time.Time) (*models.ScheduleWindow, error) {
	const q = `SELECT id, streamer_id, start_time, end_time, max_ads_per_hour, created_at, updated_at
		FROM schedule_windows
		WHERE streamer_id = $1 AND start_time <= $2 AND end_time > $2`
	var w models.ScheduleWindow
	err := r.pool.QueryRow(ctx, q, streamerID, t).Scan(&w.ID, &w.StreamerID, &w.StartTime, &w.EndTime, &w.MaxAdsPerHour, &w.CreatedAt, &w.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// CountScheduledInHour counts live bookings in the clock-hour bucket starting
// at hourStart. Failed donations do not consume capacity.
func (r *Repository) CountScheduledInHour(ctx context.Context, streamerID uuid.UUID, hourStart time.Time) (int, error) {
	const q = `SELECT COUNT(*) FROM donations
		WHERE streamer_id = $1 AND scheduled_for >= $2 AND scheduled_for < $3
		  AND status IN ('scheduled', 'played')`
	var n int
	err := r.pool.QueryRow(ctx, q, streamerID, hourStart, hourStart.Add(time.Hour)).Scan(&n)
	return n, err
}

// CountScheduledByHour returns per-hour booking counts for [from, to), keyed
// by the UTC hour bucket's Unix time. Truncation happens in UTC explicitly so
// the keys always match HourBucket regardless of the session time zone.
func (r *Repository) CountScheduledByHour(ctx context.Context, streamerID uuid.UUID, from, to time.Time) (map[int64]int, error) {
	const q = `SELECT date_trunc('hour', scheduled_for AT TIME ZONE 'UTC') AT TIME ZONE 'UTC', COUNT(*) FROM donations
		WHERE streamer_id = $1 AND scheduled_for >= $2 AND scheduled_for < $3
		  AND status IN ('scheduled', 'played')
		GROUP BY 1`
	rows, err := r.pool.Query(ctx, q, streamerID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var hour time.Time
		var n int
		if err := rows.Scan(&hour, &n); err != nil {
			return nil, err
		}
		counts[hour.Unix()] = n
	}
	return counts, rows.Err()
}
