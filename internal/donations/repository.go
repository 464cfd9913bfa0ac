package donations

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/streamlance/backend/internal/models"
	"github.com/streamlance/backend/internal/schedule"
)

// SlotRejectedError is a business rejection of a proposed schedule slot, not
// a fault. AvailableSlots is the remaining capacity in the proposed hour.
type SlotRejectedError struct {
	Reason         string
	AvailableSlots int
}

func (e *SlotRejectedError) Error() string {
	return "schedule rejected: " + e.Reason
}

// Repository handles donation persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a donation repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const donationColumns = `id, streamer_id, company_id, campaign_id, amount_cents, currency, message, video_url,
	status, scheduled_for, payment_ref, expected_revenue_cents, played_at, created_at, updated_at`

func scanDonation(row pgx.Row, d *models.Donation) error {
	return row.Scan(&d.ID, &d.StreamerID, &d.CompanyID, &d.CampaignID, &d.AmountCents, &d.Currency, &d.Message,
		&d.VideoURL, &d.Status, &d.ScheduledFor, &d.PaymentRef, &d.ExpectedRevenueCents, &d.PlayedAt,
		&d.CreatedAt, &d.UpdatedAt)
}

// Create inserts a donation with its current status (immediate or failed
// bookings; scheduled bookings go through CreateScheduled).
func (r *Repository) Create(ctx context.Context, d *models.Donation) error {
	const q = `INSERT INTO donations (id, streamer_id, company_id, campaign_id, amount_cents, currency, message, video_url,
			status, scheduled_for, payment_ref, expected_revenue_cents)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, d.StreamerID, d.CompanyID, d.CampaignID, d.AmountCents, d.Currency, d.Message,
		d.VideoURL, d.Status, d.ScheduledFor, d.PaymentRef, d.ExpectedRevenueCents).
		Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
}

// CreateScheduled books a future slot and inserts the donation in one
// transaction. The covering window row is locked so slot validation and the
// insert are serialized: two concurrent bookings for the last open slot in an
// hour cannot both pass. Rejections surface as *SlotRejectedError and leave
// no partial record.
func (r *Repository) CreateScheduled(ctx context.Context, d *models.Donation) error {
	if d.ScheduledFor == nil {
		return fmt.Errorf("scheduled donation requires a slot time")
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const windowQ = `SELECT max_ads_per_hour FROM schedule_windows
		WHERE streamer_id = $1 AND start_time <= $2 AND end_time > $2
		FOR UPDATE`
	var maxPerHour int
	err = tx.QueryRow(ctx, windowQ, d.StreamerID, *d.ScheduledFor).Scan(&maxPerHour)
	if errors.Is(err, pgx.ErrNoRows) {
		return &SlotRejectedError{Reason: schedule.ReasonOutsideAvailability}
	}
	if err != nil {
		return fmt.Errorf("lock window: %w", err)
	}

	hour := schedule.HourBucket(*d.ScheduledFor)
	const countQ = `SELECT COUNT(*) FROM donations
		WHERE streamer_id = $1 AND scheduled_for >= $2 AND scheduled_for < $3
		  AND status IN ('scheduled', 'played')`
	var booked int
	if err := tx.QueryRow(ctx, countQ, d.StreamerID, hour, hour.Add(time.Hour)).Scan(&booked); err != nil {
		return fmt.Errorf("count hour bookings: %w", err)
	}
	if booked >= maxPerHour {
		return &SlotRejectedError{Reason: schedule.ReasonHourFull}
	}

	const insertQ = `INSERT INTO donations (id, streamer_id, company_id, campaign_id, amount_cents, currency, message, video_url,
			status, scheduled_for, payment_ref, expected_revenue_cents)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING id, created_at, updated_at`
	err = tx.QueryRow(ctx, insertQ, d.StreamerID, d.CompanyID, d.CampaignID, d.AmountCents, d.Currency, d.Message,
		d.VideoURL, d.Status, d.ScheduledFor, d.PaymentRef, d.ExpectedRevenueCents).
		Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert donation: %w", err)
	}
	return tx.Commit(ctx)
}

// GetByID returns a donation by ID, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Donation, error) {
	q := `SELECT ` + donationColumns + ` FROM donations WHERE id = $1`
	var d models.Donation
	err := scanDonation(r.pool.QueryRow(ctx, q, id), &d)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// ListByStreamer returns a streamer's donations, newest first.
func (r *Repository) ListByStreamer(ctx context.Context, streamerID uuid.UUID, limit int) ([]models.Donation, error) {
	if limit <= 0 {
		limit = 50
	}
	q := `SELECT ` + donationColumns + ` FROM donations WHERE streamer_id = $1 ORDER BY created_at DESC LIMIT $2`
	rows, err := r.pool.Query(ctx, q, streamerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Donation
	for rows.Next() {
		var d models.Donation
		if err := scanDonation(rows, &d); err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, rows.Err()
}

// MarkPlayed finalizes a delivered donation.
func (r *Repository) MarkPlayed(ctx context.Context, id uuid.UUID, playedAt time.Time) error {
	const q = `UPDATE donations SET status = 'played', played_at = $1, updated_at = NOW()
		WHERE id = $2 AND status IN ('pending', 'scheduled')`
	_, err := r.pool.Exec(ctx, q, playedAt, id)
	return err
}

// MarkFailed moves a donation to failed from pending or scheduled.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE donations SET status = 'failed', updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'scheduled')`
	_, err := r.pool.Exec(ctx, q, id)
	return err
}

// ListStreamersWithScheduledDue returns streamers holding scheduled donations
// whose slot time has arrived. Drives the periodic delivery sweep.
func (r *Repository) ListStreamersWithScheduledDue(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	const q = `SELECT DISTINCT streamer_id FROM donations
		WHERE status = 'scheduled' AND scheduled_for <= $1`
	rows, err := r.pool.Query(ctx, q, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListOverdue returns undelivered donations whose effective due time is older
// than cutoff. Candidates for the sweep's status-flip retry: an item may have
// been popped while the playback timer's write failed.
func (r *Repository) ListOverdue(ctx context.Context, cutoff time.Time) ([]models.Donation, error) {
	q := `SELECT ` + donationColumns + ` FROM donations
		WHERE status IN ('pending', 'scheduled')
		  AND COALESCE(scheduled_for, created_at) < $1`
	rows, err := r.pool.Query(ctx, q, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Donation
	for rows.Next() {
		var d models.Donation
		if err := scanDonation(rows, &d); err != nil {
			return nil, err
		}
		list = append(list, d)
	}
	return list, rows.Err()
}
