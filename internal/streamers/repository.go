package streamers

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/streamlance/backend/internal/models"
)

// Repository handles streamer profile persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a streamer repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new streamer profile.
func (r *Repository) Create(ctx context.Context, s *models.Streamer) error {
	const q = `INSERT INTO streamers (id, user_id, display_name, channel_url, average_views, charge_cents, currency)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`
	return r.pool.QueryRow(ctx, q, s.UserID, s.DisplayName, s.ChannelURL, s.AverageViews, s.ChargeCents, s.Currency).
		Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
}

// GetByID returns a streamer by ID, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Streamer, error) {
	const q = `SELECT id, user_id, display_name, channel_url, average_views, charge_cents, currency, created_at, updated_at
		FROM streamers WHERE id = $1`
	var s models.Streamer
	err := r.pool.QueryRow(ctx, q, id).Scan(&s.ID, &s.UserID, &s.DisplayName, &s.ChannelURL, &s.AverageViews, &s.ChargeCents, &s.Currency, &s.CreatedAt, &s.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns all streamer profiles ordered by display name.
func (r *Repository) List(ctx context.Context) ([]models.Streamer, error) {
	const q = `SELECT id, user_id, display_name, channel_url, average_views, charge_cents, currency, created_at, updated_at
		FROM streamers ORDER BY display_name`
	return r.queryList(ctx, q)
}

// ListEligible returns streamers usable by the allocator: positive average
// views and a positive charge. Ordered by ID for deterministic allocation
// input.
func (r *Repository) ListEligible(ctx context.Context) ([]models.Streamer, error) {
	const q = `SELECT id, user_id, display_name, channel_url, average_views, charge_cents, currency, created_at, updated_at
		FROM streamers WHERE average_views > 0 AND charge_cents > 0 ORDER BY id`
	return r.queryList(ctx, q)
}

// UpdateRates updates a streamer's charge and average views.
func (r *Repository) UpdateRates(ctx context.Context, id uuid.UUID, chargeCents, averageViews int64) error {
	const q = `UPDATE streamers SET charge_cents = $1, average_views = $2, updated_at = NOW() WHERE id = $3`
	ct, err := r.pool.Exec(ctx, q, chargeCents, averageViews, id)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *Repository) queryList(ctx context.Context, q string) ([]models.Streamer, error) {
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Streamer
	for rows.Next() {
		var s models.Streamer
		if err := rows.Scan(&s.ID, &s.UserID, &s.DisplayName, &s.ChannelURL, &s.AverageViews, &s.ChargeCents, &s.Currency, &s.CreatedAt, &s.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, s)
	}
	return list, rows.Err()
}
