package campaigns

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/streamlance/backend/internal/models"
)

// Repository handles campaign persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a campaign repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a campaign and its per-streamer selections in one
// transaction, so a campaign never exists without the allocation it paid for.
func (r *Repository) Create(ctx context.Context, cp *models.Campaign) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const campaignQ = `INSERT INTO campaigns (id, company_id, video_url, target_views, budget_ceiling_cents,
			total_cost_cents, views_achieved, remaining_views, status)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at`
	err = tx.QueryRow(ctx, campaignQ, cp.CompanyID, cp.VideoURL, cp.TargetViews, cp.BudgetCeilingCents,
		cp.TotalCostCents, cp.ViewsAchieved, cp.RemainingViews, cp.Status).
		Scan(&cp.ID, &cp.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert campaign: %w", err)
	}

	const selectionQ = `INSERT INTO campaign_selections (id, campaign_id, streamer_id, plays, expected_views, cost_cents)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5)
		RETURNING id, created_at`
	for i := range cp.Selections {
		sel := &cp.Selections[i]
		sel.CampaignID = cp.ID
		err = tx.QueryRow(ctx, selectionQ, cp.ID, sel.StreamerID, sel.Plays, sel.ExpectedViews, sel.CostCents).
			Scan(&sel.ID, &sel.CreatedAt)
		if err != nil {
			return fmt.Errorf("insert selection: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// MarkFailed flips a campaign to failed. Used when queue fan-out could not
// complete after the campaign row was committed.
func (r *Repository) MarkFailed(ctx context.Context, id uuid.UUID) error {
	const q = `UPDATE campaigns SET status = 'failed' WHERE id = $1`
	_, err := r.pool.Exec(ctx, q, id)
	return err
}

// GetByID returns a campaign with its selections, or nil when absent.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.Campaign, error) {
	const q = `SELECT id, company_id, video_url, target_views, budget_ceiling_cents, total_cost_cents,
			views_achieved, remaining_views, status, created_at
		FROM campaigns WHERE id = $1`
	var cp models.Campaign
	err := r.pool.QueryRow(ctx, q, id).Scan(&cp.ID, &cp.CompanyID, &cp.VideoURL, &cp.TargetViews,
		&cp.BudgetCeilingCents, &cp.TotalCostCents, &cp.ViewsAchieved, &cp.RemainingViews, &cp.Status, &cp.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	const selQ = `SELECT id, campaign_id, streamer_id, plays, expected_views, cost_cents, created_at
		FROM campaign_selections WHERE campaign_id = $1 ORDER BY cost_cents, streamer_id`
	rows, err := r.pool.Query(ctx, selQ, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var sel models.CampaignSelection
		if err := rows.Scan(&sel.ID, &sel.CampaignID, &sel.StreamerID, &sel.Plays, &sel.ExpectedViews, &sel.CostCents, &sel.CreatedAt); err != nil {
			return nil, err
		}
		cp.Selections = append(cp.Selections, sel)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return &cp, nil
}

// ListByCompany returns a company's campaigns, newest first, without
// selections.
func (r *Repository) ListByCompany(ctx context.Context, companyID uuid.UUID) ([]models.Campaign, error) {
	const q = `SELECT id, company_id, video_url, target_views, budget_ceiling_cents, total_cost_cents,
			views_achieved, remaining_views, status, created_at
		FROM campaigns WHERE company_id = $1 ORDER BY created_at DESC`
	rows, err := r.pool.Query(ctx, q, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.Campaign
	for rows.Next() {
		var cp models.Campaign
		if err := rows.Scan(&cp.ID, &cp.CompanyID, &cp.VideoURL, &cp.TargetViews, &cp.BudgetCeilingCents,
			&cp.TotalCostCents, &cp.ViewsAchieved, &cp.RemainingViews, &cp.Status, &cp.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, cp)
	}
	return list, rows.Err()
}
