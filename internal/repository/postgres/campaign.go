package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ignite/social-scheduler/internal/domain"
	"github.com/ignite/social-scheduler/internal/service/campaign"
)

// CampaignRepo implements campaign.Repository against PostgreSQL.
type CampaignRepo struct{ db *sql.DB }

// NewCampaignRepo creates a Postgres-backed campaign repository.
func NewCampaignRepo(db *sql.DB) *CampaignRepo { return &CampaignRepo{db: db} }

const campaignColumns = `
	id, user_id, name, status, schedule_condition, schedule_interval,
	repost_enabled, COALESCE(repost_condition,''), COALESCE(repost_interval,0), COALESCE(repost_max_count,0),
	last_post_at, last_repost_at, started_at, completed_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCampaign(row rowScanner, c *domain.Campaign) error {
	var lastPost, lastRepost, completed sql.NullTime
	if err := row.Scan(
		&c.ID, &c.UserID, &c.Name, &c.Status, &c.ScheduleCondition, &c.ScheduleInterval,
		&c.RepostEnabled, &c.RepostCondition, &c.RepostInterval, &c.RepostMaxCount,
		&lastPost, &lastRepost, &c.StartedAt, &completed, &c.CreatedAt, &c.UpdatedAt,
	); err != nil {
		return err
	}
	c.LastPostAt = nullTime(lastPost)
	c.LastRepostAt = nullTime(lastRepost)
	c.CompletedAt = nullTime(completed)
	return nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func (r *CampaignRepo) Get(ctx context.Context, id string) (*domain.Campaign, error) {
	c := &domain.Campaign{}
	err := scanCampaign(r.db.QueryRowContext(ctx,
		`SELECT `+campaignColumns+` FROM campaigns WHERE id = $1`, id), c)
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get campaign: %w", err)
	}
	return c, nil
}

func (r *CampaignRepo) ListRunning(ctx context.Context, limit int) ([]domain.Campaign, error) {
	q := `SELECT ` + campaignColumns + ` FROM campaigns WHERE status = 'running' ORDER BY started_at ASC`
	args := []interface{}{}
	if limit > 0 {
		q += ` LIMIT $1`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list running campaigns: %w", err)
	}
	defer rows.Close()

	var out []domain.Campaign
	for rows.Next() {
		var c domain.Campaign
		if err := scanCampaign(rows, &c); err != nil {
			return nil, fmt.Errorf("scan campaign: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *CampaignRepo) MarkCompleted(ctx context.Context, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE campaigns SET status = 'completed', completed_at = $2, updated_at = NOW()
		WHERE id = $1 AND status = 'running'
	`, id, at)
	if err != nil {
		return fmt.Errorf("complete campaign: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return campaign.ErrInvalidTransition
	}
	return nil
}

func (r *CampaignRepo) SetLastPostAt(ctx context.Context, id string, at time.Time) error {
	return r.setTimestamp(ctx, "last_post_at", id, at)
}

func (r *CampaignRepo) SetLastRepostAt(ctx context.Context, id string, at time.Time) error {
	return r.setTimestamp(ctx, "last_repost_at", id, at)
}

// setTimestamp updates one of the fixed cadence columns.
func (r *CampaignRepo) setTimestamp(ctx context.Context, column, id string, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		fmt.Sprintf(`UPDATE campaigns SET %s = $2, updated_at = NOW() WHERE id = $1`, column), id, at)
	if err != nil {
		return fmt.Errorf("set %s: %w", column, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return campaign.ErrNotFound
	}
	return nil
}
