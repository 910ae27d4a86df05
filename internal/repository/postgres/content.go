package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ignite/social-scheduler/internal/domain"
	"github.com/ignite/social-scheduler/internal/service/campaign"
)

// ContentRepo implements campaign.ContentRepository against PostgreSQL.
// Status transitions are guarded in the WHERE clause so concurrent workers
// cannot move an item out of an unexpected state.
type ContentRepo struct{ db *sql.DB }

// NewContentRepo creates a Postgres-backed content item repository.
func NewContentRepo(db *sql.DB) *ContentRepo { return &ContentRepo{db: db} }

const contentColumns = `
	id, campaign_id, status, republish_count, COALESCE(external_post_ids, '{}'::jsonb),
	scheduled_at, published_at, created_at, updated_at`

func scanContent(row rowScanner, it *domain.ContentItem) error {
	var results []byte
	var scheduled, published sql.NullTime
	if err := row.Scan(
		&it.ID, &it.CampaignID, &it.Status, &it.RepublishCount, &results,
		&scheduled, &published, &it.CreatedAt, &it.UpdatedAt,
	); err != nil {
		return err
	}
	it.ScheduledAt = nullTime(scheduled)
	it.PublishedAt = nullTime(published)
	it.ExternalPostIDs = domain.ExternalPostIDs{}
	if len(results) > 0 {
		if err := json.Unmarshal(results, &it.ExternalPostIDs); err != nil {
			return fmt.Errorf("decode external_post_ids: %w", err)
		}
	}
	return nil
}

func (r *ContentRepo) queryOne(ctx context.Context, q string, args ...interface{}) (*domain.ContentItem, error) {
	it := &domain.ContentItem{}
	err := scanContent(r.db.QueryRowContext(ctx, q, args...), it)
	if err == sql.ErrNoRows {
		return nil, campaign.ErrNoPostableItem
	}
	if err != nil {
		return nil, err
	}
	return it, nil
}

func (r *ContentRepo) Get(ctx context.Context, id string) (*domain.ContentItem, error) {
	it, err := r.queryOne(ctx, `SELECT `+contentColumns+` FROM content_items WHERE id = $1`, id)
	if err == campaign.ErrNoPostableItem {
		return nil, campaign.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get content item: %w", err)
	}
	return it, nil
}

func (r *ContentRepo) Counts(ctx context.Context, campaignID string) (domain.ItemCounts, error) {
	var c domain.ItemCounts
	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*) FROM content_items WHERE campaign_id = $1 GROUP BY status
	`, campaignID)
	if err != nil {
		return c, fmt.Errorf("count content items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var status domain.ContentStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return c, fmt.Errorf("scan content count: %w", err)
		}
		switch status {
		case domain.ContentPending:
			c.Pending = n
		case domain.ContentScheduled:
			c.Scheduled = n
		case domain.ContentPublished:
			c.Published = n
		case domain.ContentFailed:
			c.Failed = n
		case domain.ContentSkipped:
			c.Skipped = n
		}
	}
	return c, rows.Err()
}

func (r *ContentRepo) HasRepostable(ctx context.Context, campaignID string, maxCount int) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM content_items
			WHERE campaign_id = $1 AND status = 'published' AND republish_count < $2
		)
	`, campaignID, maxCount).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check repostable items: %w", err)
	}
	return exists, nil
}

func (r *ContentRepo) NextPending(ctx context.Context, campaignID string) (*domain.ContentItem, error) {
	it, err := r.queryOne(ctx, `
		SELECT `+contentColumns+` FROM content_items
		WHERE campaign_id = $1 AND status = 'pending'
		ORDER BY created_at ASC LIMIT 1
	`, campaignID)
	if err != nil && err != campaign.ErrNoPostableItem {
		return nil, fmt.Errorf("next pending item: %w", err)
	}
	return it, err
}

func (r *ContentRepo) NextStuck(ctx context.Context, campaignID string, olderThan time.Time) (*domain.ContentItem, error) {
	it, err := r.queryOne(ctx, `
		SELECT `+contentColumns+` FROM content_items
		WHERE campaign_id = $1 AND status = 'scheduled' AND scheduled_at < $2
		ORDER BY created_at ASC LIMIT 1
	`, campaignID, olderThan)
	if err != nil && err != campaign.ErrNoPostableItem {
		return nil, fmt.Errorf("next stuck item: %w", err)
	}
	return it, err
}

func (r *ContentRepo) NextRepostable(ctx context.Context, campaignID string, maxCount int) (*domain.ContentItem, error) {
	it, err := r.queryOne(ctx, `
		SELECT `+contentColumns+` FROM content_items
		WHERE campaign_id = $1 AND status = 'published' AND republish_count < $2
		ORDER BY published_at ASC NULLS FIRST LIMIT 1
	`, campaignID, maxCount)
	if err != nil && err != campaign.ErrNoPostableItem {
		return nil, fmt.Errorf("next repostable item: %w", err)
	}
	return it, err
}

func (r *ContentRepo) MarkScheduled(ctx context.Context, id string, at time.Time) error {
	return r.transition(ctx, "mark scheduled", `
		UPDATE content_items SET status = 'scheduled', scheduled_at = $2, updated_at = NOW()
		WHERE id = $1 AND status IN ('pending', 'scheduled')
	`, id, at)
}

func (r *ContentRepo) MarkRepostScheduled(ctx context.Context, id string, at time.Time, maxCount int) error {
	return r.transition(ctx, "mark repost scheduled", `
		UPDATE content_items
		SET status = 'scheduled', scheduled_at = $2, republish_count = republish_count + 1, updated_at = NOW()
		WHERE id = $1 AND status = 'published' AND republish_count < $3
	`, id, at, maxCount)
}

func (r *ContentRepo) MarkOutcome(ctx context.Context, id string, status domain.ContentStatus, results domain.ExternalPostIDs, publishedAt *time.Time) error {
	if results == nil {
		results = domain.ExternalPostIDs{}
	}
	data, err := json.Marshal(results)
	if err != nil {
		return fmt.Errorf("encode external_post_ids: %w", err)
	}
	var published interface{}
	if publishedAt != nil {
		published = *publishedAt
	}
	return r.transition(ctx, "record outcome", `
		UPDATE content_items
		SET status = $2, external_post_ids = $3, published_at = COALESCE($4, published_at), updated_at = NOW()
		WHERE id = $1 AND status = 'scheduled'
	`, id, string(status), data, published)
}

func (r *ContentRepo) transition(ctx context.Context, op, q string, args ...interface{}) error {
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return campaign.ErrInvalidTransition
	}
	return nil
}
