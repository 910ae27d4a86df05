package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/lib/pq"

	"github.com/ignite/social-scheduler/internal/domain"
	"github.com/ignite/social-scheduler/internal/service/campaign"
)

// ContentResolver implements campaign.ContentResolver. Channel tokens come
// from the channel itself, falling back to its linked account's token.
type ContentResolver struct{ db *sql.DB }

// NewContentResolver creates a Postgres-backed content resolver.
func NewContentResolver(db *sql.DB) *ContentResolver { return &ContentResolver{db: db} }

func (r *ContentResolver) ChannelsFor(ctx context.Context, item *domain.ContentItem) ([]domain.Channel, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT ch.id, ch.user_id, ch.provider, ch.type, ch.name, ch.external_id,
		       COALESCE(NULLIF(ch.access_token, ''), la.access_token, '')
		FROM campaign_channels cc
		JOIN channels ch ON ch.id = cc.channel_id
		LEFT JOIN linked_accounts la ON la.id = ch.linked_account_id
		WHERE cc.campaign_id = $1
		ORDER BY cc.position ASC, ch.created_at ASC
	`, item.CampaignID)
	if err != nil {
		return nil, fmt.Errorf("list campaign channels: %w", err)
	}
	defer rows.Close()

	var out []domain.Channel
	for rows.Next() {
		var ch domain.Channel
		if err := rows.Scan(&ch.ID, &ch.UserID, &ch.Provider, &ch.Type, &ch.Name, &ch.ExternalID, &ch.AccessToken); err != nil {
			return nil, fmt.Errorf("scan channel: %w", err)
		}
		out = append(out, ch)
	}
	return out, rows.Err()
}

func (r *ContentResolver) PayloadFor(ctx context.Context, item *domain.ContentItem) (domain.Payload, error) {
	var p domain.Payload
	var mediaItems []byte
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(caption, ''), COALESCE(hashtags, '{}'), COALESCE(media_urls, '{}'), media_items
		FROM content_items WHERE id = $1
	`, item.ID).Scan(&p.Caption, pq.Array(&p.Hashtags), pq.Array(&p.MediaURLs), &mediaItems)
	if err == sql.ErrNoRows {
		return p, campaign.ErrNotFound
	}
	if err != nil {
		return p, fmt.Errorf("load payload: %w", err)
	}
	if len(mediaItems) > 0 {
		if err := json.Unmarshal(mediaItems, &p.MediaItems); err != nil {
			return p, fmt.Errorf("decode media_items: %w", err)
		}
	}
	return p, nil
}
