package domain

import "time"

// ContentStatus enumerates the publish lifecycle of a single content item.
type ContentStatus string

const (
	ContentPending   ContentStatus = "pending"
	ContentScheduled ContentStatus = "scheduled"
	ContentPublished ContentStatus = "published"
	ContentFailed    ContentStatus = "failed"
	ContentSkipped   ContentStatus = "skipped"
)

// IsTerminal reports whether no further publish is in flight for the status.
func (s ContentStatus) IsTerminal() bool {
	return s == ContentPublished || s == ContentFailed || s == ContentSkipped
}

// ContentItem is one unit of content posted by a campaign.
type ContentItem struct {
	ID              string          `json:"id" db:"id"`
	CampaignID      string          `json:"campaign_id" db:"campaign_id"`
	Status          ContentStatus   `json:"status" db:"status"`
	RepublishCount  int             `json:"republish_count" db:"republish_count"`
	ExternalPostIDs ExternalPostIDs `json:"external_post_ids" db:"external_post_ids"`
	ScheduledAt     *time.Time      `json:"scheduled_at" db:"scheduled_at"`
	PublishedAt     *time.Time      `json:"published_at" db:"published_at"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// IsStuck reports whether a scheduled item has waited longer than threshold
// for its publish task to finish.
func (i *ContentItem) IsStuck(now time.Time, threshold time.Duration) bool {
	if i.Status != ContentScheduled || i.ScheduledAt == nil {
		return false
	}
	return i.ScheduledAt.Before(now.Add(-threshold))
}

// ChannelResult is the per-channel outcome stored on a content item.
type ChannelResult struct {
	Provider       Provider    `json:"provider"`
	Type           ChannelType `json:"type"`
	Name           string      `json:"name"`
	Success        bool        `json:"success"`
	ExternalPostID string      `json:"external_post_id,omitempty"`
	Error          string      `json:"error,omitempty"`
	ErrorCode      ErrorCode   `json:"error_code,omitempty"`
}

// ExternalPostIDs maps channel id to that channel's latest publish outcome.
type ExternalPostIDs map[string]ChannelResult

// AnySuccess reports whether at least one channel accepted the post.
func (e ExternalPostIDs) AnySuccess() bool {
	for _, r := range e {
		if r.Success {
			return true
		}
	}
	return false
}
