package campaign

import (
	"context"
	"time"

	"github.com/ignite/social-scheduler/internal/domain"
)

// Repository defines the data access contract for campaigns.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns a single campaign. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.Campaign, error)

	// ListRunning returns up to limit running campaigns, oldest first.
	// limit <= 0 means no limit.
	ListRunning(ctx context.Context, limit int) ([]domain.Campaign, error)

	// MarkCompleted moves a running campaign to completed. Returns
	// ErrInvalidTransition if the campaign is not running.
	MarkCompleted(ctx context.Context, id string, at time.Time) error

	// SetLastPostAt records when the last new post was dispatched.
	SetLastPostAt(ctx context.Context, id string, at time.Time) error

	// SetLastRepostAt records when the last repost was dispatched.
	SetLastRepostAt(ctx context.Context, id string, at time.Time) error
}

// ContentRepository defines the data access contract for content items.
type ContentRepository interface {
	// Get returns a single item. Returns ErrNotFound if it doesn't exist.
	Get(ctx context.Context, id string) (*domain.ContentItem, error)

	// Counts summarises a campaign's items by status.
	Counts(ctx context.Context, campaignID string) (domain.ItemCounts, error)

	// HasRepostable reports whether any published item has
	// republish_count < maxCount.
	HasRepostable(ctx context.Context, campaignID string, maxCount int) (bool, error)

	// NextPending returns the earliest-created pending item.
	// Returns ErrNoPostableItem when there is none.
	NextPending(ctx context.Context, campaignID string) (*domain.ContentItem, error)

	// NextStuck returns the earliest-created scheduled item whose
	// scheduled_at is before olderThan. Returns ErrNoPostableItem when none.
	NextStuck(ctx context.Context, campaignID string, olderThan time.Time) (*domain.ContentItem, error)

	// NextRepostable returns the published item with republish_count <
	// maxCount that was published first. Returns ErrNoPostableItem when none.
	NextRepostable(ctx context.Context, campaignID string, maxCount int) (*domain.ContentItem, error)

	// MarkScheduled moves a pending or scheduled item to scheduled with
	// scheduled_at = at. Returns ErrInvalidTransition for any other status.
	MarkScheduled(ctx context.Context, id string, at time.Time) error

	// MarkRepostScheduled moves a published item back to scheduled and
	// increments republish_count, only while republish_count < maxCount.
	// Returns ErrInvalidTransition otherwise.
	MarkRepostScheduled(ctx context.Context, id string, at time.Time, maxCount int) error

	// MarkOutcome records a publish outcome on a scheduled item. Returns
	// ErrInvalidTransition if the item is no longer scheduled.
	MarkOutcome(ctx context.Context, id string, status domain.ContentStatus, results domain.ExternalPostIDs, publishedAt *time.Time) error
}

// ContentResolver supplies what a content item publishes and where.
type ContentResolver interface {
	// ChannelsFor returns the target channels of the item's campaign.
	ChannelsFor(ctx context.Context, item *domain.ContentItem) ([]domain.Channel, error)
	// PayloadFor returns the caption and media of the item.
	PayloadFor(ctx context.Context, item *domain.ContentItem) (domain.Payload, error)
}

// Dispatcher hands publish tasks to the asynchronous executor. Delivery is
// at-least-once.
type Dispatcher interface {
	Dispatch(ctx context.Context, task domain.PublishTask) error
}

// ChannelPublisher posts a payload to a set of channels.
type ChannelPublisher interface {
	PostToChannels(ctx context.Context, item *domain.ContentItem, channels []domain.Channel, payload domain.Payload) domain.ExternalPostIDs
}
