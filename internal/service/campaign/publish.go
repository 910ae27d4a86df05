package campaign

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ignite/social-scheduler/internal/domain"
	"github.com/ignite/social-scheduler/internal/pkg/logger"
)

// PublishService executes dispatched publish tasks.
type PublishService struct {
	content   ContentRepository
	resolver  ContentResolver
	publisher ChannelPublisher
	now       func() time.Time
}

// NewPublishService creates a PublishService.
func NewPublishService(content ContentRepository, resolver ContentResolver, publisher ChannelPublisher) *PublishService {
	return &PublishService{content: content, resolver: resolver, publisher: publisher, now: time.Now}
}

// SetClock overrides the time source, for tests.
func (p *PublishService) SetClock(now func() time.Time) { p.now = now }

// Handle publishes the task's item to all its channels and records the
// outcome. An item that is no longer scheduled is left untouched, so late
// duplicate deliveries are harmless. Errors leave the item scheduled for
// stuck recovery.
func (p *PublishService) Handle(ctx context.Context, task domain.PublishTask) (domain.ContentStatus, error) {
	item, err := p.content.Get(ctx, task.ContentItemID)
	if errors.Is(err, ErrNotFound) {
		logger.Warn("publish task for missing item", "task_id", task.ID, "content_item_id", task.ContentItemID)
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("loading item %s: %w", task.ContentItemID, err)
	}
	if item.Status != domain.ContentScheduled {
		if item.Status.IsTerminal() {
			logger.Info("ignoring publish task, item already finished",
				"task_id", task.ID, "content_item_id", item.ID, "status", string(item.Status))
		} else {
			logger.Warn("ignoring publish task, item not scheduled",
				"task_id", task.ID, "content_item_id", item.ID, "status", string(item.Status))
		}
		return item.Status, nil
	}

	channels, err := p.resolver.ChannelsFor(ctx, item)
	if err != nil {
		return "", fmt.Errorf("resolving channels for %s: %w", item.ID, err)
	}
	if len(channels) == 0 {
		if err := p.record(ctx, item, domain.ContentSkipped, item.ExternalPostIDs, nil); err != nil {
			return "", err
		}
		logger.Warn("content item skipped, campaign has no channels", "content_item_id", item.ID, "campaign_id", item.CampaignID)
		return domain.ContentSkipped, nil
	}

	payload, err := p.resolver.PayloadFor(ctx, item)
	if err != nil {
		return "", fmt.Errorf("resolving payload for %s: %w", item.ID, err)
	}

	results := p.publisher.PostToChannels(ctx, item, channels, payload)

	merged := make(domain.ExternalPostIDs, len(item.ExternalPostIDs)+len(results))
	for id, r := range item.ExternalPostIDs {
		merged[id] = r
	}
	for id, r := range results {
		merged[id] = r
	}

	status := domain.ContentFailed
	var publishedAt *time.Time
	if results.AnySuccess() {
		status = domain.ContentPublished
		now := p.now()
		publishedAt = &now
	}
	if err := p.record(ctx, item, status, merged, publishedAt); err != nil {
		return "", err
	}

	logger.Info("content item publish finished",
		"task_id", task.ID, "content_item_id", item.ID, "kind", string(task.Kind),
		"status", string(status), "channels", len(channels))
	return status, nil
}

func (p *PublishService) record(ctx context.Context, item *domain.ContentItem, status domain.ContentStatus, results domain.ExternalPostIDs, publishedAt *time.Time) error {
	err := p.content.MarkOutcome(ctx, item.ID, status, results, publishedAt)
	if errors.Is(err, ErrInvalidTransition) {
		logger.Warn("item left scheduled before outcome was recorded", "content_item_id", item.ID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("recording outcome for %s: %w", item.ID, err)
	}
	return nil
}
