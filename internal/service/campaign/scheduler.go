package campaign

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/social-scheduler/internal/domain"
	"github.com/ignite/social-scheduler/internal/pkg/logger"
)

// DefaultStuckThreshold is how long an item may sit in scheduled before it
// is treated as lost and re-dispatched.
const DefaultStuckThreshold = 2 * time.Minute

// Scheduler evaluates running campaigns and dispatches due publishes.
type Scheduler struct {
	campaigns      Repository
	content        ContentRepository
	dispatcher     Dispatcher
	stuckThreshold time.Duration
	now            func() time.Time
}

// NewScheduler creates a Scheduler. stuckThreshold <= 0 uses
// DefaultStuckThreshold.
func NewScheduler(campaigns Repository, content ContentRepository, dispatcher Dispatcher, stuckThreshold time.Duration) *Scheduler {
	if stuckThreshold <= 0 {
		stuckThreshold = DefaultStuckThreshold
	}
	return &Scheduler{
		campaigns:      campaigns,
		content:        content,
		dispatcher:     dispatcher,
		stuckThreshold: stuckThreshold,
		now:            time.Now,
	}
}

// SetClock overrides the time source, for tests.
func (s *Scheduler) SetClock(now func() time.Time) { s.now = now }

// Outcome reports what one campaign evaluation did.
type Outcome struct {
	CampaignID       string            `json:"campaign_id"`
	Completed        bool              `json:"completed"`
	Counts           domain.ItemCounts `json:"counts"`
	PostItemID       string            `json:"post_item_id,omitempty"`
	RepostItemID     string            `json:"repost_item_id,omitempty"`
	Recovered        bool              `json:"recovered,omitempty"`
	DispatchFailures int               `json:"dispatch_failures,omitempty"`
}

// Dispatched reports whether anything was handed to the dispatcher.
func (o Outcome) Dispatched() bool {
	return o.PostItemID != "" || o.RepostItemID != ""
}

// RunningCampaigns lists campaigns the scheduler should evaluate.
func (s *Scheduler) RunningCampaigns(ctx context.Context, limit int) ([]domain.Campaign, error) {
	return s.campaigns.ListRunning(ctx, limit)
}

// Campaign reloads a campaign, typically after taking its lock.
func (s *Scheduler) Campaign(ctx context.Context, id string) (*domain.Campaign, error) {
	return s.campaigns.Get(ctx, id)
}

// ProcessCampaign runs one scheduling pass for c: completion, new post,
// repost, and a final completion check when nothing was dispatched.
func (s *Scheduler) ProcessCampaign(ctx context.Context, c *domain.Campaign) (Outcome, error) {
	out := Outcome{CampaignID: c.ID}
	if c.Status != domain.CampaignRunning {
		return out, nil
	}

	done, err := s.completeIfFinished(ctx, c, &out)
	if err != nil || done {
		return out, err
	}

	now := s.now()

	if PostDue(c, now) {
		if err := s.dispatchPost(ctx, c, now, &out); err != nil {
			return out, err
		}
	}

	if RepostDue(c, now) {
		if err := s.dispatchRepost(ctx, c, now, &out); err != nil {
			return out, err
		}
	}

	if !out.Dispatched() {
		if _, err := s.completeIfFinished(ctx, c, &out); err != nil {
			return out, err
		}
	}
	return out, nil
}

// IsComplete reports whether c has nothing left to publish: no pending or
// scheduled items, and no published item still under the repost cap when
// reposting is enabled.
func (s *Scheduler) IsComplete(ctx context.Context, c *domain.Campaign) (bool, domain.ItemCounts, error) {
	counts, err := s.content.Counts(ctx, c.ID)
	if err != nil {
		return false, counts, fmt.Errorf("counting items for campaign %s: %w", c.ID, err)
	}
	if counts.Active() > 0 {
		return false, counts, nil
	}
	if !c.RepostEnabled {
		return true, counts, nil
	}
	more, err := s.content.HasRepostable(ctx, c.ID, c.EffectiveRepostMax())
	if err != nil {
		return false, counts, fmt.Errorf("checking repostable items for campaign %s: %w", c.ID, err)
	}
	return !more, counts, nil
}

func (s *Scheduler) completeIfFinished(ctx context.Context, c *domain.Campaign, out *Outcome) (bool, error) {
	complete, counts, err := s.IsComplete(ctx, c)
	out.Counts = counts
	if err != nil || !complete {
		return false, err
	}

	now := s.now()
	if err := s.campaigns.MarkCompleted(ctx, c.ID, now); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			// Another scheduler completed or paused it first.
			return true, nil
		}
		return false, fmt.Errorf("completing campaign %s: %w", c.ID, err)
	}
	c.Status = domain.CampaignCompleted
	c.CompletedAt = &now
	out.Completed = true

	logger.Info("campaign completed",
		"campaign_id", c.ID, "user_id", c.UserID,
		"published", counts.Published, "failed", counts.Failed, "skipped", counts.Skipped)
	return true, nil
}

// nextPostable returns the earliest pending item, falling back to a stuck
// scheduled item.
func (s *Scheduler) nextPostable(ctx context.Context, c *domain.Campaign, now time.Time) (*domain.ContentItem, bool, error) {
	item, err := s.content.NextPending(ctx, c.ID)
	if err == nil {
		return item, false, nil
	}
	if !errors.Is(err, ErrNoPostableItem) {
		return nil, false, fmt.Errorf("finding pending item for campaign %s: %w", c.ID, err)
	}

	item, err = s.content.NextStuck(ctx, c.ID, now.Add(-s.stuckThreshold))
	if err == nil {
		return item, true, nil
	}
	if errors.Is(err, ErrNoPostableItem) {
		return nil, false, nil
	}
	return nil, false, fmt.Errorf("finding stuck item for campaign %s: %w", c.ID, err)
}

func (s *Scheduler) dispatchPost(ctx context.Context, c *domain.Campaign, now time.Time, out *Outcome) error {
	item, recovered, err := s.nextPostable(ctx, c, now)
	if err != nil || item == nil {
		return err
	}

	if err := s.content.MarkScheduled(ctx, item.ID, now); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			logger.Warn("item changed before scheduling", "campaign_id", c.ID, "content_item_id", item.ID)
			return nil
		}
		return fmt.Errorf("scheduling item %s: %w", item.ID, err)
	}
	if recovered {
		logger.Warn("re-dispatching stuck item",
			"campaign_id", c.ID, "content_item_id", item.ID, "threshold", s.stuckThreshold.String())
		out.Recovered = true
	}

	s.dispatch(ctx, c, item.ID, domain.PublishPost, now, out)
	out.PostItemID = item.ID

	if err := s.campaigns.SetLastPostAt(ctx, c.ID, now); err != nil {
		return fmt.Errorf("recording last post for campaign %s: %w", c.ID, err)
	}
	c.LastPostAt = &now
	return nil
}

func (s *Scheduler) dispatchRepost(ctx context.Context, c *domain.Campaign, now time.Time, out *Outcome) error {
	maxCount := c.EffectiveRepostMax()
	item, err := s.content.NextRepostable(ctx, c.ID, maxCount)
	if errors.Is(err, ErrNoPostableItem) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("finding repostable item for campaign %s: %w", c.ID, err)
	}

	if err := s.content.MarkRepostScheduled(ctx, item.ID, now, maxCount); err != nil {
		if errors.Is(err, ErrInvalidTransition) {
			logger.Warn("item not repostable at scheduling time", "campaign_id", c.ID, "content_item_id", item.ID)
			return nil
		}
		return fmt.Errorf("scheduling repost of %s: %w", item.ID, err)
	}

	s.dispatch(ctx, c, item.ID, domain.PublishRepost, now, out)
	out.RepostItemID = item.ID

	if err := s.campaigns.SetLastRepostAt(ctx, c.ID, now); err != nil {
		return fmt.Errorf("recording last repost for campaign %s: %w", c.ID, err)
	}
	c.LastRepostAt = &now
	return nil
}

// dispatch hands the task off. Failures are logged only: the item stays
// scheduled and stuck recovery picks it up.
func (s *Scheduler) dispatch(ctx context.Context, c *domain.Campaign, itemID string, kind domain.PublishKind, now time.Time, out *Outcome) {
	task := domain.PublishTask{
		ID:            uuid.New().String(),
		CampaignID:    c.ID,
		ContentItemID: itemID,
		Kind:          kind,
		EnqueuedAt:    now,
	}
	if err := s.dispatcher.Dispatch(ctx, task); err != nil {
		out.DispatchFailures++
		logger.Error("publish dispatch failed",
			"campaign_id", c.ID, "content_item_id", itemID, "kind", string(kind), "error", err.Error())
		return
	}
	logger.Info("publish dispatched",
		"campaign_id", c.ID, "content_item_id", itemID, "kind", string(kind), "task_id", task.ID)
}
