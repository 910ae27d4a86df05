// Package campaigntest provides in-memory campaign repositories and a
// recording dispatcher for tests of packages built on the scheduler.
package campaigntest

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ignite/social-scheduler/internal/domain"
	"github.com/ignite/social-scheduler/internal/service/campaign"
)

// Campaigns is an in-memory campaign.Repository.
type Campaigns struct {
	mu        sync.Mutex
	campaigns map[string]*domain.Campaign
}

func NewCampaigns(cs ...domain.Campaign) *Campaigns {
	m := &Campaigns{campaigns: make(map[string]*domain.Campaign)}
	for i := range cs {
		c := cs[i]
		m.campaigns[c.ID] = &c
	}
	return m
}

func (m *Campaigns) Get(_ context.Context, id string) (*domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return nil, campaign.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *Campaigns) ListRunning(_ context.Context, limit int) ([]domain.Campaign, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Campaign
	for _, c := range m.campaigns {
		if c.Status == domain.CampaignRunning {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *Campaigns) MarkCompleted(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.campaigns[id]
	if !ok {
		return campaign.ErrNotFound
	}
	if c.Status != domain.CampaignRunning {
		return campaign.ErrInvalidTransition
	}
	c.Status = domain.CampaignCompleted
	c.CompletedAt = &at
	return nil
}

func (m *Campaigns) SetLastPostAt(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.campaigns[id].LastPostAt = &at
	return nil
}

func (m *Campaigns) SetLastRepostAt(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.campaigns[id].LastRepostAt = &at
	return nil
}

// Snapshot returns a copy of the stored campaign.
func (m *Campaigns) Snapshot(id string) domain.Campaign {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.campaigns[id]
}

// Content is an in-memory campaign.ContentRepository. Setting Err makes
// Counts fail.
type Content struct {
	mu    sync.Mutex
	items map[string]*domain.ContentItem
	Err   error
}

func NewContent(items ...domain.ContentItem) *Content {
	m := &Content{items: make(map[string]*domain.ContentItem)}
	for i := range items {
		it := items[i]
		m.items[it.ID] = &it
	}
	return m
}

func (m *Content) Get(_ context.Context, id string) (*domain.ContentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return nil, campaign.ErrNotFound
	}
	cp := *it
	return &cp, nil
}

func (m *Content) byCampaign(campaignID string, keep func(*domain.ContentItem) bool) []*domain.ContentItem {
	var out []*domain.ContentItem
	for _, it := range m.items {
		if it.CampaignID == campaignID && keep(it) {
			out = append(out, it)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

func (m *Content) Counts(_ context.Context, campaignID string) (domain.ItemCounts, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return domain.ItemCounts{}, m.Err
	}
	var c domain.ItemCounts
	for _, it := range m.byCampaign(campaignID, func(*domain.ContentItem) bool { return true }) {
		switch it.Status {
		case domain.ContentPending:
			c.Pending++
		case domain.ContentScheduled:
			c.Scheduled++
		case domain.ContentPublished:
			c.Published++
		case domain.ContentFailed:
			c.Failed++
		case domain.ContentSkipped:
			c.Skipped++
		}
	}
	return c, nil
}

func (m *Content) HasRepostable(_ context.Context, campaignID string, maxCount int) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.byCampaign(campaignID, func(it *domain.ContentItem) bool {
		return it.Status == domain.ContentPublished && it.RepublishCount < maxCount
	})) > 0, nil
}

func (m *Content) first(items []*domain.ContentItem) (*domain.ContentItem, error) {
	if len(items) == 0 {
		return nil, campaign.ErrNoPostableItem
	}
	cp := *items[0]
	return &cp, nil
}

func (m *Content) NextPending(_ context.Context, campaignID string) (*domain.ContentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.first(m.byCampaign(campaignID, func(it *domain.ContentItem) bool {
		return it.Status == domain.ContentPending
	}))
}

func (m *Content) NextStuck(_ context.Context, campaignID string, olderThan time.Time) (*domain.ContentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.first(m.byCampaign(campaignID, func(it *domain.ContentItem) bool {
		return it.IsStuck(olderThan, 0)
	}))
}

func (m *Content) NextRepostable(_ context.Context, campaignID string, maxCount int) (*domain.ContentItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	items := m.byCampaign(campaignID, func(it *domain.ContentItem) bool {
		return it.Status == domain.ContentPublished && it.RepublishCount < maxCount
	})
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].PublishedAt.Before(*items[j].PublishedAt)
	})
	return m.first(items)
}

func (m *Content) MarkScheduled(_ context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return campaign.ErrNotFound
	}
	if it.Status != domain.ContentPending && it.Status != domain.ContentScheduled {
		return campaign.ErrInvalidTransition
	}
	it.Status = domain.ContentScheduled
	it.ScheduledAt = &at
	return nil
}

func (m *Content) MarkRepostScheduled(_ context.Context, id string, at time.Time, maxCount int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return campaign.ErrNotFound
	}
	if it.Status != domain.ContentPublished || it.RepublishCount >= maxCount {
		return campaign.ErrInvalidTransition
	}
	it.Status = domain.ContentScheduled
	it.RepublishCount++
	it.ScheduledAt = &at
	return nil
}

func (m *Content) MarkOutcome(_ context.Context, id string, status domain.ContentStatus, results domain.ExternalPostIDs, publishedAt *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	it, ok := m.items[id]
	if !ok {
		return campaign.ErrNotFound
	}
	if it.Status != domain.ContentScheduled {
		return campaign.ErrInvalidTransition
	}
	it.Status = status
	it.ExternalPostIDs = results
	if publishedAt != nil {
		it.PublishedAt = publishedAt
	}
	return nil
}

// Snapshot returns a copy of the stored item.
func (m *Content) Snapshot(id string) domain.ContentItem {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.items[id]
}

// Dispatcher records dispatched tasks, or fails with Err when set.
type Dispatcher struct {
	mu    sync.Mutex
	Tasks []domain.PublishTask
	Err   error
}

func (d *Dispatcher) Dispatch(_ context.Context, task domain.PublishTask) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return d.Err
	}
	d.Tasks = append(d.Tasks, task)
	return nil
}

// Put stores or replaces an item.
func (m *Content) Put(it domain.ContentItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[it.ID] = &it
}

// Sent returns a copy of the recorded tasks.
func (d *Dispatcher) Sent() []domain.PublishTask {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]domain.PublishTask(nil), d.Tasks...)
}
