package domain

import (
	"time"
)

// CampaignStatus enumerates the lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignDraft     CampaignStatus = "draft"
	CampaignRunning   CampaignStatus = "running"
	CampaignPaused    CampaignStatus = "paused"
	CampaignCompleted CampaignStatus = "completed"
)

// ScheduleCondition is the unit of a posting or reposting cadence.
type ScheduleCondition string

const (
	ScheduleMinute  ScheduleCondition = "minute"
	ScheduleHourly  ScheduleCondition = "hourly"
	ScheduleDaily   ScheduleCondition = "daily"
	ScheduleWeekly  ScheduleCondition = "weekly"
	ScheduleMonthly ScheduleCondition = "monthly"
)

// DefaultRepostMaxCount applies when a campaign enables reposting without
// setting a cap.
const DefaultRepostMaxCount = 1

// Campaign is a recurring publishing plan over a set of content items.
type Campaign struct {
	ID                string            `json:"id" db:"id"`
	UserID            string            `json:"user_id" db:"user_id"`
	Name              string            `json:"name" db:"name"`
	Status            CampaignStatus    `json:"status" db:"status"`
	ScheduleCondition ScheduleCondition `json:"schedule_condition" db:"schedule_condition"`
	ScheduleInterval  int               `json:"schedule_interval" db:"schedule_interval"`

	RepostEnabled   bool              `json:"repost_enabled" db:"repost_enabled"`
	RepostCondition ScheduleCondition `json:"repost_condition" db:"repost_condition"`
	RepostInterval  int               `json:"repost_interval" db:"repost_interval"`
	RepostMaxCount  int               `json:"repost_max_count" db:"repost_max_count"`

	LastPostAt   *time.Time `json:"last_post_at" db:"last_post_at"`
	LastRepostAt *time.Time `json:"last_repost_at" db:"last_repost_at"`
	StartedAt    time.Time  `json:"started_at" db:"started_at"`
	CompletedAt  *time.Time `json:"completed_at" db:"completed_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at" db:"updated_at"`
}

// EffectiveRepostMax returns the repost cap, falling back to
// DefaultRepostMaxCount when unset.
func (c *Campaign) EffectiveRepostMax() int {
	if c.RepostMaxCount <= 0 {
		return DefaultRepostMaxCount
	}
	return c.RepostMaxCount
}

// PostAnchor is the instant the next post cadence is measured from.
func (c *Campaign) PostAnchor() time.Time {
	if c.LastPostAt != nil {
		return *c.LastPostAt
	}
	return c.StartedAt
}

// RepostAnchor is the instant the next repost cadence is measured from.
func (c *Campaign) RepostAnchor() time.Time {
	if c.LastRepostAt != nil {
		return *c.LastRepostAt
	}
	return c.StartedAt
}

// ItemCounts summarises a campaign's content items by status.
type ItemCounts struct {
	Pending   int `json:"pending"`
	Scheduled int `json:"scheduled"`
	Published int `json:"published"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Active is the number of items still waiting on a publish.
func (c ItemCounts) Active() int {
	return c.Pending + c.Scheduled
}
