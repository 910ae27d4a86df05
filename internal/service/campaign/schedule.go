package campaign

import (
	"time"

	"github.com/ignite/social-scheduler/internal/domain"
)

// ComputeNextDue adds interval units of condition to from. Unknown conditions
// count in days; intervals below 1 count as 1.
func ComputeNextDue(from time.Time, condition domain.ScheduleCondition, interval int) time.Time {
	if interval < 1 {
		interval = 1
	}
	switch condition {
	case domain.ScheduleMinute, "minutes":
		return from.Add(time.Duration(interval) * time.Minute)
	case domain.ScheduleHourly, "hour", "hours":
		return from.Add(time.Duration(interval) * time.Hour)
	case domain.ScheduleWeekly, "week", "weeks":
		return from.AddDate(0, 0, 7*interval)
	case domain.ScheduleMonthly, "month", "months":
		return from.AddDate(0, interval, 0)
	default:
		return from.AddDate(0, 0, interval)
	}
}

// IsDue reports whether now has reached the next due time after from.
func IsDue(now, from time.Time, condition domain.ScheduleCondition, interval int) bool {
	return !now.Before(ComputeNextDue(from, condition, interval))
}

// PostDue reports whether a new post is due for c at now.
func PostDue(c *domain.Campaign, now time.Time) bool {
	return IsDue(now, c.PostAnchor(), c.ScheduleCondition, c.ScheduleInterval)
}

// RepostDue reports whether a repost is due for c at now.
func RepostDue(c *domain.Campaign, now time.Time) bool {
	if !c.RepostEnabled {
		return false
	}
	return IsDue(now, c.RepostAnchor(), c.RepostCondition, c.RepostInterval)
}
