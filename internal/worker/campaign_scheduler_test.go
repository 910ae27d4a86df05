package worker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/ignite/social-scheduler/internal/domain"
	"github.com/ignite/social-scheduler/internal/pkg/distlock"
	"github.com/ignite/social-scheduler/internal/service/campaign"
	"github.com/ignite/social-scheduler/internal/service/campaign/campaigntest"
)

// =============================================================================
// CAMPAIGN SCHEDULER TESTS
// =============================================================================

func runningCampaign(id string) domain.Campaign {
	started := time.Now().Add(-2 * time.Hour)
	return domain.Campaign{
		ID:                id,
		UserID:            "u1",
		Status:            domain.CampaignRunning,
		ScheduleCondition: domain.ScheduleHourly,
		ScheduleInterval:  1,
		StartedAt:         started,
	}
}

func pendingItem(id, campaignID string) domain.ContentItem {
	return domain.ContentItem{
		ID:         id,
		CampaignID: campaignID,
		Status:     domain.ContentPending,
		CreatedAt:  time.Now().Add(-3 * time.Hour),
	}
}

type fixture struct {
	campaigns  *campaigntest.Campaigns
	content    *campaigntest.Content
	dispatcher *campaigntest.Dispatcher
	scheduler  *CampaignScheduler
}

func newFixture(cs []domain.Campaign, items ...domain.ContentItem) *fixture {
	f := &fixture{
		campaigns:  campaigntest.NewCampaigns(cs...),
		content:    campaigntest.NewContent(items...),
		dispatcher: &campaigntest.Dispatcher{},
	}
	f.scheduler = NewCampaignScheduler(campaign.NewScheduler(f.campaigns, f.content, f.dispatcher, 0), nil)
	return f
}

func TestCampaignScheduler_NewScheduler(t *testing.T) {
	f := newFixture(nil)
	s := f.scheduler

	assert.Equal(t, DefaultSchedulerPollInterval, s.pollInterval)
	assert.Equal(t, DefaultCampaignLockTTL, s.lockTTL)
	assert.Equal(t, DefaultCampaignsPerTick, s.batchSize)
	assert.Contains(t, s.WorkerID(), "scheduler-")

	s.SetPollInterval(0)
	s.SetBatchSize(-1)
	assert.Equal(t, DefaultSchedulerPollInterval, s.pollInterval, "non-positive values are ignored")
	assert.Equal(t, DefaultCampaignsPerTick, s.batchSize)
}

func TestCampaignScheduler_RunOnceDispatchesDuePosts(t *testing.T) {
	f := newFixture(
		[]domain.Campaign{runningCampaign("c1"), runningCampaign("c2")},
		pendingItem("i1", "c1"), pendingItem("i2", "c1"), pendingItem("i3", "c2"),
	)

	res, err := f.scheduler.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, res.Evaluated)
	assert.Zero(t, res.Errors)

	sent := f.dispatcher.Sent()
	require.Len(t, sent, 2, "one post per campaign per pass")
	assert.Equal(t, domain.ContentScheduled, f.content.Snapshot("i1").Status)
	assert.Equal(t, domain.ContentPending, f.content.Snapshot("i2").Status)
	assert.NotNil(t, f.campaigns.Snapshot("c1").LastPostAt)

	// same pass again: last_post_at was just set, nothing is due
	res, err = f.scheduler.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, f.dispatcher.Sent(), 2)

	stats := f.scheduler.GetStats()
	assert.Equal(t, int64(2), stats.Passes)
	assert.Equal(t, int64(4), stats.CampaignsEvaluated)
	assert.Equal(t, int64(2), stats.PostsDispatched)
	require.NotNil(t, stats.LastPassAt)
}

func TestCampaignScheduler_RunOnceCompletesFinishedCampaign(t *testing.T) {
	done := pendingItem("i1", "c1")
	done.Status = domain.ContentPublished
	f := newFixture([]domain.Campaign{runningCampaign("c1")}, done)

	res, err := f.scheduler.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 1)
	assert.True(t, res.Outcomes[0].Completed)
	assert.Equal(t, domain.CampaignCompleted, f.campaigns.Snapshot("c1").Status)
	assert.Equal(t, int64(1), f.scheduler.GetStats().Completions)
	assert.Empty(t, f.dispatcher.Sent())
}

func TestCampaignScheduler_SkipsCampaignLockedElsewhere(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	f := newFixture([]domain.Campaign{runningCampaign("c1")}, pendingItem("i1", "c1"))
	f.scheduler.SetRedisClient(client)
	require.NoError(t, mr.Set("lock:campaign:c1", "other-worker"))

	res, err := f.scheduler.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Skipped)
	assert.Zero(t, res.Evaluated)
	assert.Empty(t, f.dispatcher.Sent())

	mr.Del("lock:campaign:c1")
	res, err = f.scheduler.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Evaluated)
	assert.Len(t, f.dispatcher.Sent(), 1)
	assert.False(t, mr.Exists("lock:campaign:c1"), "lock released after the pass")
}

func TestCampaignScheduler_CountsCampaignErrors(t *testing.T) {
	f := newFixture([]domain.Campaign{runningCampaign("c1")}, pendingItem("i1", "c1"))
	f.content.Err = assert.AnError

	res, err := f.scheduler.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Errors)
	assert.Zero(t, res.Evaluated, "errored campaigns are not counted as evaluated")
	assert.Equal(t, int64(1), f.scheduler.GetStats().Errors)
}

func TestCampaignScheduler_LockErrorIsNotEvaluated(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	f := newFixture([]domain.Campaign{runningCampaign("c1")}, pendingItem("i1", "c1"))
	f.scheduler.SetRedisClient(client)
	mr.SetError("LOADING redis is loading")

	res, err := f.scheduler.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Errors)
	assert.Zero(t, res.Evaluated)
	assert.Empty(t, res.Outcomes)
	assert.Empty(t, f.dispatcher.Sent())

	stats := f.scheduler.GetStats()
	assert.Equal(t, int64(1), stats.Errors)
	assert.Zero(t, stats.CampaignsEvaluated)
}

func TestCampaignScheduler_KeepLockRenewsUntilStopped(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	f := newFixture(nil)
	ttl := 200 * time.Millisecond
	f.scheduler.SetLockTTL(ttl)

	lock := distlock.NewRedisLock(client, "campaign:c1", ttl)
	ok, err := lock.Acquire(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	stop := f.scheduler.keepLock(context.Background(), lock)
	mr.FastForward(150 * time.Millisecond)
	require.Eventually(t, func() bool { return mr.TTL(lock.Key()) > 100*time.Millisecond },
		time.Second, 10*time.Millisecond, "lock TTL renewed")
	stop()

	mr.FastForward(time.Second)
	assert.False(t, mr.Exists(lock.Key()), "no renewal after stop")
}

func TestCampaignScheduler_KeepLockIgnoresPlainLocks(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture(nil)
	stop := f.scheduler.keepLock(context.Background(), distlock.NewLock(nil, nil, "campaign:c1", time.Minute))
	stop()
}

func TestCampaignScheduler_StartStop(t *testing.T) {
	defer goleak.VerifyNone(t)

	f := newFixture([]domain.Campaign{runningCampaign("c1")}, pendingItem("i1", "c1"))
	s := f.scheduler
	s.SetPollInterval(10 * time.Millisecond)

	require.NoError(t, s.Start())
	assert.True(t, s.IsRunning())
	assert.ErrorIs(t, s.Start(), ErrSchedulerRunning)

	require.Eventually(t, func() bool { return len(f.dispatcher.Sent()) == 1 }, time.Second, 5*time.Millisecond)

	s.Stop()
	assert.False(t, s.IsRunning())
	s.Stop()
}
