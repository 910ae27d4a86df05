package campaign_test

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/social-scheduler/internal/domain"
	"github.com/ignite/social-scheduler/internal/pkg/logger"
	"github.com/ignite/social-scheduler/internal/service/campaign"
	"github.com/ignite/social-scheduler/internal/service/campaign/campaigntest"
)

type stubResolver struct {
	channels   []domain.Channel
	payload    domain.Payload
	channelErr error
}

func (r stubResolver) ChannelsFor(context.Context, *domain.ContentItem) ([]domain.Channel, error) {
	return r.channels, r.channelErr
}

func (r stubResolver) PayloadFor(context.Context, *domain.ContentItem) (domain.Payload, error) {
	return r.payload, nil
}

// scriptedPublisher returns fixed per-channel results.
type scriptedPublisher struct {
	results map[string]domain.PostResult
	calls   int
}

func (p *scriptedPublisher) PostToChannels(_ context.Context, _ *domain.ContentItem, channels []domain.Channel, _ domain.Payload) domain.ExternalPostIDs {
	p.calls++
	out := domain.ExternalPostIDs{}
	for _, ch := range channels {
		out[ch.ID] = ch.Result(p.results[ch.ID])
	}
	return out
}

func scheduledItem() domain.ContentItem {
	it := item("i1", domain.ContentScheduled, time.Hour)
	it.ScheduledAt = ago(10 * time.Second)
	return it
}

var twoChannels = []domain.Channel{
	{ID: "fb", Provider: domain.ProviderMeta, Type: domain.ChannelFacebookPage},
	{ID: "tt", Provider: domain.ProviderTikTok, Type: domain.ChannelTikTokProfile},
}

func task() domain.PublishTask {
	return domain.PublishTask{ID: "t1", CampaignID: "camp-1", ContentItemID: "i1", Kind: domain.PublishPost}
}

func newPublishService(content *campaigntest.Content, r stubResolver, p *scriptedPublisher) *campaign.PublishService {
	s := campaign.NewPublishService(content, r, p)
	s.SetClock(func() time.Time { return now })
	return s
}

func TestPublishService_PartialSuccessPublishes(t *testing.T) {
	content := campaigntest.NewContent(scheduledItem())
	pub := &scriptedPublisher{results: map[string]domain.PostResult{
		"fb": domain.Succeeded("fb-post", nil),
		"tt": domain.Failed("video too long", domain.ErrPublishFailed),
	}}

	status, err := newPublishService(content, stubResolver{channels: twoChannels}, pub).Handle(context.Background(), task())
	require.NoError(t, err)
	assert.Equal(t, domain.ContentPublished, status)

	got := content.Snapshot("i1")
	assert.Equal(t, domain.ContentPublished, got.Status)
	assert.Equal(t, now, *got.PublishedAt)
	assert.Equal(t, "fb-post", got.ExternalPostIDs["fb"].ExternalPostID)
	assert.Equal(t, domain.ErrPublishFailed, got.ExternalPostIDs["tt"].ErrorCode)
}

func TestPublishService_AllFailedMarksFailed(t *testing.T) {
	content := campaigntest.NewContent(scheduledItem())
	pub := &scriptedPublisher{results: map[string]domain.PostResult{
		"fb": domain.Failed("token expired", "190"),
		"tt": domain.Failed("timeout", domain.ErrTimeout),
	}}

	status, err := newPublishService(content, stubResolver{channels: twoChannels}, pub).Handle(context.Background(), task())
	require.NoError(t, err)
	assert.Equal(t, domain.ContentFailed, status)
	assert.Nil(t, content.Snapshot("i1").PublishedAt)
}

func TestPublishService_NoChannelsSkips(t *testing.T) {
	content := campaigntest.NewContent(scheduledItem())
	pub := &scriptedPublisher{}

	status, err := newPublishService(content, stubResolver{}, pub).Handle(context.Background(), task())
	require.NoError(t, err)
	assert.Equal(t, domain.ContentSkipped, status)
	assert.Equal(t, domain.ContentSkipped, content.Snapshot("i1").Status)
	assert.Zero(t, pub.calls)
}

func TestPublishService_IgnoresItemNoLongerScheduled(t *testing.T) {
	published := scheduledItem()
	published.Status = domain.ContentPublished
	content := campaigntest.NewContent(published)
	pub := &scriptedPublisher{}

	status, err := newPublishService(content, stubResolver{channels: twoChannels}, pub).Handle(context.Background(), task())
	require.NoError(t, err)
	assert.Equal(t, domain.ContentPublished, status)
	assert.Zero(t, pub.calls, "late duplicate deliveries do not post again")
}

func TestPublishService_PendingItemIsIgnoredWithWarning(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	defer logger.SetOutput(nil)

	pending := scheduledItem()
	pending.Status = domain.ContentPending
	content := campaigntest.NewContent(pending)
	pub := &scriptedPublisher{}

	status, err := newPublishService(content, stubResolver{channels: twoChannels}, pub).Handle(context.Background(), task())
	require.NoError(t, err)
	assert.Equal(t, domain.ContentPending, status)
	assert.Zero(t, pub.calls)
	assert.Contains(t, buf.String(), `"level":"WARN"`)
	assert.Contains(t, buf.String(), "item not scheduled")
}

func TestPublishService_MissingItemIsDropped(t *testing.T) {
	pub := &scriptedPublisher{}
	_, err := newPublishService(campaigntest.NewContent(), stubResolver{}, pub).Handle(context.Background(), task())
	require.NoError(t, err)
	assert.Zero(t, pub.calls)
}

func TestPublishService_ResolverErrorLeavesItemScheduled(t *testing.T) {
	content := campaigntest.NewContent(scheduledItem())
	_, err := newPublishService(content, stubResolver{channelErr: errBoom}, &scriptedPublisher{}).Handle(context.Background(), task())
	assert.ErrorIs(t, err, errBoom)
	assert.Equal(t, domain.ContentScheduled, content.Snapshot("i1").Status)
}

func TestPublishService_RepostMergesResults(t *testing.T) {
	it := scheduledItem()
	it.RepublishCount = 1
	it.ExternalPostIDs = domain.ExternalPostIDs{
		"old": {Provider: domain.ProviderGoogle, Success: true, ExternalPostID: "yt-1"},
		"fb":  {Provider: domain.ProviderMeta, Success: true, ExternalPostID: "fb-old"},
	}
	content := campaigntest.NewContent(it)
	pub := &scriptedPublisher{results: map[string]domain.PostResult{"fb": domain.Succeeded("fb-new", nil)}}

	tk := task()
	tk.Kind = domain.PublishRepost
	_, err := newPublishService(content, stubResolver{channels: twoChannels[:1]}, pub).Handle(context.Background(), tk)
	require.NoError(t, err)

	got := content.Snapshot("i1")
	assert.Equal(t, "fb-new", got.ExternalPostIDs["fb"].ExternalPostID)
	assert.Equal(t, "yt-1", got.ExternalPostIDs["old"].ExternalPostID)
	assert.Equal(t, 1, got.RepublishCount)
}
