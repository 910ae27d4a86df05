package publisher

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/social-scheduler/internal/domain"
)

func ttChannel() domain.Channel {
	return domain.Channel{
		ID: "ch-tt", UserID: "u1", Provider: domain.ProviderTikTok, Type: domain.ChannelTikTokProfile,
		Name: "TT", ExternalID: "open-1", AccessToken: "act.token",
	}
}

const (
	ttInitPath   = "/v2/post/publish/video/init/"
	ttStatusPath = "/v2/post/publish/status/fetch/"
)

func ttPayload() domain.Payload {
	return domain.Payload{Caption: "dance", MediaURLs: []string{"https://cdn.example.com/d.mp4"}}
}

func TestTikTokAdapter_PublishComplete(t *testing.T) {
	f := newFakePlatform(t)
	f.handle("POST "+ttInitPath, jsonReply(`{"data":{"publish_id":"pub1"},"error":{"code":"ok","message":""}}`))
	f.handle("POST "+ttStatusPath, sequence(
		`{"data":{"status":"PROCESSING_DOWNLOAD"},"error":{"code":"ok"}}`,
		`{"data":{"status":"PUBLISH_COMPLETE","publicaly_available_post_id":[7301234567890123456]},"error":{"code":"ok"}}`,
	))

	a := NewTikTokAdapter(f.URL, "SELF_ONLY", fastPoller(30))
	res := a.Post(context.Background(), ttChannel(), ttPayload(), direct())

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "7301234567890123456", res.ExternalPostID)
	assert.Equal(t, "pub1", res.Metadata["publish_id"])
	assert.Equal(t, 2, f.count("POST", ttStatusPath))

	init := f.last("POST", ttInitPath)
	assert.Equal(t, "Bearer act.token", init.Header.Get("Authorization"))
	var body struct {
		PostInfo   map[string]interface{} `json:"post_info"`
		SourceInfo map[string]interface{} `json:"source_info"`
	}
	require.NoError(t, json.Unmarshal(init.Body, &body))
	assert.Equal(t, "PULL_FROM_URL", body.SourceInfo["source"])
	assert.Equal(t, "https://cdn.example.com/d.mp4", body.SourceInfo["video_url"])
	assert.Equal(t, "SELF_ONLY", body.PostInfo["privacy_level"])
	assert.Equal(t, "dance", body.PostInfo["title"])
	assert.Equal(t, false, body.PostInfo["disable_comment"])
}

func TestTikTokAdapter_FallsBackToPublishID(t *testing.T) {
	f := newFakePlatform(t)
	f.handle("POST "+ttInitPath, jsonReply(`{"data":{"publish_id":"pub2"},"error":{"code":"ok"}}`))
	f.handle("POST "+ttStatusPath, jsonReply(`{"data":{"status":"PUBLISH_COMPLETE"},"error":{"code":"ok"}}`))

	res := NewTikTokAdapter(f.URL, "", fastPoller(30)).Post(context.Background(), ttChannel(), ttPayload(), direct())
	require.True(t, res.Success, res.Error)
	assert.Equal(t, "pub2", res.ExternalPostID)
}

func TestTikTokAdapter_PublishFailedWithReason(t *testing.T) {
	f := newFakePlatform(t)
	f.handle("POST "+ttInitPath, jsonReply(`{"data":{"publish_id":"pub3"},"error":{"code":"ok"}}`))
	f.handle("POST "+ttStatusPath, jsonReply(`{"data":{"status":"FAILED","fail_reason":"video too long"},"error":{"code":"ok"}}`))

	res := NewTikTokAdapter(f.URL, "", fastPoller(30)).Post(context.Background(), ttChannel(), ttPayload(), direct())
	assert.False(t, res.Success)
	assert.Equal(t, domain.ErrPublishFailed, res.ErrorCode)
	assert.Contains(t, res.Error, "video too long")
	assert.Equal(t, 1, f.count("POST", ttStatusPath))
}

func TestTikTokAdapter_TimeoutAfterMaxAttempts(t *testing.T) {
	f := newFakePlatform(t)
	f.handle("POST "+ttInitPath, jsonReply(`{"data":{"publish_id":"pub4"},"error":{"code":"ok"}}`))
	f.handle("POST "+ttStatusPath, jsonReply(`{"data":{"status":"PROCESSING_UPLOAD"},"error":{"code":"ok"}}`))

	res := NewTikTokAdapter(f.URL, "", fastPoller(30)).Post(context.Background(), ttChannel(), ttPayload(), direct())
	assert.Equal(t, domain.ErrTimeout, res.ErrorCode)
	assert.Equal(t, 30, f.count("POST", ttStatusPath))
}

func TestTikTokAdapter_UnreadableStatusKeepsPolling(t *testing.T) {
	f := newFakePlatform(t)
	f.handle("POST "+ttInitPath, jsonReply(`{"data":{"publish_id":"pub5"},"error":{"code":"ok"}}`))
	f.handle("POST "+ttStatusPath, sequence(
		`not json`,
		`{"data":{"status":"PUBLISH_COMPLETE"},"error":{"code":"ok"}}`,
	))

	res := NewTikTokAdapter(f.URL, "", fastPoller(5)).Post(context.Background(), ttChannel(), ttPayload(), direct())
	require.True(t, res.Success, res.Error)
	assert.Equal(t, 2, f.count("POST", ttStatusPath))
}

func TestTikTokAdapter_CancelledWhilePolling(t *testing.T) {
	f := newFakePlatform(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.handle("POST "+ttInitPath, jsonReply(`{"data":{"publish_id":"pub6"},"error":{"code":"ok"}}`))
	f.handle("POST "+ttStatusPath, jsonReply(`{"data":{"status":"PROCESSING_UPLOAD"},"error":{"code":"ok"}}`))

	a := NewTikTokAdapter(f.URL, "", fastPoller(30))
	a.status.Sleeper = func(ctx context.Context, _ time.Duration) error {
		cancel()
		return ctx.Err()
	}
	res := a.Post(ctx, ttChannel(), ttPayload(), direct())
	assert.Equal(t, domain.ErrCancelled, res.ErrorCode)
}

func TestTikTokAdapter_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		payload  domain.Payload
		wantCode domain.ErrorCode
	}{
		{"no media", domain.Payload{Caption: "x"}, domain.ErrNoMedia},
		{"image", domain.Payload{MediaURLs: []string{"https://cdn.example.com/p.jpg"}}, domain.ErrInvalidMediaType},
		{"local file", domain.Payload{MediaURLs: []string{"/srv/media/clip.mp4"}}, domain.ErrLocalFileNotSupported},
		{"private host", domain.Payload{MediaURLs: []string{"http://10.0.0.8/clip.mp4"}}, domain.ErrLocalFileNotSupported},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFakePlatform(t)
			res := NewTikTokAdapter(f.URL, "", fastPoller(3)).Post(context.Background(), ttChannel(), tt.payload, direct())
			assert.Equal(t, tt.wantCode, res.ErrorCode)
			assert.Zero(t, f.total())
		})
	}
}

func TestTikTokAdapter_InitFailed(t *testing.T) {
	f := newFakePlatform(t)
	f.handle("POST "+ttInitPath, jsonStatus(401, `{"error":{"code":"access_token_invalid","message":"The access token is invalid"}}`))

	res := NewTikTokAdapter(f.URL, "", fastPoller(3)).Post(context.Background(), ttChannel(), ttPayload(), direct())
	assert.Equal(t, domain.ErrInitFailed, res.ErrorCode)
	assert.Equal(t, "The access token is invalid", res.Error)
	assert.Zero(t, f.count("POST", ttStatusPath))
}

func TestTikTokAdapter_InitUnreadable(t *testing.T) {
	f := newFakePlatform(t)
	f.handle("POST "+ttInitPath, jsonReply(`gateway says hi`))

	res := NewTikTokAdapter(f.URL, "", fastPoller(3)).Post(context.Background(), ttChannel(), ttPayload(), direct())
	assert.Equal(t, domain.ErrInitFailed, res.ErrorCode)
	assert.Contains(t, res.Error, "decoding response")
	assert.Zero(t, f.count("POST", ttStatusPath))
}

func TestTikTokTitleTruncated(t *testing.T) {
	f := newFakePlatform(t)
	f.handle("POST "+ttInitPath, jsonReply(`{"data":{"publish_id":"p"},"error":{"code":"ok"}}`))
	f.handle("POST "+ttStatusPath, jsonReply(`{"data":{"status":"PUBLISH_COMPLETE"}}`))

	p := ttPayload()
	p.Caption = strings.Repeat("ü", 200)
	NewTikTokAdapter(f.URL, "", fastPoller(3)).Post(context.Background(), ttChannel(), p, direct())

	var body struct {
		PostInfo struct {
			Title string `json:"title"`
		} `json:"post_info"`
	}
	require.NoError(t, json.Unmarshal(f.last("POST", ttInitPath).Body, &body))
	assert.Equal(t, 150, len([]rune(body.PostInfo.Title)))
}
