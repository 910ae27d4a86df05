package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/ignite/social-scheduler/internal/domain"
	"github.com/ignite/social-scheduler/internal/pkg/logger"
	"github.com/ignite/social-scheduler/internal/pkg/poll"
	"github.com/ignite/social-scheduler/internal/proxy"
)

// TikTok API defaults.
const (
	DefaultTikTokBaseURL      = "https://open.tiktokapis.com"
	DefaultTikTokPollInterval = 3 * time.Second
	DefaultTikTokPollAttempts = 30
	DefaultTikTokPrivacyLevel = "PUBLIC_TO_EVERYONE"

	tiktokTitleMax = 150
)

// Publish status values reported by the status endpoint.
const (
	tiktokPublishComplete = "PUBLISH_COMPLETE"
	tiktokFailed          = "FAILED"
)

// TikTokAdapter publishes videos that TikTok pulls from a public URL.
type TikTokAdapter struct {
	baseURL      string
	privacyLevel string
	status       *poll.Poller
}

// NewTikTokAdapter creates a TikTok adapter.
func NewTikTokAdapter(baseURL, privacyLevel string, statusPoll *poll.Poller) *TikTokAdapter {
	if baseURL == "" {
		baseURL = DefaultTikTokBaseURL
	}
	if privacyLevel == "" {
		privacyLevel = DefaultTikTokPrivacyLevel
	}
	if statusPoll == nil {
		statusPoll = poll.New(DefaultTikTokPollInterval, DefaultTikTokPollAttempts)
	}
	return &TikTokAdapter{
		baseURL:      strings.TrimRight(baseURL, "/"),
		privacyLevel: privacyLevel,
		status:       statusPoll,
	}
}

// Name implements Adapter.
func (a *TikTokAdapter) Name() string { return "tiktok" }

// Supports implements Adapter.
func (a *TikTokAdapter) Supports(provider domain.Provider, channelType domain.ChannelType) bool {
	return provider == domain.ProviderTikTok && channelType == domain.ChannelTikTokProfile
}

type tiktokError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	LogID   string `json:"log_id"`
}

func (e tiktokError) failed() bool { return e.Code != "" && e.Code != "ok" }

type tiktokInitResponse struct {
	Data struct {
		PublishID string `json:"publish_id"`
	} `json:"data"`
	Error tiktokError `json:"error"`
}

type tiktokStatusResponse struct {
	Data struct {
		Status     string        `json:"status"`
		FailReason string        `json:"fail_reason"`
		PostIDs    []json.Number `json:"publicaly_available_post_id"`
	} `json:"data"`
	Error tiktokError `json:"error"`
}

// Post implements Adapter.
func (a *TikTokAdapter) Post(ctx context.Context, channel domain.Channel, payload domain.Payload, conn proxy.ConnectionConfig) domain.PostResult {
	if channel.AccessToken == "" {
		return domain.Failed("channel has no access token", domain.ErrNoToken)
	}
	if !payload.HasMedia() {
		return domain.Failed("tiktok posts require a video", domain.ErrNoMedia)
	}
	if !IsVideo(payload) {
		return domain.Failed("tiktok only accepts video media", domain.ErrInvalidMediaType)
	}
	videoURL := payload.FirstMediaURL()
	if ClassifyMedia(videoURL) == MediaLocal {
		return domain.Failed("tiktok pulls media from public URLs only", domain.ErrLocalFileNotSupported)
	}

	client := conn.HTTPClient()
	publishID, failure, ok := a.initPublish(ctx, client, channel, payload, videoURL)
	if !ok {
		return failure
	}
	return a.waitForPublish(ctx, client, channel, publishID)
}

func (a *TikTokAdapter) initPublish(ctx context.Context, client *http.Client, channel domain.Channel, payload domain.Payload, videoURL string) (string, domain.PostResult, bool) {
	body := map[string]interface{}{
		"post_info": map[string]interface{}{
			"title":           truncateRunes(payload.FullCaption(), tiktokTitleMax),
			"privacy_level":   a.privacyLevel,
			"disable_comment": false,
			"disable_duet":    false,
			"disable_stitch":  false,
		},
		"source_info": map[string]interface{}{
			"source":    "PULL_FROM_URL",
			"video_url": videoURL,
		},
	}
	req, err := newJSONRequest(ctx, http.MethodPost, a.baseURL+"/v2/post/publish/video/init/", body)
	if err != nil {
		return "", domain.Failed(err.Error(), domain.ErrInitFailed), false
	}
	req.Header.Set("Authorization", "Bearer "+channel.AccessToken)

	res, err := do(client, req)
	if err != nil {
		if ctx.Err() != nil {
			return "", transportFailure(ctx, "publish init", err), false
		}
		return "", domain.Failed(fmt.Sprintf("publish init: %v", err), domain.ErrInitFailed), false
	}
	var out tiktokInitResponse
	decodeErr := json.Unmarshal(res.Body, &out)
	if res.ok() && decodeErr != nil {
		return "", domain.Failed(fmt.Sprintf("publish init: decoding response: %v", decodeErr), domain.ErrInitFailed), false
	}
	if !res.ok() || out.Error.failed() || out.Data.PublishID == "" {
		msg := out.Error.Message
		if msg == "" {
			msg = fmt.Sprintf("publish init failed with status %d", res.Status)
		}
		return "", domain.Failed(msg, domain.ErrInitFailed), false
	}
	return out.Data.PublishID, domain.PostResult{}, true
}

// waitForPublish polls the publish status until TikTok finishes pulling and
// posting the video.
func (a *TikTokAdapter) waitForPublish(ctx context.Context, client *http.Client, channel domain.Channel, publishID string) domain.PostResult {
	var result *domain.PostResult

	attempts, err := a.status.Run(ctx, func(ctx context.Context, attempt int) (bool, error) {
		req, err := newJSONRequest(ctx, http.MethodPost, a.baseURL+"/v2/post/publish/status/fetch/",
			map[string]string{"publish_id": publishID})
		if err != nil {
			return false, err
		}
		req.Header.Set("Authorization", "Bearer "+channel.AccessToken)

		res, err := do(client, req)
		if err != nil {
			logger.Warn("tiktok status check failed",
				"publish_id", publishID, "attempt", attempt, "error", err.Error())
			return false, nil
		}
		var out tiktokStatusResponse
		if err := json.Unmarshal(res.Body, &out); err != nil {
			logger.Warn("tiktok status unreadable",
				"publish_id", publishID, "attempt", attempt, "status", res.Status, "error", err.Error())
			return false, nil
		}

		switch out.Data.Status {
		case tiktokPublishComplete:
			externalID := publishID
			if len(out.Data.PostIDs) > 0 && out.Data.PostIDs[0] != "" {
				externalID = out.Data.PostIDs[0].String()
			}
			r := domain.Succeeded(externalID, map[string]interface{}{"publish_id": publishID})
			result = &r
			return true, nil
		case tiktokFailed:
			r := domain.Failed(fmt.Sprintf("tiktok publish failed: %s", out.Data.FailReason), domain.ErrPublishFailed)
			result = &r
			return true, nil
		}
		return false, nil
	})
	if result != nil {
		if result.Success {
			log.Printf("[TikTok] Published %s (id: %s) after %d checks", publishID, result.ExternalPostID, attempts)
		}
		return *result
	}
	if err != nil {
		return pollFailure("tiktok publish", attempts, err)
	}
	return domain.Failed("tiktok publish ended without a status", domain.ErrPublishFailed)
}
