package publisher

import (
	"bytes"
	"context"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ignite/social-scheduler/internal/domain"
	"github.com/ignite/social-scheduler/internal/pkg/logger"
)

// Instagram container processing defaults.
const (
	DefaultInstagramPollInterval = 5 * time.Second
	DefaultInstagramPollAttempts = 30
)

// Container status values reported by the Graph API.
const (
	containerFinished = "FINISHED"
	containerError    = "ERROR"
)

// postInstagram creates a media container, waits for video processing, then
// publishes the container.
func (a *MetaAdapter) postInstagram(ctx context.Context, client *http.Client, channel domain.Channel, payload domain.Payload) domain.PostResult {
	if !payload.HasMedia() {
		return domain.Failed("instagram posts require media", domain.ErrNoMedia)
	}
	mediaURL := payload.FirstMediaURL()
	video := IsVideo(payload)
	local := ClassifyMedia(mediaURL) == MediaLocal

	if local && !video {
		return domain.Failed("instagram cannot ingest local images; host the image at a public URL", domain.ErrLocalImageNotSupported)
	}

	var (
		containerID string
		failure     domain.PostResult
		ok          bool
	)
	switch {
	case local:
		containerID, failure, ok = a.createResumableContainer(ctx, client, channel, payload, mediaURL)
	default:
		containerID, failure, ok = a.createContainer(ctx, client, channel, payload, mediaURL, video)
	}
	if !ok {
		return failure
	}

	if video {
		if failure, ok := a.waitForContainer(ctx, client, channel, containerID); !ok {
			return failure
		}
	}

	return a.publishContainer(ctx, client, channel, containerID, video)
}

func (a *MetaAdapter) createContainer(ctx context.Context, client *http.Client, channel domain.Channel, payload domain.Payload, mediaURL string, video bool) (string, domain.PostResult, bool) {
	form := url.Values{
		"caption":      {payload.FullCaption()},
		"access_token": {channel.AccessToken},
	}
	if video {
		form.Set("media_type", "REELS")
		form.Set("video_url", mediaURL)
	} else {
		form.Set("image_url", mediaURL)
	}
	out, failure, ok := a.postContainerForm(ctx, client, channel, form)
	if !ok {
		return "", failure, false
	}
	return out.ID, domain.PostResult{}, true
}

// createResumableContainer opens a resumable upload session for a local
// video and streams the bytes to the returned upload URI.
func (a *MetaAdapter) createResumableContainer(ctx context.Context, client *http.Client, channel domain.Channel, payload domain.Payload, mediaURL string) (string, domain.PostResult, bool) {
	data, err := a.media.Load(ctx, mediaURL, client)
	if err != nil {
		return "", mediaLoadFailure(err), false
	}

	form := url.Values{
		"upload_type":  {"resumable"},
		"media_type":   {"REELS"},
		"caption":      {payload.FullCaption()},
		"access_token": {channel.AccessToken},
	}
	out, failure, ok := a.postContainerForm(ctx, client, channel, form)
	if !ok {
		return "", failure, false
	}
	if out.URI == "" {
		return "", domain.Failed("resumable container returned no upload uri", domain.ErrUploadFailed), false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, out.URI, bytes.NewReader(data))
	if err != nil {
		return "", domain.Failed(err.Error(), domain.ErrUploadFailed), false
	}
	req.Header.Set("Authorization", "OAuth "+channel.AccessToken)
	req.Header.Set("offset", "0")
	req.Header.Set("file_size", strconv.Itoa(len(data)))
	req.Header.Set("Content-Type", "application/octet-stream")

	res, err := do(client, req)
	if err != nil {
		if ctx.Err() != nil {
			return "", transportFailure(ctx, "video upload", err), false
		}
		return "", domain.Failed(fmt.Sprintf("video upload: %v", err), domain.ErrUploadFailed), false
	}
	if !res.ok() {
		up, _ := decodeGraph(res)
		return "", graphFailure("video upload", res, up.Error, domain.ErrUploadFailed), false
	}
	log.Printf("[Instagram] Uploaded %d bytes to container %s", len(data), out.ID)
	return out.ID, domain.PostResult{}, true
}

func (a *MetaAdapter) postContainerForm(ctx context.Context, client *http.Client, channel domain.Channel, form url.Values) (graphResult, domain.PostResult, bool) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/"+channel.ExternalID+"/media", strings.NewReader(form.Encode()))
	if err != nil {
		return graphResult{}, domain.Failed(err.Error(), domain.ErrContainerFailed), false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	out, failure, ok := a.graphCall(ctx, client, req, "container creation", domain.ErrContainerFailed)
	if !ok {
		return out, failure, false
	}
	if out.ID == "" {
		return out, domain.Failed("container creation returned no id", domain.ErrNoContainerID), false
	}
	return out, domain.PostResult{}, true
}

// waitForContainer polls the container status until FINISHED or ERROR.
// Transport errors on a single check are logged and polling continues.
func (a *MetaAdapter) waitForContainer(ctx context.Context, client *http.Client, channel domain.Channel, containerID string) (domain.PostResult, bool) {
	var failure *domain.PostResult
	endpoint := fmt.Sprintf("%s/%s?%s", a.baseURL, containerID, url.Values{
		"fields":       {"status_code"},
		"access_token": {channel.AccessToken},
	}.Encode())

	attempts, err := a.igContainer.Run(ctx, func(ctx context.Context, attempt int) (bool, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return false, err
		}
		res, err := do(client, req)
		if err != nil {
			logger.Warn("instagram container status check failed",
				"container_id", containerID, "attempt", attempt, "error", err.Error())
			return false, nil
		}
		out, err := decodeGraph(res)
		if err != nil {
			logger.Warn("instagram container status unreadable",
				"container_id", containerID, "attempt", attempt, "error", err.Error())
			return false, nil
		}
		switch out.Status {
		case containerFinished:
			return true, nil
		case containerError:
			f := domain.Failed("instagram could not process the video", domain.ErrVideoProcessingFailed)
			failure = &f
			return true, nil
		}
		return false, nil
	})
	if failure != nil {
		return *failure, false
	}
	if err != nil {
		return pollFailure("container processing", attempts, err), false
	}
	return domain.PostResult{}, true
}

func (a *MetaAdapter) publishContainer(ctx context.Context, client *http.Client, channel domain.Channel, containerID string, video bool) domain.PostResult {
	form := url.Values{
		"creation_id":  {containerID},
		"access_token": {channel.AccessToken},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/"+channel.ExternalID+"/media_publish", strings.NewReader(form.Encode()))
	if err != nil {
		return domain.Failed(err.Error(), domain.ErrHTTP)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	out, failure, ok := a.graphCall(ctx, client, req, "media publish", domain.ErrHTTP)
	if !ok {
		return failure
	}
	if out.ID == "" {
		return domain.Failed("media publish returned no media id", domain.ErrNoMediaID)
	}

	mediaType := "IMAGE"
	if video {
		mediaType = "REELS"
	}
	log.Printf("[Instagram] Published container %s as media %s", containerID, out.ID)
	return domain.Succeeded(out.ID, map[string]interface{}{
		"container_id": containerID,
		"media_type":   mediaType,
	})
}
