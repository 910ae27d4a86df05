package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/oauth2"

	"github.com/ignite/social-scheduler/internal/domain"
	"github.com/ignite/social-scheduler/internal/proxy"
)

// DefaultYouTubeUploadURL is the Data API v3 media upload endpoint.
const DefaultYouTubeUploadURL = "https://www.googleapis.com/upload/youtube/v3/videos"

const (
	youtubeTitleMax   = 100
	youtubeCategoryID = "22" // People & Blogs
)

// YouTubeAdapter uploads videos with the resumable upload protocol.
type YouTubeAdapter struct {
	uploadURL string
	media     *MediaLoader
}

// NewYouTubeAdapter creates a YouTube adapter.
func NewYouTubeAdapter(uploadURL string, media *MediaLoader) *YouTubeAdapter {
	if uploadURL == "" {
		uploadURL = DefaultYouTubeUploadURL
	}
	return &YouTubeAdapter{uploadURL: uploadURL, media: media}
}

// Name implements Adapter.
func (a *YouTubeAdapter) Name() string { return "youtube" }

// Supports implements Adapter.
func (a *YouTubeAdapter) Supports(provider domain.Provider, channelType domain.ChannelType) bool {
	return provider == domain.ProviderGoogle && channelType == domain.ChannelYouTube
}

type youtubeSnippet struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Tags        []string `json:"tags,omitempty"`
	CategoryID  string   `json:"categoryId"`
}

type youtubeStatus struct {
	PrivacyStatus           string `json:"privacyStatus"`
	SelfDeclaredMadeForKids bool   `json:"selfDeclaredMadeForKids"`
}

type youtubeVideo struct {
	Snippet youtubeSnippet `json:"snippet"`
	Status  youtubeStatus  `json:"status"`
}

type googleError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func googleMessage(step string, res apiResponse) string {
	var gerr googleError
	if err := json.Unmarshal(res.Body, &gerr); err == nil && gerr.Error.Message != "" {
		return fmt.Sprintf("%s: %s", step, gerr.Error.Message)
	}
	return fmt.Sprintf("%s failed with status %d", step, res.Status)
}

// Post implements Adapter.
func (a *YouTubeAdapter) Post(ctx context.Context, channel domain.Channel, payload domain.Payload, conn proxy.ConnectionConfig) domain.PostResult {
	if channel.AccessToken == "" {
		return domain.Failed("channel has no access token", domain.ErrNoToken)
	}
	if !payload.HasMedia() {
		return domain.Failed("youtube posts require a video", domain.ErrNoMedia)
	}
	if !IsVideo(payload) {
		return domain.Failed("youtube only accepts video media", domain.ErrInvalidMediaType)
	}
	mediaURL := payload.FirstMediaURL()

	// The source download must not carry the Google bearer token.
	plain := conn.HTTPClient()
	data, err := a.media.Load(ctx, mediaURL, plain)
	if err != nil {
		if ctx.Err() != nil {
			return transportFailure(ctx, "video download", err)
		}
		return domain.Failed(fmt.Sprintf("video download: %v", err), domain.ErrDownloadFailed)
	}

	authed := oauth2.NewClient(
		context.WithValue(ctx, oauth2.HTTPClient, conn.HTTPClient()),
		oauth2.StaticTokenSource(&oauth2.Token{AccessToken: channel.AccessToken, TokenType: "Bearer"}),
	)
	authed.Timeout = conn.Timeout()

	contentType := videoContentType(mediaURL)
	sessionURL, failure, ok := a.initSession(ctx, authed, payload, len(data), contentType)
	if !ok {
		return failure
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, sessionURL, bytes.NewReader(data))
	if err != nil {
		return domain.Failed(err.Error(), domain.ErrUploadFailed)
	}
	req.Header.Set("Content-Type", contentType)
	req.ContentLength = int64(len(data))

	res, err := do(authed, req)
	if err != nil {
		if ctx.Err() != nil {
			return transportFailure(ctx, "video upload", err)
		}
		return domain.Failed(fmt.Sprintf("video upload: %v", err), domain.ErrUploadFailed)
	}
	if !res.ok() {
		return domain.Failed(googleMessage("video upload", res), domain.ErrUploadFailed)
	}

	var video struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(res.Body, &video); err != nil {
		return domain.Failed(fmt.Sprintf("video upload: decoding response: %v", err), domain.ErrUploadFailed)
	}
	if video.ID == "" {
		return domain.Failed("video upload returned no id", domain.ErrUploadFailed)
	}

	log.Printf("[YouTube] Uploaded %d bytes as video %s", len(data), video.ID)
	return domain.Succeeded(video.ID, map[string]interface{}{
		"url":        "https://www.youtube.com/watch?v=" + video.ID,
		"size_bytes": len(data),
	})
}

// initSession negotiates a resumable upload and returns the session URL.
func (a *YouTubeAdapter) initSession(ctx context.Context, client *http.Client, payload domain.Payload, size int, contentType string) (string, domain.PostResult, bool) {
	meta := youtubeVideo{
		Snippet: youtubeSnippet{
			Title:       youtubeTitle(payload),
			Description: payload.FullCaption(),
			Tags:        youtubeTags(payload.Hashtags),
			CategoryID:  youtubeCategoryID,
		},
		Status: youtubeStatus{PrivacyStatus: "public", SelfDeclaredMadeForKids: false},
	}

	endpoint := a.uploadURL + "?uploadType=resumable&part=snippet,status"
	req, err := newJSONRequest(ctx, http.MethodPost, endpoint, meta)
	if err != nil {
		return "", domain.Failed(err.Error(), domain.ErrInitFailed), false
	}
	req.Header.Set("X-Upload-Content-Length", strconv.Itoa(size))
	req.Header.Set("X-Upload-Content-Type", contentType)

	res, err := do(client, req)
	if err != nil {
		if ctx.Err() != nil {
			return "", transportFailure(ctx, "upload init", err), false
		}
		return "", domain.Failed(fmt.Sprintf("upload init: %v", err), domain.ErrInitFailed), false
	}
	if !res.ok() {
		return "", domain.Failed(googleMessage("upload init", res), domain.ErrInitFailed), false
	}
	location := res.Header.Get("Location")
	if location == "" {
		return "", domain.Failed("upload init returned no session url", domain.ErrInitFailed), false
	}
	return location, domain.PostResult{}, true
}

// youtubeTitle uses the caption's first line, falling back to the first
// hashtag line and then a fixed title.
func youtubeTitle(p domain.Payload) string {
	title := firstLine(p.Caption)
	if title == "" {
		title = p.HashtagLine()
	}
	if title == "" {
		title = "Untitled video"
	}
	return truncateRunes(title, youtubeTitleMax)
}

func youtubeTags(hashtags []string) []string {
	tags := make([]string, 0, len(hashtags))
	for _, h := range hashtags {
		h = strings.TrimPrefix(strings.TrimSpace(h), "#")
		if h != "" {
			tags = append(tags, h)
		}
	}
	return tags
}

var videoContentTypes = map[string]string{
	".mp4":  "video/mp4",
	".m4v":  "video/x-m4v",
	".mov":  "video/quicktime",
	".webm": "video/webm",
	".avi":  "video/x-msvideo",
	".mkv":  "video/x-matroska",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".3gp":  "video/3gpp",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
}

func videoContentType(ref string) string {
	if ct, ok := videoContentTypes[mediaExt(ref)]; ok {
		return ct
	}
	return "video/*"
}
