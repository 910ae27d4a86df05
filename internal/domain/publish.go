package domain

import (
	"strings"
	"time"
)

// ErrorCode classifies a failed publish attempt.
type ErrorCode string

const (
	ErrNoToken                ErrorCode = "NO_TOKEN"
	ErrNoMedia                ErrorCode = "NO_MEDIA"
	ErrInvalidMediaType       ErrorCode = "INVALID_MEDIA_TYPE"
	ErrLocalImageNotSupported ErrorCode = "LOCAL_IMAGE_NOT_SUPPORTED"
	ErrLocalFileNotFound      ErrorCode = "LOCAL_FILE_NOT_FOUND"
	ErrLocalFileNotSupported  ErrorCode = "LOCAL_FILE_NOT_SUPPORTED"
	ErrContainerFailed        ErrorCode = "CONTAINER_FAILED"
	ErrVideoProcessingFailed  ErrorCode = "VIDEO_PROCESSING_FAILED"
	ErrNoContainerID          ErrorCode = "NO_CONTAINER_ID"
	ErrNoMediaID              ErrorCode = "NO_MEDIA_ID"
	ErrUploadFailed           ErrorCode = "UPLOAD_FAILED"
	ErrDownloadFailed         ErrorCode = "DOWNLOAD_FAILED"
	ErrInitFailed             ErrorCode = "INIT_FAILED"
	ErrPublishFailed          ErrorCode = "PUBLISH_FAILED"
	ErrTimeout                ErrorCode = "TIMEOUT"
	ErrCancelled              ErrorCode = "CANCELLED"
	ErrHTTP                   ErrorCode = "HTTP_ERROR"
	ErrUnsupportedPlatform    ErrorCode = "UNSUPPORTED_PLATFORM"
	ErrProxyFailureStop       ErrorCode = "PROXY_FAILURE_STOP"
	ErrException              ErrorCode = "EXCEPTION"
)

// MediaItem is a media reference with an explicit video flag, preferred over
// extension sniffing when present.
type MediaItem struct {
	URL     string `json:"url"`
	IsVideo bool   `json:"is_video"`
}

// Payload is the content handed to every adapter.
type Payload struct {
	Caption    string      `json:"caption"`
	MediaURLs  []string    `json:"media_urls"`
	Hashtags   []string    `json:"hashtags"`
	MediaItems []MediaItem `json:"media_items,omitempty"`
}

// HasMedia reports whether the payload carries at least one media reference.
func (p Payload) HasMedia() bool {
	return len(p.MediaURLs) > 0 || len(p.MediaItems) > 0
}

// FirstMediaURL returns the primary media reference, or "".
func (p Payload) FirstMediaURL() string {
	if len(p.MediaItems) > 0 && p.MediaItems[0].URL != "" {
		return p.MediaItems[0].URL
	}
	if len(p.MediaURLs) > 0 {
		return p.MediaURLs[0]
	}
	return ""
}

// HashtagLine joins hashtags with a leading '#', space separated.
func (p Payload) HashtagLine() string {
	tags := make([]string, 0, len(p.Hashtags))
	for _, h := range p.Hashtags {
		h = strings.TrimSpace(h)
		if h == "" {
			continue
		}
		if !strings.HasPrefix(h, "#") {
			h = "#" + h
		}
		tags = append(tags, h)
	}
	return strings.Join(tags, " ")
}

// FullCaption is the caption followed by the hashtag line.
func (p Payload) FullCaption() string {
	line := p.HashtagLine()
	switch {
	case line == "":
		return p.Caption
	case p.Caption == "":
		return line
	default:
		return p.Caption + "\n\n" + line
	}
}

// PostResult is the immutable outcome of one publish attempt on one channel.
type PostResult struct {
	Success        bool                   `json:"success"`
	ExternalPostID string                 `json:"external_post_id,omitempty"`
	Error          string                 `json:"error,omitempty"`
	ErrorCode      ErrorCode              `json:"error_code,omitempty"`
	Metadata       map[string]interface{} `json:"metadata,omitempty"`
}

// Succeeded builds a successful result.
func Succeeded(externalID string, metadata map[string]interface{}) PostResult {
	return PostResult{Success: true, ExternalPostID: externalID, Metadata: metadata}
}

// Failed builds a failed result.
func Failed(message string, code ErrorCode) PostResult {
	return PostResult{Success: false, Error: message, ErrorCode: code}
}

// PublishKind distinguishes first posts from reposts.
type PublishKind string

const (
	PublishPost   PublishKind = "post"
	PublishRepost PublishKind = "repost"
)

// PublishTask is the unit of work handed to the task dispatcher.
type PublishTask struct {
	ID            string      `json:"id"`
	CampaignID    string      `json:"campaign_id"`
	ContentItemID string      `json:"content_item_id"`
	Kind          PublishKind `json:"kind"`
	EnqueuedAt    time.Time   `json:"enqueued_at"`
}
