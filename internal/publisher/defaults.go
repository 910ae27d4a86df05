package publisher

import (
	"time"

	"github.com/ignite/social-scheduler/internal/pkg/poll"
)

// Options configures the default adapter set.
type Options struct {
	GraphBaseURL       string
	YouTubeUploadURL   string
	TikTokBaseURL      string
	TikTokPrivacyLevel string
	InstagramPoll      time.Duration
	InstagramPollTries int
	TikTokPoll         time.Duration
	TikTokPollTries    int
	DownloadMaxRetries int
	Sleeper            poll.Sleeper
}

// NewDefaultRegistry builds the Meta, YouTube, TikTok registry.
func NewDefaultRegistry(opts Options, media *MediaLoader) *Registry {
	if opts.InstagramPoll <= 0 {
		opts.InstagramPoll = DefaultInstagramPollInterval
	}
	if opts.InstagramPollTries <= 0 {
		opts.InstagramPollTries = DefaultInstagramPollAttempts
	}
	if opts.TikTokPoll <= 0 {
		opts.TikTokPoll = DefaultTikTokPollInterval
	}
	if opts.TikTokPollTries <= 0 {
		opts.TikTokPollTries = DefaultTikTokPollAttempts
	}
	sleeper := opts.Sleeper
	if sleeper == nil {
		sleeper = poll.ContextSleep
	}

	return NewRegistry(
		NewMetaAdapter(opts.GraphBaseURL, media,
			&poll.Poller{Interval: opts.InstagramPoll, MaxAttempts: opts.InstagramPollTries, Sleeper: sleeper}),
		NewYouTubeAdapter(opts.YouTubeUploadURL, media),
		NewTikTokAdapter(opts.TikTokBaseURL, opts.TikTokPrivacyLevel,
			&poll.Poller{Interval: opts.TikTokPoll, MaxAttempts: opts.TikTokPollTries, Sleeper: sleeper}),
	)
}
